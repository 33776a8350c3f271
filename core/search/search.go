// Package search feeds published coordinates to the search index. The
// deploy path treats indexing as best-effort: failures are logged and
// never surface to the client.
package search

import (
	"context"
	"time"

	"github.com/jarvault/jarvault/core/infra/bus"
	"github.com/jarvault/jarvault/core/infra/logging"
	"github.com/jarvault/jarvault/core/pom"
)

// SubjectIndex is the bus subject index documents are published on.
const SubjectIndex = "deploy.index"

// Document is one coordinate submitted for indexing.
type Document struct {
	Group       string    `json:"group"`
	Artifact    string    `json:"artifact"`
	Version     string    `json:"version"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	At          time.Time `json:"at"`
}

// FromProject builds an index document from a parsed descriptor.
func FromProject(p *pom.Project, at time.Time) Document {
	return Document{
		Group:       p.Group,
		Artifact:    p.Name,
		Version:     p.Version,
		Description: p.Description,
		URL:         p.URL,
		At:          at,
	}
}

// Indexer accepts index documents.
type Indexer interface {
	Index(ctx context.Context, doc Document) error
}

// BusIndexer publishes index documents onto the event bus, where the
// index worker consumes them.
type BusIndexer struct {
	Bus bus.Bus
}

func (b *BusIndexer) Index(_ context.Context, doc Document) error {
	return b.Bus.Publish(SubjectIndex, doc)
}

// LogIndexer records documents to the log only; the fallback when no
// bus is configured.
type LogIndexer struct{}

func (LogIndexer) Index(_ context.Context, doc Document) error {
	logging.Info("search", "indexed", "group", doc.Group, "artifact", doc.Artifact, "version", doc.Version)
	return nil
}
