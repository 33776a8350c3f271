// Package db stores the authoritative deploy metadata: group membership
// and published jar records.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/jarvault/jarvault/core/pom"
)

var (
	// ErrJarExists signals a write-once violation for a release version.
	ErrJarExists = errors.New("jar already exists")
	// ErrNotGroupMember signals that the user may not deploy under the group.
	ErrNotGroupMember = errors.New("user is not an active member of the group")
)

// JarRecord is the durable record of one published coordinate.
type JarRecord struct {
	Group     string       `json:"group"`
	Artifact  string       `json:"artifact"`
	Version   string       `json:"version"`
	Uploader  string       `json:"uploader"`
	Pom       *pom.Project `json:"pom,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Store provides group membership and jar records.
type Store interface {
	// GroupActiveNames returns the usernames permitted to deploy under
	// group; empty means the group is unclaimed.
	GroupActiveNames(ctx context.Context, group string) ([]string, error)
	// CheckAndAddGroup verifies user may deploy under group, claiming an
	// unclaimed group for user. Returns ErrNotGroupMember otherwise.
	CheckAndAddGroup(ctx context.Context, user, group string) error
	// FindJar returns the record for a coordinate, or nil when absent.
	FindJar(ctx context.Context, group, artifact, version string) (*JarRecord, error)
	// AddJar records a published coordinate. Release versions are
	// write-once; a duplicate add returns ErrJarExists.
	AddJar(ctx context.Context, user string, p *pom.Project) error
	Close() error
}

// CheckGroup verifies user against a group's active member list. An
// empty list means the group is unclaimed and open to any deployer.
func CheckGroup(activeNames []string, user string) error {
	if len(activeNames) == 0 {
		return nil
	}
	for _, name := range activeNames {
		if name == user {
			return nil
		}
	}
	return ErrNotGroupMember
}
