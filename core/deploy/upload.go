package deploy

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/jarvault/jarvault/core/auth"
	"github.com/jarvault/jarvault/core/blob"
	"github.com/jarvault/jarvault/core/db"
	"github.com/jarvault/jarvault/core/fileutil"
	"github.com/jarvault/jarvault/core/gav"
	"github.com/jarvault/jarvault/core/infra/locks"
	"github.com/jarvault/jarvault/core/infra/logging"
	"github.com/jarvault/jarvault/core/infra/metrics"
	"github.com/jarvault/jarvault/core/search"
	"github.com/jarvault/jarvault/core/staging"
)

// Service stitches PUT requests into deploy transactions and commits
// them.
type Service struct {
	DB        db.Store
	Blob      blob.Store
	Staging   *staging.Store
	Validator *Validator
	Indexer   search.Indexer
	Locks     locks.Store // optional; serializes finalization across replicas
	Metrics   metrics.DeployMetrics

	finalizeMu sync.Map // staging dir -> *sync.Mutex
}

func (s *Service) metrics() metrics.DeployMetrics {
	if s.Metrics != nil {
		return s.Metrics
	}
	return metrics.Noop{}
}

// UploadRequest authorizes ident against groupname, resolves the
// staging directory for the coordinate from the session, runs fn on it,
// and moves the directory to the front of the session.
func (s *Service) UploadRequest(ctx context.Context, ident *auth.Identity, groupname, artifact, version, timestampVersion string, sess *Session, fn func(dir string) error) error {
	if ident == nil {
		return invalidStatus(TagDeployForbidden, http.StatusUnauthorized, "authentication required")
	}
	names, err := s.DB.GroupActiveNames(ctx, groupname)
	if err != nil {
		return forbidden(err, "could not load group %s", groupname)
	}
	if err := db.CheckGroup(names, ident.Username); err != nil {
		logging.Audit(ident.Username, "deploy-rejected", "group", groupname, "reason", "not-a-member")
		return invalid(TagDeployForbidden, "%s does not have permission to deploy under %s", ident.Username, groupname)
	}
	dir, err := s.Staging.FindUploadDir(staging.Metadata{
		Group:            groupname,
		Name:             artifact,
		Version:          version,
		TimestampVersion: timestampVersion,
	}, sess.UploadDirs)
	if err != nil {
		return forbidden(err, "could not allocate an upload directory")
	}
	if err := fn(dir); err != nil {
		return err
	}
	sess.Touch(dir)
	return nil
}

// HandleVersionedUpload stores one versioned file
// (group/artifact/version/filename) into the deploy's staging directory,
// or streams it straight to the blob store when the directory is already
// finalized.
func (s *Service) HandleVersionedUpload(ctx context.Context, ident *auth.Identity, body io.Reader, sess *Session, groupPath, artifact, version, filename string) error {
	groupname := gav.GroupName(groupPath)
	timestampVersion := gav.TimestampVersion(artifact, version, filename)

	return s.UploadRequest(ctx, ident, groupname, artifact, version, timestampVersion, sess, func(dir string) error {
		if err := auth.CheckScope(ident, groupname, artifact); err != nil {
			logging.Audit(ident.Username, "deploy-rejected", "group", groupname, "artifact", artifact, "reason", "token-scope")
			return invalid(TagDeployForbidden, "the deploy token's scope does not cover %s/%s", groupname, artifact)
		}
		if err := staging.WriteMetadata(dir, staging.Metadata{
			Group:            groupname,
			GroupPath:        groupPath,
			Name:             artifact,
			Version:          version,
			TimestampVersion: timestampVersion,
		}); err != nil {
			return forbidden(err, "could not record upload metadata")
		}
		rel := path.Join(groupPath, artifact, version, filename)
		if staging.Finalized(dir) {
			// Tail files (typically checksum sidecars the client sends
			// after the metadata PUT) go straight to durable storage.
			return s.writeThrough(ctx, rel, body)
		}
		if _, err := staging.SaveFile(dir, rel, body); err != nil {
			return forbidden(err, "could not store %s", filename)
		}
		s.metrics().IncUpload(path.Ext(filename))
		return nil
	})
}

// HandleMetadataUpload stores a non-versioned maven-metadata.xml and
// fires finalization when the file's content changed.
func (s *Service) HandleMetadataUpload(ctx context.Context, ident *auth.Identity, body io.Reader, sess *Session, groupPath, artifact string) error {
	groupname := gav.GroupName(groupPath)

	return s.UploadRequest(ctx, ident, groupname, artifact, "", "", sess, func(dir string) error {
		if err := auth.CheckScope(ident, groupname, artifact); err != nil {
			logging.Audit(ident.Username, "deploy-rejected", "group", groupname, "artifact", artifact, "reason", "token-scope")
			return invalid(TagDeployForbidden, "the deploy token's scope does not cover %s/%s", groupname, artifact)
		}
		if err := staging.WriteMetadata(dir, staging.Metadata{
			Group:     groupname,
			GroupPath: groupPath,
			Name:      artifact,
		}); err != nil {
			return forbidden(err, "could not record upload metadata")
		}
		rel := path.Join(groupPath, artifact, "maven-metadata.xml")
		if staging.Finalized(dir) {
			return s.writeThrough(ctx, rel, body)
		}
		priorSum := metadataSum(dir, rel)
		dest, err := staging.SaveFile(dir, rel, body)
		if err != nil {
			return forbidden(err, "could not store maven-metadata.xml")
		}
		s.metrics().IncUpload(".xml")
		newSum, err := checksumPath(dest)
		if err != nil {
			return forbidden(err, "could not hash maven-metadata.xml")
		}
		if priorSum != "" && priorSum == newSum {
			return nil
		}
		return s.Finalize(ctx, ident, dir)
	})
}

func (s *Service) writeThrough(ctx context.Context, key string, body io.Reader) error {
	if err := s.Blob.WriteArtifact(ctx, key, body); err != nil {
		return forbidden(err, "could not store %s", path.Base(key))
	}
	return nil
}

const finalizeLockTTL = time.Minute

// metadataSum hashes the previously staged copy of a metadata file;
// empty when none exists yet.
func metadataSum(dir, rel string) string {
	dest := filepath.Join(dir, filepath.FromSlash(rel))
	if _, err := os.Stat(dest); err != nil {
		return ""
	}
	sum, err := checksumPath(dest)
	if err != nil {
		return ""
	}
	return sum
}

func checksumPath(path string) (string, error) {
	return fileutil.Checksum(path, fileutil.AlgoSHA1)
}
