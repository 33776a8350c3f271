package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jarvault/jarvault/core/auth"
	"github.com/jarvault/jarvault/core/db"
	"github.com/jarvault/jarvault/core/fileutil"
	"github.com/jarvault/jarvault/core/gav"
	"github.com/jarvault/jarvault/core/infra/logging"
	"github.com/jarvault/jarvault/core/pom"
	"github.com/jarvault/jarvault/core/search"
	"github.com/jarvault/jarvault/core/staging"
)

// Finalize commits a staged deploy: validate the aggregate, publish
// every staged file to the blob store, record the release, queue the
// search index update, and mark the directory finalized.
//
// Rejections pass through with their tag intact; any other failure is
// reported as deploy-forbidden.
func (s *Service) Finalize(ctx context.Context, ident *auth.Identity, dir string) error {
	unlock, err := s.lockDir(ctx, dir)
	if err != nil {
		return err
	}
	defer unlock()

	if staging.Finalized(dir) {
		return nil
	}
	err = s.finalize(ctx, ident, dir)
	if err == nil {
		s.metrics().IncDeploy("ok")
		return nil
	}
	if de, ok := AsError(err); ok {
		logging.Audit(ident.Username, "deploy-rejected", "dir", dir, "tag", de.Tag, "reason", de.Message)
		s.metrics().IncValidationFailure(de.Tag)
		s.metrics().IncDeploy("rejected")
		return err
	}
	s.metrics().IncDeploy("error")
	return forbidden(err, "the deploy could not be completed")
}

func (s *Service) finalize(ctx context.Context, ident *auth.Identity, dir string) error {
	pomPath, err := findPom(dir)
	if err != nil {
		return err
	}
	project, err := pom.Parse(pomPath)
	if err != nil {
		return invalid(TagInvalidPomFile, "could not parse %s: %v", filepath.Base(pomPath), err)
	}

	md, err := staging.ReadMetadata(dir)
	if err != nil {
		return forbidden(err, "could not read upload metadata")
	}
	metaPath := filepath.Join(dir, filepath.FromSlash(md.GroupPath), md.Name, "maven-metadata.xml")
	if _, err := pom.ParseMetadata(metaPath); err != nil {
		return invalid(TagInvalidMavenMetadataFile, "could not parse maven-metadata.xml: %v", err)
	}
	// Client-sent checksums for the metadata file are ignored; the
	// server's own are authoritative.
	for _, algo := range fileutil.Algos {
		if err := fileutil.WriteChecksumFile(metaPath, algo); err != nil {
			return forbidden(err, "could not write metadata checksums")
		}
	}

	version := md.Version
	if version == "" {
		version = project.Version
	}
	coord := gav.GAV{Group: md.Group, Artifact: md.Name, Version: version}
	if err := s.Validator.ValidateDeploy(ctx, dir, project, coord); err != nil {
		return err
	}

	if err := s.DB.CheckAndAddGroup(ctx, ident.Username, md.Group); err != nil {
		if errors.Is(err, db.ErrNotGroupMember) {
			return invalid(TagDeployForbidden, "%s does not have permission to deploy under %s", ident.Username, md.Group)
		}
		return forbidden(err, "could not verify group ownership")
	}

	files, err := staging.Artifacts(dir)
	if err != nil {
		return forbidden(err, "could not enumerate staged files")
	}
	for _, file := range files {
		key, err := fileutil.Subpath(dir, file)
		if err != nil {
			return forbidden(err, "unexpected staged path %s", file)
		}
		f, err := os.Open(file)
		if err != nil {
			return forbidden(err, "could not read %s", key)
		}
		err = s.Blob.WriteArtifact(ctx, key, f)
		f.Close()
		if err != nil {
			return forbidden(err, "could not publish %s", key)
		}
	}

	if err := s.DB.AddJar(ctx, ident.Username, project); err != nil {
		if errors.Is(err, db.ErrJarExists) {
			return invalid(TagNonSnapshotRedeploy,
				"%s has already been released; bump the version to deploy again", coord)
		}
		return forbidden(err, "could not record the release")
	}

	s.indexAsync(pomPath, project)

	if err := staging.MarkFinalized(dir); err != nil {
		return forbidden(err, "could not mark the deploy finalized")
	}
	logging.Info("deploy", "finalized", "coordinate", coord.String(), "user", ident.Username)
	return nil
}

// indexAsync queues the search index update. Indexing never fails the
// deploy.
func (s *Service) indexAsync(pomPath string, project *pom.Project) {
	at := time.Now().UTC()
	if info, err := os.Stat(pomPath); err == nil {
		at = info.ModTime().UTC()
	}
	doc := search.FromProject(project, at)
	indexer := s.Indexer
	if indexer == nil {
		indexer = search.LogIndexer{}
	}
	go func() {
		if err := indexer.Index(context.Background(), doc); err != nil {
			logging.Error("deploy", "search index update failed",
				"coordinate", doc.Group+"/"+doc.Artifact+"/"+doc.Version, "error", err)
		}
	}()
}

// lockDir serializes finalization for one staging directory. The local
// mutex covers this process; the lock store extends the guarantee to
// replicas sharing the staging volume.
func (s *Service) lockDir(ctx context.Context, dir string) (func(), error) {
	muAny, _ := s.finalizeMu.LoadOrStore(dir, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()

	if s.Locks == nil {
		return mu.Unlock, nil
	}
	resource := "finalize:" + filepath.Base(dir)
	ok, err := s.Locks.TryAcquire(ctx, resource, finalizeLockTTL)
	if err != nil {
		mu.Unlock()
		return nil, forbidden(err, "could not lock the deploy for finalization")
	}
	if !ok {
		mu.Unlock()
		return nil, invalid(TagDeployForbidden, "another finalization is in progress for this deploy")
	}
	return func() {
		if err := s.Locks.Release(context.Background(), resource); err != nil {
			logging.Error("deploy", "lock release failed", "resource", resource, "error", err)
		}
		mu.Unlock()
	}, nil
}

// findPom locates the descriptor among the staged files; first match
// wins.
func findPom(dir string) (string, error) {
	files, err := staging.Artifacts(dir)
	if err != nil {
		return "", forbidden(err, "could not enumerate staged files")
	}
	for _, f := range files {
		if strings.HasSuffix(f, ".pom") {
			return f, nil
		}
	}
	return "", invalid(TagMissingPomFile, "no pom file was uploaded")
}
