package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jarvault/jarvault/core/auth"
	"github.com/jarvault/jarvault/core/blob"
	"github.com/jarvault/jarvault/core/central"
	"github.com/jarvault/jarvault/core/db"
	"github.com/jarvault/jarvault/core/fileutil"
	"github.com/jarvault/jarvault/core/search"
	"github.com/jarvault/jarvault/core/staging"
)

const testPom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>com.ex</groupId>
  <artifactId>lib</artifactId>
  <version>1.0</version>
  <packaging>jar</packaging>
  <description>test library</description>
</project>`

const testMetadata = `<?xml version="1.0" encoding="UTF-8"?>
<metadata>
  <groupId>com.ex</groupId>
  <artifactId>lib</artifactId>
  <versioning>
    <release>1.0</release>
    <versions><version>1.0</version></versions>
  </versioning>
</metadata>`

type stubIndexer struct {
	mu   sync.Mutex
	docs []search.Document
}

func (s *stubIndexer) Index(_ context.Context, doc search.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	return nil
}

func (s *stubIndexer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

type testEnv struct {
	svc     *Service
	db      *db.MemoryStore
	blob    *blob.FSStore
	indexer *stubIndexer
	ident   *auth.Identity
}

// newTestEnv wires a service against in-memory collaborators and a fake
// Central that knows org/clojure/core.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	centralSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/org/clojure/core/maven-metadata.xml" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(centralSrv.Close)

	store := db.NewMemoryStore()
	fsBlob := blob.NewFSStore(t.TempDir())
	indexer := &stubIndexer{}
	svc := &Service{
		DB:        store,
		Blob:      fsBlob,
		Staging:   staging.NewStore(t.TempDir()),
		Validator: &Validator{DB: store, Central: central.NewClient(centralSrv.URL)},
		Indexer:   indexer,
	}
	return &testEnv{
		svc:     svc,
		db:      store,
		blob:    fsBlob,
		indexer: indexer,
		ident:   &auth.Identity{Username: "alice", Token: &auth.Token{Username: "alice"}},
	}
}

// stageRelease writes a complete valid release into dir.
func stageRelease(t *testing.T, dir string) {
	t.Helper()
	stageFile(t, dir, "com/ex/lib/1.0/lib-1.0.pom", testPom, true)
	stageFile(t, dir, "com/ex/lib/1.0/lib-1.0.jar", "jar bytes", true)
	// The finalizer regenerates these sums before validation runs.
	stageFile(t, dir, "com/ex/lib/maven-metadata.xml", testMetadata, true)
	if err := staging.WriteMetadata(dir, staging.Metadata{
		Group:     "com.ex",
		GroupPath: "com/ex",
		Name:      "lib",
		Version:   "1.0",
	}); err != nil {
		t.Fatal(err)
	}
}

// stageFile writes one staged file, optionally with a valid sha1
// sidecar.
func stageFile(t *testing.T, dir, rel, content string, withSum bool) string {
	t.Helper()
	dest, err := staging.SaveFile(dir, rel, strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if withSum {
		if err := fileutil.WriteChecksumFile(dest, fileutil.AlgoSHA1); err != nil {
			t.Fatal(err)
		}
	}
	return dest
}

func blobExists(t *testing.T, store *blob.FSStore, key string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(store.Root, filepath.FromSlash(key)))
	return err == nil
}

func deployTag(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected a deploy error")
	}
	de, ok := AsError(err)
	if !ok {
		t.Fatalf("not a deploy error: %v", err)
	}
	return de.Tag
}
