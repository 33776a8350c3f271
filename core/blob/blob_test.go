package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAndOpen(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()

	key := "com/example/lib/1.0/lib-1.0.jar"
	if err := store.WriteArtifact(ctx, key, strings.NewReader("jar bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root, "com", "example", "lib", "1.0", "lib-1.0.jar")); err != nil {
		t.Fatalf("artifact not on disk: %v", err)
	}

	r, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jar bytes" {
		t.Errorf("content = %q", data)
	}

	// Re-publish replaces the previous content.
	if err := store.WriteArtifact(ctx, key, strings.NewReader("newer")); err != nil {
		t.Fatal(err)
	}
	r2, _ := store.Open(ctx, key)
	defer r2.Close()
	data, _ = io.ReadAll(r2)
	if string(data) != "newer" {
		t.Errorf("replaced content = %q", data)
	}
}

func TestInvalidKeys(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()
	for _, key := range []string{"../escape", "/abs/path", "."} {
		if err := store.WriteArtifact(ctx, key, strings.NewReader("x")); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}
