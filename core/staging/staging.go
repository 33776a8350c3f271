// Package staging manages the per-deploy temporary directories that
// collect uploaded files until finalization.
package staging

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	// SidecarName is the metadata record kept beside uploaded files.
	SidecarName = "_metadata.edn"
	// SentinelName marks a directory whose deploy has been committed.
	SentinelName = ".finalized"

	dirPrefix = "upload-"
)

// Metadata is the sidecar record pinning a staging directory to one
// coordinate. Empty fields are wildcards.
type Metadata struct {
	Group            string `json:"group,omitempty"`
	GroupPath        string `json:"group-path,omitempty"`
	Name             string `json:"name,omitempty"`
	Version          string `json:"version,omitempty"`
	TimestampVersion string `json:"timestamp-version,omitempty"`
}

func (m Metadata) matches(want Metadata) bool {
	pairs := [][2]string{
		{m.Group, want.Group},
		{m.Name, want.Name},
		{m.Version, want.Version},
		{m.TimestampVersion, want.TimestampVersion},
	}
	for _, p := range pairs {
		if p[0] != "" && p[1] != "" && p[0] != p[1] {
			return false
		}
	}
	return true
}

// merge overlays next onto m; existing values survive only where next
// leaves the field empty.
func (m Metadata) merge(next Metadata) Metadata {
	out := m
	if next.Group != "" {
		out.Group = next.Group
	}
	if next.GroupPath != "" {
		out.GroupPath = next.GroupPath
	}
	if next.Name != "" {
		out.Name = next.Name
	}
	if next.Version != "" {
		out.Version = next.Version
	}
	if next.TimestampVersion != "" {
		out.TimestampVersion = next.TimestampVersion
	}
	return out
}

// Store creates and resolves staging directories under Root.
type Store struct {
	Root string
}

// NewStore returns a staging store rooted at root, defaulting to the OS
// temp directory.
func NewStore(root string) *Store {
	if root == "" {
		root = os.TempDir()
	}
	return &Store{Root: root}
}

// ReadMetadata loads the sidecar record from dir. A missing sidecar
// yields the zero record.
func ReadMetadata(dir string) (Metadata, error) {
	var md Metadata
	data, err := os.ReadFile(filepath.Join(dir, SidecarName))
	if err != nil {
		if os.IsNotExist(err) {
			return md, nil
		}
		return md, err
	}
	if err := json.Unmarshal(data, &md); err != nil {
		return md, fmt.Errorf("decode sidecar in %s: %w", dir, err)
	}
	return md, nil
}

// WriteMetadata merges fields onto the existing sidecar record and
// rewrites it.
func WriteMetadata(dir string, fields Metadata) error {
	existing, err := ReadMetadata(dir)
	if err != nil {
		return err
	}
	merged := existing.merge(fields)
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, SidecarName), data, 0o644)
}

// FindUploadDir returns the first directory in dirs whose sidecar is
// compatible with want, creating a fresh one when none match. Directories
// that no longer exist are skipped.
func (s *Store) FindUploadDir(want Metadata, dirs []string) (string, error) {
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		md, err := ReadMetadata(dir)
		if err != nil {
			continue
		}
		if md.matches(want) {
			return dir, nil
		}
	}
	return s.Create()
}

// Create makes a fresh upload directory under the store root.
func (s *Store) Create() (string, error) {
	dir := filepath.Join(s.Root, dirPrefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	return dir, nil
}

// Finalized reports whether dir carries the finalization sentinel.
func Finalized(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, SentinelName))
	return err == nil
}

// MarkFinalized drops the zero-byte sentinel into dir.
func MarkFinalized(dir string) error {
	return os.WriteFile(filepath.Join(dir, SentinelName), nil, 0o644)
}

// SaveFile writes body to relPath under dir, creating intermediate
// directories. A partially written destination is removed before the
// error propagates.
func SaveFile(dir, relPath string, body io.Reader) (string, error) {
	dest := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create dirs for %s: %w", relPath, err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("write %s: %w", relPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// Artifacts lists the regular files under dir, excluding the sidecar and
// the sentinel.
func Artifacts(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch d.Name() {
		case SidecarName, SentinelName:
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
