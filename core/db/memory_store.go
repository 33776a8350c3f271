package db

import (
	"context"
	"sync"
	"time"

	"github.com/jarvault/jarvault/core/gav"
	"github.com/jarvault/jarvault/core/pom"
)

// MemoryStore keeps metadata in process memory. Used for tests and
// single-node setups without Redis.
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[string][]string
	jars   map[string]*JarRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups: map[string][]string{},
		jars:   map[string]*JarRecord{},
	}
}

func jarKey(group, artifact, version string) string {
	return group + "/" + artifact + "/" + version
}

func (s *MemoryStore) GroupActiveNames(_ context.Context, group string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.groups[group]...), nil
}

func (s *MemoryStore) CheckAndAddGroup(_ context.Context, user, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.groups[group]
	if len(members) == 0 {
		s.groups[group] = []string{user}
		return nil
	}
	return CheckGroup(members, user)
}

// AddGroupMember grants user deploy rights under group.
func (s *MemoryStore) AddGroupMember(group, user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group] = append(s.groups[group], user)
}

func (s *MemoryStore) FindJar(_ context.Context, group, artifact, version string) (*JarRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.jars[jarKey(group, artifact, version)]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryStore) AddJar(_ context.Context, user string, p *pom.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jarKey(p.Group, p.Name, p.Version)
	if _, ok := s.jars[key]; ok && !gav.IsSnapshot(p.Version) {
		return ErrJarExists
	}
	s.jars[key] = &JarRecord{
		Group:     p.Group,
		Artifact:  p.Name,
		Version:   p.Version,
		Uploader:  user,
		Pom:       p,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
