package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jarvault/jarvault/core/gav"
	"github.com/jarvault/jarvault/core/infra/redisutil"
	"github.com/jarvault/jarvault/core/pom"
)

const (
	defaultRedisURL = "redis://localhost:6379"

	groupKeyPrefix = "jarvault:group:"
	jarKeyPrefix   = "jarvault:jar:"
)

// RedisStore implements Store on Redis. Jar records are JSON values with
// SETNX guarding release write-once; group membership is a set per group.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore constructs a metadata store from a redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		url = defaultRedisURL
	}
	client, err := redisutil.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("metadata store: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func groupKey(group string) string {
	return groupKeyPrefix + group + ":members"
}

func redisJarKey(group, artifact, version string) string {
	return fmt.Sprintf("%s%s:%s:%s", jarKeyPrefix, group, artifact, version)
}

func (s *RedisStore) GroupActiveNames(ctx context.Context, group string) ([]string, error) {
	names, err := s.client.SMembers(ctx, groupKey(group)).Result()
	if err != nil {
		return nil, fmt.Errorf("group members %s: %w", group, err)
	}
	return names, nil
}

func (s *RedisStore) CheckAndAddGroup(ctx context.Context, user, group string) error {
	members, err := s.GroupActiveNames(ctx, group)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		if err := s.client.SAdd(ctx, groupKey(group), user).Err(); err != nil {
			return fmt.Errorf("claim group %s: %w", group, err)
		}
		return nil
	}
	return CheckGroup(members, user)
}

// AddGroupMember grants user deploy rights under group.
func (s *RedisStore) AddGroupMember(ctx context.Context, group, user string) error {
	return s.client.SAdd(ctx, groupKey(group), user).Err()
}

func (s *RedisStore) FindJar(ctx context.Context, group, artifact, version string) (*JarRecord, error) {
	raw, err := s.client.Get(ctx, redisJarKey(group, artifact, version)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find jar: %w", err)
	}
	var rec JarRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode jar record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) AddJar(ctx context.Context, user string, p *pom.Project) error {
	rec := JarRecord{
		Group:     p.Group,
		Artifact:  p.Name,
		Version:   p.Version,
		Uploader:  user,
		Pom:       p,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := redisJarKey(p.Group, p.Name, p.Version)
	if gav.IsSnapshot(p.Version) {
		return s.client.Set(ctx, key, payload, 0).Err()
	}
	ok, err := s.client.SetNX(ctx, key, payload, 0).Result()
	if err != nil {
		return fmt.Errorf("add jar: %w", err)
	}
	if !ok {
		return ErrJarExists
	}
	return nil
}
