package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jarvault/jarvault/core/infra/redisutil"
)

const tokenKeyPrefix = "jarvault:token:"

// MemoryTokenSource keeps tokens in process memory; used for tests and
// single-node setups.
type MemoryTokenSource struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

// NewMemoryTokenSource returns an empty token source.
func NewMemoryTokenSource() *MemoryTokenSource {
	return &MemoryTokenSource{tokens: map[string]*Token{}}
}

// Add registers a token under its secret.
func (s *MemoryTokenSource) Add(secret string, tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[DigestSecret(secret)] = &tok
}

func (s *MemoryTokenSource) Lookup(_ context.Context, digest string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tok, ok := s.tokens[digest]; ok {
		copied := *tok
		return &copied, nil
	}
	return nil, nil
}

// RedisTokenSource resolves tokens from Redis, keyed by secret digest.
type RedisTokenSource struct {
	client redis.UniversalClient
}

// NewRedisTokenSource constructs a token source from a redis:// URL.
func NewRedisTokenSource(url string) (*RedisTokenSource, error) {
	client, err := redisutil.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("token source: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisTokenSource{client: client}, nil
}

// NewRedisTokenSourceFromClient wraps an existing client; used by tests.
func NewRedisTokenSourceFromClient(client redis.UniversalClient) *RedisTokenSource {
	return &RedisTokenSource{client: client}
}

func (s *RedisTokenSource) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Put stores a token record under a secret digest.
func (s *RedisTokenSource) Put(ctx context.Context, digest string, tok Token) error {
	payload, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, tokenKeyPrefix+digest, payload, 0).Err()
}

func (s *RedisTokenSource) Lookup(ctx context.Context, digest string) (*Token, error) {
	raw, err := s.client.Get(ctx, tokenKeyPrefix+digest).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("token lookup: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}
