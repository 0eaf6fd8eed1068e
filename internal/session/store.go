package session

import (
	"context"
	"errors"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Store keeps one named blob per visitor session.
type Store interface {
	Get(ctx context.Context, sessionID string) ([]byte, bool, error)
	Set(ctx context.Context, sessionID string, blob []byte) error
	Unset(ctx context.Context, sessionID string) error
}

const defaultKeyPrefix = "affiliate:session:"

// RedisStore stores session blobs in Redis with a sliding TTL.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func (s *RedisStore) key(sessionID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return prefix + sessionID
}

func (s *RedisStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return 48 * time.Hour
	}
	return s.TTL
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, sessionID string) ([]byte, bool, error) {
	if s == nil || s.Client == nil {
		return nil, false, errors.New("session store not configured")
	}
	data, err := s.Client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set implements Store. A plain SET gives last-write-wins across concurrent requests.
func (s *RedisStore) Set(ctx context.Context, sessionID string, blob []byte) error {
	if s == nil || s.Client == nil {
		return errors.New("session store not configured")
	}
	return s.Client.Set(ctx, s.key(sessionID), blob, s.ttl()).Err()
}

// Unset implements Store.
func (s *RedisStore) Unset(ctx context.Context, sessionID string) error {
	if s == nil || s.Client == nil {
		return errors.New("session store not configured")
	}
	return s.Client.Del(ctx, s.key(sessionID)).Err()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, sessionID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[sessionID]
	return b, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, sessionID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = make(map[string][]byte)
	}
	m.blobs[sessionID] = append([]byte(nil), blob...)
	return nil
}

// Unset implements Store.
func (m *MemoryStore) Unset(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, sessionID)
	return nil
}
