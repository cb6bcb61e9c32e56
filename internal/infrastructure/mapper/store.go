package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store is the durable backend of an IdentifierMap
type Store interface {
	// Load returns every persisted entry
	Load(ctx context.Context) (map[string]any, error)
	// Save persists one entry before Save returns
	Save(ctx context.Context, key string, value any) error
	// Close releases resources held by the store
	Close() error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// FileStore keeps the identifier map in a JSON file, rewriting the whole
// document after every Save.
//
// Thread Safety: Safe for concurrent use.
type FileStore struct {
	path string

	mu       sync.Mutex
	snapshot map[string]any
}

// NewFileStore creates a file-backed store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the mapping file path
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store
func (s *FileStore) Load(_ context.Context) (map[string]any, error) {
	m, err := LoadMapping(s.path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = make(map[string]any, len(m))
	for k, v := range m {
		s.snapshot[k] = v
	}
	s.mu.Unlock()
	return m, nil
}

// Save implements Store
func (s *FileStore) Save(_ context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot == nil {
		m, err := LoadMapping(s.path)
		if err != nil {
			return err
		}
		s.snapshot = m
	}

	prev, had := s.snapshot[key]
	s.snapshot[key] = value
	if err := PersistMapping(s.path, s.snapshot); err != nil {
		if had {
			s.snapshot[key] = prev
		} else {
			delete(s.snapshot, key)
		}
		return err
	}
	return nil
}

// Close implements Store
func (s *FileStore) Close() error {
	return nil
}

// RedisStore keeps the identifier map in one Redis hash so that several
// workers can share resume state. Values are stored as JSON.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store on the hash at key
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Key returns the Redis hash key
func (s *RedisStore) Key() string {
	return s.key
}

// Load implements Store
func (s *RedisStore) Load(ctx context.Context) (map[string]any, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load mapping %s: %w", s.key, err)
	}

	m := make(map[string]any, len(raw))
	for k, v := range raw {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("decode mapping %s[%s]: %w", s.key, k, err)
		}
		m[k] = decoded
	}
	return m, nil
}

// Save implements Store
func (s *RedisStore) Save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode mapping value for %s: %w", key, err)
	}
	if err := s.client.HSet(ctx, s.key, key, data).Err(); err != nil {
		return fmt.Errorf("save mapping %s[%s]: %w", s.key, key, err)
	}
	return nil
}

// Close implements Store. The client is owned by the factory.
func (s *RedisStore) Close() error {
	return nil
}
