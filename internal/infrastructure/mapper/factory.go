package mapper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StoreFactory opens identifier map stores for a run base path
type StoreFactory struct {
	baseDir        string
	backend        string
	redisConfig    config.RedisConfig
	fallbackToFile bool
	logger         *zap.Logger

	mu       sync.Mutex
	client   *redis.Client
	redisErr error
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithRedisClient uses an existing client instead of dialing one
func WithRedisClient(client *redis.Client) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.client = client
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(baseDir string, cfg config.MapperConfig, redisCfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		baseDir:        baseDir,
		backend:        cfg.Backend,
		redisConfig:    redisCfg,
		fallbackToFile: cfg.FallbackToFile,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BaseDir returns the run base path
func (f *StoreFactory) BaseDir() string {
	return f.baseDir
}

// Layout returns the mapper layout for kind
func (f *StoreFactory) Layout(kind migration.EntityKind) Layout {
	return NewLayout(f.baseDir, kind)
}

// Open returns the store for kind. With the redis backend, an unreachable
// server falls back to the file store when allowed.
func (f *StoreFactory) Open(ctx context.Context, kind migration.EntityKind) (Store, error) {
	return f.open(ctx, kind, f.Layout(kind).UIDMappingPath(), f.redisKey(kind))
}

// OpenSub returns the store of a map nested under kind, such as the apps
// whose configuration was restored.
func (f *StoreFactory) OpenSub(ctx context.Context, kind migration.EntityKind, name string) (Store, error) {
	return f.open(ctx, kind, f.Layout(kind).Sub(name).UIDMappingPath(), f.redisKey(kind)+":"+name)
}

func (f *StoreFactory) open(ctx context.Context, kind migration.EntityKind, path, key string) (Store, error) {
	fileStore := NewFileStore(path)
	if f.backend != "redis" {
		return fileStore, nil
	}

	client, err := f.redisClient(ctx)
	if err == nil {
		return NewRedisStore(client, key), nil
	}
	if !f.fallbackToFile {
		return nil, fmt.Errorf("redis mapper backend unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to file identifier map",
		zap.String("module", kind.String()),
		zap.Error(err),
	)
	return fileStore, nil
}

// ReadMapping loads the identifier map of kind without opening it for writes
func (f *StoreFactory) ReadMapping(ctx context.Context, kind migration.EntityKind) (map[string]any, error) {
	store, err := f.Open(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Load(ctx)
}

func (f *StoreFactory) redisKey(kind migration.EntityKind) string {
	return f.redisConfig.KeyPrefix + f.baseDir + ":" + kind.DirName()
}

func (f *StoreFactory) redisClient(ctx context.Context) (*redis.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.redisErr != nil {
		return nil, f.redisErr
	}
	if f.client == nil {
		f.client = redis.NewClient(&redis.Options{
			Addr:     f.redisConfig.Addr(),
			Password: f.redisConfig.Password,
			DB:       f.redisConfig.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := f.client.Ping(pingCtx).Err(); err != nil {
			_ = f.client.Close()
			f.client = nil
			f.redisErr = fmt.Errorf("failed to connect to Redis: %w", err)
			return nil, f.redisErr
		}
	}
	return f.client, nil
}

// Close closes the shared Redis client, if any
func (f *StoreFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}
