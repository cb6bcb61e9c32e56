package mapper

import (
	"context"
	"testing"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// unreachableRedis points at a port nothing listens on
var unreachableRedis = config.RedisConfig{Host: "127.0.0.1", Port: 1, KeyPrefix: "test:"}

func TestStoreFactory_File(t *testing.T) {
	dir := t.TempDir()
	f := NewStoreFactory(dir, config.MapperConfig{Backend: "file"}, unreachableRedis)

	store, err := f.Open(context.Background(), migration.EntityWorkflows)
	require.NoError(t, err)

	fs, ok := store.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, NewLayout(dir, migration.EntityWorkflows).UIDMappingPath(), fs.Path())
	assert.Equal(t, dir, f.BaseDir())
	assert.NoError(t, f.Close())
}

func TestStoreFactory_OpenSub(t *testing.T) {
	dir := t.TempDir()
	f := NewStoreFactory(dir, config.MapperConfig{Backend: "file"}, unreachableRedis)

	store, err := f.OpenSub(context.Background(), migration.EntityMarketplaceApps, "configure")
	require.NoError(t, err)
	fs, ok := store.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, NewLayout(dir, migration.EntityMarketplaceApps).Sub("configure").UIDMappingPath(), fs.Path())

	require.NoError(t, store.Save(context.Background(), "inst1", "t-inst1"))
	m, err := LoadMapping(fs.Path())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"inst1": "t-inst1"}, m)

	top, err := f.ReadMapping(context.Background(), migration.EntityMarketplaceApps)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestStoreFactory_RedisFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to file", func(t *testing.T) {
		f := NewStoreFactory(t.TempDir(), config.MapperConfig{Backend: "redis", FallbackToFile: true}, unreachableRedis,
			WithLogger(zaptest.NewLogger(t)))

		store, err := f.Open(ctx, migration.EntityLabels)
		require.NoError(t, err)
		assert.IsType(t, &FileStore{}, store)

		// The connection error is remembered rather than redialed
		store, err = f.Open(ctx, migration.EntityWebhooks)
		require.NoError(t, err)
		assert.IsType(t, &FileStore{}, store)
	})

	t.Run("no fallback", func(t *testing.T) {
		f := NewStoreFactory(t.TempDir(), config.MapperConfig{Backend: "redis"}, unreachableRedis)

		_, err := f.Open(ctx, migration.EntityLabels)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis mapper backend unavailable")
	})
}

func TestStoreFactory_ReadMapping(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, PersistMapping(NewLayout(dir, migration.EntityCustomRoles).UIDMappingPath(),
		map[string]any{"role1": "role2"}))

	f := NewStoreFactory(dir, config.MapperConfig{Backend: "file"}, unreachableRedis)
	m, err := f.ReadMapping(context.Background(), migration.EntityCustomRoles)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"role1": "role2"}, m)
}
