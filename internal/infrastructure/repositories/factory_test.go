package repositories

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lenslink/internal/infrastructure/repositories/file"
	redisrepo "lenslink/internal/infrastructure/repositories/redis"
	"lenslink/pkg/config"
	"lenslink/pkg/storage"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	return cfg
}

func TestFactory_FileStoresByDefault(t *testing.T) {
	ctx := context.Background()
	factory, err := NewRepositoryFactory(testConfig(t), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer factory.Close()

	assert.False(t, factory.UsingRedis())
	assert.NoError(t, factory.HealthCheck(ctx))

	pairs, err := factory.CreatePairingStore()
	require.NoError(t, err)
	assert.IsType(t, &file.PairingStore{}, pairs)

	history, err := factory.CreateHistoryStore(ctx)
	require.NoError(t, err)
	assert.Empty(t, history.Recent())

	media, err := factory.CreateMediaStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &storage.FileStorage{}, media)

	assert.NotNil(t, factory.CreateDeviceRegistry())
}

func TestFactory_UsesRedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Address = mr.Addr()

	factory, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer factory.Close()

	assert.True(t, factory.UsingRedis())
	assert.NoError(t, factory.HealthCheck(context.Background()))

	pairs, err := factory.CreatePairingStore()
	require.NoError(t, err)
	assert.IsType(t, &redisrepo.PairingStore{}, pairs)
}

func TestFactory_FallsBackWhenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Address = addr

	factory, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.False(t, factory.UsingRedis())
	pairs, err := factory.CreatePairingStore()
	require.NoError(t, err)
	assert.IsType(t, &file.PairingStore{}, pairs)
}
