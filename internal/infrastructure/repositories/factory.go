package repositories

import (
	"context"
	"fmt"

	"lenslink/internal/core/ports"
	"lenslink/internal/infrastructure/repositories/file"
	"lenslink/internal/infrastructure/repositories/memory"
	redisrepo "lenslink/internal/infrastructure/repositories/redis"
	"lenslink/pkg/config"
	"lenslink/pkg/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates stores with fallback support
type RepositoryFactory struct {
	cfg         *config.Config
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when enabled and falls back to the
// file stores when it is unreachable.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		cfg:      cfg,
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to file repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis pairing store")
		}
	}

	if !factory.useRedis {
		logger.Infow("using file pairing store", "path", cfg.PairingPath())
	}

	return factory, nil
}

// RedisClient returns the live client, or nil when the file stores are in use
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if !f.UsingRedis() {
		return nil
	}
	return f.redisClient
}

// UsingRedis reports whether the pairing store is Redis backed
func (f *RepositoryFactory) UsingRedis() bool {
	return f.useRedis && f.redisClient != nil
}

func (f *RepositoryFactory) CreateDeviceRegistry() ports.DeviceRegistry {
	return memory.NewDeviceRegistry()
}

// CreatePairingStore creates a pairing store (Redis or file with fallback)
func (f *RepositoryFactory) CreatePairingStore() (ports.PairingStore, error) {
	if f.UsingRedis() {
		return redisrepo.NewPairingStore(f.redisClient), nil
	}
	store, err := file.NewPairingStore(f.cfg.PairingPath(), f.logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// CreateHistoryStore creates the day-bucket history store and loads today's
// records into the recency window.
func (f *RepositoryFactory) CreateHistoryStore(ctx context.Context) (ports.HistoryStore, error) {
	store, err := file.NewHistoryStore(f.cfg.HistoryPath(), f.cfg.Storage.HistoryWindow, f.logger)
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return store, nil
}

// CreateMediaStore creates the capture store selected by media.type
func (f *RepositoryFactory) CreateMediaStore(ctx context.Context) (ports.MediaStore, error) {
	switch f.cfg.Media.Type {
	case "s3":
		s3cfg := f.cfg.Media.S3
		store, err := storage.NewS3Storage(ctx, storage.S3Options{
			Bucket:    s3cfg.Bucket,
			Prefix:    s3cfg.Prefix,
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := storage.NewFileStorage(f.cfg.MediaPath(), f.cfg.Media.URLPrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.UsingRedis() {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
