package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lenslink/internal/core/domain"
	"lenslink/pkg/distributed"
)

const (
	schemaVersionKey     = keyPrefix + "schema:version"
	migrationLockKey     = keyPrefix + "lock:migrations"
	currentSchemaVersion = 1
)

// Migration represents a key layout migration
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
}

// Migrate runs all pending migrations. Hubs sharing one Redis take turns.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	lock := distributed.NewDistributedLock(client, migrationLockKey, 30*time.Second)
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(context.Background()); err != nil && logger != nil {
			logger.Warnw("failed to release migration lock", "error", err)
		}
	}()

	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Debugw("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}

		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// Mirror any half edge so every pairing is symmetric.
			Version: 1,
			Up:      repairPairSymmetry,
		},
	}
}

func repairPairSymmetry(ctx context.Context, client *redis.Client) error {
	iter := client.Scan(ctx, 0, peersKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		owner := strings.TrimPrefix(key, peersKeyPrefix)

		members, err := client.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}

		var name string
		for _, member := range members {
			peer, _ := member.Member.(string)
			if peer == "" {
				continue
			}
			if err := client.ZAddNX(ctx, peersKey(domain.StableID(peer)), redis.Z{Score: member.Score, Member: owner}).Err(); err != nil {
				return err
			}

			if name == "" {
				if name, err = knownName(ctx, client, owner, members); err != nil {
					return err
				}
			}
			if err := client.HSetNX(ctx, namesKey(domain.StableID(peer)), owner, name).Err(); err != nil {
				return err
			}
		}
	}
	return iter.Err()
}

// knownName finds the name another peer stored for owner, else the owner id.
func knownName(ctx context.Context, client *redis.Client, owner string, peers []redis.Z) (string, error) {
	for _, member := range peers {
		peer, _ := member.Member.(string)
		if peer == "" {
			continue
		}
		name, err := client.HGet(ctx, namesKey(domain.StableID(peer)), owner).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return "", err
		}
		if name != "" {
			return name, nil
		}
	}
	return owner, nil
}
