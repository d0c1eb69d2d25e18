package cmd

import (
	"context"
	"fmt"

	"github.com/pilab-dev/cartbuilder/cache"
	redisstorage "github.com/pilab-dev/cartbuilder/cache/redis"
	"github.com/pilab-dev/cartbuilder/config"
	"github.com/pilab-dev/cartbuilder/internal/storage"
	"github.com/pilab-dev/cartbuilder/log"
	"github.com/pilab-dev/cartbuilder/mongodb"
	"github.com/pilab-dev/cartbuilder/session"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix       = config.AppName
	defaultMongoDatabase = "storefront"
)

// openStorage opens the session backend configured for a context. The
// returned function releases it.
func openStorage(ctx context.Context, cfg config.Storage, logger log.Logger) (session.Storage, func() error, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		s, err := storage.NewBoltStorage(cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendMemory:
		s := cache.NewMemoryStorage(0)
		return s, s.Close, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Address})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
		}
		return redisstorage.NewStorage(rdb, redisKeyPrefix, 0), rdb.Close, nil

	case config.BackendMongo:
		mc, err := mongodb.Connect(ctx, cfg.Address)
		if err != nil {
			return nil, nil, err
		}
		db := cfg.Database
		if db == "" {
			db = defaultMongoDatabase
		}
		closer := func() error { return mc.Disconnect(context.Background()) }
		return mongodb.NewSessionStorage(mc.Database(db)), closer, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
