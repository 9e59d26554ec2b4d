package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/port"
)

// deps are the adapters every command runs on.
type deps struct {
	db       *sql.DB
	rdb      *redis.Client
	store    *storage.SQLStore
	identity *storage.SQLIdentityProvider
	guard    port.CacheRepository
}

func openDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	dsn := cfg.Database.DSN
	if cfg.Database.Driver == storage.DriverSQLite {
		dsn = storage.SQLiteDSN(cfg.Database.Path)
	}

	db, err := storage.Open(ctx, cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	d := &deps{db: db}

	var notifier port.ChangeNotifier
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			db.Close()
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)

		adapter := storage.NewRedisAdapter(rdb, cfg.AppID)
		d.rdb = rdb
		d.guard = adapter
		notifier = adapter
	} else {
		logger.Warn("redis not configured, change notifications are local to this process")
		d.guard = storage.NewLocalGuard()
		notifier = storage.NewLocalNotifier()
	}

	d.store = storage.NewSQLStore(db, cfg.AppID, notifier, logger)
	d.identity = storage.NewSQLIdentityProvider(db, cfg.AppID).WithSessionTTL(cfg.SessionTTL)
	return d, nil
}

func (d *deps) Close() error {
	var errs []error
	if d.rdb != nil {
		errs = append(errs, d.rdb.Close())
	}
	errs = append(errs, d.db.Close())
	return errors.Join(errs...)
}
