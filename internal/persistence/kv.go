package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/config"
)

// KV is the storage medium behind the data store: a flat map from string
// keys to opaque values. Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value for key. found is false when the key has never
	// been set or was removed.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Ping reports whether the medium is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the KV selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (KV, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory, "":
		logger.Info("using in-memory storage; data is lost on exit")
		return NewMemoryKV(), nil
	case config.DriverSQLite:
		return NewSQLiteKV(cfg.SQLite, logger)
	case config.DriverRedis:
		r := NewRedis(cfg.Redis, logger)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		return r, nil
	case config.DriverPostgres:
		if cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres driver selected but POSTGRES_DSN is empty")
		}
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		return pg, nil
	case config.DriverMySQL:
		return NewMySQL(ctx, cfg.MySQL, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
