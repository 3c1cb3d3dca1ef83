package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/turnstile/pkg/adapters/memory"
	"github.com/aretw0/turnstile/pkg/adapters/postgres"
	"github.com/aretw0/turnstile/pkg/adapters/redis"
	"github.com/aretw0/turnstile/pkg/adapters/sqlite"
	"github.com/aretw0/turnstile/pkg/config"
	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// Store drivers accepted in store.driver.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a backend holding both sessions and users.
type Store interface {
	ports.SessionStore
	ports.UserStore
}

// backend is an opened store plus what the driver needs wired around it.
type backend struct {
	store  Store
	locker ports.DistributedLocker
	// plugin is set for drivers that connect at the setup stage.
	plugin *postgres.Plugin
	close  func() error
}

func openStore(cfg config.StoreConfig) (*backend, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return &backend{store: memory.NewStore(), close: func() error { return nil }}, nil

	case DriverRedis:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("%w: store.dsn is required for the redis driver", domain.ErrConfiguration)
		}
		opts := []redis.Option{redis.WithPrefix(cfg.Prefix)}
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		store, err := redis.NewFromURL(cfg.DSN, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return &backend{
			store:  store,
			locker: redis.NewLocker(store.Client(), cfg.Prefix),
			close:  store.Close,
		}, nil

	case DriverSQLite:
		path := cfg.DSN
		if path == "" {
			path = "turnstile.db"
		}
		store, err := sqlite.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return &backend{store: store, close: store.Close}, nil

	case DriverPostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.DSN = cfg.DSN
		plugin := postgres.NewPlugin(pgCfg)
		return &backend{store: plugin, plugin: plugin, close: plugin.Close}, nil

	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", domain.ErrConfiguration, cfg.Driver)
	}
}

// OpenStore opens the configured store for commands that work on it directly.
// Drivers connecting lazily are connected before returning.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Store, func() error, error) {
	b, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if b.plugin != nil {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := b.plugin.Open(ctx); err != nil {
			return nil, nil, err
		}
	}
	return b.store, b.close, nil
}
