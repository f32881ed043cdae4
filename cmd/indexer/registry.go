package main

import (
	"context"
	"fmt"

	"cardanoScope/internal/config"
	"cardanoScope/internal/normalize"
	"cardanoScope/internal/storage/gormstore"
	"cardanoScope/internal/storage/postgres"
)

// registry wraps whichever backend the configuration selects.
type registry struct {
	pg   *postgres.Store
	gorm *gormstore.Store
}

func openRegistry(ctx context.Context, cfg config.RegistryConfig) (*registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.RegistryNone:
		return nil, nil
	case config.RegistryPgx:
		store, err := postgres.NewStore(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &registry{pg: store}, nil
	default:
		store, err := gormstore.Open(cfg.Backend, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &registry{gorm: store}, nil
	}
}

func (r *registry) Migrate(ctx context.Context) error {
	if r.pg != nil {
		return r.pg.Migrate(ctx)
	}
	return r.gorm.AutoMigrate()
}

func (r *registry) WithLookup(ctx context.Context, fn func(normalize.AssetLookup) error) error {
	if r.pg != nil {
		return r.pg.WithLookup(ctx, fn)
	}
	return r.gorm.WithLookup(ctx, fn)
}

func (r *registry) Close() {
	if r == nil {
		return
	}
	if r.pg != nil {
		r.pg.Close()
	}
	if r.gorm != nil {
		_ = r.gorm.Close()
	}
}
