package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/raisekit/migrations"
	"github.com/dmitrymomot/raisekit/pkg/config"
	"github.com/dmitrymomot/raisekit/pkg/httpserver"
	"github.com/dmitrymomot/raisekit/pkg/pg"
	"github.com/dmitrymomot/raisekit/svc/profile"
)

const (
	profileStorePostgres = "postgres"
	profileStoreMemory   = "memory"
)

type profileStore struct {
	profile.Store
	probe *httpserver.Probe
}

// openProfileStore returns the configured store and a func releasing its
// connections. The memory store is for local runs and demos.
func openProfileStore(ctx context.Context, kind string, log *slog.Logger) (profileStore, func(), error) {
	switch kind {
	case profileStoreMemory:
		log.WarnContext(ctx, "using in-memory profile store, data is lost on restart")
		return profileStore{Store: profile.NewMemoryStore()}, func() {}, nil
	case profileStorePostgres:
	default:
		return profileStore{}, nil, fmt.Errorf("unknown profile store %q", kind)
	}

	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return profileStore{}, nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return profileStore{}, nil, err
	}
	db := pg.OpenDB(pool)
	closeFn := func() {
		_ = db.Close()
		pool.Close()
	}

	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx, db, migrations.FS, cfg, log); err != nil {
			closeFn()
			return profileStore{}, nil, err
		}
	}

	return profileStore{
		Store: profile.NewPostgresStore(db),
		probe: &httpserver.Probe{Name: "postgres", Check: pg.Healthcheck(pool)},
	}, closeFn, nil
}
