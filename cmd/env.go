package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rankboard/internal/approval"
	"github.com/sells-group/rankboard/internal/cache"
	"github.com/sells-group/rankboard/internal/export"
	"github.com/sells-group/rankboard/internal/ranking"
	"github.com/sells-group/rankboard/internal/registry"
	"github.com/sells-group/rankboard/internal/seed"
	"github.com/sells-group/rankboard/internal/stats"
	"github.com/sells-group/rankboard/internal/store"
	"github.com/sells-group/rankboard/internal/syncer"
)

// appEnv holds the initialized store and services shared by the commands.
type appEnv struct {
	Store    store.Store
	Registry *registry.Registry
	Pipeline *approval.Pipeline
	Syncer   *syncer.Syncer
	Stats    *stats.Collector
	Exporter *export.Exporter
	Cache    *cache.SnapshotCache
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the store, runs migrations and wires the services.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	snapCache, err := cache.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB,
		time.Duration(cfg.Redis.TTLSeconds)*time.Second)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if snapCache != nil {
		zap.L().Info("snapshot cache enabled", zap.String("redis", cfg.Redis.Address))
	}

	scorers := ranking.NewScorerRegistry()
	seed.RegisterBuiltinScorers(scorers)

	sync := syncer.New(st, ranking.NewEngine(scorers), snapCache)
	pipe := approval.New(st, func(ctx context.Context) error {
		_, err := sync.SyncAll(ctx)
		return err
	})

	return &appEnv{
		Store:    st,
		Registry: registry.New(st),
		Pipeline: pipe,
		Syncer:   sync,
		Stats:    stats.NewCollector(st),
		Exporter: export.New(st),
		Cache:    snapCache,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
