// Package syncer drives ranking recomputation: it snapshots every active
// ranking configuration for a period date, one engine run per config,
// writing each result atomically.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/ranking"
	"github.com/sells-group/rankboard/internal/resilience"
	"github.com/sells-group/rankboard/internal/store"
)

var (
	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankboard_sync_runs_total",
		Help: "Ranking sync runs per config, by outcome.",
	}, []string{"config", "outcome"})
	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rankboard_sync_duration_seconds",
		Help:    "Wall time of one config's ranking sync.",
		Buckets: prometheus.DefBuckets,
	}, []string{"config"})
	rankedApps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rankboard_ranked_apps",
		Help: "Apps in the most recently written snapshot per config.",
	}, []string{"config"})
)

// Invalidator is notified after a config's snapshot is replaced so cached
// reads can be dropped.
type Invalidator interface {
	Invalidate(ctx context.Context, configID string)
}

// Syncer recomputes and persists ranking snapshots.
type Syncer struct {
	store   store.Store
	engine  *ranking.Engine
	cache   Invalidator
	now     func() time.Time
	maxPar  int
	mu      sync.Mutex
	running map[string]*sync.Mutex
}

// New creates a Syncer. cache may be nil.
func New(st store.Store, engine *ranking.Engine, cache Invalidator) *Syncer {
	return &Syncer{
		store:   st,
		engine:  engine,
		cache:   cache,
		now:     time.Now,
		maxPar:  4,
		running: map[string]*sync.Mutex{},
	}
}

// Result reports the outcome of one config's sync.
type Result struct {
	ConfigID     string `json:"config_id"`
	PeriodDate   string `json:"period_date"`
	RunID        string `json:"run_id,omitempty"`
	UpdatedCount int    `json:"updated_count"`
	Err          error  `json:"-"`
	Error        string `json:"error,omitempty"`
}

// SyncAll recomputes every active config for today's period date. Configs
// run concurrently and fail independently; one config's error never blocks
// the others. The returned error covers only the shared setup reads.
func (s *Syncer) SyncAll(ctx context.Context) ([]Result, error) {
	return s.SyncAllForDate(ctx, s.today())
}

// SyncAllForDate is SyncAll pinned to an explicit period date (YYYY-MM-DD).
func (s *Syncer) SyncAllForDate(ctx context.Context, periodDate string) ([]Result, error) {
	configs, err := s.store.ListConfigs(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "syncer: list configs")
	}
	apps, err := s.loadApps(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxPar)
	for i := range configs {
		g.Go(func() error {
			results[i] = s.syncConfig(gctx, configs[i], apps, periodDate)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			zap.L().Error("ranking sync failed for config",
				zap.String("config", r.ConfigID),
				zap.String("period_date", r.PeriodDate),
				zap.Error(r.Err))
		}
	}
	return results, nil
}

// SyncConfig recomputes a single config for today's period date.
func (s *Syncer) SyncConfig(ctx context.Context, configID string) (Result, error) {
	cfg, err := s.store.GetConfig(ctx, configID)
	if err != nil {
		return Result{ConfigID: configID}, err
	}
	apps, err := s.loadApps(ctx)
	if err != nil {
		return Result{ConfigID: configID}, err
	}
	res := s.syncConfig(ctx, *cfg, apps, s.today())
	return res, res.Err
}

func (s *Syncer) syncConfig(ctx context.Context, cfg model.RankingConfig, apps map[string]*model.Application, periodDate string) Result {
	res := Result{ConfigID: cfg.ID, PeriodDate: periodDate}

	// Serialize concurrent syncs of the same (config, date) target; the
	// later run simply recomputes over the earlier one.
	unlock := s.lock(cfg.ID + "|" + periodDate)
	defer unlock()

	start := s.now()
	fail := func(err error) Result {
		res.Err = err
		res.Error = err.Error()
		syncRuns.WithLabelValues(cfg.ID, "error").Inc()
		return res
	}

	parts, err := s.store.ListParticipationsByConfig(ctx, cfg.ID)
	if err != nil {
		return fail(eris.Wrap(err, "syncer: list participations"))
	}
	prev, err := s.store.LatestSnapshotBefore(ctx, cfg.ID, periodDate)
	if err != nil {
		return fail(eris.Wrap(err, "syncer: latest snapshot"))
	}
	rankedBefore, err := s.store.AppsRankedBefore(ctx, cfg.ID, periodDate)
	if err != nil {
		return fail(eris.Wrap(err, "syncer: ranked before"))
	}

	runID := uuid.NewString()
	entries := s.engine.Run(ranking.Input{
		Config:         cfg,
		Participations: parts,
		Apps:           apps,
		PrevSnapshot:   prev,
		RankedBefore:   rankedBefore,
		PeriodDate:     periodDate,
		RunID:          runID,
		Now:            s.now().UTC(),
	})

	// The snapshot swap is the one write that can contend with readers
	// and with a concurrent sync of another config; retry brief lock
	// contention rather than failing the whole run.
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("snapshot write contended, retrying",
			zap.String("config", cfg.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	err = resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return s.store.ReplaceSnapshot(ctx, cfg.ID, periodDate, entries)
	})
	if err != nil {
		return fail(eris.Wrap(err, "syncer: replace snapshot"))
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, cfg.ID)
	}

	res.RunID = runID
	res.UpdatedCount = len(entries)
	syncRuns.WithLabelValues(cfg.ID, "ok").Inc()
	syncDuration.WithLabelValues(cfg.ID).Observe(s.now().Sub(start).Seconds())
	rankedApps.WithLabelValues(cfg.ID).Set(float64(len(entries)))
	zap.L().Info("ranking snapshot written",
		zap.String("config", cfg.ID),
		zap.String("period_date", periodDate),
		zap.String("run_id", runID),
		zap.Int("apps", len(entries)))
	return res
}

func (s *Syncer) loadApps(ctx context.Context) (map[string]*model.Application, error) {
	list, err := s.store.ListApps(ctx, store.AppFilter{Limit: -1})
	if err != nil {
		return nil, eris.Wrap(err, "syncer: list apps")
	}
	apps := make(map[string]*model.Application, len(list))
	for i := range list {
		apps[list[i].ID] = &list[i]
	}
	return apps, nil
}

func (s *Syncer) lock(key string) func() {
	s.mu.Lock()
	m, ok := s.running[key]
	if !ok {
		m = &sync.Mutex{}
		s.running[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (s *Syncer) today() string {
	return s.now().UTC().Format("2006-01-02")
}
