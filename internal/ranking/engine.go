package ranking

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/rankboard/internal/model"
)

// Input carries everything one engine run needs: the config, the enrolled
// participations, the apps with their current metrics, and the historical
// context used for tag assignment. Prior-period data is read strictly
// before PeriodDate so re-running the same day reproduces the same output.
type Input struct {
	Config         model.RankingConfig
	Participations []model.AppParticipation
	Apps           map[string]*model.Application
	PrevSnapshot   []model.SnapshotEntry
	RankedBefore   map[string]bool
	PeriodDate     string
	RunID          string
	Now            time.Time
}

// Engine computes ordered ranking snapshots.
type Engine struct {
	scorers *ScorerRegistry
}

// NewEngine creates an Engine over the given scorer registry.
func NewEngine(scorers *ScorerRegistry) *Engine {
	return &Engine{scorers: scorers}
}

type scored struct {
	app   *model.Application
	score float64
}

// Run produces the ordered snapshot entries for one config. Disabled
// participations and apps with no defined growth baseline are omitted
// entirely; the returned positions form a contiguous 1..N sequence.
func (e *Engine) Run(in Input) []model.SnapshotEntry {
	var ranked []scored
	excluded := 0

	for i := range in.Participations {
		p := &in.Participations[i]
		if !p.IsEnabled {
			continue
		}
		app, ok := in.Apps[p.AppID]
		if !ok {
			continue
		}

		var score float64
		switch in.Config.CalculationMethod {
		case model.MethodGrowthRate:
			rate, ok := growthRate(app)
			if !ok {
				// No prior-period baseline: not eligible for a
				// growth ranking, excluded rather than given an
				// infinite rate.
				excluded++
				continue
			}
			score = rate
		default:
			score = e.composite(in.Config, p, app)
		}

		ranked = append(ranked, scored{app: app, score: round2(score)})
	}

	if excluded > 0 {
		zap.L().Debug("ranking: apps excluded from growth ranking",
			zap.String("config", in.Config.ID),
			zap.Int("excluded", excluded),
		)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.app.Metrics.MonthlyCalls != b.app.Metrics.MonthlyCalls {
			return a.app.Metrics.MonthlyCalls > b.app.Metrics.MonthlyCalls
		}
		if a.app.Metrics.Usage30d != b.app.Metrics.Usage30d {
			return a.app.Metrics.Usage30d > b.app.Metrics.Usage30d
		}
		return a.app.ID < b.app.ID
	})

	prevTop3 := make(map[string]bool, 3)
	for _, e := range in.PrevSnapshot {
		if e.Position <= 3 {
			prevTop3[e.AppID] = true
		}
	}
	// Top decile of this run, never fewer than one app.
	decile := (len(ranked) + 9) / 10

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	entries := make([]model.SnapshotEntry, 0, len(ranked))
	for i, r := range ranked {
		position := i + 1

		var tag string
		switch {
		case position <= decile:
			tag = model.TagRecommended
		case prevTop3[r.app.ID]:
			tag = model.TagHistorical
		case !in.RankedBefore[r.app.ID]:
			tag = model.TagNew
		}

		entries = append(entries, model.SnapshotEntry{
			ConfigID:       in.Config.ID,
			PeriodDate:     in.PeriodDate,
			RunID:          in.RunID,
			Position:       position,
			AppID:          r.app.ID,
			AppName:        r.app.Name,
			AppOrg:         r.app.Org,
			Score:          r.score,
			Tag:            tag,
			MetricType:     in.Config.CalculationMethod,
			ValueDimension: r.app.EffectivenessType,
			Usage30d:       r.app.Metrics.Usage30d,
			Likes:          r.app.Metrics.Likes,
			CreatedAt:      now,
		})
	}
	return entries
}

// composite computes the weight-normalized dimension score scaled by the
// app's participation weight factor:
//
//	Σ(score_i × w_i) / Σ(w_i) × weight_factor
//
// A manual override on the participation wins over the registered scorer
// for that dimension.
func (e *Engine) composite(cfg model.RankingConfig, p *model.AppParticipation, app *model.Application) float64 {
	var weighted, weightSum float64
	for _, dw := range cfg.DimensionWeights {
		score, ok := p.ManualScores[dw.DimensionID]
		if !ok {
			score = e.scorers.Resolve(dw.DimensionID)(app)
		}
		weighted += score * dw.Weight
		weightSum += dw.Weight
	}
	if weightSum == 0 {
		return 0
	}
	return weighted / weightSum * p.WeightFactor
}

// growthRate returns the percentage change in usage over the trailing
// period. The second return is false when the app has no prior-period
// baseline to compute a rate from.
func growthRate(app *model.Application) (float64, bool) {
	prior := app.Metrics.LastMonthCalls
	if prior <= 0 {
		return 0, false
	}
	return (app.Metrics.MonthlyCalls - prior) / prior * 100, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
