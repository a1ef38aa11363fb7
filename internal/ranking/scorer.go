// Package ranking implements dimension scoring and ranked snapshot
// computation for the catalog's configurable value rankings.
package ranking

import (
	"math"
	"sync"

	"github.com/sells-group/rankboard/internal/model"
)

// Scorer resolves a 0-100 score for one app on one dimension from the app's
// raw metrics. The administrator-authored calculation_method text on a
// dimension is documentation; the concrete scorer is registered here by
// dimension id and never derived from that text.
type Scorer func(app *model.Application) float64

// defaultScore is used for dimensions with no registered scorer and no
// manual override.
const defaultScore = 50

// ScorerRegistry maps dimension ids to their concrete scorer functions.
// Safe for concurrent use.
type ScorerRegistry struct {
	mu      sync.RWMutex
	scorers map[string]Scorer
}

// NewScorerRegistry creates an empty registry.
func NewScorerRegistry() *ScorerRegistry {
	return &ScorerRegistry{scorers: make(map[string]Scorer)}
}

// Register binds a scorer to a dimension id, replacing any previous binding.
func (r *ScorerRegistry) Register(dimensionID string, fn Scorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scorers[dimensionID] = fn
}

// Resolve returns the scorer for a dimension id, falling back to a constant
// mid-range score when none is registered.
func (r *ScorerRegistry) Resolve(dimensionID string) Scorer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.scorers[dimensionID]; ok {
		return fn
	}
	return func(*model.Application) float64 { return defaultScore }
}

// Builtins returns the built-in scorers keyed by a stable name. The seed
// wiring binds these to seeded dimension ids; operators can rebind them for
// custom dimensions.
func Builtins() map[string]Scorer {
	return map[string]Scorer{
		"user_satisfaction": func(a *model.Application) float64 {
			return clampScore(a.Metrics.MonthlyCalls * 10)
		},
		"business_value": func(a *model.Application) float64 {
			switch a.EffectivenessType {
			case model.EffectivenessRevenueGrowth:
				return 100
			case model.EffectivenessEfficiencyGain:
				return 80
			case model.EffectivenessCostReduction:
				return 70
			default:
				return 60
			}
		},
		"usage_activity": func(a *model.Application) float64 {
			return clampScore(a.Metrics.MonthlyCalls * 5)
		},
		"stability": func(a *model.Application) float64 {
			switch a.Status {
			case model.AppStatusAvailable:
				return 100
			case model.AppStatusBeta:
				return 80
			default:
				return 60
			}
		},
		"adoption": func(a *model.Application) float64 {
			return clampScore(float64(a.Metrics.NewUsers) + float64(a.Metrics.FavoriteCount)/2)
		},
	}
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(v, 100))
}
