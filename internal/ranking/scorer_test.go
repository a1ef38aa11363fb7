package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/rankboard/internal/model"
)

func TestResolveFallback(t *testing.T) {
	reg := NewScorerRegistry()
	score := reg.Resolve("unknown")(&model.Application{})
	assert.Equal(t, 50.0, score)
}

func TestRegisterReplaces(t *testing.T) {
	reg := NewScorerRegistry()
	reg.Register("d1", func(*model.Application) float64 { return 10 })
	reg.Register("d1", func(*model.Application) float64 { return 20 })
	assert.Equal(t, 20.0, reg.Resolve("d1")(&model.Application{}))
}

func TestBuiltinScorers(t *testing.T) {
	b := Builtins()

	high := &model.Application{
		Status:            model.AppStatusAvailable,
		EffectivenessType: model.EffectivenessRevenueGrowth,
		Metrics:           model.AppMetrics{MonthlyCalls: 50, NewUsers: 80, FavoriteCount: 100},
	}
	assert.Equal(t, 100.0, b["user_satisfaction"](high)) // clamped
	assert.Equal(t, 100.0, b["business_value"](high))
	assert.Equal(t, 100.0, b["usage_activity"](high)) // clamped
	assert.Equal(t, 100.0, b["stability"](high))
	assert.Equal(t, 100.0, b["adoption"](high)) // 80 + 50 clamped

	low := &model.Application{
		Status:            model.AppStatusOffline,
		EffectivenessType: model.EffectivenessPerceptionUplift,
		Metrics:           model.AppMetrics{MonthlyCalls: 2},
	}
	assert.Equal(t, 20.0, b["user_satisfaction"](low))
	assert.Equal(t, 60.0, b["business_value"](low))
	assert.Equal(t, 10.0, b["usage_activity"](low))
	assert.Equal(t, 60.0, b["stability"](low))
	assert.Equal(t, 0.0, b["adoption"](low))
}
