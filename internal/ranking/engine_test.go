package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rankboard/internal/model"
)

func compositeConfig(weights ...model.DimensionWeight) model.RankingConfig {
	return model.RankingConfig{
		ID:                "excellent",
		Name:              "优秀应用榜",
		DimensionWeights:  weights,
		CalculationMethod: model.MethodComposite,
		IsActive:          true,
		Version:           1,
	}
}

func enabledPart(appID string, factor float64, manual map[string]float64) model.AppParticipation {
	return model.AppParticipation{
		AppID:        appID,
		ConfigID:     "excellent",
		IsEnabled:    true,
		WeightFactor: factor,
		ManualScores: manual,
	}
}

func app(id string, metrics model.AppMetrics) *model.Application {
	return &model.Application{
		ID:      id,
		Name:    "App " + id,
		Org:     "Org",
		Section: model.SectionGroup,
		Status:  model.AppStatusAvailable,
		Metrics: metrics,
	}
}

func runOne(t *testing.T, in Input) []model.SnapshotEntry {
	t.Helper()
	if in.PeriodDate == "" {
		in.PeriodDate = "2026-09-01"
	}
	if in.RunID == "" {
		in.RunID = "run-1"
	}
	if in.Now.IsZero() {
		in.Now = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	}
	return NewEngine(NewScorerRegistry()).Run(in)
}

func TestCompositeIsWeightNormalized(t *testing.T) {
	// Manual scores 80 and 60 with weights 3 and 1: (80*3+60*1)/4 = 75.
	entries := runOne(t, Input{
		Config: compositeConfig(
			model.DimensionWeight{DimensionID: "d1", Weight: 3},
			model.DimensionWeight{DimensionID: "d2", Weight: 1},
		),
		Participations: []model.AppParticipation{
			enabledPart("a", 1, map[string]float64{"d1": 80, "d2": 60}),
		},
		Apps: map[string]*model.Application{"a": app("a", model.AppMetrics{})},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, 75.0, entries[0].Score)
}

func TestWeightFactorScalesWithoutClamping(t *testing.T) {
	// Base composite 70 with factor 2 must stay 140, not capped at 100.
	cfg := compositeConfig(model.DimensionWeight{DimensionID: "d1", Weight: 1})

	entries := runOne(t, Input{
		Config: cfg,
		Participations: []model.AppParticipation{
			enabledPart("a", 1, map[string]float64{"d1": 70}),
		},
		Apps: map[string]*model.Application{"a": app("a", model.AppMetrics{})},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, 70.0, entries[0].Score)

	entries = runOne(t, Input{
		Config: cfg,
		Participations: []model.AppParticipation{
			enabledPart("a", 2, map[string]float64{"d1": 70}),
		},
		Apps: map[string]*model.Application{"a": app("a", model.AppMetrics{})},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, 140.0, entries[0].Score)
}

func TestHigherWeightedDimensionDominates(t *testing.T) {
	// App a: strong on the heavy dimension. App b: strong on the light one.
	cfg := compositeConfig(
		model.DimensionWeight{DimensionID: "heavy", Weight: 4},
		model.DimensionWeight{DimensionID: "light", Weight: 1},
	)
	entries := runOne(t, Input{
		Config: cfg,
		Participations: []model.AppParticipation{
			enabledPart("a", 1, map[string]float64{"heavy": 80, "light": 20}),
			enabledPart("b", 1, map[string]float64{"heavy": 20, "light": 80}),
		},
		Apps: map[string]*model.Application{
			"a": app("a", model.AppMetrics{}),
			"b": app("b", model.AppMetrics{}),
		},
	})
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].AppID)
	assert.Equal(t, 68.0, entries[0].Score)
	assert.Equal(t, 32.0, entries[1].Score)
}

func TestRegisteredScorerUsedWhenNoManualOverride(t *testing.T) {
	reg := NewScorerRegistry()
	reg.Register("d1", func(a *model.Application) float64 {
		return clampScore(a.Metrics.MonthlyCalls * 10)
	})
	engine := NewEngine(reg)

	entries := engine.Run(Input{
		Config: compositeConfig(model.DimensionWeight{DimensionID: "d1", Weight: 1}),
		Participations: []model.AppParticipation{
			enabledPart("a", 1, nil),
		},
		Apps:       map[string]*model.Application{"a": app("a", model.AppMetrics{MonthlyCalls: 6.5})},
		PeriodDate: "2026-09-01",
		RunID:      "run-1",
		Now:        time.Now().UTC(),
	})
	require.Len(t, entries, 1)
	assert.Equal(t, 65.0, entries[0].Score)
}

func TestUnregisteredDimensionFallsBackToConstant(t *testing.T) {
	entries := runOne(t, Input{
		Config: compositeConfig(model.DimensionWeight{DimensionID: "mystery", Weight: 2}),
		Participations: []model.AppParticipation{
			enabledPart("a", 1, nil),
		},
		Apps: map[string]*model.Application{"a": app("a", model.AppMetrics{})},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, 50.0, entries[0].Score)
}

func TestGrowthRateExcludesAppsWithoutBaseline(t *testing.T) {
	cfg := model.RankingConfig{
		ID:                "trend",
		CalculationMethod: model.MethodGrowthRate,
		IsActive:          true,
	}
	entries := runOne(t, Input{
		Config: cfg,
		Participations: []model.AppParticipation{
			{AppID: "a", ConfigID: "trend", IsEnabled: true, WeightFactor: 1},
			{AppID: "b", ConfigID: "trend", IsEnabled: true, WeightFactor: 1},
			{AppID: "c", ConfigID: "trend", IsEnabled: true, WeightFactor: 1},
		},
		Apps: map[string]*model.Application{
			"a": app("a", model.AppMetrics{MonthlyCalls: 150, LastMonthCalls: 100}),
			"b": app("b", model.AppMetrics{MonthlyCalls: 90, LastMonthCalls: 100}),
			"c": app("c", model.AppMetrics{MonthlyCalls: 50, LastMonthCalls: 0}),
		},
	})
	// c has no baseline: excluded, and positions stay contiguous.
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].AppID)
	assert.Equal(t, 50.0, entries[0].Score)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, "b", entries[1].AppID)
	assert.Equal(t, -10.0, entries[1].Score)
	assert.Equal(t, 2, entries[1].Position)
}

func TestGrowthRateIgnoresWeightFactor(t *testing.T) {
	cfg := model.RankingConfig{ID: "trend", CalculationMethod: model.MethodGrowthRate, IsActive: true}
	entries := runOne(t, Input{
		Config: cfg,
		Participations: []model.AppParticipation{
			{AppID: "a", ConfigID: "trend", IsEnabled: true, WeightFactor: 5},
		},
		Apps: map[string]*model.Application{
			"a": app("a", model.AppMetrics{MonthlyCalls: 120, LastMonthCalls: 100}),
		},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, 20.0, entries[0].Score)
}

func TestTieBreakOrder(t *testing.T) {
	cfg := compositeConfig(model.DimensionWeight{DimensionID: "d1", Weight: 1})
	manual := map[string]float64{"d1": 50}
	entries := runOne(t, Input{
		Config: cfg,
		Participations: []model.AppParticipation{
			enabledPart("c", 1, manual),
			enabledPart("a", 1, manual),
			enabledPart("b", 1, manual),
			enabledPart("d", 1, manual),
		},
		Apps: map[string]*model.Application{
			// Same score everywhere. b wins on monthly calls, then d on
			// usage, then a before c by id.
			"a": app("a", model.AppMetrics{MonthlyCalls: 10, Usage30d: 100}),
			"b": app("b", model.AppMetrics{MonthlyCalls: 20, Usage30d: 100}),
			"c": app("c", model.AppMetrics{MonthlyCalls: 10, Usage30d: 100}),
			"d": app("d", model.AppMetrics{MonthlyCalls: 10, Usage30d: 200}),
		},
	})
	require.Len(t, entries, 4)
	assert.Equal(t, []string{"b", "d", "a", "c"},
		[]string{entries[0].AppID, entries[1].AppID, entries[2].AppID, entries[3].AppID})
}

func TestDisabledParticipationsSkipped(t *testing.T) {
	cfg := compositeConfig(model.DimensionWeight{DimensionID: "d1", Weight: 1})
	entries := runOne(t, Input{
		Config: cfg,
		Participations: []model.AppParticipation{
			enabledPart("a", 1, map[string]float64{"d1": 90}),
			{AppID: "b", ConfigID: "excellent", IsEnabled: false, WeightFactor: 1},
		},
		Apps: map[string]*model.Application{
			"a": app("a", model.AppMetrics{}),
			"b": app("b", model.AppMetrics{}),
		},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].AppID)
}

func TestTagAssignmentPrecedence(t *testing.T) {
	cfg := compositeConfig(model.DimensionWeight{DimensionID: "d1", Weight: 1})
	parts := make([]model.AppParticipation, 0, 12)
	apps := map[string]*model.Application{}
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for i, id := range ids {
		parts = append(parts, enabledPart(id, 1, map[string]float64{"d1": float64(100 - i)}))
		apps[id] = app(id, model.AppMetrics{})
	}

	rankedBefore := map[string]bool{}
	for _, id := range ids[:10] {
		rankedBefore[id] = true
	}
	// Previous top-3: b, c, d.
	prev := []model.SnapshotEntry{
		{AppID: "b", Position: 1},
		{AppID: "c", Position: 2},
		{AppID: "d", Position: 3},
		{AppID: "a", Position: 4},
	}

	entries := runOne(t, Input{
		Config:         cfg,
		Participations: parts,
		Apps:           apps,
		PrevSnapshot:   prev,
		RankedBefore:   rankedBefore,
	})
	require.Len(t, entries, 12)

	byApp := map[string]string{}
	for _, e := range entries {
		byApp[e.AppID] = e.Tag
	}
	// 12 apps: top decile is ceil(12/10) = 2.
	assert.Equal(t, model.TagRecommended, byApp["a"])
	assert.Equal(t, model.TagRecommended, byApp["b"])
	// c and d were previous top-3 but outside this run's decile.
	assert.Equal(t, model.TagHistorical, byApp["c"])
	assert.Equal(t, model.TagHistorical, byApp["d"])
	// e..j ranked before, no tag.
	assert.Empty(t, byApp["e"])
	assert.Empty(t, byApp["j"])
	// k and l never ranked before.
	assert.Equal(t, model.TagNew, byApp["k"])
	assert.Equal(t, model.TagNew, byApp["l"])
}

func TestSmallRunAlwaysHasOneRecommended(t *testing.T) {
	cfg := compositeConfig(model.DimensionWeight{DimensionID: "d1", Weight: 1})
	entries := runOne(t, Input{
		Config: cfg,
		Participations: []model.AppParticipation{
			enabledPart("a", 1, map[string]float64{"d1": 90}),
			enabledPart("b", 1, map[string]float64{"d1": 80}),
		},
		Apps: map[string]*model.Application{
			"a": app("a", model.AppMetrics{}),
			"b": app("b", model.AppMetrics{}),
		},
		RankedBefore: map[string]bool{"a": true, "b": true},
	})
	require.Len(t, entries, 2)
	assert.Equal(t, model.TagRecommended, entries[0].Tag)
	assert.Empty(t, entries[1].Tag)
}

func TestSnapshotDenormalizesAppFields(t *testing.T) {
	cfg := compositeConfig(model.DimensionWeight{DimensionID: "d1", Weight: 1})
	a := app("a", model.AppMetrics{Usage30d: 1234, Likes: 7})
	a.Name = "智能客服助手"
	a.Org = "河北移动"
	a.EffectivenessType = model.EffectivenessEfficiencyGain

	entries := runOne(t, Input{
		Config:         cfg,
		Participations: []model.AppParticipation{enabledPart("a", 1, map[string]float64{"d1": 88})},
		Apps:           map[string]*model.Application{"a": a},
	})
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "智能客服助手", e.AppName)
	assert.Equal(t, "河北移动", e.AppOrg)
	assert.Equal(t, model.EffectivenessEfficiencyGain, e.ValueDimension)
	assert.Equal(t, 1234, e.Usage30d)
	assert.Equal(t, 7, e.Likes)
	assert.Equal(t, model.MethodComposite, e.MetricType)
	assert.Equal(t, "excellent", e.ConfigID)
	assert.Equal(t, "2026-09-01", e.PeriodDate)
	assert.Equal(t, "run-1", e.RunID)
}

func TestScoresRoundedToTwoDecimals(t *testing.T) {
	cfg := compositeConfig(
		model.DimensionWeight{DimensionID: "d1", Weight: 1},
		model.DimensionWeight{DimensionID: "d2", Weight: 2},
	)
	// (70*1 + 55*2)/3 = 60.0, with factor 1.1 → 66.0; use values that
	// produce a repeating decimal instead.
	entries := runOne(t, Input{
		Config: cfg,
		Participations: []model.AppParticipation{
			enabledPart("a", 1, map[string]float64{"d1": 70, "d2": 50}),
		},
		Apps: map[string]*model.Application{"a": app("a", model.AppMetrics{})},
	})
	require.Len(t, entries, 1)
	// (70 + 100)/3 = 56.666... → 56.67
	assert.Equal(t, 56.67, entries[0].Score)
}
