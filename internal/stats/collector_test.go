package stats

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/store"
)

func TestCollectOverview(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.CreateApp(ctx, &model.Application{
		ID: "g1", Name: "Group App", Org: "HQ",
		Section: model.SectionGroup, Status: model.AppStatusAvailable,
	}))
	require.NoError(t, st.CreateApp(ctx, &model.Application{
		ID: "p1", Name: "Province App", Org: "浙江",
		Section: model.SectionProvince, Status: model.AppStatusAvailable,
	}))
	require.NoError(t, st.CreateSubmission(ctx, &model.Submission{
		ID: "s1", AppName: "x", UnitName: "u", Status: model.SubmissionPending,
	}))
	require.NoError(t, st.CreateSubmission(ctx, &model.Submission{
		ID: "s2", AppName: "y", UnitName: "u", Status: model.SubmissionPending,
	}))
	require.NoError(t, st.RejectSubmission(ctx, "s2", "incomplete"))

	require.NoError(t, st.CreateDimension(ctx, &model.Dimension{
		ID: "d1", Name: "value", DefaultWeight: 1, IsActive: true,
	}))
	require.NoError(t, st.CreateConfig(ctx, &model.RankingConfig{
		ID: "excellent", Name: "优秀应用榜",
		DimensionWeights:  []model.DimensionWeight{{DimensionID: "d1", Weight: 1}},
		CalculationMethod: model.MethodComposite,
		IsActive:          true, Version: 1,
	}))

	require.NoError(t, st.ReplaceSnapshot(ctx, "excellent", "2026-09-01", []model.SnapshotEntry{{
		ConfigID: "excellent", PeriodDate: "2026-09-01", RunID: "run-1",
		Position: 1, AppID: "g1", AppName: "Group App", Score: 80,
		MetricType: model.MethodComposite,
	}}))

	o, err := NewCollector(st).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", o.LastSyncDate)
	assert.Equal(t, 1, o.PendingSubmissions)
	assert.Equal(t, 1, o.RejectedSubmissions)
	assert.Equal(t, 0, o.ApprovedSubmissions)
	assert.Equal(t, 2, o.TotalApps)
	assert.Equal(t, 1, o.GroupApps)
	assert.Equal(t, 1, o.ProvinceApps)
	assert.Equal(t, 1, o.ActiveConfigs)
	assert.Equal(t, 1, o.ActiveDimensions)
	assert.False(t, o.CollectedAt.IsZero())
}
