package approval

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "approval.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func validSubmission() *model.Submission {
	return &model.Submission{
		AppName:             "智能稽核助手",
		UnitName:            "浙江分公司",
		Contact:             "王工",
		ContactPhone:        "13812345678",
		Category:            "audit",
		Scenario:            "自动稽核工单",
		EmbeddedSystem:      "工单系统",
		ProblemStatement:    "人工稽核效率低",
		EffectivenessType:   model.EffectivenessEfficiencyGain,
		EffectivenessMetric: "稽核时长",
		DataLevel:           model.DataLevelL2,
		ExpectedBenefit:     "稽核时长下降50%",
		RankingEnabled:      true,
		RankingWeight:       1.5,
		RankingTags:         []string{"audit"},
	}
}

func seedActiveConfig(t *testing.T, st store.Store, id string) {
	t.Helper()
	ctx := context.Background()
	dim := &model.Dimension{
		ID:            "dim-" + id,
		Name:          "value-" + id,
		DefaultWeight: 1,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, st.CreateDimension(ctx, dim))
	cfg := &model.RankingConfig{
		ID:                id,
		Name:              id,
		DimensionWeights:  []model.DimensionWeight{{DimensionID: dim.ID, Weight: 1}},
		CalculationMethod: model.MethodComposite,
		IsActive:          true,
		Version:           1,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, st.CreateConfig(ctx, cfg))
}

func TestSubmitAssignsPendingState(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil)

	sub, err := p.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, model.SubmissionPending, sub.Status)

	stored, err := st.GetSubmission(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "智能稽核助手", stored.AppName)
	assert.Equal(t, 1.5, stored.RankingWeight)
}

func TestSubmitDefaultsRankingWeight(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil)

	in := validSubmission()
	in.RankingWeight = 0
	sub, err := p.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sub.RankingWeight)
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil)

	in := validSubmission()
	in.ContactPhone = "12345"
	_, err := p.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestApproveCreatesProvinceAppAndEnrollments(t *testing.T) {
	st := newTestStore(t)
	seedActiveConfig(t, st, "excellent")
	seedActiveConfig(t, st, "trend")

	synced := false
	p := New(st, func(ctx context.Context) error {
		synced = true
		return nil
	})
	ctx := context.Background()

	sub, err := p.Submit(ctx, validSubmission())
	require.NoError(t, err)

	app, err := p.Approve(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SectionProvince, app.Section)
	assert.Equal(t, model.AppStatusAvailable, app.Status)
	assert.Equal(t, "智能稽核助手", app.Name)
	assert.Equal(t, "浙江分公司", app.Org)
	assert.True(t, synced)

	stored, err := st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionApproved, stored.Status)
	assert.Equal(t, app.ID, stored.ApprovedAppID)

	parts, err := st.ListParticipationsByApp(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	for _, part := range parts {
		assert.True(t, part.IsEnabled)
		assert.Equal(t, 1.5, part.WeightFactor)
		assert.Equal(t, []string{"audit"}, part.CustomTags)
	}
}

func TestApproveWithoutRankingOptIn(t *testing.T) {
	st := newTestStore(t)
	seedActiveConfig(t, st, "excellent")
	p := New(st, nil)
	ctx := context.Background()

	in := validSubmission()
	in.RankingEnabled = false
	sub, err := p.Submit(ctx, in)
	require.NoError(t, err)

	app, err := p.Approve(ctx, sub.ID)
	require.NoError(t, err)

	// The row still exists per active config, just disabled, so an admin
	// can opt the app in later without re-approval.
	parts, err := st.ListParticipationsByApp(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "excellent", parts[0].ConfigID)
	assert.False(t, parts[0].IsEnabled)
	assert.Equal(t, 1.0, parts[0].WeightFactor)
}

func TestApproveIsTerminalOnce(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil)
	ctx := context.Background()

	sub, err := p.Submit(ctx, validSubmission())
	require.NoError(t, err)
	_, err = p.Approve(ctx, sub.ID)
	require.NoError(t, err)

	_, err = p.Approve(ctx, sub.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidState(err))

	err = p.Reject(ctx, sub.ID, "duplicate")
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidState(err))
}

func TestRejectRequiresReason(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil)
	ctx := context.Background()

	sub, err := p.Submit(ctx, validSubmission())
	require.NoError(t, err)

	err = p.Reject(ctx, sub.ID, "")
	assert.True(t, apperr.IsValidation(err))

	require.NoError(t, p.Reject(ctx, sub.ID, "信息不完整"))
	stored, err := st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionRejected, stored.Status)
	assert.Equal(t, "信息不完整", stored.RejectReason)
}

func TestApproveUnknownSubmission(t *testing.T) {
	st := newTestStore(t)
	p := New(st, nil)

	_, err := p.Approve(context.Background(), "ghost")
	assert.True(t, apperr.IsNotFound(err))
}
