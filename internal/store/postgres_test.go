package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func uniqueViolation() *pgconn.PgError {
	return &pgconn.PgError{Code: "23505", ConstraintName: "dimensions_name_key"}
}

// anyArgs returns n pgxmock.AnyArg() placeholders: pgxmock matches argument
// count even when a test does not care about the values.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var submissionCols = []string{
	"id", "app_name", "unit_name", "contact", "contact_phone", "contact_email",
	"category", "scenario", "embedded_system", "problem_statement",
	"effectiveness_type", "effectiveness_metric", "data_level", "expected_benefit", "cover_image_url",
	"status", "reject_reason", "ranking_enabled", "ranking_weight", "ranking_tags", "approved_app_id", "created_at", "updated_at",
}

func submissionRow(id string, status model.SubmissionStatus) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows(submissionCols).AddRow(
		id, "智能巡检助手", "某省公司", "王工", "", "",
		"运维", "变电站巡检", "生产管理系统", "人工巡检效率低",
		"efficiency_gain", "", "L2", "", "",
		string(status), "", true, 1.0, "[]", "", now, now,
	)
}

func TestPgCreateDimensionUniqueName(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO dimensions").
		WithArgs(anyArgs(8)...).
		WillReturnError(uniqueViolation())

	err := st.CreateDimension(context.Background(), &model.Dimension{ID: "dim-a", Name: "用户满意度"})
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetDimensionNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM dimensions WHERE id").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetDimension(context.Background(), "ghost")
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetDimensionRoundTrip(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM dimensions WHERE id").
		WithArgs("dim-a").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "calculation_method", "default_weight", "is_active", "created_at", "updated_at",
		}).AddRow("dim-a", "用户满意度", "", "", 2.5, true, now, now))

	got, err := st.GetDimension(context.Background(), "dim-a")
	require.NoError(t, err)
	assert.Equal(t, "用户满意度", got.Name)
	assert.Equal(t, 2.5, got.DefaultWeight)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateDimensionMissing(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE dimensions SET").
		WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateDimension(context.Background(), &model.Dimension{ID: "ghost", Name: "x"})
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateConfigStaleVersion(t *testing.T) {
	st, mock := newMockStore(t)

	// Version guard rejects the write; the follow-up read proves the config
	// still exists, so the failure is a concurrent-modification conflict.
	mock.ExpectExec("UPDATE ranking_configs SET").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM ranking_configs WHERE id").
		WithArgs("excellent").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "dimension_weights", "calculation_method", "is_active", "version", "created_at", "updated_at",
		}).AddRow("excellent", "卓越应用榜", "", `[]`, "composite", true, 3, now, now))

	err := st.UpdateConfig(context.Background(), &model.RankingConfig{
		ID: "excellent", Name: "卓越应用榜", Version: 2, CalculationMethod: model.MethodComposite,
	})
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateConfigMissing(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE ranking_configs SET").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT (.+) FROM ranking_configs WHERE id").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	err := st.UpdateConfig(context.Background(), &model.RankingConfig{
		ID: "ghost", Name: "x", Version: 2, CalculationMethod: model.MethodComposite,
	})
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRejectSubmissionAlreadyTerminal(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE submissions SET").
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT (.+) FROM submissions WHERE id").
		WithArgs("sub-1").
		WillReturnRows(submissionRow("sub-1", model.SubmissionApproved))

	err := st.RejectSubmission(context.Background(), "sub-1", "材料不全")
	assert.True(t, apperr.IsInvalidState(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgApproveSubmissionCommitsTx(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE submissions SET").
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO apps").
		WithArgs(anyArgs(18)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO app_participations").
		WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	app := &model.Application{ID: "app-new", Name: "智能巡检助手", Section: model.SectionProvince}
	parts := []model.AppParticipation{{AppID: "app-new", ConfigID: "excellent", IsEnabled: true, WeightFactor: 1}}
	err := st.ApproveSubmission(context.Background(), "sub-1", app, parts)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgApproveSubmissionRollsBackOnGuard(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE submissions SET").
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT (.+) FROM submissions WHERE id").
		WithArgs("sub-1").
		WillReturnRows(submissionRow("sub-1", model.SubmissionRejected))
	mock.ExpectRollback()

	err := st.ApproveSubmission(context.Background(), "sub-1", &model.Application{ID: "app-new"}, nil)
	assert.True(t, apperr.IsInvalidState(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgReplaceSnapshotDeletesBeforeInsert(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM ranking_snapshots").
		WithArgs("excellent", "2026-09-01").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO ranking_snapshots").
		WithArgs(anyArgs(14)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	entries := []model.SnapshotEntry{{
		ConfigID: "excellent", PeriodDate: "2026-09-01", RunID: "run-1",
		Position: 1, AppID: "app-a", AppName: "应用 a", Score: 90,
		MetricType: model.MethodComposite, CreatedAt: time.Now().UTC(),
	}}
	err := st.ReplaceSnapshot(context.Background(), "excellent", "2026-09-01", entries)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetSnapshotResolvesLatestDate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(period_date\), ''\) FROM ranking_snapshots`).
		WithArgs("excellent").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow("2026-09-01"))
	mock.ExpectQuery("SELECT (.+) FROM ranking_snapshots WHERE config_id").
		WithArgs("excellent", "2026-09-01").
		WillReturnRows(pgxmock.NewRows([]string{
			"config_id", "period_date", "run_id", "position", "app_id", "app_name", "app_org",
			"score", "tag", "metric_type", "value_dimension", "usage_30d", "likes", "created_at",
		}).AddRow("excellent", "2026-09-01", "run-1", 1, "app-a", "应用 a", "测试单位",
			90.0, "推荐", "composite", "efficiency_gain", 10, 3, time.Now().UTC()))

	got, err := st.GetSnapshot(context.Background(), "excellent", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-09-01", got[0].PeriodDate)
	assert.Equal(t, model.MethodComposite, got[0].MetricType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetSnapshotNoHistory(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(period_date\), ''\) FROM ranking_snapshots`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(""))

	got, err := st.GetSnapshot(context.Background(), "ghost", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListAppsAppliesFilters(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM apps WHERE 1=1 AND section = \\$1 AND status = \\$2").
		WithArgs("province", "available", 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "org", "section", "category", "description", "status", "release_date",
			"contact_name", "target_system", "target_users", "problem_statement",
			"effectiveness_type", "effectiveness_metric", "cover_image_url", "metrics", "created_at", "updated_at",
		}).AddRow("app-a", "应用 a", "测试单位", "province", "办公提效", "", "available", time.Now().UTC(),
			"", "", "", "", "efficiency_gain", "", "", `{"monthly_calls":100}`, time.Now().UTC(), time.Now().UTC()))

	got, err := st.ListApps(context.Background(), AppFilter{
		Section: model.SectionProvince,
		Status:  model.AppStatusAvailable,
		Limit:   50,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.SectionProvince, got[0].Section)
	assert.Equal(t, 100.0, got[0].Metrics.MonthlyCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
