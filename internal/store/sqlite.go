package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS dimensions (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL UNIQUE,
	description        TEXT NOT NULL DEFAULT '',
	calculation_method TEXT NOT NULL DEFAULT '',
	default_weight     REAL NOT NULL,
	is_active          INTEGER NOT NULL DEFAULT 1,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dimension_logs (
	id             TEXT PRIMARY KEY,
	action         TEXT NOT NULL,
	dimension_id   TEXT NOT NULL,
	dimension_name TEXT NOT NULL,
	changes        TEXT NOT NULL DEFAULT '',
	operator       TEXT NOT NULL DEFAULT 'system',
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS ranking_configs (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	dimension_weights  TEXT NOT NULL DEFAULT '[]',
	calculation_method TEXT NOT NULL DEFAULT 'composite',
	is_active          INTEGER NOT NULL DEFAULT 1,
	version            INTEGER NOT NULL DEFAULT 1,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS apps (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	org                  TEXT NOT NULL,
	section              TEXT NOT NULL,
	category             TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL,
	release_date         DATETIME NOT NULL,
	contact_name         TEXT NOT NULL DEFAULT '',
	target_system        TEXT NOT NULL DEFAULT '',
	target_users         TEXT NOT NULL DEFAULT '',
	problem_statement    TEXT NOT NULL DEFAULT '',
	effectiveness_type   TEXT NOT NULL DEFAULT 'cost_reduction',
	effectiveness_metric TEXT NOT NULL DEFAULT '',
	cover_image_url      TEXT NOT NULL DEFAULT '',
	metrics              TEXT NOT NULL DEFAULT '{}',
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS app_participations (
	app_id        TEXT NOT NULL,
	config_id     TEXT NOT NULL,
	is_enabled    INTEGER NOT NULL DEFAULT 1,
	weight_factor REAL NOT NULL DEFAULT 1.0,
	custom_tags   TEXT NOT NULL DEFAULT '[]',
	manual_scores TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	PRIMARY KEY (app_id, config_id)
);

CREATE TABLE IF NOT EXISTS submissions (
	id                   TEXT PRIMARY KEY,
	app_name             TEXT NOT NULL,
	unit_name            TEXT NOT NULL,
	contact              TEXT NOT NULL,
	contact_phone        TEXT NOT NULL DEFAULT '',
	contact_email        TEXT NOT NULL DEFAULT '',
	category             TEXT NOT NULL,
	scenario             TEXT NOT NULL,
	embedded_system      TEXT NOT NULL,
	problem_statement    TEXT NOT NULL,
	effectiveness_type   TEXT NOT NULL,
	effectiveness_metric TEXT NOT NULL,
	data_level           TEXT NOT NULL,
	expected_benefit     TEXT NOT NULL,
	cover_image_url      TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'pending',
	reject_reason        TEXT NOT NULL DEFAULT '',
	ranking_enabled      INTEGER NOT NULL DEFAULT 1,
	ranking_weight       REAL NOT NULL DEFAULT 1.0,
	ranking_tags         TEXT NOT NULL DEFAULT '[]',
	approved_app_id      TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS ranking_snapshots (
	config_id       TEXT NOT NULL,
	period_date     TEXT NOT NULL,
	run_id          TEXT NOT NULL,
	position        INTEGER NOT NULL,
	app_id          TEXT NOT NULL,
	app_name        TEXT NOT NULL,
	app_org         TEXT NOT NULL,
	score           REAL NOT NULL,
	tag             TEXT NOT NULL DEFAULT '',
	metric_type     TEXT NOT NULL DEFAULT 'composite',
	value_dimension TEXT NOT NULL DEFAULT 'cost_reduction',
	usage_30d       INTEGER NOT NULL DEFAULT 0,
	likes           INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL,
	PRIMARY KEY (config_id, period_date, app_id)
);

CREATE INDEX IF NOT EXISTS idx_apps_section ON apps(section);
CREATE INDEX IF NOT EXISTS idx_apps_status ON apps(status);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_participations_config ON app_participations(config_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_config_date ON ranking_snapshots(config_id, period_date);
CREATE INDEX IF NOT EXISTS idx_dimension_logs_dimension ON dimension_logs(dimension_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Dimensions ---

func (s *SQLiteStore) CreateDimension(ctx context.Context, d *model.Dimension) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dimensions (id, name, description, calculation_method, default_weight, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Description, d.CalculationMethod, d.DefaultWeight, d.IsActive, d.CreatedAt, d.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Conflictf("dimension name already exists: %s", d.Name)
	}
	return eris.Wrap(err, "sqlite: insert dimension")
}

func (s *SQLiteStore) GetDimension(ctx context.Context, id string) (*model.Dimension, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, calculation_method, default_weight, is_active, created_at, updated_at
		 FROM dimensions WHERE id = ?`, id)
	return scanDimension(row, id)
}

func (s *SQLiteStore) UpdateDimension(ctx context.Context, d *model.Dimension) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dimensions SET name = ?, description = ?, calculation_method = ?, default_weight = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		d.Name, d.Description, d.CalculationMethod, d.DefaultWeight, d.IsActive, time.Now().UTC(), d.ID,
	)
	if isUniqueViolation(err) {
		return apperr.Conflictf("dimension name already exists: %s", d.Name)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: update dimension %s", d.ID)
	}
	return checkRowsAffected(res, "dimension", d.ID)
}

func (s *SQLiteStore) DeleteDimension(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dimensions WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete dimension %s", id)
	}
	return checkRowsAffected(res, "dimension", id)
}

func (s *SQLiteStore) ListDimensions(ctx context.Context, activeOnly bool) ([]model.Dimension, error) {
	query := `SELECT id, name, description, calculation_method, default_weight, is_active, created_at, updated_at FROM dimensions`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dimensions")
	}
	defer rows.Close()

	var out []model.Dimension
	for rows.Next() {
		d, err := scanDimension(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list dimensions iterate")
}

func (s *SQLiteStore) AppendDimensionLog(ctx context.Context, l *model.DimensionLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dimension_logs (id, action, dimension_id, dimension_name, changes, operator, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Action, l.DimensionID, l.DimensionName, l.Changes, l.Operator, l.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert dimension log")
}

func (s *SQLiteStore) ListDimensionLogs(ctx context.Context, dimensionID string, limit int) ([]model.DimensionLog, error) {
	query := `SELECT id, action, dimension_id, dimension_name, changes, operator, created_at FROM dimension_logs`
	var args []any
	if dimensionID != "" {
		query += ` WHERE dimension_id = ?`
		args = append(args, dimensionID)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dimension logs")
	}
	defer rows.Close()

	var out []model.DimensionLog
	for rows.Next() {
		var l model.DimensionLog
		if err := rows.Scan(&l.ID, &l.Action, &l.DimensionID, &l.DimensionName, &l.Changes, &l.Operator, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dimension log")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list dimension logs iterate")
}

// --- Ranking configs ---

func (s *SQLiteStore) CreateConfig(ctx context.Context, c *model.RankingConfig) error {
	weightsJSON, err := json.Marshal(c.DimensionWeights)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dimension weights")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ranking_configs (id, name, description, dimension_weights, calculation_method, is_active, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, string(weightsJSON), string(c.CalculationMethod), c.IsActive, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Conflictf("ranking config already exists: %s", c.ID)
	}
	return eris.Wrap(err, "sqlite: insert ranking config")
}

func (s *SQLiteStore) GetConfig(ctx context.Context, id string) (*model.RankingConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, dimension_weights, calculation_method, is_active, version, created_at, updated_at
		 FROM ranking_configs WHERE id = ?`, id)
	return scanConfig(row, id)
}

func (s *SQLiteStore) UpdateConfig(ctx context.Context, c *model.RankingConfig) error {
	weightsJSON, err := json.Marshal(c.DimensionWeights)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dimension weights")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE ranking_configs SET name = ?, description = ?, dimension_weights = ?, calculation_method = ?, is_active = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		c.Name, c.Description, string(weightsJSON), string(c.CalculationMethod), c.IsActive, c.Version, time.Now().UTC(), c.ID, c.Version-1,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update ranking config %s", c.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, getErr := s.GetConfig(ctx, c.ID); getErr != nil {
			return getErr
		}
		return apperr.Conflictf("ranking config %s was modified concurrently", c.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteConfig(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ranking_configs WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete ranking config %s", id)
	}
	return checkRowsAffected(res, "ranking config", id)
}

func (s *SQLiteStore) ListConfigs(ctx context.Context, activeOnly bool) ([]model.RankingConfig, error) {
	query := `SELECT id, name, description, dimension_weights, calculation_method, is_active, version, created_at, updated_at FROM ranking_configs`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ranking configs")
	}
	defer rows.Close()

	var out []model.RankingConfig
	for rows.Next() {
		c, err := scanConfig(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list ranking configs iterate")
}

// --- App participations ---

func (s *SQLiteStore) UpsertParticipation(ctx context.Context, p *model.AppParticipation) error {
	tagsJSON, scoresJSON, err := marshalParticipation(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO app_participations (app_id, config_id, is_enabled, weight_factor, custom_tags, manual_scores, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (app_id, config_id) DO UPDATE SET
			is_enabled = excluded.is_enabled,
			weight_factor = excluded.weight_factor,
			custom_tags = excluded.custom_tags,
			manual_scores = excluded.manual_scores,
			updated_at = excluded.updated_at`,
		p.AppID, p.ConfigID, p.IsEnabled, p.WeightFactor, tagsJSON, scoresJSON, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert participation")
}

func (s *SQLiteStore) GetParticipation(ctx context.Context, appID, configID string) (*model.AppParticipation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT app_id, config_id, is_enabled, weight_factor, custom_tags, manual_scores, created_at, updated_at
		 FROM app_participations WHERE app_id = ? AND config_id = ?`,
		appID, configID)
	p, err := scanParticipation(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("participation", appID+"/"+configID)
	}
	return p, err
}

func (s *SQLiteStore) DeleteParticipation(ctx context.Context, appID, configID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM app_participations WHERE app_id = ? AND config_id = ?`, appID, configID)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete participation")
	}
	return checkRowsAffected(res, "participation", appID+"/"+configID)
}

func (s *SQLiteStore) ListParticipationsByApp(ctx context.Context, appID string) ([]model.AppParticipation, error) {
	return s.listParticipations(ctx, `WHERE app_id = ?`, appID)
}

func (s *SQLiteStore) ListParticipationsByConfig(ctx context.Context, configID string) ([]model.AppParticipation, error) {
	return s.listParticipations(ctx, `WHERE config_id = ?`, configID)
}

func (s *SQLiteStore) ListParticipations(ctx context.Context) ([]model.AppParticipation, error) {
	return s.listParticipations(ctx, ``)
}

func (s *SQLiteStore) listParticipations(ctx context.Context, where string, args ...any) ([]model.AppParticipation, error) {
	query := `SELECT app_id, config_id, is_enabled, weight_factor, custom_tags, manual_scores, created_at, updated_at
		 FROM app_participations ` + where + ` ORDER BY config_id, app_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list participations")
	}
	defer rows.Close()

	var out []model.AppParticipation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list participations iterate")
}

// --- Applications ---

func (s *SQLiteStore) CreateApp(ctx context.Context, a *model.Application) error {
	metricsJSON, err := json.Marshal(a.Metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal app metrics")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO apps (id, name, org, section, category, description, status, release_date,
			contact_name, target_system, target_users, problem_statement,
			effectiveness_type, effectiveness_metric, cover_image_url, metrics, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Org, string(a.Section), a.Category, a.Description, string(a.Status), a.ReleaseDate,
		a.ContactName, a.TargetSystem, a.TargetUsers, a.ProblemStatement,
		string(a.EffectivenessType), a.EffectivenessMetric, a.CoverImageURL, string(metricsJSON), a.CreatedAt, a.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert app")
}

func (s *SQLiteStore) GetApp(ctx context.Context, id string) (*model.Application, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+appColumns+` FROM apps WHERE id = ?`, id)
	a, err := scanApp(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("app", id)
	}
	return a, err
}

func (s *SQLiteStore) UpdateApp(ctx context.Context, a *model.Application) error {
	metricsJSON, err := json.Marshal(a.Metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal app metrics")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE apps SET name = ?, org = ?, category = ?, description = ?, status = ?, release_date = ?,
			contact_name = ?, target_system = ?, target_users = ?, problem_statement = ?,
			effectiveness_type = ?, effectiveness_metric = ?, cover_image_url = ?, metrics = ?, updated_at = ?
		 WHERE id = ?`,
		a.Name, a.Org, a.Category, a.Description, string(a.Status), a.ReleaseDate,
		a.ContactName, a.TargetSystem, a.TargetUsers, a.ProblemStatement,
		string(a.EffectivenessType), a.EffectivenessMetric, a.CoverImageURL, string(metricsJSON), time.Now().UTC(), a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update app %s", a.ID)
	}
	return checkRowsAffected(res, "app", a.ID)
}

func (s *SQLiteStore) ListApps(ctx context.Context, filter AppFilter) ([]model.Application, error) {
	query := `SELECT ` + appColumns + ` FROM apps WHERE 1=1`
	var args []any

	if filter.Section != "" {
		query += ` AND section = ?`
		args = append(args, string(filter.Section))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Query != "" {
		query += ` AND (name LIKE ? OR description LIKE ?)`
		like := "%" + filter.Query + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit == 0 {
		limit = 200
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	} else if filter.Offset > 0 {
		// OFFSET needs a LIMIT clause; -1 is unbounded.
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list apps")
	}
	defer rows.Close()

	var out []model.Application
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list apps iterate")
}

func (s *SQLiteStore) CountApps(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM apps`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count apps")
}

// --- Submissions ---

func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	tagsJSON, err := json.Marshal(sub.RankingTags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ranking tags")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, app_name, unit_name, contact, contact_phone, contact_email,
			category, scenario, embedded_system, problem_statement,
			effectiveness_type, effectiveness_metric, data_level, expected_benefit, cover_image_url,
			status, reject_reason, ranking_enabled, ranking_weight, ranking_tags, approved_app_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.AppName, sub.UnitName, sub.Contact, sub.ContactPhone, sub.ContactEmail,
		sub.Category, sub.Scenario, sub.EmbeddedSystem, sub.ProblemStatement,
		string(sub.EffectivenessType), sub.EffectivenessMetric, string(sub.DataLevel), sub.ExpectedBenefit, sub.CoverImageURL,
		string(sub.Status), sub.RejectReason, sub.RankingEnabled, sub.RankingWeight, string(tagsJSON), sub.ApprovedAppID, sub.CreatedAt, sub.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert submission")
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("submission", id)
	}
	return sub, err
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list submissions")
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list submissions iterate")
}

func (s *SQLiteStore) CountSubmissionsByStatus(ctx context.Context) (map[model.SubmissionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count submissions")
	}
	defer rows.Close()

	out := make(map[model.SubmissionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan submission count")
		}
		out[model.SubmissionStatus(status)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count submissions iterate")
}

func (s *SQLiteStore) RejectSubmission(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, reject_reason = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.SubmissionRejected), reason, time.Now().UTC(), id, string(model.SubmissionPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reject submission %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return s.classifyGuardFailure(ctx, id)
	}
	return nil
}

func (s *SQLiteStore) ApproveSubmission(ctx context.Context, id string, app *model.Application, parts []model.AppParticipation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin approve tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE submissions SET status = ?, approved_app_id = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.SubmissionApproved), app.ID, time.Now().UTC(), id, string(model.SubmissionPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: approve submission %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return s.classifyGuardFailure(ctx, id)
	}

	metricsJSON, err := json.Marshal(app.Metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal app metrics")
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO apps (id, name, org, section, category, description, status, release_date,
			contact_name, target_system, target_users, problem_statement,
			effectiveness_type, effectiveness_metric, cover_image_url, metrics, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.Name, app.Org, string(app.Section), app.Category, app.Description, string(app.Status), app.ReleaseDate,
		app.ContactName, app.TargetSystem, app.TargetUsers, app.ProblemStatement,
		string(app.EffectivenessType), app.EffectivenessMetric, app.CoverImageURL, string(metricsJSON), app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert approved app")
	}

	for i := range parts {
		p := &parts[i]
		tagsJSON, scoresJSON, err := marshalParticipation(p)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO app_participations (app_id, config_id, is_enabled, weight_factor, custom_tags, manual_scores, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.AppID, p.ConfigID, p.IsEnabled, p.WeightFactor, tagsJSON, scoresJSON, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert approval participation")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit approve tx")
}

// classifyGuardFailure distinguishes a missing submission from one already
// in a terminal state after a zero-row status-guarded update.
func (s *SQLiteStore) classifyGuardFailure(ctx context.Context, id string) error {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidStatef("submission %s is %s, not pending", id, sub.Status)
}

// --- Historical snapshots ---

func (s *SQLiteStore) ReplaceSnapshot(ctx context.Context, configID, periodDate string, entries []model.SnapshotEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin snapshot tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ranking_snapshots WHERE config_id = ? AND period_date = ?`,
		configID, periodDate,
	); err != nil {
		return eris.Wrap(err, "sqlite: clear snapshot")
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ranking_snapshots (config_id, period_date, run_id, position, app_id, app_name, app_org,
				score, tag, metric_type, value_dimension, usage_30d, likes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ConfigID, e.PeriodDate, e.RunID, e.Position, e.AppID, e.AppName, e.AppOrg,
			e.Score, e.Tag, string(e.MetricType), string(e.ValueDimension), e.Usage30d, e.Likes, e.CreatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert snapshot entry")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit snapshot tx")
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, configID, periodDate string) ([]model.SnapshotEntry, error) {
	if periodDate == "" {
		row := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(period_date), '') FROM ranking_snapshots WHERE config_id = ?`, configID)
		if err := row.Scan(&periodDate); err != nil {
			return nil, eris.Wrap(err, "sqlite: latest snapshot date")
		}
		if periodDate == "" {
			return nil, nil
		}
	}
	return s.querySnapshot(ctx,
		`SELECT `+snapshotColumns+` FROM ranking_snapshots WHERE config_id = ? AND period_date = ? ORDER BY position`,
		configID, periodDate)
}

func (s *SQLiteStore) LatestSnapshotBefore(ctx context.Context, configID, periodDate string) ([]model.SnapshotEntry, error) {
	var prior string
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(period_date), '') FROM ranking_snapshots WHERE config_id = ? AND period_date < ?`,
		configID, periodDate)
	if err := row.Scan(&prior); err != nil {
		return nil, eris.Wrap(err, "sqlite: prior snapshot date")
	}
	if prior == "" {
		return nil, nil
	}
	return s.GetSnapshot(ctx, configID, prior)
}

func (s *SQLiteStore) AppsRankedBefore(ctx context.Context, configID, periodDate string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT app_id FROM ranking_snapshots WHERE config_id = ? AND period_date < ?`,
		configID, periodDate)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: apps ranked before")
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var appID string
		if err := rows.Scan(&appID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan app id")
		}
		out[appID] = true
	}
	return out, eris.Wrap(rows.Err(), "sqlite: apps ranked before iterate")
}

func (s *SQLiteStore) ListSnapshotDates(ctx context.Context, configID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT period_date FROM ranking_snapshots WHERE config_id = ? ORDER BY period_date DESC`,
		configID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshot dates")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot date")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list snapshot dates iterate")
}

func (s *SQLiteStore) CountSnapshots(ctx context.Context, configID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ranking_snapshots WHERE config_id = ?`, configID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count snapshots")
}

func (s *SQLiteStore) querySnapshot(ctx context.Context, query string, args ...any) ([]model.SnapshotEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query snapshot")
	}
	defer rows.Close()

	var out []model.SnapshotEntry
	for rows.Next() {
		var e model.SnapshotEntry
		var metricType, valueDimension string
		if err := rows.Scan(&e.ConfigID, &e.PeriodDate, &e.RunID, &e.Position, &e.AppID, &e.AppName, &e.AppOrg,
			&e.Score, &e.Tag, &metricType, &valueDimension, &e.Usage30d, &e.Likes, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot entry")
		}
		e.MetricType = model.CalculationMethod(metricType)
		e.ValueDimension = model.EffectivenessType(valueDimension)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: snapshot iterate")
}

// --- helpers ---

const appColumns = `id, name, org, section, category, description, status, release_date,
	contact_name, target_system, target_users, problem_statement,
	effectiveness_type, effectiveness_metric, cover_image_url, metrics, created_at, updated_at`

const submissionColumns = `id, app_name, unit_name, contact, contact_phone, contact_email,
	category, scenario, embedded_system, problem_statement,
	effectiveness_type, effectiveness_metric, data_level, expected_benefit, cover_image_url,
	status, reject_reason, ranking_enabled, ranking_weight, ranking_tags, approved_app_id, created_at, updated_at`

const snapshotColumns = `config_id, period_date, run_id, position, app_id, app_name, app_org,
	score, tag, metric_type, value_dimension, usage_30d, likes, created_at`

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func marshalParticipation(p *model.AppParticipation) (string, string, error) {
	tags := p.CustomTags
	if tags == nil {
		tags = []string{}
	}
	scores := p.ManualScores
	if scores == nil {
		scores = map[string]float64{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", "", eris.Wrap(err, "marshal custom tags")
	}
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return "", "", eris.Wrap(err, "marshal manual scores")
	}
	return string(tagsJSON), string(scoresJSON), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDimension(row scannable, id string) (*model.Dimension, error) {
	var d model.Dimension
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CalculationMethod, &d.DefaultWeight, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("dimension", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan dimension")
	}
	return &d, nil
}

func scanConfig(row scannable, id string) (*model.RankingConfig, error) {
	var c model.RankingConfig
	var weightsJSON, method string
	err := row.Scan(&c.ID, &c.Name, &c.Description, &weightsJSON, &method, &c.IsActive, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("ranking config", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan ranking config")
	}
	c.CalculationMethod = model.CalculationMethod(method)
	if err := json.Unmarshal([]byte(weightsJSON), &c.DimensionWeights); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal dimension weights")
	}
	return &c, nil
}

func scanParticipation(row scannable) (*model.AppParticipation, error) {
	var p model.AppParticipation
	var tagsJSON, scoresJSON string
	err := row.Scan(&p.AppID, &p.ConfigID, &p.IsEnabled, &p.WeightFactor, &tagsJSON, &scoresJSON, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan participation")
	}
	if err := json.Unmarshal([]byte(tagsJSON), &p.CustomTags); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal custom tags")
	}
	if err := json.Unmarshal([]byte(scoresJSON), &p.ManualScores); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal manual scores")
	}
	return &p, nil
}

func scanApp(row scannable) (*model.Application, error) {
	var a model.Application
	var section, status, effType, metricsJSON string
	err := row.Scan(&a.ID, &a.Name, &a.Org, &section, &a.Category, &a.Description, &status, &a.ReleaseDate,
		&a.ContactName, &a.TargetSystem, &a.TargetUsers, &a.ProblemStatement,
		&effType, &a.EffectivenessMetric, &a.CoverImageURL, &metricsJSON, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan app")
	}
	a.Section = model.Section(section)
	a.Status = model.AppStatus(status)
	a.EffectivenessType = model.EffectivenessType(effType)
	if err := json.Unmarshal([]byte(metricsJSON), &a.Metrics); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal app metrics")
	}
	return &a, nil
}

func scanSubmission(row scannable) (*model.Submission, error) {
	var sub model.Submission
	var effType, dataLevel, status, tagsJSON string
	err := row.Scan(&sub.ID, &sub.AppName, &sub.UnitName, &sub.Contact, &sub.ContactPhone, &sub.ContactEmail,
		&sub.Category, &sub.Scenario, &sub.EmbeddedSystem, &sub.ProblemStatement,
		&effType, &sub.EffectivenessMetric, &dataLevel, &sub.ExpectedBenefit, &sub.CoverImageURL,
		&status, &sub.RejectReason, &sub.RankingEnabled, &sub.RankingWeight, &tagsJSON, &sub.ApprovedAppID, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan submission")
	}
	sub.EffectivenessType = model.EffectivenessType(effType)
	sub.DataLevel = model.DataLevel(dataLevel)
	sub.Status = model.SubmissionStatus(status)
	if err := json.Unmarshal([]byte(tagsJSON), &sub.RankingTags); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal ranking tags")
	}
	return &sub, nil
}
