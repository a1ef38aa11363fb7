package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/db"
	"github.com/sells-group/rankboard/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS dimensions (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL UNIQUE,
	description        TEXT NOT NULL DEFAULT '',
	calculation_method TEXT NOT NULL DEFAULT '',
	default_weight     DOUBLE PRECISION NOT NULL,
	is_active          BOOLEAN NOT NULL DEFAULT true,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dimension_logs (
	id             TEXT PRIMARY KEY,
	action         TEXT NOT NULL,
	dimension_id   TEXT NOT NULL,
	dimension_name TEXT NOT NULL,
	changes        TEXT NOT NULL DEFAULT '',
	operator       TEXT NOT NULL DEFAULT 'system',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ranking_configs (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	dimension_weights  JSONB NOT NULL DEFAULT '[]',
	calculation_method TEXT NOT NULL DEFAULT 'composite',
	is_active          BOOLEAN NOT NULL DEFAULT true,
	version            INTEGER NOT NULL DEFAULT 1,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apps (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	org                  TEXT NOT NULL,
	section              TEXT NOT NULL,
	category             TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL,
	release_date         TIMESTAMPTZ NOT NULL,
	contact_name         TEXT NOT NULL DEFAULT '',
	target_system        TEXT NOT NULL DEFAULT '',
	target_users         TEXT NOT NULL DEFAULT '',
	problem_statement    TEXT NOT NULL DEFAULT '',
	effectiveness_type   TEXT NOT NULL DEFAULT 'cost_reduction',
	effectiveness_metric TEXT NOT NULL DEFAULT '',
	cover_image_url      TEXT NOT NULL DEFAULT '',
	metrics              JSONB NOT NULL DEFAULT '{}',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS app_participations (
	app_id        TEXT NOT NULL,
	config_id     TEXT NOT NULL,
	is_enabled    BOOLEAN NOT NULL DEFAULT true,
	weight_factor DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	custom_tags   JSONB NOT NULL DEFAULT '[]',
	manual_scores JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	ranking_enabled      BOOLEAN NOT NULL DEFAULT true,
	ranking_weight       DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	ranking_tags         JSONB NOT NULL DEFAULT '[]',
	approved_app_id      TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ranking_snapshots (
	config_id       TEXT NOT NULL,
	period_date     TEXT NOT NULL,
	run_id          TEXT NOT NULL,
	position        INTEGER NOT NULL,
	app_id          TEXT NOT NULL,
	app_name        TEXT NOT NULL,
	app_org         TEXT NOT NULL,
	score           DOUBLE PRECISION NOT NULL,
	tag             TEXT NOT NULL DEFAULT '',
	metric_type     TEXT NOT NULL DEFAULT 'composite',
	value_dimension TEXT NOT NULL DEFAULT 'cost_reduction',
	usage_30d       INTEGER NOT NULL DEFAULT 0,
	likes           INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (config_id, period_date, app_id)
);

CREATE INDEX IF NOT EXISTS idx_apps_section ON apps(section);
CREATE INDEX IF NOT EXISTS idx_apps_status ON apps(status);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_participations_config ON app_participations(config_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_config_date ON ranking_snapshots(config_id, period_date);
CREATE INDEX IF NOT EXISTS idx_dimension_logs_dimension ON dimension_logs(dimension_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Dimensions ---

func (s *PostgresStore) CreateDimension(ctx context.Context, d *model.Dimension) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dimensions (id, name, description, calculation_method, default_weight, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.Name, d.Description, d.CalculationMethod, d.DefaultWeight, d.IsActive, d.CreatedAt, d.UpdatedAt,
	)
	if isPgUniqueViolation(err) {
		return apperr.Conflictf("dimension name already exists: %s", d.Name)
	}
	return eris.Wrap(err, "postgres: insert dimension")
}

func (s *PostgresStore) GetDimension(ctx context.Context, id string) (*model.Dimension, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, description, calculation_method, default_weight, is_active, created_at, updated_at
		 FROM dimensions WHERE id = $1`, id)
	var d model.Dimension
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CalculationMethod, &d.DefaultWeight, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("dimension", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan dimension")
	}
	return &d, nil
}

func (s *PostgresStore) UpdateDimension(ctx context.Context, d *model.Dimension) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dimensions SET name = $1, description = $2, calculation_method = $3, default_weight = $4, is_active = $5, updated_at = $6
		 WHERE id = $7`,
		d.Name, d.Description, d.CalculationMethod, d.DefaultWeight, d.IsActive, time.Now().UTC(), d.ID,
	)
	if isPgUniqueViolation(err) {
		return apperr.Conflictf("dimension name already exists: %s", d.Name)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: update dimension %s", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("dimension", d.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteDimension(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dimensions WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete dimension %s", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("dimension", id)
	}
	return nil
}

func (s *PostgresStore) ListDimensions(ctx context.Context, activeOnly bool) ([]model.Dimension, error) {
	query := `SELECT id, name, description, calculation_method, default_weight, is_active, created_at, updated_at FROM dimensions`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dimensions")
	}
	defer rows.Close()

	var out []model.Dimension
	for rows.Next() {
		var d model.Dimension
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CalculationMethod, &d.DefaultWeight, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dimension")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list dimensions iterate")
}

func (s *PostgresStore) AppendDimensionLog(ctx context.Context, l *model.DimensionLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dimension_logs (id, action, dimension_id, dimension_name, changes, operator, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.Action, l.DimensionID, l.DimensionName, l.Changes, l.Operator, l.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert dimension log")
}

func (s *PostgresStore) ListDimensionLogs(ctx context.Context, dimensionID string, limit int) ([]model.DimensionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, action, dimension_id, dimension_name, changes, operator, created_at FROM dimension_logs`
	var args []any
	if dimensionID != "" {
		query += ` WHERE dimension_id = $1 ORDER BY created_at DESC, id LIMIT $2`
		args = append(args, dimensionID, limit)
	} else {
		query += ` ORDER BY created_at DESC, id LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dimension logs")
	}
	defer rows.Close()

	var out []model.DimensionLog
	for rows.Next() {
		var l model.DimensionLog
		if err := rows.Scan(&l.ID, &l.Action, &l.DimensionID, &l.DimensionName, &l.Changes, &l.Operator, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dimension log")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list dimension logs iterate")
}

// --- Ranking configs ---

func (s *PostgresStore) CreateConfig(ctx context.Context, c *model.RankingConfig) error {
	weightsJSON, err := json.Marshal(c.DimensionWeights)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dimension weights")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ranking_configs (id, name, description, dimension_weights, calculation_method, is_active, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.Description, string(weightsJSON), string(c.CalculationMethod), c.IsActive, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if isPgUniqueViolation(err) {
		return apperr.Conflictf("ranking config already exists: %s", c.ID)
	}
	return eris.Wrap(err, "postgres: insert ranking config")
}

func (s *PostgresStore) GetConfig(ctx context.Context, id string) (*model.RankingConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, description, dimension_weights, calculation_method, is_active, version, created_at, updated_at
		 FROM ranking_configs WHERE id = $1`, id)
	c, err := scanPgConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ranking config", id)
	}
	return c, err
}

func (s *PostgresStore) UpdateConfig(ctx context.Context, c *model.RankingConfig) error {
	weightsJSON, err := json.Marshal(c.DimensionWeights)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dimension weights")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE ranking_configs SET name = $1, description = $2, dimension_weights = $3, calculation_method = $4, is_active = $5, version = $6, updated_at = $7
		 WHERE id = $8 AND version = $9`,
		c.Name, c.Description, string(weightsJSON), string(c.CalculationMethod), c.IsActive, c.Version, time.Now().UTC(), c.ID, c.Version-1,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update ranking config %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetConfig(ctx, c.ID); getErr != nil {
			return getErr
		}
		return apperr.Conflictf("ranking config %s was modified concurrently", c.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteConfig(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ranking_configs WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete ranking config %s", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("ranking config", id)
	}
	return nil
}

func (s *PostgresStore) ListConfigs(ctx context.Context, activeOnly bool) ([]model.RankingConfig, error) {
	query := `SELECT id, name, description, dimension_weights, calculation_method, is_active, version, created_at, updated_at FROM ranking_configs`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ranking configs")
	}
	defer rows.Close()

	var out []model.RankingConfig
	for rows.Next() {
		c, err := scanPgConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list ranking configs iterate")
}

// --- App participations ---

func (s *PostgresStore) UpsertParticipation(ctx context.Context, p *model.AppParticipation) error {
	tagsJSON, scoresJSON, err := marshalParticipation(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO app_participations (app_id, config_id, is_enabled, weight_factor, custom_tags, manual_scores, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (app_id, config_id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			weight_factor = EXCLUDED.weight_factor,
			custom_tags = EXCLUDED.custom_tags,
			manual_scores = EXCLUDED.manual_scores,
			updated_at = EXCLUDED.updated_at`,
		p.AppID, p.ConfigID, p.IsEnabled, p.WeightFactor, tagsJSON, scoresJSON, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert participation")
}

func (s *PostgresStore) GetParticipation(ctx context.Context, appID, configID string) (*model.AppParticipation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT app_id, config_id, is_enabled, weight_factor, custom_tags, manual_scores, created_at, updated_at
		 FROM app_participations WHERE app_id = $1 AND config_id = $2`,
		appID, configID)
	p, err := scanPgParticipation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("participation", appID+"/"+configID)
	}
	return p, err
}

func (s *PostgresStore) DeleteParticipation(ctx context.Context, appID, configID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM app_participations WHERE app_id = $1 AND config_id = $2`, appID, configID)
	if err != nil {
		return eris.Wrap(err, "postgres: delete participation")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("participation", appID+"/"+configID)
	}
	return nil
}

func (s *PostgresStore) ListParticipationsByApp(ctx context.Context, appID string) ([]model.AppParticipation, error) {
	return s.listParticipations(ctx, `WHERE app_id = $1`, appID)
}

func (s *PostgresStore) ListParticipationsByConfig(ctx context.Context, configID string) ([]model.AppParticipation, error) {
	return s.listParticipations(ctx, `WHERE config_id = $1`, configID)
}

func (s *PostgresStore) ListParticipations(ctx context.Context) ([]model.AppParticipation, error) {
	return s.listParticipations(ctx, ``)
}

func (s *PostgresStore) listParticipations(ctx context.Context, where string, args ...any) ([]model.AppParticipation, error) {
	query := `SELECT app_id, config_id, is_enabled, weight_factor, custom_tags, manual_scores, created_at, updated_at
		 FROM app_participations ` + where + ` ORDER BY config_id, app_id`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list participations")
	}
	defer rows.Close()

	var out []model.AppParticipation
	for rows.Next() {
		p, err := scanPgParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list participations iterate")
}

// --- Applications ---

func (s *PostgresStore) CreateApp(ctx context.Context, a *model.Application) error {
	metricsJSON, err := json.Marshal(a.Metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal app metrics")
	}
	_, err = s.pool.Exec(ctx, insertAppSQL, appInsertArgs(a, string(metricsJSON))...)
	return eris.Wrap(err, "postgres: insert app")
}

const insertAppSQL = `INSERT INTO apps (id, name, org, section, category, description, status, release_date,
	contact_name, target_system, target_users, problem_statement,
	effectiveness_type, effectiveness_metric, cover_image_url, metrics, created_at, updated_at)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

func appInsertArgs(a *model.Application, metricsJSON string) []any {
	return []any{
		a.ID, a.Name, a.Org, string(a.Section), a.Category, a.Description, string(a.Status), a.ReleaseDate,
		a.ContactName, a.TargetSystem, a.TargetUsers, a.ProblemStatement,
		string(a.EffectivenessType), a.EffectivenessMetric, a.CoverImageURL, metricsJSON, a.CreatedAt, a.UpdatedAt,
	}
}

func (s *PostgresStore) GetApp(ctx context.Context, id string) (*model.Application, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE id = $1`, id)
	a, err := scanPgApp(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("app", id)
	}
	return a, err
}

func (s *PostgresStore) UpdateApp(ctx context.Context, a *model.Application) error {
	metricsJSON, err := json.Marshal(a.Metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal app metrics")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE apps SET name = $1, org = $2, category = $3, description = $4, status = $5, release_date = $6,
			contact_name = $7, target_system = $8, target_users = $9, problem_statement = $10,
			effectiveness_type = $11, effectiveness_metric = $12, cover_image_url = $13, metrics = $14, updated_at = $15
		 WHERE id = $16`,
		a.Name, a.Org, a.Category, a.Description, string(a.Status), a.ReleaseDate,
		a.ContactName, a.TargetSystem, a.TargetUsers, a.ProblemStatement,
		string(a.EffectivenessType), a.EffectivenessMetric, a.CoverImageURL, string(metricsJSON), time.Now().UTC(), a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update app %s", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("app", a.ID)
	}
	return nil
}

func (s *PostgresStore) ListApps(ctx context.Context, filter AppFilter) ([]model.Application, error) {
	query := `SELECT ` + appColumns + ` FROM apps WHERE 1=1`
	var args []any
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return "$" + strconv.Itoa(n)
	}

	if filter.Section != "" {
		query += ` AND section = ` + arg(string(filter.Section))
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Category != "" {
		query += ` AND category = ` + arg(filter.Category)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		query += ` AND (name ILIKE ` + arg(like) + ` OR description ILIKE ` + arg(like) + `)`
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit == 0 {
		limit = 200
	}
	if limit > 0 {
		query += ` LIMIT ` + arg(limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list apps")
	}
	defer rows.Close()

	var out []model.Application
	for rows.Next() {
		a, err := scanPgApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list apps iterate")
}

func (s *PostgresStore) CountApps(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM apps`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count apps")
}

// --- Submissions ---

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	tagsJSON, err := json.Marshal(sub.RankingTags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal ranking tags")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO submissions (id, app_name, unit_name, contact, contact_phone, contact_email,
			category, scenario, embedded_system, problem_statement,
			effectiveness_type, effectiveness_metric, data_level, expected_benefit, cover_image_url,
			status, reject_reason, ranking_enabled, ranking_weight, ranking_tags, approved_app_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		sub.ID, sub.AppName, sub.UnitName, sub.Contact, sub.ContactPhone, sub.ContactEmail,
		sub.Category, sub.Scenario, sub.EmbeddedSystem, sub.ProblemStatement,
		string(sub.EffectivenessType), sub.EffectivenessMetric, string(sub.DataLevel), sub.ExpectedBenefit, sub.CoverImageURL,
		string(sub.Status), sub.RejectReason, sub.RankingEnabled, sub.RankingWeight, string(tagsJSON), sub.ApprovedAppID, sub.CreatedAt, sub.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert submission")
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanPgSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("submission", id)
	}
	return sub, err
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE 1=1`
	var args []any
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return "$" + strconv.Itoa(n)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list submissions")
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanPgSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list submissions iterate")
}

func (s *PostgresStore) CountSubmissionsByStatus(ctx context.Context) (map[model.SubmissionStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count submissions")
	}
	defer rows.Close()

	out := make(map[model.SubmissionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan submission count")
		}
		out[model.SubmissionStatus(status)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: count submissions iterate")
}

func (s *PostgresStore) RejectSubmission(ctx context.Context, id, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET status = $1, reject_reason = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		string(model.SubmissionRejected), reason, time.Now().UTC(), id, string(model.SubmissionPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reject submission %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyGuardFailure(ctx, id)
	}
	return nil
}

func (s *PostgresStore) ApproveSubmission(ctx context.Context, id string, app *model.Application, parts []model.AppParticipation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin approve tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE submissions SET status = $1, approved_app_id = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		string(model.SubmissionApproved), app.ID, time.Now().UTC(), id, string(model.SubmissionPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: approve submission %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyGuardFailure(ctx, id)
	}

	metricsJSON, err := json.Marshal(app.Metrics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal app metrics")
	}
	if _, err := tx.Exec(ctx, insertAppSQL, appInsertArgs(app, string(metricsJSON))...); err != nil {
		return eris.Wrap(err, "postgres: insert approved app")
	}

	for i := range parts {
		p := &parts[i]
		tagsJSON, scoresJSON, err := marshalParticipation(p)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO app_participations (app_id, config_id, is_enabled, weight_factor, custom_tags, manual_scores, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.AppID, p.ConfigID, p.IsEnabled, p.WeightFactor, tagsJSON, scoresJSON, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert approval participation")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit approve tx")
}

func (s *PostgresStore) classifyGuardFailure(ctx context.Context, id string) error {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidStatef("submission %s is %s, not pending", id, sub.Status)
}

// --- Historical snapshots ---

func (s *PostgresStore) ReplaceSnapshot(ctx context.Context, configID, periodDate string, entries []model.SnapshotEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin snapshot tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM ranking_snapshots WHERE config_id = $1 AND period_date = $2`,
		configID, periodDate,
	); err != nil {
		return eris.Wrap(err, "postgres: clear snapshot")
	}

	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO ranking_snapshots (config_id, period_date, run_id, position, app_id, app_name, app_org,
				score, tag, metric_type, value_dimension, usage_30d, likes, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			e.ConfigID, e.PeriodDate, e.RunID, e.Position, e.AppID, e.AppName, e.AppOrg,
			e.Score, e.Tag, string(e.MetricType), string(e.ValueDimension), e.Usage30d, e.Likes, e.CreatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert snapshot entry")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit snapshot tx")
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, configID, periodDate string) ([]model.SnapshotEntry, error) {
	if periodDate == "" {
		row := s.pool.QueryRow(ctx,
			`SELECT COALESCE(MAX(period_date), '') FROM ranking_snapshots WHERE config_id = $1`, configID)
		if err := row.Scan(&periodDate); err != nil {
			return nil, eris.Wrap(err, "postgres: latest snapshot date")
		}
		if periodDate == "" {
			return nil, nil
		}
	}
	return s.querySnapshot(ctx,
		`SELECT `+snapshotColumns+` FROM ranking_snapshots WHERE config_id = $1 AND period_date = $2 ORDER BY position`,
		configID, periodDate)
}

func (s *PostgresStore) LatestSnapshotBefore(ctx context.Context, configID, periodDate string) ([]model.SnapshotEntry, error) {
	var prior string
	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(period_date), '') FROM ranking_snapshots WHERE config_id = $1 AND period_date < $2`,
		configID, periodDate)
	if err := row.Scan(&prior); err != nil {
		return nil, eris.Wrap(err, "postgres: prior snapshot date")
	}
	if prior == "" {
		return nil, nil
	}
	return s.GetSnapshot(ctx, configID, prior)
}

func (s *PostgresStore) AppsRankedBefore(ctx context.Context, configID, periodDate string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT app_id FROM ranking_snapshots WHERE config_id = $1 AND period_date < $2`,
		configID, periodDate)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: apps ranked before")
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var appID string
		if err := rows.Scan(&appID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan app id")
		}
		out[appID] = true
	}
	return out, eris.Wrap(rows.Err(), "postgres: apps ranked before iterate")
}

func (s *PostgresStore) ListSnapshotDates(ctx context.Context, configID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT period_date FROM ranking_snapshots WHERE config_id = $1 ORDER BY period_date DESC`,
		configID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshot dates")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot date")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list snapshot dates iterate")
}

func (s *PostgresStore) CountSnapshots(ctx context.Context, configID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ranking_snapshots WHERE config_id = $1`, configID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count snapshots")
}

func (s *PostgresStore) querySnapshot(ctx context.Context, query string, args ...any) ([]model.SnapshotEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query snapshot")
	}
	defer rows.Close()

	var out []model.SnapshotEntry
	for rows.Next() {
		var e model.SnapshotEntry
		var metricType, valueDimension string
		if err := rows.Scan(&e.ConfigID, &e.PeriodDate, &e.RunID, &e.Position, &e.AppID, &e.AppName, &e.AppOrg,
			&e.Score, &e.Tag, &metricType, &valueDimension, &e.Usage30d, &e.Likes, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot entry")
		}
		e.MetricType = model.CalculationMethod(metricType)
		e.ValueDimension = model.EffectivenessType(valueDimension)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: snapshot iterate")
}

// --- helpers ---

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanPgConfig(row scannable) (*model.RankingConfig, error) {
	var c model.RankingConfig
	var weightsJSON, method string
	err := row.Scan(&c.ID, &c.Name, &c.Description, &weightsJSON, &method, &c.IsActive, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.CalculationMethod = model.CalculationMethod(method)
	if err := json.Unmarshal([]byte(weightsJSON), &c.DimensionWeights); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal dimension weights")
	}
	return &c, nil
}

func scanPgParticipation(row scannable) (*model.AppParticipation, error) {
	var p model.AppParticipation
	var tagsJSON, scoresJSON string
	err := row.Scan(&p.AppID, &p.ConfigID, &p.IsEnabled, &p.WeightFactor, &tagsJSON, &scoresJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &p.CustomTags); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal custom tags")
	}
	if err := json.Unmarshal([]byte(scoresJSON), &p.ManualScores); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal manual scores")
	}
	return &p, nil
}

func scanPgApp(row scannable) (*model.Application, error) {
	var a model.Application
	var section, status, effType, metricsJSON string
	err := row.Scan(&a.ID, &a.Name, &a.Org, &section, &a.Category, &a.Description, &status, &a.ReleaseDate,
		&a.ContactName, &a.TargetSystem, &a.TargetUsers, &a.ProblemStatement,
		&effType, &a.EffectivenessMetric, &a.CoverImageURL, &metricsJSON, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Section = model.Section(section)
	a.Status = model.AppStatus(status)
	a.EffectivenessType = model.EffectivenessType(effType)
	if err := json.Unmarshal([]byte(metricsJSON), &a.Metrics); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal app metrics")
	}
	return &a, nil
}

func scanPgSubmission(row scannable) (*model.Submission, error) {
	var sub model.Submission
	var effType, dataLevel, status, tagsJSON string
	err := row.Scan(&sub.ID, &sub.AppName, &sub.UnitName, &sub.Contact, &sub.ContactPhone, &sub.ContactEmail,
		&sub.Category, &sub.Scenario, &sub.EmbeddedSystem, &sub.ProblemStatement,
		&effType, &sub.EffectivenessMetric, &dataLevel, &sub.ExpectedBenefit, &sub.CoverImageURL,
		&status, &sub.RejectReason, &sub.RankingEnabled, &sub.RankingWeight, &tagsJSON, &sub.ApprovedAppID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.EffectivenessType = model.EffectivenessType(effType)
	sub.DataLevel = model.DataLevel(dataLevel)
	sub.Status = model.SubmissionStatus(status)
	if err := json.Unmarshal([]byte(tagsJSON), &sub.RankingTags); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal ranking tags")
	}
	return &sub, nil
}
