package model

import "time"

// CalculationMethod selects how a ranking config scores its apps.
type CalculationMethod string

const (
	MethodComposite  CalculationMethod = "composite"
	MethodGrowthRate CalculationMethod = "growth_rate"
)

// Ranking tags assigned by the engine per run.
const (
	TagRecommended = "推荐"   // top decile of the run
	TagHistorical  = "历史优秀" // top-3 in the immediately preceding snapshot
	TagNew         = "新"    // first appearance in any snapshot for the config
)

// Dimension is a named axis of value with an administrator-authored
// calculation description. The description is documentation only; the
// concrete scorer is registered by id in the ranking engine.
type Dimension struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	CalculationMethod string    `json:"calculation_method"`
	DefaultWeight     float64   `json:"default_weight"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DimensionWeight pairs a dimension with its weight inside one config.
type DimensionWeight struct {
	DimensionID string  `json:"dimension_id"`
	Weight      float64 `json:"weight"`
}

// RankingConfig is a named, weighted selection of dimensions plus a
// calculation method, defining one ranking list. The id is a stable slug
// chosen at creation ("excellent", "trend", ...).
type RankingConfig struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	DimensionWeights  []DimensionWeight `json:"dimension_weights"`
	CalculationMethod CalculationMethod `json:"calculation_method"`
	IsActive          bool              `json:"is_active"`
	Version           int               `json:"version"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// AppParticipation is an app's opt-in record for one ranking config.
// Unique per (app_id, config_id).
type AppParticipation struct {
	AppID        string             `json:"app_id"`
	ConfigID     string             `json:"config_id"`
	IsEnabled    bool               `json:"is_enabled"`
	WeightFactor float64            `json:"weight_factor"`
	CustomTags   []string           `json:"custom_tags,omitempty"`
	ManualScores map[string]float64 `json:"manual_dimension_scores,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// SnapshotEntry is one row of a dated ranking snapshot. App name, org,
// value dimension and usage are denormalized at write time so later edits
// or deletions never corrupt history.
type SnapshotEntry struct {
	ConfigID       string            `json:"config_id"`
	PeriodDate     string            `json:"period_date"` // YYYY-MM-DD
	RunID          string            `json:"run_id"`
	Position       int               `json:"position"`
	AppID          string            `json:"app_id"`
	AppName        string            `json:"app_name"`
	AppOrg         string            `json:"app_org"`
	Score          float64           `json:"score"`
	Tag            string            `json:"tag,omitempty"`
	MetricType     CalculationMethod `json:"metric_type"`
	ValueDimension EffectivenessType `json:"value_dimension"`
	Usage30d       int               `json:"usage_30d"`
	Likes          int               `json:"likes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// DimensionLog is an audit record of an administrative dimension mutation.
type DimensionLog struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"` // create | update | delete
	DimensionID   string    `json:"dimension_id"`
	DimensionName string    `json:"dimension_name"`
	Changes       string    `json:"changes"`
	Operator      string    `json:"operator"`
	CreatedAt     time.Time `json:"created_at"`
}
