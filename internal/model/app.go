package model

import "time"

// Section identifies which half of the catalog an application belongs to.
type Section string

const (
	SectionGroup    Section = "group"    // admin-entered group applications
	SectionProvince Section = "province" // created via submission approval
)

// AppStatus represents an application's lifecycle state.
type AppStatus string

const (
	AppStatusAvailable AppStatus = "available"
	AppStatusApproval  AppStatus = "approval"
	AppStatusBeta      AppStatus = "beta"
	AppStatusOffline   AppStatus = "offline"
)

// EffectivenessType is the value dimension an application claims to move.
type EffectivenessType string

const (
	EffectivenessCostReduction    EffectivenessType = "cost_reduction"
	EffectivenessEfficiencyGain   EffectivenessType = "efficiency_gain"
	EffectivenessPerceptionUplift EffectivenessType = "perception_uplift"
	EffectivenessRevenueGrowth    EffectivenessType = "revenue_growth"
)

// ValidEffectivenessTypes lists the accepted effectiveness_type values.
var ValidEffectivenessTypes = []EffectivenessType{
	EffectivenessCostReduction,
	EffectivenessEfficiencyGain,
	EffectivenessPerceptionUplift,
	EffectivenessRevenueGrowth,
}

// Application is a cataloged internal application. Identity is immutable
// once created; status and metadata are mutable.
type Application struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Org                 string            `json:"org"`
	Section             Section           `json:"section"`
	Category            string            `json:"category"`
	Description         string            `json:"description"`
	Status              AppStatus         `json:"status"`
	ReleaseDate         time.Time         `json:"release_date"`
	ContactName         string            `json:"contact_name,omitempty"`
	TargetSystem        string            `json:"target_system,omitempty"`
	TargetUsers         string            `json:"target_users,omitempty"`
	ProblemStatement    string            `json:"problem_statement,omitempty"`
	EffectivenessType   EffectivenessType `json:"effectiveness_type"`
	EffectivenessMetric string            `json:"effectiveness_metric,omitempty"`
	CoverImageURL       string            `json:"cover_image_url,omitempty"`
	Metrics             AppMetrics        `json:"metrics"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// AppMetrics holds the raw usage signals supplied by the external metrics
// source. The ranking engine consumes these; it never computes them.
type AppMetrics struct {
	MonthlyCalls   float64 `json:"monthly_calls"`
	LastMonthCalls float64 `json:"last_month_calls"`
	Usage30d       int     `json:"usage_30d"`
	Likes          int     `json:"likes"`
	NewUsers       int     `json:"new_users_count"`
	FavoriteCount  int     `json:"favorite_count"`
}
