package model

import "time"

// SubmissionStatus represents the approval state of a submission.
// A submission transitions exactly once from pending to a terminal state.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionApproved || s == SubmissionRejected
}

// DataLevel classifies the sensitivity of the data a submission touches.
type DataLevel string

const (
	DataLevelL1 DataLevel = "L1"
	DataLevelL2 DataLevel = "L2"
	DataLevelL3 DataLevel = "L3"
	DataLevelL4 DataLevel = "L4"
)

// ValidDataLevels lists the accepted data_level values.
var ValidDataLevels = []DataLevel{DataLevelL1, DataLevelL2, DataLevelL3, DataLevelL4}

// Submission is a declarant-authored proposal for a new province application,
// pending administrative review.
type Submission struct {
	ID                  string            `json:"id"`
	AppName             string            `json:"app_name"`
	UnitName            string            `json:"unit_name"`
	Contact             string            `json:"contact"`
	ContactPhone        string            `json:"contact_phone,omitempty"`
	ContactEmail        string            `json:"contact_email,omitempty"`
	Category            string            `json:"category"`
	Scenario            string            `json:"scenario"`
	EmbeddedSystem      string            `json:"embedded_system"`
	ProblemStatement    string            `json:"problem_statement"`
	EffectivenessType   EffectivenessType `json:"effectiveness_type"`
	EffectivenessMetric string            `json:"effectiveness_metric"`
	DataLevel           DataLevel         `json:"data_level"`
	ExpectedBenefit     string            `json:"expected_benefit"`
	CoverImageURL       string            `json:"cover_image_url,omitempty"`
	Status              SubmissionStatus  `json:"status"`
	RejectReason        string            `json:"reject_reason,omitempty"`

	// Requested ranking participation, copied onto the participation rows
	// created at approval time.
	RankingEnabled bool     `json:"ranking_enabled"`
	RankingWeight  float64  `json:"ranking_weight"`
	RankingTags    []string `json:"ranking_tags,omitempty"`

	// ApprovedAppID is set when approval creates the Application.
	ApprovedAppID string    `json:"approved_app_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
