package store

import (
	"context"

	"github.com/sells-group/rankboard/internal/model"
)

// AppFilter specifies criteria for listing applications. Limit 0 applies
// the default page size of 200; a negative Limit disables pagination so
// full-catalog readers (sync, stats) see every row.
type AppFilter struct {
	Section  model.Section   `json:"section,omitempty"`
	Status   model.AppStatus `json:"status,omitempty"`
	Category string          `json:"category,omitempty"`
	Query    string          `json:"q,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}

// SubmissionFilter specifies criteria for listing submissions.
type SubmissionFilter struct {
	Status model.SubmissionStatus `json:"status,omitempty"`
	Limit  int                    `json:"limit,omitempty"`
	Offset int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the catalog and ranking core.
// Implementations classify row-level failures with apperr kinds: missing
// rows surface as NotFound, status guards as InvalidState, uniqueness and
// version guards as Conflict.
type Store interface {
	// Dimensions
	CreateDimension(ctx context.Context, d *model.Dimension) error
	GetDimension(ctx context.Context, id string) (*model.Dimension, error)
	UpdateDimension(ctx context.Context, d *model.Dimension) error
	DeleteDimension(ctx context.Context, id string) error
	ListDimensions(ctx context.Context, activeOnly bool) ([]model.Dimension, error)

	// Dimension audit trail
	AppendDimensionLog(ctx context.Context, l *model.DimensionLog) error
	ListDimensionLogs(ctx context.Context, dimensionID string, limit int) ([]model.DimensionLog, error)

	// Ranking configs
	CreateConfig(ctx context.Context, c *model.RankingConfig) error
	GetConfig(ctx context.Context, id string) (*model.RankingConfig, error)
	// UpdateConfig persists c only when the stored version equals
	// c.Version-1 (optimistic locking); otherwise Conflict.
	UpdateConfig(ctx context.Context, c *model.RankingConfig) error
	DeleteConfig(ctx context.Context, id string) error
	ListConfigs(ctx context.Context, activeOnly bool) ([]model.RankingConfig, error)

	// App participations
	UpsertParticipation(ctx context.Context, p *model.AppParticipation) error
	GetParticipation(ctx context.Context, appID, configID string) (*model.AppParticipation, error)
	DeleteParticipation(ctx context.Context, appID, configID string) error
	ListParticipationsByApp(ctx context.Context, appID string) ([]model.AppParticipation, error)
	ListParticipationsByConfig(ctx context.Context, configID string) ([]model.AppParticipation, error)
	ListParticipations(ctx context.Context) ([]model.AppParticipation, error)

	// Applications
	CreateApp(ctx context.Context, a *model.Application) error
	GetApp(ctx context.Context, id string) (*model.Application, error)
	UpdateApp(ctx context.Context, a *model.Application) error
	ListApps(ctx context.Context, filter AppFilter) ([]model.Application, error)
	CountApps(ctx context.Context) (int, error)

	// Submissions
	CreateSubmission(ctx context.Context, s *model.Submission) error
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error)
	CountSubmissionsByStatus(ctx context.Context) (map[model.SubmissionStatus]int, error)
	// RejectSubmission marks a pending submission rejected; InvalidState
	// when the submission is already terminal.
	RejectSubmission(ctx context.Context, id, reason string) error
	// ApproveSubmission atomically marks a pending submission approved,
	// creates the application and enrolls it in the given participations.
	// A failure partway leaves nothing applied.
	ApproveSubmission(ctx context.Context, id string, app *model.Application, parts []model.AppParticipation) error

	// Historical snapshots
	// ReplaceSnapshot atomically swaps the full ordered entry set for
	// (configID, periodDate); either everything is written or nothing is.
	ReplaceSnapshot(ctx context.Context, configID, periodDate string, entries []model.SnapshotEntry) error
	// GetSnapshot returns the entries for periodDate, or for the most
	// recent available date when periodDate is empty.
	GetSnapshot(ctx context.Context, configID, periodDate string) ([]model.SnapshotEntry, error)
	// LatestSnapshotBefore returns the most recent snapshot strictly
	// older than periodDate, or nil when none exists.
	LatestSnapshotBefore(ctx context.Context, configID, periodDate string) ([]model.SnapshotEntry, error)
	// AppsRankedBefore returns the set of app ids appearing in any
	// snapshot for configID strictly older than periodDate.
	AppsRankedBefore(ctx context.Context, configID, periodDate string) (map[string]bool, error)
	ListSnapshotDates(ctx context.Context, configID string) ([]string, error)
	CountSnapshots(ctx context.Context, configID string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
