// Package approval implements the submission pipeline: declarants submit
// province app proposals, administrators approve or reject them, and
// approval materializes the catalog entry and its ranking enrollments in
// one transaction.
package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/store"
	"github.com/sells-group/rankboard/internal/validate"
)

// SyncTrigger is invoked after a successful approval so rankings pick up
// the new app without waiting for the next scheduled run.
type SyncTrigger func(ctx context.Context) error

// Pipeline handles the submission lifecycle.
type Pipeline struct {
	store store.Store
	sync  SyncTrigger
	now   func() time.Time
}

func New(st store.Store, sync SyncTrigger) *Pipeline {
	return &Pipeline{store: st, sync: sync, now: time.Now}
}

// Submit validates and persists a new pending submission.
func (p *Pipeline) Submit(ctx context.Context, s *model.Submission) (*model.Submission, error) {
	if s.RankingWeight == 0 {
		s.RankingWeight = 1
	}
	if err := validate.Submission(s); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	s.ID = uuid.NewString()
	s.Status = model.SubmissionPending
	s.RejectReason = ""
	s.ApprovedAppID = ""
	s.CreatedAt = now
	s.UpdatedAt = now

	if err := p.store.CreateSubmission(ctx, s); err != nil {
		return nil, eris.Wrap(err, "approval: create submission")
	}
	zap.L().Info("submission received",
		zap.String("submission_id", s.ID),
		zap.String("app_name", s.AppName),
		zap.String("unit", s.UnitName))
	return s, nil
}

// Approve turns a pending submission into a province application enrolled
// in every active ranking config the declarant opted into. The status
// flip, app creation and enrollments commit atomically; a submission that
// is already terminal yields InvalidState.
func (p *Pipeline) Approve(ctx context.Context, id string) (*model.Application, error) {
	sub, err := p.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status.Terminal() {
		return nil, apperr.InvalidStatef("submission %q is already %s", id, sub.Status)
	}

	now := p.now().UTC()
	app := p.buildApp(sub, now)

	// One participation per active config, even when the declarant opted
	// out: the row exists disabled so an admin can enable it per config.
	configs, err := p.store.ListConfigs(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "approval: list configs")
	}
	var parts []model.AppParticipation
	for _, cfg := range configs {
		parts = append(parts, model.AppParticipation{
			AppID:        app.ID,
			ConfigID:     cfg.ID,
			IsEnabled:    sub.RankingEnabled,
			WeightFactor: sub.RankingWeight,
			CustomTags:   sub.RankingTags,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := p.store.ApproveSubmission(ctx, id, app, parts); err != nil {
		return nil, err
	}
	zap.L().Info("submission approved",
		zap.String("submission_id", id),
		zap.String("app_id", app.ID),
		zap.Int("enrollments", len(parts)))

	if p.sync != nil {
		if err := p.sync(ctx); err != nil {
			zap.L().Warn("post-approval ranking sync failed",
				zap.String("app_id", app.ID),
				zap.Error(err))
		}
	}
	return app, nil
}

// Reject marks a pending submission rejected with the given reason.
func (p *Pipeline) Reject(ctx context.Context, id, reason string) error {
	if reason == "" {
		return apperr.Validationf("reason", "reject reason is required")
	}
	if err := p.store.RejectSubmission(ctx, id, reason); err != nil {
		return err
	}
	zap.L().Info("submission rejected",
		zap.String("submission_id", id),
		zap.String("reason", reason))
	return nil
}

func (p *Pipeline) Get(ctx context.Context, id string) (*model.Submission, error) {
	return p.store.GetSubmission(ctx, id)
}

func (p *Pipeline) List(ctx context.Context, filter store.SubmissionFilter) ([]model.Submission, error) {
	return p.store.ListSubmissions(ctx, filter)
}

func (p *Pipeline) Counts(ctx context.Context) (map[model.SubmissionStatus]int, error) {
	return p.store.CountSubmissionsByStatus(ctx)
}

// buildApp maps an approved submission onto a catalog application.
// Approved apps always land in the province section as available.
func (p *Pipeline) buildApp(sub *model.Submission, now time.Time) *model.Application {
	return &model.Application{
		ID:                  uuid.NewString(),
		Name:                sub.AppName,
		Org:                 sub.UnitName,
		Section:             model.SectionProvince,
		Category:            sub.Category,
		Description:         sub.Scenario,
		Status:              model.AppStatusAvailable,
		ReleaseDate:         now,
		ContactName:         sub.Contact,
		TargetSystem:        sub.EmbeddedSystem,
		ProblemStatement:    sub.ProblemStatement,
		EffectivenessType:   sub.EffectivenessType,
		EffectivenessMetric: sub.EffectivenessMetric,
		CoverImageURL:       sub.CoverImageURL,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
