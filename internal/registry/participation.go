package registry

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/validate"
)

// ParticipationInput opts an app into one ranking configuration.
// WeightFactor defaults to 1 when zero.
type ParticipationInput struct {
	AppID        string             `json:"app_id"`
	ConfigID     string             `json:"config_id"`
	IsEnabled    *bool              `json:"is_enabled,omitempty"`
	WeightFactor float64            `json:"weight_factor,omitempty"`
	CustomTags   []string           `json:"custom_tags,omitempty"`
	ManualScores map[string]float64 `json:"manual_dimension_scores,omitempty"`
}

// Enroll upserts an app's participation record. Re-enrolling an already
// enrolled app updates the record in place rather than erroring.
func (r *Registry) Enroll(ctx context.Context, in ParticipationInput) (*model.AppParticipation, error) {
	if in.WeightFactor == 0 {
		in.WeightFactor = 1
	}
	if err := validate.Weight("weight_factor", in.WeightFactor, 10); err != nil {
		return nil, err
	}
	for dimID, score := range in.ManualScores {
		if score < 0 || score > 100 {
			return nil, apperr.Validationf("manual_dimension_scores", "score for dimension %q must be between 0 and 100", dimID)
		}
	}
	if _, err := r.store.GetApp(ctx, in.AppID); err != nil {
		return nil, err
	}
	if _, err := r.store.GetConfig(ctx, in.ConfigID); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	part := &model.AppParticipation{
		AppID:        in.AppID,
		ConfigID:     in.ConfigID,
		IsEnabled:    true,
		WeightFactor: in.WeightFactor,
		CustomTags:   in.CustomTags,
		ManualScores: in.ManualScores,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.IsEnabled != nil {
		part.IsEnabled = *in.IsEnabled
	}
	if existing, err := r.store.GetParticipation(ctx, in.AppID, in.ConfigID); err == nil {
		part.CreatedAt = existing.CreatedAt
	} else if !apperr.IsNotFound(err) {
		return nil, eris.Wrap(err, "registry: get participation")
	}

	if err := r.store.UpsertParticipation(ctx, part); err != nil {
		return nil, eris.Wrap(err, "registry: upsert participation")
	}
	return part, nil
}

// ParticipationPatch updates an existing enrollment. Nil fields are left
// untouched; CustomTags and ManualScores replace the full set when present.
type ParticipationPatch struct {
	IsEnabled    *bool               `json:"is_enabled,omitempty"`
	WeightFactor *float64            `json:"weight_factor,omitempty"`
	CustomTags   *[]string           `json:"custom_tags,omitempty"`
	ManualScores *map[string]float64 `json:"manual_dimension_scores,omitempty"`
}

func (r *Registry) UpdateParticipation(ctx context.Context, appID, configID string, patch ParticipationPatch) (*model.AppParticipation, error) {
	part, err := r.store.GetParticipation(ctx, appID, configID)
	if err != nil {
		return nil, err
	}

	if patch.IsEnabled != nil {
		part.IsEnabled = *patch.IsEnabled
	}
	if patch.WeightFactor != nil {
		if err := validate.Weight("weight_factor", *patch.WeightFactor, 10); err != nil {
			return nil, err
		}
		part.WeightFactor = *patch.WeightFactor
	}
	if patch.CustomTags != nil {
		part.CustomTags = *patch.CustomTags
	}
	if patch.ManualScores != nil {
		for dimID, score := range *patch.ManualScores {
			if score < 0 || score > 100 {
				return nil, apperr.Validationf("manual_dimension_scores", "score for dimension %q must be between 0 and 100", dimID)
			}
		}
		part.ManualScores = *patch.ManualScores
	}

	part.UpdatedAt = r.now().UTC()
	if err := r.store.UpsertParticipation(ctx, part); err != nil {
		return nil, eris.Wrap(err, "registry: update participation")
	}
	return part, nil
}

func (r *Registry) Unenroll(ctx context.Context, appID, configID string) error {
	return r.store.DeleteParticipation(ctx, appID, configID)
}

func (r *Registry) GetParticipation(ctx context.Context, appID, configID string) (*model.AppParticipation, error) {
	return r.store.GetParticipation(ctx, appID, configID)
}

func (r *Registry) ListParticipationsByApp(ctx context.Context, appID string) ([]model.AppParticipation, error) {
	return r.store.ListParticipationsByApp(ctx, appID)
}

func (r *Registry) ListParticipationsByConfig(ctx context.Context, configID string) ([]model.AppParticipation, error) {
	return r.store.ListParticipationsByConfig(ctx, configID)
}
