package registry

import (
	"context"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/validate"
)

var configIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ConfigInput carries the fields for a new ranking configuration. The id
// is an admin-chosen slug and becomes part of snapshot history, so it is
// immutable after creation.
type ConfigInput struct {
	ID                string                  `json:"id"`
	Name              string                  `json:"name"`
	Description       string                  `json:"description"`
	DimensionWeights  []model.DimensionWeight `json:"dimension_weights"`
	CalculationMethod model.CalculationMethod `json:"calculation_method"`
}

// ConfigPatch updates a configuration. Nil fields are left untouched.
// DimensionWeights, when present, replaces the full weight set.
type ConfigPatch struct {
	Name              *string                  `json:"name,omitempty"`
	Description       *string                  `json:"description,omitempty"`
	DimensionWeights  *[]model.DimensionWeight `json:"dimension_weights,omitempty"`
	CalculationMethod *model.CalculationMethod `json:"calculation_method,omitempty"`
	IsActive          *bool                    `json:"is_active,omitempty"`
}

func (r *Registry) CreateConfig(ctx context.Context, in ConfigInput) (*model.RankingConfig, error) {
	if !configIDPattern.MatchString(in.ID) {
		return nil, apperr.Validationf("id", "id must be a lowercase slug of at most 64 characters")
	}
	if in.Name == "" {
		return nil, apperr.Validationf("name", "name is required")
	}
	if err := validateMethod(in.CalculationMethod); err != nil {
		return nil, err
	}
	if err := r.checkWeights(ctx, in.DimensionWeights); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	cfg := &model.RankingConfig{
		ID:                in.ID,
		Name:              in.Name,
		Description:       in.Description,
		DimensionWeights:  in.DimensionWeights,
		CalculationMethod: in.CalculationMethod,
		IsActive:          true,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.store.CreateConfig(ctx, cfg); err != nil {
		return nil, eris.Wrap(err, "registry: create config")
	}
	return cfg, nil
}

// UpdateConfig applies a patch and bumps the config version. A concurrent
// update between the read and the write surfaces as a Conflict from the
// store's version guard.
func (r *Registry) UpdateConfig(ctx context.Context, id string, patch ConfigPatch) (*model.RankingConfig, error) {
	cfg, err := r.store.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, apperr.Validationf("name", "name is required")
		}
		cfg.Name = *patch.Name
	}
	if patch.Description != nil {
		cfg.Description = *patch.Description
	}
	if patch.CalculationMethod != nil {
		if err := validateMethod(*patch.CalculationMethod); err != nil {
			return nil, err
		}
		cfg.CalculationMethod = *patch.CalculationMethod
	}
	if patch.DimensionWeights != nil {
		if err := r.checkWeights(ctx, *patch.DimensionWeights); err != nil {
			return nil, err
		}
		cfg.DimensionWeights = *patch.DimensionWeights
	}
	if patch.IsActive != nil {
		cfg.IsActive = *patch.IsActive
	}

	cfg.Version++
	cfg.UpdatedAt = r.now().UTC()
	if err := r.store.UpdateConfig(ctx, cfg); err != nil {
		return nil, eris.Wrap(err, "registry: update config")
	}
	return cfg, nil
}

// DeleteConfig removes a configuration outright. Configs that already own
// snapshot history cannot be hard-deleted; deactivate them instead.
func (r *Registry) DeleteConfig(ctx context.Context, id string) error {
	if _, err := r.store.GetConfig(ctx, id); err != nil {
		return err
	}
	n, err := r.store.CountSnapshots(ctx, id)
	if err != nil {
		return eris.Wrap(err, "registry: count snapshots")
	}
	if n > 0 {
		return apperr.Conflictf("config %q has %d snapshot rows; deactivate it instead of deleting", id, n)
	}
	if err := r.store.DeleteConfig(ctx, id); err != nil {
		return eris.Wrap(err, "registry: delete config")
	}
	return nil
}

func (r *Registry) GetConfig(ctx context.Context, id string) (*model.RankingConfig, error) {
	return r.store.GetConfig(ctx, id)
}

func (r *Registry) ListConfigs(ctx context.Context, activeOnly bool) ([]model.RankingConfig, error) {
	return r.store.ListConfigs(ctx, activeOnly)
}

// checkWeights rejects weight sets that are empty, out of range, duplicated,
// or that point at dimensions the registry does not know.
func (r *Registry) checkWeights(ctx context.Context, weights []model.DimensionWeight) error {
	if len(weights) == 0 {
		return apperr.Validationf("dimension_weights", "at least one dimension weight is required")
	}
	seen := make(map[string]bool, len(weights))
	for _, w := range weights {
		if seen[w.DimensionID] {
			return apperr.Validationf("dimension_weights", "dimension %q listed twice", w.DimensionID)
		}
		seen[w.DimensionID] = true
		if err := validate.Weight("dimension_weights", w.Weight, 10); err != nil {
			return err
		}
		if _, err := r.store.GetDimension(ctx, w.DimensionID); err != nil {
			if apperr.IsNotFound(err) {
				return apperr.Validationf("dimension_weights", "unknown dimension %q", w.DimensionID)
			}
			return eris.Wrap(err, "registry: resolve dimension")
		}
	}
	return nil
}

func validateMethod(m model.CalculationMethod) error {
	switch m {
	case model.MethodComposite, model.MethodGrowthRate:
		return nil
	default:
		return apperr.Validationf("calculation_method", "calculation_method must be composite or growth_rate")
	}
}
