// Package registry holds the administrative services: ranking dimensions,
// ranking configurations, and app enrollment in configurations. It sits
// between the HTTP layer and the store and owns the cross-entity checks
// the store cannot express (dangling references, delete guards).
package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/store"
	"github.com/sells-group/rankboard/internal/validate"
)

// Registry is the administrative service over the store.
type Registry struct {
	store store.Store
	now   func() time.Time
}

func New(st store.Store) *Registry {
	return &Registry{store: st, now: time.Now}
}

// DimensionInput carries the fields an admin supplies when creating a
// dimension. CalculationMethod is free-text documentation and is never
// evaluated.
type DimensionInput struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	CalculationMethod string  `json:"calculation_method"`
	DefaultWeight     float64 `json:"default_weight"`
}

// DimensionPatch updates a dimension. Nil fields are left untouched.
type DimensionPatch struct {
	Name              *string  `json:"name,omitempty"`
	Description       *string  `json:"description,omitempty"`
	CalculationMethod *string  `json:"calculation_method,omitempty"`
	DefaultWeight     *float64 `json:"default_weight,omitempty"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

func (r *Registry) CreateDimension(ctx context.Context, in DimensionInput, operator string) (*model.Dimension, error) {
	if in.Name == "" {
		return nil, apperr.Validationf("name", "name is required")
	}
	if err := validate.Weight("default_weight", in.DefaultWeight, 10); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	dim := &model.Dimension{
		ID:                uuid.NewString(),
		Name:              in.Name,
		Description:       in.Description,
		CalculationMethod: in.CalculationMethod,
		DefaultWeight:     in.DefaultWeight,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.store.CreateDimension(ctx, dim); err != nil {
		return nil, eris.Wrap(err, "registry: create dimension")
	}
	r.logDimension(ctx, dim.ID, dim.Name, "create", operator, map[string]any{
		"name":           dim.Name,
		"default_weight": dim.DefaultWeight,
	})
	return dim, nil
}

func (r *Registry) UpdateDimension(ctx context.Context, id string, patch DimensionPatch, operator string) (*model.Dimension, error) {
	dim, err := r.store.GetDimension(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if patch.Name != nil && *patch.Name != dim.Name {
		if *patch.Name == "" {
			return nil, apperr.Validationf("name", "name is required")
		}
		changes["name"] = []string{dim.Name, *patch.Name}
		dim.Name = *patch.Name
	}
	if patch.Description != nil {
		dim.Description = *patch.Description
	}
	if patch.CalculationMethod != nil {
		dim.CalculationMethod = *patch.CalculationMethod
	}
	if patch.DefaultWeight != nil && *patch.DefaultWeight != dim.DefaultWeight {
		if err := validate.Weight("default_weight", *patch.DefaultWeight, 10); err != nil {
			return nil, err
		}
		changes["default_weight"] = []float64{dim.DefaultWeight, *patch.DefaultWeight}
		dim.DefaultWeight = *patch.DefaultWeight
	}
	if patch.IsActive != nil && *patch.IsActive != dim.IsActive {
		changes["is_active"] = []bool{dim.IsActive, *patch.IsActive}
		dim.IsActive = *patch.IsActive
	}

	dim.UpdatedAt = r.now().UTC()
	if err := r.store.UpdateDimension(ctx, dim); err != nil {
		return nil, eris.Wrap(err, "registry: update dimension")
	}
	if len(changes) > 0 {
		r.logDimension(ctx, dim.ID, dim.Name, "update", operator, changes)
	}
	return dim, nil
}

// DeleteDimension removes a dimension. It refuses when any active ranking
// configuration still assigns the dimension a weight.
func (r *Registry) DeleteDimension(ctx context.Context, id, operator string) error {
	dim, err := r.store.GetDimension(ctx, id)
	if err != nil {
		return err
	}

	configs, err := r.store.ListConfigs(ctx, true)
	if err != nil {
		return eris.Wrap(err, "registry: list configs")
	}
	for _, cfg := range configs {
		for _, w := range cfg.DimensionWeights {
			if w.DimensionID == id {
				return apperr.Conflictf("dimension %q is referenced by active config %q", id, cfg.ID)
			}
		}
	}

	if err := r.store.DeleteDimension(ctx, id); err != nil {
		return eris.Wrap(err, "registry: delete dimension")
	}
	r.logDimension(ctx, id, dim.Name, "delete", operator, map[string]any{"name": dim.Name})
	return nil
}

func (r *Registry) GetDimension(ctx context.Context, id string) (*model.Dimension, error) {
	return r.store.GetDimension(ctx, id)
}

func (r *Registry) ListDimensions(ctx context.Context, activeOnly bool) ([]model.Dimension, error) {
	return r.store.ListDimensions(ctx, activeOnly)
}

func (r *Registry) ListDimensionLogs(ctx context.Context, dimensionID string, limit int) ([]model.DimensionLog, error) {
	return r.store.ListDimensionLogs(ctx, dimensionID, limit)
}

// logDimension records an audit row. Audit failures are logged and
// swallowed; the primary mutation already committed.
func (r *Registry) logDimension(ctx context.Context, dimensionID, dimensionName, action, operator string, changes map[string]any) {
	raw, err := json.Marshal(changes)
	if err != nil {
		raw = []byte("{}")
	}
	if operator == "" {
		operator = "system"
	}
	entry := &model.DimensionLog{
		ID:            uuid.NewString(),
		DimensionID:   dimensionID,
		DimensionName: dimensionName,
		Action:        action,
		Operator:      operator,
		Changes:       string(raw),
		CreatedAt:     r.now().UTC(),
	}
	if err := r.store.AppendDimensionLog(ctx, entry); err != nil {
		zap.L().Warn("dimension audit log write failed",
			zap.String("dimension_id", dimensionID),
			zap.String("action", action),
			zap.Error(err))
	}
}
