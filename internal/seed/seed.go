// Package seed loads the embedded default dataset: the built-in ranking
// dimensions, the two standard ranking configs and a starter set of group
// applications. Seeding is idempotent; a store that already holds apps is
// left untouched.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/ranking"
	"github.com/sells-group/rankboard/internal/store"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type dimensionSpec struct {
	ID                string  `yaml:"id"`
	Name              string  `yaml:"name"`
	Description       string  `yaml:"description"`
	CalculationMethod string  `yaml:"calculation_method"`
	DefaultWeight     float64 `yaml:"default_weight"`
}

type configSpec struct {
	ID                string             `yaml:"id"`
	Name              string             `yaml:"name"`
	Description       string             `yaml:"description"`
	CalculationMethod string             `yaml:"calculation_method"`
	Weights           map[string]float64 `yaml:"weights"`
}

type appSpec struct {
	Name                string   `yaml:"name"`
	Org                 string   `yaml:"org"`
	Category            string   `yaml:"category"`
	Description         string   `yaml:"description"`
	Status              string   `yaml:"status"`
	ReleaseDate         string   `yaml:"release_date"`
	ContactName         string   `yaml:"contact_name"`
	TargetSystem        string   `yaml:"target_system"`
	TargetUsers         string   `yaml:"target_users"`
	ProblemStatement    string   `yaml:"problem_statement"`
	EffectivenessType   string   `yaml:"effectiveness_type"`
	EffectivenessMetric string   `yaml:"effectiveness_metric"`
	MonthlyCalls        float64  `yaml:"monthly_calls"`
	LastMonthCalls      float64  `yaml:"last_month_calls"`
	Usage30d            int      `yaml:"usage_30d"`
	Likes               int      `yaml:"likes"`
	Enroll              []string `yaml:"enroll"`
}

type dataset struct {
	Dimensions []dimensionSpec `yaml:"dimensions"`
	Configs    []configSpec    `yaml:"configs"`
	Apps       []appSpec       `yaml:"apps"`
}

// RegisterBuiltinScorers binds the built-in scorers to the seeded
// dimension ids. Safe to call whether or not the data was seeded this
// run; the ids are stable.
func RegisterBuiltinScorers(reg *ranking.ScorerRegistry) {
	for id, fn := range ranking.Builtins() {
		reg.Register(id, fn)
	}
}

// Apply seeds the store with the embedded defaults. A store that already
// contains applications is assumed seeded and skipped.
func Apply(ctx context.Context, st store.Store) error {
	n, err := st.CountApps(ctx)
	if err != nil {
		return eris.Wrap(err, "seed: count apps")
	}
	if n > 0 {
		zap.L().Info("seed skipped, store already populated", zap.Int("apps", n))
		return nil
	}

	var ds dataset
	if err := yaml.Unmarshal(defaultsYAML, &ds); err != nil {
		return eris.Wrap(err, "seed: parse defaults")
	}

	now := time.Now().UTC()
	for _, d := range ds.Dimensions {
		dim := &model.Dimension{
			ID:                d.ID,
			Name:              d.Name,
			Description:       d.Description,
			CalculationMethod: d.CalculationMethod,
			DefaultWeight:     d.DefaultWeight,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := st.CreateDimension(ctx, dim); err != nil {
			return eris.Wrapf(err, "seed: dimension %s", d.ID)
		}
	}

	for _, c := range ds.Configs {
		weights := make([]model.DimensionWeight, 0, len(c.Weights))
		for _, d := range ds.Dimensions {
			if w, ok := c.Weights[d.ID]; ok {
				weights = append(weights, model.DimensionWeight{DimensionID: d.ID, Weight: w})
			}
		}
		cfg := &model.RankingConfig{
			ID:                c.ID,
			Name:              c.Name,
			Description:       c.Description,
			DimensionWeights:  weights,
			CalculationMethod: model.CalculationMethod(c.CalculationMethod),
			IsActive:          true,
			Version:           1,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := st.CreateConfig(ctx, cfg); err != nil {
			return eris.Wrapf(err, "seed: config %s", c.ID)
		}
	}

	for i, a := range ds.Apps {
		release, err := time.Parse("2006-01-02", a.ReleaseDate)
		if err != nil {
			return eris.Wrapf(err, "seed: app %s release_date", a.Name)
		}
		app := &model.Application{
			ID:                  seedAppID(i),
			Name:                a.Name,
			Org:                 a.Org,
			Section:             model.SectionGroup,
			Category:            a.Category,
			Description:         a.Description,
			Status:              model.AppStatus(a.Status),
			ReleaseDate:         release,
			ContactName:         a.ContactName,
			TargetSystem:        a.TargetSystem,
			TargetUsers:         a.TargetUsers,
			ProblemStatement:    a.ProblemStatement,
			EffectivenessType:   model.EffectivenessType(a.EffectivenessType),
			EffectivenessMetric: a.EffectivenessMetric,
			Metrics: model.AppMetrics{
				MonthlyCalls:   a.MonthlyCalls,
				LastMonthCalls: a.LastMonthCalls,
				Usage30d:       a.Usage30d,
				Likes:          a.Likes,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.CreateApp(ctx, app); err != nil {
			return eris.Wrapf(err, "seed: app %s", a.Name)
		}
		for _, configID := range a.Enroll {
			part := &model.AppParticipation{
				AppID:        app.ID,
				ConfigID:     configID,
				IsEnabled:    true,
				WeightFactor: 1,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := st.UpsertParticipation(ctx, part); err != nil {
				return eris.Wrapf(err, "seed: enroll %s in %s", a.Name, configID)
			}
		}
	}

	zap.L().Info("seed applied",
		zap.Int("dimensions", len(ds.Dimensions)),
		zap.Int("configs", len(ds.Configs)),
		zap.Int("apps", len(ds.Apps)))
	return nil
}

// seedAppID yields stable ids so repeated seeding of a wiped store
// produces the same catalog.
func seedAppID(i int) string {
	return fmt.Sprintf("seed-app-%02d", i)
}
