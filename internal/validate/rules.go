// Package validate holds the declarative field rule table for submissions.
// The same table drives the submission form and its server-side counterpart,
// so the two can never drift apart.
package validate

import (
	"regexp"
	"strings"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
)

// StringRule declares the constraints for one string field.
type StringRule struct {
	Field    string
	Get      func(*model.Submission) string
	Required bool
	MaxLen   int
	OneOf    []string
	Pattern  *regexp.Regexp
	PatternDesc string
}

var (
	phonePattern = regexp.MustCompile(`^1[0-9]{10}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func effectivenessValues() []string {
	out := make([]string, len(model.ValidEffectivenessTypes))
	for i, v := range model.ValidEffectivenessTypes {
		out[i] = string(v)
	}
	return out
}

func dataLevelValues() []string {
	out := make([]string, len(model.ValidDataLevels))
	for i, v := range model.ValidDataLevels {
		out[i] = string(v)
	}
	return out
}

// SubmissionRules is the single source of truth for submission field
// constraints.
var SubmissionRules = []StringRule{
	{Field: "app_name", Get: func(s *model.Submission) string { return s.AppName }, Required: true, MaxLen: 120},
	{Field: "unit_name", Get: func(s *model.Submission) string { return s.UnitName }, Required: true, MaxLen: 120},
	{Field: "contact", Get: func(s *model.Submission) string { return s.Contact }, Required: true, MaxLen: 80},
	{Field: "contact_phone", Get: func(s *model.Submission) string { return s.ContactPhone }, MaxLen: 20, Pattern: phonePattern, PatternDesc: "must be an 11-digit mobile number"},
	{Field: "contact_email", Get: func(s *model.Submission) string { return s.ContactEmail }, MaxLen: 120, Pattern: emailPattern, PatternDesc: "must be a valid email address"},
	{Field: "category", Get: func(s *model.Submission) string { return s.Category }, Required: true, MaxLen: 30},
	{Field: "scenario", Get: func(s *model.Submission) string { return s.Scenario }, Required: true, MaxLen: 500},
	{Field: "embedded_system", Get: func(s *model.Submission) string { return s.EmbeddedSystem }, Required: true, MaxLen: 120},
	{Field: "problem_statement", Get: func(s *model.Submission) string { return s.ProblemStatement }, Required: true, MaxLen: 255},
	{Field: "effectiveness_type", Get: func(s *model.Submission) string { return string(s.EffectivenessType) }, Required: true, OneOf: effectivenessValues()},
	{Field: "effectiveness_metric", Get: func(s *model.Submission) string { return s.EffectivenessMetric }, Required: true, MaxLen: 120},
	{Field: "data_level", Get: func(s *model.Submission) string { return string(s.DataLevel) }, Required: true, OneOf: dataLevelValues()},
	{Field: "expected_benefit", Get: func(s *model.Submission) string { return s.ExpectedBenefit }, Required: true, MaxLen: 300},
	{Field: "cover_image_url", Get: func(s *model.Submission) string { return s.CoverImageURL }, MaxLen: 500},
	{Field: "ranking_tags", Get: func(s *model.Submission) string { return strings.Join(s.RankingTags, ",") }, MaxLen: 255},
}

// Check evaluates one rule against a submission.
func (r StringRule) Check(s *model.Submission) error {
	v := r.Get(s)
	if v == "" {
		if r.Required {
			return apperr.Validationf(r.Field, "is required")
		}
		return nil
	}
	if r.MaxLen > 0 && len([]rune(v)) > r.MaxLen {
		return apperr.Validationf(r.Field, "must not exceed %d characters", r.MaxLen)
	}
	if len(r.OneOf) > 0 {
		found := false
		for _, allowed := range r.OneOf {
			if v == allowed {
				found = true
				break
			}
		}
		if !found {
			return apperr.Validationf(r.Field, "must be one of: %s", strings.Join(r.OneOf, ", "))
		}
	}
	if r.Pattern != nil && !r.Pattern.MatchString(v) {
		return apperr.Validationf(r.Field, "%s", r.PatternDesc)
	}
	return nil
}

// Submission validates a submission payload against the rule table plus the
// numeric ranking constraints. The first violation is returned.
func Submission(s *model.Submission) error {
	for _, rule := range SubmissionRules {
		if err := rule.Check(s); err != nil {
			return err
		}
	}
	if s.RankingWeight < 0.1 || s.RankingWeight > 10.0 {
		return apperr.Validationf("ranking_weight", "must be between 0.1 and 10.0")
	}
	return nil
}

// Weight checks a scoring weight against the admissible (0, max] range.
func Weight(field string, w, max float64) error {
	if w <= 0 || w > max {
		return apperr.Validationf(field, "must be in (0, %g]", max)
	}
	return nil
}
