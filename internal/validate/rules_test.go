package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
)

func valid() *model.Submission {
	return &model.Submission{
		AppName:             "智能稽核助手",
		UnitName:            "浙江分公司",
		Contact:             "王工",
		ContactPhone:        "13812345678",
		ContactEmail:        "wang@example.com",
		Category:            "audit",
		Scenario:            "自动稽核工单",
		EmbeddedSystem:      "工单系统",
		ProblemStatement:    "人工稽核效率低",
		EffectivenessType:   model.EffectivenessEfficiencyGain,
		EffectivenessMetric: "稽核时长",
		DataLevel:           model.DataLevelL2,
		ExpectedBenefit:     "稽核时长下降50%",
		RankingWeight:       1,
	}
}

func TestValidSubmissionPasses(t *testing.T) {
	require.NoError(t, Submission(valid()))
}

func TestRequiredFields(t *testing.T) {
	s := valid()
	s.AppName = ""
	err := Submission(s)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "app_name", ae.Field)
}

func TestOptionalFieldsMayBeEmpty(t *testing.T) {
	s := valid()
	s.ContactPhone = ""
	s.ContactEmail = ""
	s.CoverImageURL = ""
	require.NoError(t, Submission(s))
}

func TestPhonePattern(t *testing.T) {
	s := valid()
	for _, bad := range []string{"12345", "23812345678", "138123456789", "1381234567a"} {
		s.ContactPhone = bad
		assert.Error(t, Submission(s), "phone %q", bad)
	}
	s.ContactPhone = "15900001111"
	assert.NoError(t, Submission(s))
}

func TestEmailPattern(t *testing.T) {
	s := valid()
	s.ContactEmail = "not-an-email"
	assert.Error(t, Submission(s))
}

func TestMaxLenCountsRunes(t *testing.T) {
	s := valid()
	// 120 CJK characters are fine even though they exceed 120 bytes.
	s.AppName = strings.Repeat("析", 120)
	require.NoError(t, Submission(s))

	s.AppName = strings.Repeat("析", 121)
	assert.Error(t, Submission(s))
}

func TestEnumFields(t *testing.T) {
	s := valid()
	s.EffectivenessType = "world_peace"
	assert.Error(t, Submission(s))

	s = valid()
	s.DataLevel = "L9"
	assert.Error(t, Submission(s))
}

func TestRankingWeightRange(t *testing.T) {
	s := valid()
	s.RankingWeight = 0.05
	assert.Error(t, Submission(s))

	s.RankingWeight = 10.5
	assert.Error(t, Submission(s))

	s.RankingWeight = 0.1
	assert.NoError(t, Submission(s))

	s.RankingWeight = 10
	assert.NoError(t, Submission(s))
}

func TestRankingTagsJoinedLength(t *testing.T) {
	s := valid()
	s.RankingTags = []string{strings.Repeat("标", 200), strings.Repeat("签", 60)}
	assert.Error(t, Submission(s))
}

func TestWeight(t *testing.T) {
	assert.NoError(t, Weight("w", 0.5, 10))
	assert.NoError(t, Weight("w", 10, 10))
	assert.Error(t, Weight("w", 0, 10))
	assert.Error(t, Weight("w", -1, 10))
	assert.Error(t, Weight("w", 10.1, 10))
}
