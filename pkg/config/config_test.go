package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 75, cfg.Admissions.ExamDefaultTotalItems)
	assert.Equal(t, 0.75, cfg.Admissions.ExamPassingRatio)
	assert.Equal(t, TransitionPolicyWarn, cfg.Admissions.TransitionPolicy)
	assert.Equal(t, []string{"TESDA", "DIPLOMA"}, cfg.Admissions.InterviewOnlyCategories)
	assert.Equal(t, 5*time.Second, cfg.Mail.RetryDelay)
	assert.False(t, cfg.Summary.CacheEnabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TRANSITION_POLICY", " Strict ")
	t.Setenv("EXAM_PASSING_RATIO", "1.5")
	t.Setenv("CAMPUS_ALPHA_CODE", "qc")
	t.Setenv("INTERVIEW_ONLY_CATEGORIES", "tesda, diploma ,")
	t.Setenv("REQUIRED_DOCUMENTS", "ched:Form 138|Birth Certificate;TESDA:Birth Certificate")
	t.Setenv("SUMMARY_CACHE_TTL", "not-a-duration")
	t.Setenv("JWT_AUDIENCE", "admissions-console, registrar")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, TransitionPolicyStrict, cfg.Admissions.TransitionPolicy)
	assert.Equal(t, 0.75, cfg.Admissions.ExamPassingRatio, "out of range ratio falls back")
	assert.Equal(t, "QC", cfg.Admissions.CampusAlphaCode)
	assert.Equal(t, []string{"TESDA", "DIPLOMA"}, cfg.Admissions.InterviewOnlyCategories)
	assert.Equal(t, []string{"Form 138", "Birth Certificate"}, cfg.Admissions.RequiredDocuments["CHED"])
	assert.Equal(t, 2*time.Minute, cfg.Summary.CacheTTL)
	assert.Equal(t, []string{"admissions-console", "registrar"}, cfg.JWT.Audience)
}

func TestParseRequiredDocuments(t *testing.T) {
	docs := ParseRequiredDocuments(" tesda : Birth Certificate | | Form 137 ;garbage;:orphan")
	assert.Equal(t, map[string][]string{"TESDA": {"Birth Certificate", "Form 137"}}, docs)
	assert.Empty(t, ParseRequiredDocuments(""))
}
