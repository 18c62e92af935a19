package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/service"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/response"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.token = token
	return s.claims, s.err
}

type recordingAuditWriter struct {
	logs []*models.AuditLog
}

func (r *recordingAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleRegistrar}

	newRouter := func(v TokenValidator) *gin.Engine {
		r := gin.New()
		r.GET("/me", JWT(v), func(c *gin.Context) {
			value, _ := c.Get(ContextUserKey)
			c.JSON(http.StatusOK, gin.H{"user": value.(*models.JWTClaims).UserID})
		})
		return r
	}

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(&stubValidator{claims: claims}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Basic abc")
		newRouter(&stubValidator{claims: claims}).ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid authorization header", decodeEnvelope(t, w).Error.Message)
	})

	t.Run("rejected token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer bad")
		newRouter(&stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}).ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		validator := &stubValidator{claims: claims}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "bearer good-token")
		newRouter(validator).ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "good-token", validator.token)
		assert.Contains(t, w.Body.String(), `"user":"u1"`)
	})
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		claims *models.JWTClaims
		want   int
	}{
		{name: "no claims", want: http.StatusUnauthorized},
		{name: "allowed role", claims: &models.JWTClaims{UserID: "u1", Role: models.RoleRegistrar}, want: http.StatusOK},
		{name: "superadmin always allowed", claims: &models.JWTClaims{UserID: "u2", Role: models.RoleSuperAdmin}, want: http.StatusOK},
		{name: "other role", claims: &models.JWTClaims{UserID: "u3", Role: models.RoleStudent}, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/applicants", func(c *gin.Context) {
				if tc.claims != nil {
					c.Set(ContextUserKey, tc.claims)
				}
				c.Next()
			}, RequireRoles(models.RoleAdmin, models.RoleRegistrar), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/applicants", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &recordingAuditWriter{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "staff-1", Role: models.RoleRegistrar})
		c.Next()
	})
	r.POST("/applicants/:id/decline", Audit(writer, models.AuditActionApplicantDecline, "applicant"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/applicants/:id/enroll", Audit(writer, models.AuditActionEnroll, "applicant"), func(c *gin.Context) {
		response.Error(c, appErrors.ErrPreconditionFailed)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/applicants/a1/decline", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/applicants/a1/enroll", nil))
	require.Equal(t, http.StatusPreconditionFailed, w.Code)

	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, models.AuditActionApplicantDecline, entry.Action)
	assert.Equal(t, "applicant", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "staff-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "a1", *entry.ResourceID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.NewValues, &body))
	assert.Equal(t, "/applicants/:id/decline", body["path"])
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/summary", func(c *gin.Context) {
		SetCacheHit(c, true)
		response.JSON(c, http.StatusOK, gin.H{"total": 3}, nil, ExtractMeta(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
}

func TestResponseMetaCarriesWarnings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.POST("/reprocess", func(c *gin.Context) {
		AddWarnings(c, "no interview schedule has free capacity")
		response.JSON(c, http.StatusOK, gin.H{"ok": true}, nil, ExtractMeta(c))
	})
	r.POST("/quiet", func(c *gin.Context) {
		AddWarnings(c)
		response.JSON(c, http.StatusOK, gin.H{"ok": true}, nil, ExtractMeta(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reprocess", nil))
	env := decodeEnvelope(t, w)
	assert.Equal(t, []interface{}{"no interview schedule has free capacity"}, env.Meta["warnings"])
	assert.Contains(t, env.Meta, "processing_time_ms")
	assert.NotContains(t, env.Meta, "cache_hit")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/quiet", nil))
	assert.Nil(t, decodeEnvelope(t, w).Meta)
}

func TestMetricsObservesRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/applicants/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a1", "a2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/applicants/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	count, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "route template keeps label cardinality at one series")
}

func TestMetricsFoldsUnmatchedAndSkipsHealthChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var observed []string
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					observed = append(observed, label.GetValue())
				}
			}
			assert.Equal(t, 2.0, metric.GetCounter().GetValue())
		}
	}
	assert.Equal(t, []string{"unmatched"}, observed)
}

func TestMetricsWithoutService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
