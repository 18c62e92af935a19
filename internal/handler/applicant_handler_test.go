package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/middleware"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/response"
)

type applicantServiceMock struct {
	createResp    *models.Applicant
	createErr     error
	lastCreate    dto.CreateApplicantRequest
	lastActor     string
	listResp      []models.Applicant
	listPage      *models.Pagination
	lastQuery     dto.ApplicantQuery
	declineErr    error
	summaryResp   *models.PipelineSummary
	summaryHit    bool
	createCalled  bool
	declineCalled bool
}

func (m *applicantServiceMock) Create(ctx context.Context, req dto.CreateApplicantRequest, actor string) (*models.Applicant, error) {
	m.createCalled = true
	m.lastCreate = req
	m.lastActor = actor
	return m.createResp, m.createErr
}

func (m *applicantServiceMock) Get(ctx context.Context, id string) (*models.Applicant, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
	}
	return &models.Applicant{ID: id}, nil
}

func (m *applicantServiceMock) List(ctx context.Context, query dto.ApplicantQuery) ([]models.Applicant, *models.Pagination, error) {
	m.lastQuery = query
	return m.listResp, m.listPage, nil
}

func (m *applicantServiceMock) Decline(ctx context.Context, id string, req dto.DeclineApplicantRequest, actor string) (*models.Applicant, error) {
	m.declineCalled = true
	m.lastActor = actor
	if m.declineErr != nil {
		return nil, m.declineErr
	}
	return &models.Applicant{ID: id, Status: models.ApplicantStatusDeclined}, nil
}

func (m *applicantServiceMock) History(ctx context.Context, id string) ([]models.StatusHistory, error) {
	return []models.StatusHistory{{ApplicantID: id, NewStatus: models.ApplicantStatusPending}}, nil
}

func (m *applicantServiceMock) Summary(ctx context.Context) (*models.PipelineSummary, bool, error) {
	return m.summaryResp, m.summaryHit, nil
}

type documentServiceMock struct {
	reprocessResp *dto.GateResult
	reviewResp    *dto.DocumentReviewResult
	reviewErr     error
	bulkResp      *dto.BulkResult
	lastReview    dto.UpdateDocumentStatusRequest
	lastActor     string
}

func (m *documentServiceMock) Create(ctx context.Context, applicantID string, req dto.CreateDocumentRequest) (*models.AdmissionDocument, error) {
	return &models.AdmissionDocument{ApplicantID: applicantID, DocumentType: req.DocumentType, Status: models.DocumentStatusMissing}, nil
}

func (m *documentServiceMock) List(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error) {
	return nil, nil
}

func (m *documentServiceMock) Reprocess(ctx context.Context, applicantID, actor string) (*dto.GateResult, error) {
	m.lastActor = actor
	return m.reprocessResp, nil
}

func (m *documentServiceMock) UpdateStatus(ctx context.Context, id string, req dto.UpdateDocumentStatusRequest, actor string) (*dto.DocumentReviewResult, error) {
	m.lastReview = req
	m.lastActor = actor
	return m.reviewResp, m.reviewErr
}

func (m *documentServiceMock) BulkVerify(ctx context.Context, req dto.BulkVerifyRequest, actor string) (*dto.BulkResult, error) {
	return m.bulkResp, nil
}

func newHandlerContext(method, target string, body io.Reader, claims *models.JWTClaims, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Params = params
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func registrar() *models.JWTClaims {
	return &models.JWTClaims{UserID: "staff-1", Email: "registrar@school.test", Role: models.RoleRegistrar}
}

func readEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestApplicantHandlerCreate(t *testing.T) {
	mockSvc := &applicantServiceMock{createResp: &models.Applicant{ID: "a1", Status: models.ApplicantStatusPending}}
	handler := NewApplicantHandler(mockSvc, &documentServiceMock{})

	payload, _ := json.Marshal(dto.CreateApplicantRequest{FullName: "Ana Cruz", Email: "ana@example.com", ProgramCategory: "CHED"})
	c, w := newHandlerContext(http.MethodPost, "/applicants", bytes.NewReader(payload), registrar())

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
	assert.Equal(t, "CHED", mockSvc.lastCreate.ProgramCategory)
	assert.Equal(t, "registrar@school.test", mockSvc.lastActor)
}

func TestApplicantHandlerCreateInvalidBody(t *testing.T) {
	mockSvc := &applicantServiceMock{}
	handler := NewApplicantHandler(mockSvc, &documentServiceMock{})

	c, w := newHandlerContext(http.MethodPost, "/applicants", bytes.NewBufferString(`{"full_name":`), registrar())

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.createCalled)
	assert.Equal(t, appErrors.ErrValidation.Code, readEnvelope(t, w).Error.Code)
}

func TestApplicantHandlerListBindsFilters(t *testing.T) {
	mockSvc := &applicantServiceMock{
		listResp: []models.Applicant{{ID: "a1"}},
		listPage: &models.Pagination{Page: 2, PageSize: 10, TotalCount: 11},
	}
	handler := NewApplicantHandler(mockSvc, &documentServiceMock{})

	c, w := newHandlerContext(http.MethodGet, "/applicants?status=for%20interview&awaiting=true&page=2&page_size=10", nil, registrar())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "for interview", mockSvc.lastQuery.Status)
	require.NotNil(t, mockSvc.lastQuery.Awaiting)
	assert.True(t, *mockSvc.lastQuery.Awaiting)
	assert.Equal(t, 2, mockSvc.lastQuery.Page)
	env := readEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 11, env.Pagination.TotalCount)
}

func TestApplicantHandlerGetNotFound(t *testing.T) {
	handler := NewApplicantHandler(&applicantServiceMock{}, &documentServiceMock{})

	c, w := newHandlerContext(http.MethodGet, "/applicants/missing", nil, registrar(), gin.Param{Key: "id", Value: "missing"})

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplicantHandlerDeclineConflict(t *testing.T) {
	mockSvc := &applicantServiceMock{declineErr: appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move applicant from enrolled to declined")}
	handler := NewApplicantHandler(mockSvc, &documentServiceMock{})

	c, w := newHandlerContext(http.MethodPost, "/applicants/a1/decline", bytes.NewBufferString(`{"reason":"withdrew"}`), registrar(), gin.Param{Key: "id", Value: "a1"})

	handler.Decline(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, mockSvc.declineCalled)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, readEnvelope(t, w).Error.Code)
}

func TestApplicantHandlerReprocessSurfacesWarnings(t *testing.T) {
	docs := &documentServiceMock{reprocessResp: &dto.GateResult{
		ApplicantID: "a1",
		Outcome:     dto.GateOutcomeAwaitingInterview,
		Status:      models.ApplicantStatusPending,
		Warnings:    []string{"no interview slot available"},
	}}
	handler := NewApplicantHandler(&applicantServiceMock{}, docs)

	c, w := newHandlerContext(http.MethodPost, "/applicants/a1/reprocess", nil, nil, gin.Param{Key: "id", Value: "a1"})

	handler.Reprocess(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "system", docs.lastActor)
	env := readEnvelope(t, w)
	assert.Equal(t, []interface{}{"no interview slot available"}, env.Meta["warnings"])
}

func TestApplicantHandlerSummaryReportsCacheHit(t *testing.T) {
	mockSvc := &applicantServiceMock{
		summaryResp: &models.PipelineSummary{AwaitingResource: 2, GeneratedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
		summaryHit:  true,
	}
	handler := NewApplicantHandler(mockSvc, &documentServiceMock{})

	c, w := newHandlerContext(http.MethodGet, "/applicants/summary", nil, registrar())

	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	env := readEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	data := env.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["awaiting_resource"])
}

func TestApplicantHandlerCreateDocument(t *testing.T) {
	handler := NewApplicantHandler(&applicantServiceMock{}, &documentServiceMock{})

	c, w := newHandlerContext(http.MethodPost, "/applicants/a1/documents", bytes.NewBufferString(`{"document_type":"Form 138"}`), registrar(), gin.Param{Key: "id", Value: "a1"})

	handler.CreateDocument(c)
	require.Equal(t, http.StatusCreated, w.Code)
	data := readEnvelope(t, w).Data.(map[string]interface{})
	assert.Equal(t, "a1", data["applicant_id"])
}
