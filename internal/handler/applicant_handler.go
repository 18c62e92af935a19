package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/middleware"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/response"
)

type applicantService interface {
	Create(ctx context.Context, req dto.CreateApplicantRequest, actor string) (*models.Applicant, error)
	Get(ctx context.Context, id string) (*models.Applicant, error)
	List(ctx context.Context, query dto.ApplicantQuery) ([]models.Applicant, *models.Pagination, error)
	Decline(ctx context.Context, id string, req dto.DeclineApplicantRequest, actor string) (*models.Applicant, error)
	History(ctx context.Context, id string) ([]models.StatusHistory, error)
	Summary(ctx context.Context) (*models.PipelineSummary, bool, error)
}

type applicantDocumentService interface {
	Create(ctx context.Context, applicantID string, req dto.CreateDocumentRequest) (*models.AdmissionDocument, error)
	List(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error)
	Reprocess(ctx context.Context, applicantID, actor string) (*dto.GateResult, error)
}

// ApplicantHandler exposes applicant intake and review endpoints.
type ApplicantHandler struct {
	applicants applicantService
	documents  applicantDocumentService
}

// NewApplicantHandler constructs ApplicantHandler.
func NewApplicantHandler(applicants applicantService, documents applicantDocumentService) *ApplicantHandler {
	return &ApplicantHandler{applicants: applicants, documents: documents}
}

// Create godoc
// @Summary Register an applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param payload body dto.CreateApplicantRequest true "Applicant payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /applicants [post]
func (h *ApplicantHandler) Create(c *gin.Context) {
	var req dto.CreateApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid applicant payload"))
		return
	}
	applicant, err := h.applicants.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, applicant)
}

// List godoc
// @Summary List applicants
// @Tags Applicants
// @Produce json
// @Param status query string false "Pipeline status"
// @Param category query string false "Program category"
// @Param awaiting query bool false "Only applicants waiting on capacity"
// @Param search query string false "Name, email or applicant number"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applicants [get]
func (h *ApplicantHandler) List(c *gin.Context) {
	var query dto.ApplicantQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.applicants.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an applicant
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applicants/{id} [get]
func (h *ApplicantHandler) Get(c *gin.Context) {
	applicant, err := h.applicants.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// Decline godoc
// @Summary Decline an applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.DeclineApplicantRequest true "Decline reason"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applicants/{id}/decline [post]
func (h *ApplicantHandler) Decline(c *gin.Context) {
	var req dto.DeclineApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decline payload"))
		return
	}
	applicant, err := h.applicants.Decline(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// History godoc
// @Summary Status history of an applicant
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/history [get]
func (h *ApplicantHandler) History(c *gin.Context) {
	items, err := h.applicants.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Reprocess godoc
// @Summary Re-run the document verification gate
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/reprocess [post]
func (h *ApplicantHandler) Reprocess(c *gin.Context) {
	result, err := h.documents.Reprocess(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.AddWarnings(c, result.Warnings...)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// CreateDocument godoc
// @Summary Add a document requirement
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.CreateDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Router /applicants/{id}/documents [post]
func (h *ApplicantHandler) CreateDocument(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}
	doc, err := h.documents.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// ListDocuments godoc
// @Summary List applicant documents
// @Tags Documents
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/documents [get]
func (h *ApplicantHandler) ListDocuments(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Summary godoc
// @Summary Applicant counts per pipeline status
// @Tags Applicants
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions/summary [get]
func (h *ApplicantHandler) Summary(c *gin.Context) {
	summary, hit, err := h.applicants.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
