package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/middleware"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, applicantID string, req dto.EnrollRequest, actor string) (*dto.EnrollmentResult, error)
	BulkEnroll(ctx context.Context, req dto.BulkEnrollRequest, actor string) (*dto.BulkEnrollReport, error)
}

// EnrollmentHandler exposes official enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll godoc
// @Summary Officially enroll an applicant
// @Description Creates the student, portal account, enrollment and curriculum courses. Safe to retry.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.EnrollRequest false "Academic context"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applicants/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
			return
		}
	}
	result, err := h.enrollments.Enroll(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	var warnings []string
	if result.NeedsManualReview {
		warnings = append(warnings, "courses need manual review: "+result.ManualReviewReason)
	}
	middleware.AddWarnings(c, warnings...)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// BulkEnroll godoc
// @Summary Officially enroll several applicants
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.BulkEnrollRequest true "Applicants"
// @Success 200 {object} response.Envelope
// @Router /enrollments/bulk [post]
func (h *EnrollmentHandler) BulkEnroll(c *gin.Context) {
	var req dto.BulkEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk enrollment payload"))
		return
	}
	report, err := h.enrollments.BulkEnroll(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
