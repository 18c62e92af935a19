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

type examScheduleService interface {
	Create(ctx context.Context, req dto.ExamScheduleRequest) (*models.ExamSchedule, error)
	Update(ctx context.Context, id string, req dto.ExamScheduleRequest) (*models.ExamSchedule, error)
	Remaining(ctx context.Context, id string) (*dto.CapacityResponse, error)
	Assign(ctx context.Context, scheduleID, applicantID, actor string) (*models.ApplicantExamSchedule, error)
	BulkAssign(ctx context.Context, scheduleID string, req dto.BulkAssignRequest, actor string) (*dto.BulkResult, error)
	RecordScore(ctx context.Context, assignmentID string, req dto.RecordScoreRequest, actor string) (*dto.ExamOutcome, error)
}

// ExamScheduleHandler exposes entrance exam endpoints.
type ExamScheduleHandler struct {
	exams examScheduleService
}

// NewExamScheduleHandler constructs ExamScheduleHandler.
func NewExamScheduleHandler(exams examScheduleService) *ExamScheduleHandler {
	return &ExamScheduleHandler{exams: exams}
}

// Create godoc
// @Summary Create an exam schedule
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.ExamScheduleRequest true "Exam schedule"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exam-schedules [post]
func (h *ExamScheduleHandler) Create(c *gin.Context) {
	var req dto.ExamScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam schedule payload"))
		return
	}
	schedule, err := h.exams.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Update an exam schedule
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam schedule ID"
// @Param payload body dto.ExamScheduleRequest true "Exam schedule"
// @Success 200 {object} response.Envelope
// @Router /exam-schedules/{id} [put]
func (h *ExamScheduleHandler) Update(c *gin.Context) {
	var req dto.ExamScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam schedule payload"))
		return
	}
	schedule, err := h.exams.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Capacity godoc
// @Summary Remaining seats of an exam schedule
// @Tags Exams
// @Produce json
// @Param id path string true "Exam schedule ID"
// @Success 200 {object} response.Envelope
// @Router /exam-schedules/{id}/capacity [get]
func (h *ExamScheduleHandler) Capacity(c *gin.Context) {
	capacity, err := h.exams.Remaining(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}

// Assign godoc
// @Summary Seat an applicant on an exam schedule
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam schedule ID"
// @Param payload body dto.AssignApplicantRequest true "Applicant"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exam-schedules/{id}/assign [post]
func (h *ExamScheduleHandler) Assign(c *gin.Context) {
	var req dto.AssignApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ApplicantID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "applicant_id is required"))
		return
	}
	assignment, err := h.exams.Assign(c.Request.Context(), c.Param("id"), req.ApplicantID, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// BulkAssign godoc
// @Summary Seat several applicants on an exam schedule
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam schedule ID"
// @Param payload body dto.BulkAssignRequest true "Applicants"
// @Success 200 {object} response.Envelope
// @Router /exam-schedules/{id}/bulk-assign [post]
func (h *ExamScheduleHandler) BulkAssign(c *gin.Context) {
	var req dto.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk assign payload"))
		return
	}
	report, err := h.exams.BulkAssign(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// RecordScore godoc
// @Summary Record an exam score
// @Description Passing moves the applicant to interview, failing declines and blacklists them.
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam assignment ID"
// @Param payload body dto.RecordScoreRequest true "Score"
// @Success 200 {object} response.Envelope
// @Router /exam-assignments/{id}/score [put]
func (h *ExamScheduleHandler) RecordScore(c *gin.Context) {
	var req dto.RecordScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score payload"))
		return
	}
	outcome, err := h.exams.RecordScore(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.AddWarnings(c, outcome.Warnings...)
	response.JSON(c, http.StatusOK, outcome, nil, middleware.ExtractMeta(c))
}
