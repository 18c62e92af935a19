package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/response"
)

type interviewScheduleService interface {
	Create(ctx context.Context, req dto.InterviewScheduleRequest) (*models.InterviewSchedule, error)
	Update(ctx context.Context, id string, req dto.InterviewScheduleRequest) (*models.InterviewSchedule, error)
	Remaining(ctx context.Context, id string) (*dto.CapacityResponse, error)
	Assign(ctx context.Context, scheduleID, applicantID, actor string) (*models.ApplicantInterviewSchedule, error)
	ProcessQueue(ctx context.Context, actor string) (*dto.QueueReport, error)
	Approve(ctx context.Context, assignmentID, actor string) (*dto.InterviewDecisionResult, error)
	Decline(ctx context.Context, assignmentID string, req dto.DeclineInterviewRequest, actor string) (*dto.InterviewDecisionResult, error)
}

// InterviewScheduleHandler exposes interview endpoints.
type InterviewScheduleHandler struct {
	interviews interviewScheduleService
}

// NewInterviewScheduleHandler constructs InterviewScheduleHandler.
func NewInterviewScheduleHandler(interviews interviewScheduleService) *InterviewScheduleHandler {
	return &InterviewScheduleHandler{interviews: interviews}
}

// Create godoc
// @Summary Create an interview schedule
// @Tags Interviews
// @Accept json
// @Produce json
// @Param payload body dto.InterviewScheduleRequest true "Interview schedule"
// @Success 201 {object} response.Envelope
// @Router /interview-schedules [post]
func (h *InterviewScheduleHandler) Create(c *gin.Context) {
	var req dto.InterviewScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid interview schedule payload"))
		return
	}
	schedule, err := h.interviews.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Update an interview schedule
// @Tags Interviews
// @Accept json
// @Produce json
// @Param id path string true "Interview schedule ID"
// @Param payload body dto.InterviewScheduleRequest true "Interview schedule"
// @Success 200 {object} response.Envelope
// @Router /interview-schedules/{id} [put]
func (h *InterviewScheduleHandler) Update(c *gin.Context) {
	var req dto.InterviewScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid interview schedule payload"))
		return
	}
	schedule, err := h.interviews.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Capacity godoc
// @Summary Remaining slots of an interview schedule
// @Tags Interviews
// @Produce json
// @Param id path string true "Interview schedule ID"
// @Success 200 {object} response.Envelope
// @Router /interview-schedules/{id}/capacity [get]
func (h *InterviewScheduleHandler) Capacity(c *gin.Context) {
	capacity, err := h.interviews.Remaining(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}

// Assign godoc
// @Summary Place an applicant on an interview schedule
// @Tags Interviews
// @Accept json
// @Produce json
// @Param id path string true "Interview schedule ID"
// @Param payload body dto.AssignApplicantRequest true "Applicant"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /interview-schedules/{id}/assign [post]
func (h *InterviewScheduleHandler) Assign(c *gin.Context) {
	var req dto.AssignApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ApplicantID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "applicant_id is required"))
		return
	}
	assignment, err := h.interviews.Assign(c.Request.Context(), c.Param("id"), req.ApplicantID, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// ProcessQueue godoc
// @Summary Place applicants waiting on interview capacity
// @Tags Interviews
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /interview-schedules/process-queue [post]
func (h *InterviewScheduleHandler) ProcessQueue(c *gin.Context) {
	report, err := h.interviews.ProcessQueue(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Approve godoc
// @Summary Approve an interview
// @Tags Interviews
// @Produce json
// @Param id path string true "Interview assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /interview-assignments/{id}/approve [post]
func (h *InterviewScheduleHandler) Approve(c *gin.Context) {
	result, err := h.interviews.Approve(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Decline godoc
// @Summary Decline an interview
// @Tags Interviews
// @Accept json
// @Produce json
// @Param id path string true "Interview assignment ID"
// @Param payload body dto.DeclineInterviewRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /interview-assignments/{id}/decline [post]
func (h *InterviewScheduleHandler) Decline(c *gin.Context) {
	var req dto.DeclineInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decline payload"))
		return
	}
	result, err := h.interviews.Decline(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
