package dto

import "github.com/noah-isme/admissions-api/internal/models"

// ExamScheduleRequest creates or edits an exam sitting. Capacity defaults to
// the room capacity when omitted.
type ExamScheduleRequest struct {
	ExamDate  string `json:"exam_date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	RoomID    string `json:"room_id" validate:"required"`
	Capacity  *int   `json:"capacity" validate:"omitempty,min=0"`
}

// InterviewScheduleRequest creates or edits an interview block.
type InterviewScheduleRequest struct {
	InterviewDate string `json:"interview_date" validate:"required,datetime=2006-01-02"`
	StartTime     string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime       string `json:"end_time" validate:"required,datetime=15:04"`
	Venue         string `json:"venue" validate:"required,max=200"`
	Capacity      int    `json:"capacity" validate:"min=0"`
}

// AssignApplicantRequest places one applicant on a schedule.
type AssignApplicantRequest struct {
	ApplicantID string `json:"applicant_id" validate:"required"`
}

// BulkAssignRequest places several applicants on a schedule.
type BulkAssignRequest struct {
	ApplicantIDs []string `json:"applicant_ids" validate:"required,min=1,max=200,dive,required"`
}

// RecordScoreRequest records an exam result. TotalItems falls back to the
// configured default when omitted.
type RecordScoreRequest struct {
	Score      *float64 `json:"score" validate:"required,min=0"`
	TotalItems *int     `json:"total_items" validate:"omitempty,min=1"`
}

// DeclineInterviewRequest carries the interviewer's reason.
type DeclineInterviewRequest struct {
	Reason string `json:"reason"`
}

// CapacityResponse is the capacity resolver read for a schedule.
type CapacityResponse struct {
	ScheduleID string `json:"schedule_id"`
	Capacity   int    `json:"capacity"`
	Used       int    `json:"used"`
	Remaining  int    `json:"remaining"`
}

// ExamOutcome is the result of recording a score.
type ExamOutcome struct {
	Assignment      *models.ApplicantExamSchedule      `json:"assignment"`
	PassingScore    float64                            `json:"passing_score"`
	Remarks         string                             `json:"remarks"`
	ApplicantStatus models.ApplicantStatus             `json:"applicant_status"`
	Interview       *models.ApplicantInterviewSchedule `json:"interview,omitempty"`
	Unchanged       bool                               `json:"unchanged"`
	Warnings        []string                           `json:"-"`
}

// InterviewDecisionResult is returned by approve/decline.
type InterviewDecisionResult struct {
	Assignment      *models.ApplicantInterviewSchedule `json:"assignment"`
	ApplicantStatus models.ApplicantStatus             `json:"applicant_status"`
}
