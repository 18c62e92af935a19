package dto

import "github.com/noah-isme/admissions-api/internal/models"

// GateOutcome describes what the document verification gate did.
type GateOutcome string

const (
	GateOutcomeIncomplete        GateOutcome = "documents_incomplete"
	GateOutcomeNotEligible       GateOutcome = "not_eligible"
	GateOutcomeAdvanced          GateOutcome = "advanced"
	GateOutcomeUnchanged         GateOutcome = "unchanged"
	GateOutcomeAwaitingInterview GateOutcome = "awaiting_interview"
)

// GateResult reports a single gate evaluation.
type GateResult struct {
	ApplicantID  string                             `json:"applicant_id"`
	Category     string                             `json:"category"`
	Outcome      GateOutcome                        `json:"outcome"`
	Status       models.ApplicantStatus             `json:"status"`
	Transitioned bool                               `json:"transitioned"`
	Interview    *models.ApplicantInterviewSchedule `json:"interview,omitempty"`
	Warnings     []string                           `json:"warnings,omitempty"`
}

// QueueReport summarises a drain of applicants waiting on interview capacity.
type QueueReport struct {
	Processed    int         `json:"processed"`
	Assigned     int         `json:"assigned"`
	StillWaiting int         `json:"still_waiting"`
	Cleared      int         `json:"cleared"`
	Failed       []BulkError `json:"failed"`
}
