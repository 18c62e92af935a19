package models

// Reason types carried in ReasonData["reason_type"].
const (
	ReasonApplicationReceived         = "application_received"
	ReasonApplicationDeclined         = "application_declined"
	ReasonDocumentsVerified           = "documents_verified"
	ReasonDocumentInvalid             = "document_invalid"
	ReasonExamScheduled               = "exam_scheduled"
	ReasonExamPassed                  = "exam_passed"
	ReasonExamPassedAwaitingInterview = "exam_passed_awaiting_interview"
	ReasonExamFailed                  = "exam_failed"
	ReasonInterviewScheduled          = "interview_scheduled"
	ReasonInterviewRescheduled        = "interview_rescheduled"
	ReasonInterviewApproved           = "interview_approved"
	ReasonInterviewDeclined           = "interview_declined"
	ReasonOfficiallyEnrolled          = "officially_enrolled"
)

// Well-known ReasonData keys consumed by the mail collaborator.
const (
	ReasonKeyType            = "reason_type"
	ReasonKeyDocumentName    = "document_name"
	ReasonKeyRejectionReason = "rejection_reason"
	ReasonKeyExamDate        = "exam_date"
	ReasonKeyExamTime        = "exam_time"
	ReasonKeyScore           = "score"
	ReasonKeyTotalItems      = "total_items"
	ReasonKeyPassingScore    = "passing_score"
	ReasonKeyInterviewDate   = "interview_date"
	ReasonKeyInterviewTime   = "interview_time"
	ReasonKeyVenue           = "venue"
	ReasonKeyScheduleID      = "schedule_id"
	ReasonKeyRoom            = "room"
	ReasonKeyProgram         = "program"
	ReasonKeyNextStep        = "next_step"
	ReasonKeyStudentNumber   = "student_number"
	ReasonKeyDetails         = "details"
)

// ReasonData is the free-form payload attached to a status transition. The
// status engine passes it through untouched.
type ReasonData map[string]interface{}

// NewReason starts a payload with its discriminator set.
func NewReason(reasonType string) ReasonData {
	return ReasonData{ReasonKeyType: reasonType}
}

// Type returns the reason_type discriminator, or "".
func (r ReasonData) Type() string {
	if r == nil {
		return ""
	}
	if v, ok := r[ReasonKeyType].(string); ok {
		return v
	}
	return ""
}

// With sets key and returns r for chaining.
func (r ReasonData) With(key string, value interface{}) ReasonData {
	r[key] = value
	return r
}

// Merge copies every key of other into r, other wins on conflicts except for
// the discriminator.
func (r ReasonData) Merge(other ReasonData) ReasonData {
	for k, v := range other {
		if k == ReasonKeyType {
			continue
		}
		r[k] = v
	}
	return r
}
