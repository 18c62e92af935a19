package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ApplicantStatus is the position of an applicant in the admission pipeline.
type ApplicantStatus string

// Pipeline statuses. The empty status only exists between intake insert and
// the first recorded transition.
const (
	ApplicantStatusNone            ApplicantStatus = ""
	ApplicantStatusPending         ApplicantStatus = "pending"
	ApplicantStatusApproved        ApplicantStatus = "approved"
	ApplicantStatusForEntranceExam ApplicantStatus = "for entrance exam"
	ApplicantStatusForInterview    ApplicantStatus = "for interview"
	ApplicantStatusForEnrollment   ApplicantStatus = "for enrollment"
	ApplicantStatusDeclined        ApplicantStatus = "declined"
	ApplicantStatusEnrolled        ApplicantStatus = "officially enrolled"
)

// ApplicantStatuses lists every status in pipeline order.
var ApplicantStatuses = []ApplicantStatus{
	ApplicantStatusPending,
	ApplicantStatusApproved,
	ApplicantStatusForEntranceExam,
	ApplicantStatusForInterview,
	ApplicantStatusForEnrollment,
	ApplicantStatusEnrolled,
	ApplicantStatusDeclined,
}

// Valid reports whether s is a known non-empty status.
func (s ApplicantStatus) Valid() bool {
	for _, known := range ApplicantStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further pipeline movement is expected.
func (s ApplicantStatus) Terminal() bool {
	return s == ApplicantStatusDeclined || s == ApplicantStatusEnrolled
}

// Program categories recognised by the pipeline.
const (
	CategoryCHED    = "CHED"
	CategoryTESDA   = "TESDA"
	CategoryDiploma = "DIPLOMA"
)

// NormalizeCategory upper-cases and trims a category name.
func NormalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Applicant is a prospective student moving through admissions.
type Applicant struct {
	ID               string          `db:"id" json:"id"`
	ExternalID       string          `db:"external_id" json:"external_id"`
	FullName         string          `db:"full_name" json:"full_name"`
	Email            string          `db:"email" json:"email"`
	Phone            string          `db:"phone" json:"phone"`
	BirthDate        *time.Time      `db:"birth_date" json:"birth_date,omitempty"`
	ProgramID        *string         `db:"program_id" json:"program_id,omitempty"`
	ProgramCategory  string          `db:"program_category" json:"program_category"`
	Status           ApplicantStatus `db:"status" json:"status"`
	StatusReason     string          `db:"status_reason" json:"status_reason"`
	IsBlacklisted    bool            `db:"is_blacklisted" json:"is_blacklisted"`
	AwaitingResource bool            `db:"awaiting_resource" json:"awaiting_resource"`
	StudentNumber    *string         `db:"student_number" json:"student_number,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// ApplicantFilter encapsulates allowed search parameters for listing applicants.
type ApplicantFilter struct {
	Status    ApplicantStatus
	Category  string
	Awaiting  *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StatusHistory is one recorded status transition.
type StatusHistory struct {
	ID          string          `db:"id" json:"id"`
	ApplicantID string          `db:"applicant_id" json:"applicant_id"`
	OldStatus   ApplicantStatus `db:"old_status" json:"old_status"`
	NewStatus   ApplicantStatus `db:"new_status" json:"new_status"`
	ReasonType  string          `db:"reason_type" json:"reason_type"`
	ReasonData  json.RawMessage `db:"reason_data" json:"reason_data"`
	ChangedBy   string          `db:"changed_by" json:"changed_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// StatusCount is an aggregate row for the pipeline summary.
type StatusCount struct {
	Status ApplicantStatus `db:"status" json:"status"`
	Total  int             `db:"total" json:"total"`
}

// PipelineSummary reports applicant counts per status.
type PipelineSummary struct {
	Counts           []StatusCount `json:"counts"`
	AwaitingResource int           `json:"awaiting_resource"`
	GeneratedAt      time.Time     `json:"generated_at"`
}
