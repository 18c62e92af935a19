package models

import "time"

// Room is a physical exam venue.
type Room struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
}

// ExamSchedule is an entrance exam sitting in a room.
type ExamSchedule struct {
	ID                      string    `db:"id" json:"id"`
	ExamDate                time.Time `db:"exam_date" json:"exam_date"`
	StartTime               string    `db:"start_time" json:"start_time"`
	EndTime                 string    `db:"end_time" json:"end_time"`
	RoomID                  string    `db:"room_id" json:"room_id"`
	RoomName                string    `db:"room_name" json:"room_name"`
	Capacity                int       `db:"capacity" json:"capacity"`
	ApprovedApplicantsCount int       `db:"approved_applicants_count" json:"approved_applicants_count"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining returns free seats, never negative.
func (s ExamSchedule) Remaining() int {
	if s.ApprovedApplicantsCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.ApprovedApplicantsCount
}

// ExamAssignmentStatus tracks an applicant's exam seat.
type ExamAssignmentStatus string

const (
	ExamAssignmentAssigned  ExamAssignmentStatus = "Assigned"
	ExamAssignmentScheduled ExamAssignmentStatus = "Scheduled"
	ExamAssignmentAttended  ExamAssignmentStatus = "Attended"
)

// Exam remarks derived from the score.
const (
	ExamRemarkPassed = "passed"
	ExamRemarkFailed = "failed"
)

// ApplicantExamSchedule joins an applicant to an exam sitting.
type ApplicantExamSchedule struct {
	ID             string               `db:"id" json:"id"`
	ApplicantID    string               `db:"applicant_id" json:"applicant_id"`
	ExamScheduleID string               `db:"exam_schedule_id" json:"exam_schedule_id"`
	Score          *float64             `db:"score" json:"score,omitempty"`
	TotalItems     *int                 `db:"total_items" json:"total_items,omitempty"`
	Remarks        string               `db:"remarks" json:"remarks"`
	Status         ExamAssignmentStatus `db:"status" json:"status"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

// InterviewSchedule is an interview block with a seat limit.
type InterviewSchedule struct {
	ID            string    `db:"id" json:"id"`
	InterviewDate time.Time `db:"interview_date" json:"interview_date"`
	StartTime     string    `db:"start_time" json:"start_time"`
	EndTime       string    `db:"end_time" json:"end_time"`
	Venue         string    `db:"venue" json:"venue"`
	Capacity      int       `db:"capacity" json:"capacity"`
	UsedSlots     int       `db:"used_slots" json:"used_slots"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining returns free interview slots, never negative.
func (s InterviewSchedule) Remaining() int {
	if s.UsedSlots >= s.Capacity {
		return 0
	}
	return s.Capacity - s.UsedSlots
}

// InterviewAssignmentStatus tracks an applicant's interview slot.
type InterviewAssignmentStatus string

const (
	InterviewAssignmentScheduled InterviewAssignmentStatus = "Scheduled"
	InterviewAssignmentApproved  InterviewAssignmentStatus = "Approved"
	InterviewAssignmentDeclined  InterviewAssignmentStatus = "Declined"
)

// OccupiesCapacity reports whether a row in this state holds a slot.
// Declined rows release their slot.
func (s InterviewAssignmentStatus) OccupiesCapacity() bool {
	return s == InterviewAssignmentScheduled || s == InterviewAssignmentApproved
}

// ApplicantInterviewSchedule joins an applicant to an interview block. There is
// at most one row per applicant.
type ApplicantInterviewSchedule struct {
	ID                  string                    `db:"id" json:"id"`
	ApplicantID         string                    `db:"applicant_id" json:"applicant_id"`
	InterviewScheduleID string                    `db:"interview_schedule_id" json:"interview_schedule_id"`
	Status              InterviewAssignmentStatus `db:"status" json:"status"`
	DeclineReason       *string                   `db:"decline_reason" json:"decline_reason,omitempty"`
	CreatedAt           time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time                 `db:"updated_at" json:"updated_at"`
}
