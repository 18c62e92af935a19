package dto

import "github.com/noah-isme/admissions-api/internal/models"

// EnrollRequest selects the academic context of an official enrollment.
// AcademicYearID falls back to the active academic year.
type EnrollRequest struct {
	AcademicYearID string `json:"academic_year_id"`
	YearLevel      int    `json:"year_level" validate:"omitempty,min=1,max=6"`
	Semester       int    `json:"semester" validate:"omitempty,min=1,max=3"`
}

// BulkEnrollRequest enrolls several applicants with the same academic context.
type BulkEnrollRequest struct {
	ApplicantIDs []string `json:"applicant_ids" validate:"required,min=1,max=200,dive,required"`
	EnrollRequest
}

// ManualReviewItem flags an enrolled student whose courses were not assigned.
type ManualReviewItem struct {
	ApplicantID   string `json:"applicant_id"`
	StudentNumber string `json:"student_number"`
	Reason        string `json:"reason"`
}

// BulkEnrollReport extends the bulk result with the manual review list.
type BulkEnrollReport struct {
	BulkResult
	ManualReview []ManualReviewItem `json:"manual_review"`
}

// PortalCredentials is the one-time login of a newly created student account.
type PortalCredentials struct {
	Email             string `json:"email"`
	TemporaryPassword string `json:"temporary_password"`
}

// EnrollmentResult is what the enrollment materializer produced or found.
type EnrollmentResult struct {
	Student            *models.Student           `json:"student"`
	Enrollment         *models.StudentEnrollment `json:"enrollment"`
	CreatedCourses     []models.EnrolledCourse   `json:"created_courses"`
	NeedsManualReview  bool                      `json:"needs_manual_review"`
	ManualReviewReason string                    `json:"manual_review_reason,omitempty"`
	Portal             *PortalCredentials        `json:"portal,omitempty"`
}
