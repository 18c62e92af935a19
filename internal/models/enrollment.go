package models

import "time"

// EnrollmentStatus represents the lifecycle of a student enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled EnrollmentStatus = "ENROLLED"
	EnrollmentStatusDropped  EnrollmentStatus = "DROPPED"
)

// Program is an offered course of study.
type Program struct {
	ID         string `db:"id" json:"id"`
	Code       string `db:"code" json:"code"`
	Name       string `db:"name" json:"name"`
	CategoryID *int64 `db:"category_id" json:"category_id,omitempty"`
}

// AcademicYear scopes enrollments and student numbers.
type AcademicYear struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	StartYear int    `db:"start_year" json:"start_year"`
	Active    bool   `db:"active" json:"active"`
}

// StudentEnrollment records a student's registration to a program for an academic year.
type StudentEnrollment struct {
	ID                  string           `db:"id" json:"id"`
	StudentID           string           `db:"student_id" json:"student_id"`
	ApplicantExternalID string           `db:"applicant_external_id" json:"applicant_external_id"`
	ProgramID           *string          `db:"program_id" json:"program_id,omitempty"`
	AcademicYearID      string           `db:"academic_year_id" json:"academic_year_id"`
	YearLevel           int              `db:"year_level" json:"year_level"`
	Semester            int              `db:"semester" json:"semester"`
	Status              EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt          time.Time        `db:"enrolled_at" json:"enrolled_at"`
}

// CourseCurriculum is the course plan for a program, year level and semester.
type CourseCurriculum struct {
	ID        string `db:"id" json:"id"`
	ProgramID string `db:"program_id" json:"program_id"`
	YearLevel int    `db:"year_level" json:"year_level"`
	Semester  int    `db:"semester" json:"semester"`
	Active    bool   `db:"active" json:"active"`
}

// CurriculumCourse is one course inside a curriculum.
type CurriculumCourse struct {
	CurriculumID string  `db:"curriculum_id" json:"curriculum_id"`
	CourseID     string  `db:"course_id" json:"course_id"`
	CourseCode   string  `db:"course_code" json:"course_code"`
	CourseTitle  string  `db:"course_title" json:"course_title"`
	Units        float64 `db:"units" json:"units"`
}

// EnrolledCourse places an enrollment into a course.
type EnrolledCourse struct {
	ID                  string    `db:"id" json:"id"`
	StudentEnrollmentID string    `db:"student_enrollment_id" json:"student_enrollment_id"`
	CourseID            string    `db:"course_id" json:"course_id"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}
