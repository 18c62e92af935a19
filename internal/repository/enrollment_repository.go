package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

const studentEnrollmentColumns = `id, student_id, applicant_external_id, program_id, academic_year_id, year_level, semester, status, enrolled_at`

// EnrollmentRepository handles persistence of student enrollments, curricula
// and course placements.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByApplicantExternalID returns the enrollment created for an applicant.
func (r *EnrollmentRepository) FindByApplicantExternalID(ctx context.Context, externalID string) (*models.StudentEnrollment, error) {
	const query = `SELECT ` + studentEnrollmentColumns + ` FROM student_enrollments WHERE applicant_external_id = $1`
	var enrollment models.StudentEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, externalID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.StudentEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	const query = `INSERT INTO student_enrollments (` + studentEnrollmentColumns + `)
        VALUES (:id, :student_id, :applicant_external_id, :program_id, :academic_year_id, :year_level, :semester, :status, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create student enrollment: %w", err)
	}
	return nil
}

// FindActiveCurriculum resolves the course plan for a program, year level and semester.
func (r *EnrollmentRepository) FindActiveCurriculum(ctx context.Context, programID string, yearLevel, semester int) (*models.CourseCurriculum, error) {
	const query = `SELECT id, program_id, year_level, semester, active FROM course_curricula
        WHERE program_id = $1 AND year_level = $2 AND semester = $3 AND active = TRUE
        ORDER BY id LIMIT 1`
	var curriculum models.CourseCurriculum
	if err := r.db.GetContext(ctx, &curriculum, query, programID, yearLevel, semester); err != nil {
		return nil, err
	}
	return &curriculum, nil
}

// ListCurriculumCourses returns the courses of a curriculum.
func (r *EnrollmentRepository) ListCurriculumCourses(ctx context.Context, curriculumID string) ([]models.CurriculumCourse, error) {
	const query = `SELECT curriculum_id, course_id, course_code, course_title, units FROM curriculum_courses WHERE curriculum_id = $1 ORDER BY course_code`
	var courses []models.CurriculumCourse
	if err := r.db.SelectContext(ctx, &courses, query, curriculumID); err != nil {
		return nil, fmt.Errorf("list curriculum courses: %w", err)
	}
	return courses, nil
}

// ListEnrolledCourseIDs returns the course ids an enrollment is already placed in.
func (r *EnrollmentRepository) ListEnrolledCourseIDs(ctx context.Context, enrollmentID string) ([]string, error) {
	const query = `SELECT course_id FROM enrolled_courses WHERE student_enrollment_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return ids, nil
}

// AddCourses places an enrollment into every given course, skipping ones already present.
// It returns the rows actually inserted.
func (r *EnrollmentRepository) AddCourses(ctx context.Context, enrollmentID string, courseIDs []string) (created []models.EnrolledCourse, err error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrolled course transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO enrolled_courses (id, student_enrollment_id, course_id, created_at) VALUES ($1, $2, $3, $4)
        ON CONFLICT (student_enrollment_id, course_id) DO NOTHING`
	for _, courseID := range courseIDs {
		row := models.EnrolledCourse{ID: uuid.NewString(), StudentEnrollmentID: enrollmentID, CourseID: courseID, CreatedAt: now}
		res, execErr := tx.ExecContext(ctx, query, row.ID, row.StudentEnrollmentID, row.CourseID, row.CreatedAt)
		if execErr != nil {
			err = fmt.Errorf("insert enrolled course %s: %w", courseID, execErr)
			return nil, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			created = append(created, row)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrolled courses: %w", err)
	}
	return created, nil
}
