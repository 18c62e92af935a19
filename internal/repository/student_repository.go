package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

const studentColumns = `id, student_number, user_id, full_name, email, phone, birth_date, active, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByNumberOrEmail looks a student up by student number first, then by email.
func (r *StudentRepository) FindByNumberOrEmail(ctx context.Context, studentNumber, email string) (*models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students
        WHERE ($1::text <> '' AND student_number = $1) OR ($2::text <> '' AND LOWER(email) = $2)
        ORDER BY CASE WHEN student_number = $1 THEN 0 ELSE 1 END
        LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentNumber, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (` + studentColumns + `)
        VALUES (:id, :student_number, :user_id, :full_name, :email, :phone, :birth_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// LinkUser attaches a portal account to a student.
func (r *StudentRepository) LinkUser(ctx context.Context, studentID, userID string) error {
	const query = `UPDATE students SET user_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, studentID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link student user: %w", err)
	}
	return nil
}

// NextSequence atomically increments and returns the student counter of a
// campus. The first call seeds it from the students already numbered for that
// campus. Values are never reused, even when students are removed.
func (r *StudentRepository) NextSequence(ctx context.Context, alphaCode, numericCode string) (int, error) {
	const query = `INSERT INTO student_number_sequences (campus_code, last_value)
        VALUES ($1::text || $2::text, 1 + (SELECT COUNT(*) FROM students WHERE student_number LIKE $1::text || '__' || $2::text || '%'))
        ON CONFLICT (campus_code) DO UPDATE SET last_value = student_number_sequences.last_value + 1
        RETURNING last_value`
	var next int
	if err := r.db.GetContext(ctx, &next, query, alphaCode, numericCode); err != nil {
		return 0, fmt.Errorf("next student sequence: %w", err)
	}
	return next, nil
}
