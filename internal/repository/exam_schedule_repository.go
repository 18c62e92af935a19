package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

// ErrCapacityReached is returned when a schedule has no free seat left at the
// time the assignment is attempted under lock.
var ErrCapacityReached = errors.New("schedule capacity reached")

const examAssignmentColumns = `id, applicant_id, exam_schedule_id, score, total_items, remarks, status, created_at, updated_at`

// ExamScheduleRepository persists exam sittings, rooms and exam seat assignments.
type ExamScheduleRepository struct {
	db *sqlx.DB
}

// NewExamScheduleRepository constructs the repository.
func NewExamScheduleRepository(db *sqlx.DB) *ExamScheduleRepository {
	return &ExamScheduleRepository{db: db}
}

// FindRoom returns a room by id.
func (r *ExamScheduleRepository) FindRoom(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, name, capacity FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// Create inserts an exam schedule.
func (r *ExamScheduleRepository) Create(ctx context.Context, schedule *models.ExamSchedule) error {
	now := time.Now().UTC()
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO exam_schedules (id, exam_date, start_time, end_time, room_id, capacity, created_at, updated_at)
        VALUES (:id, :exam_date, :start_time, :end_time, :room_id, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create exam schedule: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an exam schedule.
func (r *ExamScheduleRepository) Update(ctx context.Context, schedule *models.ExamSchedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exam_schedules SET exam_date = :exam_date, start_time = :start_time, end_time = :end_time, room_id = :room_id, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update exam schedule: %w", err)
	}
	return nil
}

// FindByID returns an exam schedule with its room name and current seat count.
func (r *ExamScheduleRepository) FindByID(ctx context.Context, id string) (*models.ExamSchedule, error) {
	const query = `SELECT s.id, s.exam_date, s.start_time, s.end_time, s.room_id, COALESCE(rm.name, '') AS room_name, s.capacity,
        (SELECT COUNT(*) FROM applicant_exam_schedules a WHERE a.exam_schedule_id = s.id) AS approved_applicants_count,
        s.created_at, s.updated_at
        FROM exam_schedules s
        LEFT JOIN rooms rm ON rm.id = s.room_id
        WHERE s.id = $1`
	var schedule models.ExamSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindOverlapping lists schedules in the same room and date whose time window
// intersects [start, end). excludeID skips the schedule being edited.
func (r *ExamScheduleRepository) FindOverlapping(ctx context.Context, roomID string, date time.Time, start, end, excludeID string) ([]models.ExamSchedule, error) {
	query := `SELECT id, exam_date, start_time, end_time, room_id, capacity, created_at, updated_at
        FROM exam_schedules
        WHERE room_id = $1 AND exam_date = $2 AND start_time < $3 AND end_time > $4`
	args := []interface{}{roomID, date, end, start}
	if excludeID != "" {
		query += " AND id <> $5"
		args = append(args, excludeID)
	}
	var schedules []models.ExamSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping exam schedules: %w", err)
	}
	return schedules, nil
}

// Assign seats an applicant on a schedule under a row lock on the schedule.
// A repeated call for the same pair returns the existing row with created=false.
// A not-yet-attended seat on another schedule is moved rather than duplicated.
func (r *ExamScheduleRepository) Assign(ctx context.Context, scheduleID, applicantID string) (assignment *models.ApplicantExamSchedule, created bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin exam assignment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	if err = tx.GetContext(ctx, &capacity, `SELECT capacity FROM exam_schedules WHERE id = $1 FOR UPDATE`, scheduleID); err != nil {
		return nil, false, err
	}

	var existing models.ApplicantExamSchedule
	err = tx.GetContext(ctx, &existing, `SELECT `+examAssignmentColumns+` FROM applicant_exam_schedules WHERE applicant_id = $1 AND exam_schedule_id = $2`, applicantID, scheduleID)
	switch {
	case err == nil:
		if err = tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit exam assignment: %w", err)
		}
		return &existing, false, nil
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	default:
		return nil, false, fmt.Errorf("load exam assignment: %w", err)
	}

	var used int
	if err = tx.GetContext(ctx, &used, `SELECT COUNT(*) FROM applicant_exam_schedules WHERE exam_schedule_id = $1`, scheduleID); err != nil {
		return nil, false, fmt.Errorf("count exam seats: %w", err)
	}
	if used >= capacity {
		err = ErrCapacityReached
		return nil, false, err
	}

	now := time.Now().UTC()
	var pendingID string
	err = tx.GetContext(ctx, &pendingID, `SELECT id FROM applicant_exam_schedules WHERE applicant_id = $1 AND status <> $2 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`, applicantID, models.ExamAssignmentAttended)
	switch {
	case err == nil:
		var moved models.ApplicantExamSchedule
		if err = tx.GetContext(ctx, &moved, `UPDATE applicant_exam_schedules SET exam_schedule_id = $2, status = $3, updated_at = $4 WHERE id = $1 RETURNING `+examAssignmentColumns,
			pendingID, scheduleID, models.ExamAssignmentAssigned, now); err != nil {
			return nil, false, fmt.Errorf("move exam assignment: %w", err)
		}
		assignment = &moved
	case errors.Is(err, sql.ErrNoRows):
		err = nil
		assignment = &models.ApplicantExamSchedule{
			ID:             uuid.NewString(),
			ApplicantID:    applicantID,
			ExamScheduleID: scheduleID,
			Status:         models.ExamAssignmentAssigned,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO applicant_exam_schedules (id, applicant_id, exam_schedule_id, remarks, status, created_at, updated_at) VALUES ($1, $2, $3, '', $4, $5, $6)`,
			assignment.ID, applicantID, scheduleID, assignment.Status, now, now); err != nil {
			return nil, false, fmt.Errorf("insert exam assignment: %w", err)
		}
	default:
		return nil, false, fmt.Errorf("load pending exam assignment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit exam assignment: %w", err)
	}
	return assignment, true, nil
}

// FindAssignment returns an exam seat assignment by id.
func (r *ExamScheduleRepository) FindAssignment(ctx context.Context, id string) (*models.ApplicantExamSchedule, error) {
	query := `SELECT ` + examAssignmentColumns + ` FROM applicant_exam_schedules WHERE id = $1`
	var assignment models.ApplicantExamSchedule
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// UpdateAssignmentStatus sets the seat status.
func (r *ExamScheduleRepository) UpdateAssignmentStatus(ctx context.Context, id string, status models.ExamAssignmentStatus) error {
	const query = `UPDATE applicant_exam_schedules SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update exam assignment status: %w", err)
	}
	return nil
}

// SaveResult stores the score, item count, derived remark and status.
func (r *ExamScheduleRepository) SaveResult(ctx context.Context, assignment *models.ApplicantExamSchedule) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applicant_exam_schedules SET score = $2, total_items = $3, remarks = $4, status = $5, updated_at = $6 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, assignment.ID, assignment.Score, assignment.TotalItems, assignment.Remarks, assignment.Status, assignment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save exam result: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
