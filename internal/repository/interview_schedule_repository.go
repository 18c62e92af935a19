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

const interviewAssignmentColumns = `id, applicant_id, interview_schedule_id, status, decline_reason, created_at, updated_at`

// usedSlotsExpr counts assignment rows that still hold a slot.
const usedSlotsExpr = `(SELECT COUNT(*) FROM applicant_interview_schedules a WHERE a.interview_schedule_id = s.id AND a.status IN ('Scheduled', 'Approved'))`

// InterviewScheduleRepository persists interview blocks and slot assignments.
type InterviewScheduleRepository struct {
	db *sqlx.DB
}

// NewInterviewScheduleRepository constructs the repository.
func NewInterviewScheduleRepository(db *sqlx.DB) *InterviewScheduleRepository {
	return &InterviewScheduleRepository{db: db}
}

// Create inserts an interview schedule.
func (r *InterviewScheduleRepository) Create(ctx context.Context, schedule *models.InterviewSchedule) error {
	now := time.Now().UTC()
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO interview_schedules (id, interview_date, start_time, end_time, venue, capacity, created_at, updated_at)
        VALUES (:id, :interview_date, :start_time, :end_time, :venue, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create interview schedule: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an interview schedule.
func (r *InterviewScheduleRepository) Update(ctx context.Context, schedule *models.InterviewSchedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE interview_schedules SET interview_date = :interview_date, start_time = :start_time, end_time = :end_time, venue = :venue, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update interview schedule: %w", err)
	}
	return nil
}

// FindByID returns an interview schedule with its occupied slot count.
func (r *InterviewScheduleRepository) FindByID(ctx context.Context, id string) (*models.InterviewSchedule, error) {
	query := `SELECT s.id, s.interview_date, s.start_time, s.end_time, s.venue, s.capacity, ` + usedSlotsExpr + ` AS used_slots, s.created_at, s.updated_at
        FROM interview_schedules s WHERE s.id = $1`
	var schedule models.InterviewSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListAvailable returns schedules dated on or after onOrAfter that still have a
// free slot, earliest first.
func (r *InterviewScheduleRepository) ListAvailable(ctx context.Context, onOrAfter time.Time, limit int) ([]models.InterviewSchedule, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT * FROM (
        SELECT s.id, s.interview_date, s.start_time, s.end_time, s.venue, s.capacity, %s AS used_slots, s.created_at, s.updated_at
        FROM interview_schedules s WHERE s.interview_date >= $1
    ) avail
    WHERE avail.used_slots < avail.capacity
    ORDER BY avail.interview_date ASC, avail.start_time ASC, avail.id ASC
    LIMIT %d`, usedSlotsExpr, limit)
	var schedules []models.InterviewSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, onOrAfter); err != nil {
		return nil, fmt.Errorf("list available interview schedules: %w", err)
	}
	return schedules, nil
}

// Assign upserts the applicant's single interview row onto scheduleID while
// holding a lock on the schedule. An applicant already holding a slot on the
// same schedule gets the existing row back.
func (r *InterviewScheduleRepository) Assign(ctx context.Context, scheduleID, applicantID string) (assignment *models.ApplicantInterviewSchedule, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin interview assignment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	if err = tx.GetContext(ctx, &capacity, `SELECT capacity FROM interview_schedules WHERE id = $1 FOR UPDATE`, scheduleID); err != nil {
		return nil, err
	}

	var existing models.ApplicantInterviewSchedule
	hasExisting := true
	err = tx.GetContext(ctx, &existing, `SELECT `+interviewAssignmentColumns+` FROM applicant_interview_schedules WHERE applicant_id = $1 FOR UPDATE`, applicantID)
	switch {
	case err == nil:
		if existing.InterviewScheduleID == scheduleID && existing.Status.OccupiesCapacity() {
			if err = tx.Commit(); err != nil {
				return nil, fmt.Errorf("commit interview assignment: %w", err)
			}
			return &existing, nil
		}
	case errors.Is(err, sql.ErrNoRows):
		err = nil
		hasExisting = false
	default:
		return nil, fmt.Errorf("load interview assignment: %w", err)
	}

	var used int
	if err = tx.GetContext(ctx, &used, `SELECT COUNT(*) FROM applicant_interview_schedules WHERE interview_schedule_id = $1 AND status IN ($2, $3) AND applicant_id <> $4`,
		scheduleID, models.InterviewAssignmentScheduled, models.InterviewAssignmentApproved, applicantID); err != nil {
		return nil, fmt.Errorf("count interview slots: %w", err)
	}
	if used >= capacity {
		err = ErrCapacityReached
		return nil, err
	}

	now := time.Now().UTC()
	if hasExisting {
		var updated models.ApplicantInterviewSchedule
		if err = tx.GetContext(ctx, &updated, `UPDATE applicant_interview_schedules SET interview_schedule_id = $2, status = $3, decline_reason = NULL, updated_at = $4 WHERE id = $1 RETURNING `+interviewAssignmentColumns,
			existing.ID, scheduleID, models.InterviewAssignmentScheduled, now); err != nil {
			return nil, fmt.Errorf("update interview assignment: %w", err)
		}
		assignment = &updated
	} else {
		assignment = &models.ApplicantInterviewSchedule{
			ID:                  uuid.NewString(),
			ApplicantID:         applicantID,
			InterviewScheduleID: scheduleID,
			Status:              models.InterviewAssignmentScheduled,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO applicant_interview_schedules (id, applicant_id, interview_schedule_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			assignment.ID, applicantID, scheduleID, assignment.Status, now, now); err != nil {
			return nil, fmt.Errorf("insert interview assignment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit interview assignment: %w", err)
	}
	return assignment, nil
}

// FindAssignment returns an interview assignment by id.
func (r *InterviewScheduleRepository) FindAssignment(ctx context.Context, id string) (*models.ApplicantInterviewSchedule, error) {
	query := `SELECT ` + interviewAssignmentColumns + ` FROM applicant_interview_schedules WHERE id = $1`
	var assignment models.ApplicantInterviewSchedule
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindAssignmentByApplicant returns the applicant's interview row.
func (r *InterviewScheduleRepository) FindAssignmentByApplicant(ctx context.Context, applicantID string) (*models.ApplicantInterviewSchedule, error) {
	query := `SELECT ` + interviewAssignmentColumns + ` FROM applicant_interview_schedules WHERE applicant_id = $1`
	var assignment models.ApplicantInterviewSchedule
	if err := r.db.GetContext(ctx, &assignment, query, applicantID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Decide moves an assignment from `from` to `to` only if it is still in `from`.
// sql.ErrNoRows means another request already decided it.
func (r *InterviewScheduleRepository) Decide(ctx context.Context, id string, from, to models.InterviewAssignmentStatus, reason *string) (*models.ApplicantInterviewSchedule, error) {
	query := `UPDATE applicant_interview_schedules SET status = $3, decline_reason = $4, updated_at = $5 WHERE id = $1 AND status = $2 RETURNING ` + interviewAssignmentColumns
	var assignment models.ApplicantInterviewSchedule
	if err := r.db.GetContext(ctx, &assignment, query, id, from, to, reason, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &assignment, nil
}
