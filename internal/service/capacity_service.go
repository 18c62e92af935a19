package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/repository"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type examCapacityReader interface {
	FindByID(ctx context.Context, id string) (*models.ExamSchedule, error)
}

type interviewCapacityReader interface {
	FindByID(ctx context.Context, id string) (*models.InterviewSchedule, error)
	ListAvailable(ctx context.Context, onOrAfter time.Time, limit int) ([]models.InterviewSchedule, error)
}

type interviewSlotStore interface {
	Assign(ctx context.Context, scheduleID, applicantID string) (*models.ApplicantInterviewSchedule, error)
	FindAssignmentByApplicant(ctx context.Context, applicantID string) (*models.ApplicantInterviewSchedule, error)
	Decide(ctx context.Context, id string, from, to models.InterviewAssignmentStatus, reason *string) (*models.ApplicantInterviewSchedule, error)
}

// CapacityResolver answers remaining-capacity questions. Every call re-reads
// the record store; nothing is cached between calls.
type CapacityResolver struct {
	exams      examCapacityReader
	interviews interviewCapacityReader
	now        func() time.Time
}

// NewCapacityResolver constructs the resolver.
func NewCapacityResolver(exams examCapacityReader, interviews interviewCapacityReader) *CapacityResolver {
	return &CapacityResolver{exams: exams, interviews: interviews, now: time.Now}
}

// ExamRemaining returns free seats of an exam schedule.
func (r *CapacityResolver) ExamRemaining(ctx context.Context, scheduleID string) (*models.ExamSchedule, int, error) {
	schedule, err := r.exams.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "exam schedule not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam schedule")
	}
	return schedule, schedule.Remaining(), nil
}

// InterviewRemaining returns free slots of an interview schedule.
func (r *CapacityResolver) InterviewRemaining(ctx context.Context, scheduleID string) (*models.InterviewSchedule, int, error) {
	schedule, err := r.interviews.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "interview schedule not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview schedule")
	}
	return schedule, schedule.Remaining(), nil
}

// AvailableInterviewSchedules lists schedules dated today or later with a
// free slot, earliest first.
func (r *CapacityResolver) AvailableInterviewSchedules(ctx context.Context, limit int) ([]models.InterviewSchedule, error) {
	items, err := r.interviews.ListAvailable(ctx, r.today(), limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search interview schedules")
	}
	return items, nil
}

// NextInterviewSchedule returns the earliest interview schedule with a free
// slot, or nil when none exists.
func (r *CapacityResolver) NextInterviewSchedule(ctx context.Context) (*models.InterviewSchedule, error) {
	items, err := r.AvailableInterviewSchedules(ctx, 1)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

func (r *CapacityResolver) today() time.Time {
	now := r.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// InterviewAllocator gives an applicant the earliest free interview slot.
type InterviewAllocator struct {
	capacity *CapacityResolver
	slots    interviewSlotStore
	logger   *zap.Logger
}

// NewInterviewAllocator constructs the allocator.
func NewInterviewAllocator(capacity *CapacityResolver, slots interviewSlotStore, logger *zap.Logger) *InterviewAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterviewAllocator{capacity: capacity, slots: slots, logger: logger}
}

// allocatorCandidates bounds how many schedules are tried when concurrent
// requests keep filling the earliest one.
const allocatorCandidates = 5

// HoldEarliest keeps the applicant's current slot if it still holds one,
// otherwise assigns the earliest schedule with room, and then runs commit with
// the result. schedule is nil when every schedule is full. When commit fails a
// slot taken by this call is given back; a slot the applicant already held is
// left alone.
func (a *InterviewAllocator) HoldEarliest(ctx context.Context, applicantID string, commit func(*models.ApplicantInterviewSchedule, *models.InterviewSchedule) error) error {
	assignment, schedule, fresh, err := a.assignEarliest(ctx, applicantID)
	if err != nil {
		return err
	}
	if err := commit(assignment, schedule); err != nil {
		if fresh {
			a.release(ctx, assignment)
		}
		return err
	}
	return nil
}

func (a *InterviewAllocator) assignEarliest(ctx context.Context, applicantID string) (*models.ApplicantInterviewSchedule, *models.InterviewSchedule, bool, error) {
	current, err := a.slots.FindAssignmentByApplicant(ctx, applicantID)
	switch {
	case err == nil && current.Status.OccupiesCapacity():
		schedule, _, err := a.capacity.InterviewRemaining(ctx, current.InterviewScheduleID)
		if err != nil {
			return nil, nil, false, err
		}
		return current, schedule, false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview assignment")
	}

	candidates, err := a.capacity.AvailableInterviewSchedules(ctx, allocatorCandidates)
	if err != nil {
		return nil, nil, false, err
	}
	for i := range candidates {
		schedule := candidates[i]
		assignment, err := a.slots.Assign(ctx, schedule.ID, applicantID)
		if err != nil {
			if errors.Is(err, repository.ErrCapacityReached) {
				a.logger.Debug("interview schedule filled concurrently", zap.String("schedule_id", schedule.ID))
				continue
			}
			return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign interview slot")
		}
		return assignment, &schedule, true, nil
	}
	return nil, nil, false, nil
}

func (a *InterviewAllocator) release(ctx context.Context, assignment *models.ApplicantInterviewSchedule) {
	if assignment == nil {
		return
	}
	note := "slot released: applicant status was not updated"
	if _, err := a.slots.Decide(ctx, assignment.ID, models.InterviewAssignmentScheduled, models.InterviewAssignmentDeclined, &note); err != nil {
		a.logger.Error("failed to release interview slot",
			zap.String("assignment_id", assignment.ID),
			zap.String("applicant_id", assignment.ApplicantID),
			zap.Error(err),
		)
	}
}
