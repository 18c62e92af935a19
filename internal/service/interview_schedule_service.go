package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/repository"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type interviewScheduleRepository interface {
	Create(ctx context.Context, schedule *models.InterviewSchedule) error
	Update(ctx context.Context, schedule *models.InterviewSchedule) error
	FindByID(ctx context.Context, id string) (*models.InterviewSchedule, error)
	Assign(ctx context.Context, scheduleID, applicantID string) (*models.ApplicantInterviewSchedule, error)
	FindAssignment(ctx context.Context, id string) (*models.ApplicantInterviewSchedule, error)
	FindAssignmentByApplicant(ctx context.Context, applicantID string) (*models.ApplicantInterviewSchedule, error)
	Decide(ctx context.Context, id string, from, to models.InterviewAssignmentStatus, reason *string) (*models.ApplicantInterviewSchedule, error)
}

type queuedApplicantStore interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	ListAwaitingResource(ctx context.Context, limit int) ([]models.Applicant, error)
	SetAwaitingResource(ctx context.Context, id string, awaiting bool) error
}

type programFinder interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

const (
	queueBatchSize     = 200
	enrollmentNextStep = "Proceed to the registrar to complete your official enrollment."
)

// InterviewScheduleService manages interview blocks, slot assignment, the
// interview queue and interview decisions.
type InterviewScheduleService struct {
	repo             interviewScheduleRepository
	applicants       queuedApplicantStore
	programs         programFinder
	capacity         *CapacityResolver
	allocator        interviewSlotAllocator
	gate             documentGate
	transitions      applicantTransitioner
	metrics          *MetricsService
	declineReasonMax int
	validator        *validator.Validate
	logger           *zap.Logger
}

// NewInterviewScheduleService constructs InterviewScheduleService.
func NewInterviewScheduleService(repo interviewScheduleRepository, applicants queuedApplicantStore, programs programFinder, capacity *CapacityResolver, allocator interviewSlotAllocator, gate documentGate, transitions applicantTransitioner, metrics *MetricsService, declineReasonMax int, validate *validator.Validate, logger *zap.Logger) *InterviewScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if declineReasonMax <= 0 {
		declineReasonMax = 500
	}
	return &InterviewScheduleService{
		repo:             repo,
		applicants:       applicants,
		programs:         programs,
		capacity:         capacity,
		allocator:        allocator,
		gate:             gate,
		transitions:      transitions,
		metrics:          metrics,
		declineReasonMax: declineReasonMax,
		validator:        validate,
		logger:           logger,
	}
}

// Create adds an interview block.
func (s *InterviewScheduleService) Create(ctx context.Context, req dto.InterviewScheduleRequest) (*models.InterviewSchedule, error) {
	schedule, err := s.buildSchedule(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create interview schedule")
	}
	return schedule, nil
}

// Update edits an interview block. Capacity may not drop below the slots taken.
func (s *InterviewScheduleService) Update(ctx context.Context, id string, req dto.InterviewScheduleRequest) (*models.InterviewSchedule, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "interview schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview schedule")
	}
	schedule, err := s.buildSchedule(req)
	if err != nil {
		return nil, err
	}
	if schedule.Capacity < existing.UsedSlots {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("capacity cannot be lower than the %d slots already taken", existing.UsedSlots))
	}
	schedule.ID = id
	schedule.CreatedAt = existing.CreatedAt
	schedule.UsedSlots = existing.UsedSlots
	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update interview schedule")
	}
	return schedule, nil
}

func (s *InterviewScheduleService) buildSchedule(req dto.InterviewScheduleRequest) (*models.InterviewSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid interview schedule payload")
	}
	date, err := time.Parse("2006-01-02", req.InterviewDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid interview_date")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return &models.InterviewSchedule{
		InterviewDate: date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Venue:         strings.TrimSpace(req.Venue),
		Capacity:      req.Capacity,
	}, nil
}

// Remaining reports the free slots of an interview block.
func (s *InterviewScheduleService) Remaining(ctx context.Context, id string) (*dto.CapacityResponse, error) {
	schedule, remaining, err := s.capacity.InterviewRemaining(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.CapacityResponse{ScheduleID: schedule.ID, Capacity: schedule.Capacity, Used: schedule.UsedSlots, Remaining: remaining}, nil
}

// Assign places a "for interview" applicant on a specific block. Moving an
// applicant off a block they already held is recorded as a reschedule so the
// new date and venue are announced.
func (s *InterviewScheduleService) Assign(ctx context.Context, scheduleID, applicantID, actor string) (*models.ApplicantInterviewSchedule, error) {
	applicant, err := findApplicant(ctx, s.applicants, applicantID)
	if err != nil {
		return nil, err
	}
	if applicant.IsBlacklisted {
		return nil, appErrors.Clone(appErrors.ErrBlacklisted, "")
	}
	if applicant.Status != models.ApplicantStatusForInterview {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant is not awaiting an interview")
	}

	reasonType := models.ReasonInterviewScheduled
	previous, err := s.repo.FindAssignmentByApplicant(ctx, applicantID)
	switch {
	case err == nil && previous.Status.OccupiesCapacity():
		if previous.InterviewScheduleID != scheduleID {
			reasonType = models.ReasonInterviewRescheduled
		} else if applicant.StatusReason == models.ReasonInterviewScheduled || applicant.StatusReason == models.ReasonInterviewRescheduled {
			return previous, nil
		}
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview assignment")
	}

	assignment, err := s.repo.Assign(ctx, scheduleID, applicantID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityReached):
			s.metrics.RecordCapacityExhausted("interview")
			return nil, appErrors.Clone(appErrors.ErrCapacityExhausted, "interview schedule is full")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "interview schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign interview slot")
	}
	schedule, err := s.repo.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview schedule")
	}
	applicant.AwaitingResource = false
	reason := withInterview(models.NewReason(reasonType), schedule).With(models.ReasonKeyScheduleID, schedule.ID)
	if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusForInterview, reason, actor); err != nil {
		return nil, err
	}
	return assignment, nil
}

// ProcessQueue retries every applicant waiting on interview capacity.
// Applicants still in document review re-run the verification gate; queued
// "for interview" applicants get the earliest free slot.
func (s *InterviewScheduleService) ProcessQueue(ctx context.Context, actor string) (*dto.QueueReport, error) {
	queued, err := s.applicants.ListAwaitingResource(ctx, queueBatchSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview queue")
	}
	report := &dto.QueueReport{Failed: []dto.BulkError{}}
	for i := range queued {
		applicant := queued[i]
		report.Processed++
		switch applicant.Status {
		case models.ApplicantStatusPending, models.ApplicantStatusApproved:
			result, err := s.gate.Evaluate(ctx, applicant.ID, actor)
			if err != nil {
				report.Failed = append(report.Failed, bulkError(applicant.ID, err))
				continue
			}
			switch result.Outcome {
			case dto.GateOutcomeAdvanced:
				report.Assigned++
			case dto.GateOutcomeAwaitingInterview:
				report.StillWaiting++
			default:
				if err := s.applicants.SetAwaitingResource(ctx, applicant.ID, false); err != nil {
					report.Failed = append(report.Failed, bulkError(applicant.ID, err))
					continue
				}
				report.Cleared++
			}
		case models.ApplicantStatusForInterview:
			assigned, err := s.scheduleQueued(ctx, &applicant, actor)
			if err != nil {
				report.Failed = append(report.Failed, bulkError(applicant.ID, err))
				continue
			}
			if assigned {
				report.Assigned++
			} else {
				report.StillWaiting++
			}
		default:
			if err := s.applicants.SetAwaitingResource(ctx, applicant.ID, false); err != nil {
				report.Failed = append(report.Failed, bulkError(applicant.ID, err))
				continue
			}
			report.Cleared++
		}
	}
	s.logger.Info("interview queue processed",
		zap.Int("processed", report.Processed),
		zap.Int("assigned", report.Assigned),
		zap.Int("still_waiting", report.StillWaiting),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *InterviewScheduleService) scheduleQueued(ctx context.Context, applicant *models.Applicant, actor string) (bool, error) {
	assigned := false
	err := s.allocator.HoldEarliest(ctx, applicant.ID, func(_ *models.ApplicantInterviewSchedule, schedule *models.InterviewSchedule) error {
		if schedule == nil {
			return nil
		}
		applicant.AwaitingResource = false
		reason := withInterview(models.NewReason(models.ReasonInterviewScheduled), schedule)
		if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusForInterview, reason, actor); err != nil {
			return err
		}
		assigned = true
		return nil
	})
	return assigned, err
}

// Approve accepts a scheduled interview and makes the applicant eligible for
// enrollment.
func (s *InterviewScheduleService) Approve(ctx context.Context, assignmentID, actor string) (*dto.InterviewDecisionResult, error) {
	assignment, applicant, schedule, err := s.loadDecision(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	decided, err := s.decide(ctx, assignment.ID, models.InterviewAssignmentApproved, nil)
	if err != nil {
		return nil, err
	}
	reason := models.NewReason(models.ReasonInterviewApproved).
		With(models.ReasonKeyProgram, s.programName(ctx, applicant)).
		With(models.ReasonKeyInterviewDate, schedule.InterviewDate.Format("2006-01-02")).
		With(models.ReasonKeyNextStep, enrollmentNextStep)
	if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusForEnrollment, reason, actor); err != nil {
		return nil, err
	}
	return &dto.InterviewDecisionResult{Assignment: decided, ApplicantStatus: applicant.Status}, nil
}

// Decline rejects a scheduled interview. The reason is required.
func (s *InterviewScheduleService) Decline(ctx context.Context, assignmentID string, req dto.DeclineInterviewRequest, actor string) (*dto.InterviewDecisionResult, error) {
	reasonText := strings.TrimSpace(req.Reason)
	if err := s.validator.Var(reasonText, fmt.Sprintf("required,max=%d", s.declineReasonMax)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("a decline reason of at most %d characters is required", s.declineReasonMax))
	}
	assignment, applicant, schedule, err := s.loadDecision(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	decided, err := s.decide(ctx, assignment.ID, models.InterviewAssignmentDeclined, &reasonText)
	if err != nil {
		return nil, err
	}
	reason := models.NewReason(models.ReasonInterviewDeclined).
		With(models.ReasonKeyRejectionReason, reasonText).
		With(models.ReasonKeyInterviewDate, schedule.InterviewDate.Format("2006-01-02"))
	if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusDeclined, reason, actor); err != nil {
		return nil, err
	}
	return &dto.InterviewDecisionResult{Assignment: decided, ApplicantStatus: applicant.Status}, nil
}

func (s *InterviewScheduleService) loadDecision(ctx context.Context, assignmentID string) (*models.ApplicantInterviewSchedule, *models.Applicant, *models.InterviewSchedule, error) {
	assignment, err := s.repo.FindAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "interview assignment not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview assignment")
	}
	if assignment.Status != models.InterviewAssignmentScheduled {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "interview has already been "+strings.ToLower(string(assignment.Status)))
	}
	applicant, err := findApplicant(ctx, s.applicants, assignment.ApplicantID)
	if err != nil {
		return nil, nil, nil, err
	}
	if applicant.Status != models.ApplicantStatusForInterview {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant is not awaiting an interview decision")
	}
	schedule, err := s.repo.FindByID(ctx, assignment.InterviewScheduleID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview schedule")
	}
	return assignment, applicant, schedule, nil
}

func (s *InterviewScheduleService) decide(ctx context.Context, id string, to models.InterviewAssignmentStatus, reason *string) (*models.ApplicantInterviewSchedule, error) {
	decided, err := s.repo.Decide(ctx, id, models.InterviewAssignmentScheduled, to, reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "interview has already been decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record interview decision")
	}
	return decided, nil
}

func (s *InterviewScheduleService) programName(ctx context.Context, applicant *models.Applicant) string {
	if applicant.ProgramID != nil && s.programs != nil {
		program, err := s.programs.FindByID(ctx, *applicant.ProgramID)
		if err == nil {
			return program.Name
		}
		s.logger.Debug("program lookup failed", zap.String("program_id", *applicant.ProgramID), zap.Error(err))
	}
	return applicant.ProgramCategory
}
