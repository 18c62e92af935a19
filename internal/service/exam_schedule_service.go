package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/repository"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type examScheduleRepository interface {
	FindRoom(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, schedule *models.ExamSchedule) error
	Update(ctx context.Context, schedule *models.ExamSchedule) error
	FindByID(ctx context.Context, id string) (*models.ExamSchedule, error)
	FindOverlapping(ctx context.Context, roomID string, date time.Time, start, end, excludeID string) ([]models.ExamSchedule, error)
	Assign(ctx context.Context, scheduleID, applicantID string) (*models.ApplicantExamSchedule, bool, error)
	FindAssignment(ctx context.Context, id string) (*models.ApplicantExamSchedule, error)
	UpdateAssignmentStatus(ctx context.Context, id string, status models.ExamAssignmentStatus) error
	SaveResult(ctx context.Context, assignment *models.ApplicantExamSchedule) error
}

type interviewSlotReleaser interface {
	FindAssignmentByApplicant(ctx context.Context, applicantID string) (*models.ApplicantInterviewSchedule, error)
	Decide(ctx context.Context, id string, from, to models.InterviewAssignmentStatus, reason *string) (*models.ApplicantInterviewSchedule, error)
}

// ExamConfig holds the scoring rules.
type ExamConfig struct {
	DefaultTotalItems int
	PassingRatio      float64
}

// PassingScore returns totalItems*ratio rounded to two decimals.
func PassingScore(totalItems int, ratio float64) float64 {
	return math.Round(float64(totalItems)*ratio*100) / 100
}

// ExamScheduleService manages exam sittings, seat assignment and scoring.
type ExamScheduleService struct {
	repo        examScheduleRepository
	applicants  applicantReader
	interviews  interviewSlotReleaser
	capacity    *CapacityResolver
	allocator   interviewSlotAllocator
	transitions applicantTransitioner
	notifier    programHeadNotifier
	metrics     *MetricsService
	cfg         ExamConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewExamScheduleService constructs ExamScheduleService.
func NewExamScheduleService(repo examScheduleRepository, applicants applicantReader, interviews interviewSlotReleaser, capacity *CapacityResolver, allocator interviewSlotAllocator, transitions applicantTransitioner, notifier programHeadNotifier, metrics *MetricsService, cfg ExamConfig, validate *validator.Validate, logger *zap.Logger) *ExamScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTotalItems <= 0 {
		cfg.DefaultTotalItems = 75
	}
	if cfg.PassingRatio <= 0 || cfg.PassingRatio > 1 {
		cfg.PassingRatio = 0.75
	}
	return &ExamScheduleService{
		repo:        repo,
		applicants:  applicants,
		interviews:  interviews,
		capacity:    capacity,
		allocator:   allocator,
		transitions: transitions,
		notifier:    notifier,
		metrics:     metrics,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
	}
}

// Create books a new exam sitting.
func (s *ExamScheduleService) Create(ctx context.Context, req dto.ExamScheduleRequest) (*models.ExamSchedule, error) {
	schedule, err := s.buildSchedule(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam schedule")
	}
	return schedule, nil
}

// Update edits an exam sitting. Capacity may not drop below the seats taken.
func (s *ExamScheduleService) Update(ctx context.Context, id string, req dto.ExamScheduleRequest) (*models.ExamSchedule, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam schedule")
	}
	schedule, err := s.buildSchedule(ctx, req, id)
	if err != nil {
		return nil, err
	}
	if schedule.Capacity < existing.ApprovedApplicantsCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("capacity cannot be lower than the %d seats already assigned", existing.ApprovedApplicantsCount))
	}
	schedule.ID = id
	schedule.CreatedAt = existing.CreatedAt
	schedule.ApprovedApplicantsCount = existing.ApprovedApplicantsCount
	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam schedule")
	}
	return schedule, nil
}

func (s *ExamScheduleService) buildSchedule(ctx context.Context, req dto.ExamScheduleRequest, excludeID string) (*models.ExamSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam schedule payload")
	}
	date, err := time.Parse("2006-01-02", req.ExamDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid exam_date")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	room, err := s.repo.FindRoom(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	overlaps, err := s.repo.FindOverlapping(ctx, room.ID, date, req.StartTime, req.EndTime, excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room availability")
	}
	if len(overlaps) > 0 {
		return nil, appErrors.Clone(appErrors.ErrScheduleConflict, fmt.Sprintf("%s is already booked from %s to %s", room.Name, overlaps[0].StartTime, overlaps[0].EndTime))
	}
	capacity := room.Capacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	return &models.ExamSchedule{
		ExamDate:  date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		RoomID:    room.ID,
		RoomName:  room.Name,
		Capacity:  capacity,
	}, nil
}

// Remaining reports the seats left on an exam sitting.
func (s *ExamScheduleService) Remaining(ctx context.Context, id string) (*dto.CapacityResponse, error) {
	schedule, remaining, err := s.capacity.ExamRemaining(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.CapacityResponse{ScheduleID: schedule.ID, Capacity: schedule.Capacity, Used: schedule.ApprovedApplicantsCount, Remaining: remaining}, nil
}

// Assign seats an applicant on an exam sitting and moves an approved applicant
// to "for entrance exam".
func (s *ExamScheduleService) Assign(ctx context.Context, scheduleID, applicantID, actor string) (*models.ApplicantExamSchedule, error) {
	applicant, err := findApplicant(ctx, s.applicants, applicantID)
	if err != nil {
		return nil, err
	}
	if applicant.IsBlacklisted {
		return nil, appErrors.Clone(appErrors.ErrBlacklisted, "")
	}
	if applicant.Status != models.ApplicantStatusApproved && applicant.Status != models.ApplicantStatusForEntranceExam {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant is not awaiting an entrance exam")
	}

	assignment, created, err := s.repo.Assign(ctx, scheduleID, applicantID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityReached):
			s.metrics.RecordCapacityExhausted("exam")
			return nil, appErrors.Clone(appErrors.ErrCapacityExhausted, "exam schedule is full")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign exam seat")
	}
	if !created {
		s.logger.Debug("exam seat already assigned", zap.String("assignment_id", assignment.ID))
	}

	schedule, err := s.repo.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam schedule")
	}
	reason := models.NewReason(models.ReasonExamScheduled).
		With(models.ReasonKeyExamDate, schedule.ExamDate.Format("2006-01-02")).
		With(models.ReasonKeyExamTime, schedule.StartTime+" - "+schedule.EndTime).
		With(models.ReasonKeyRoom, schedule.RoomName)
	if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusForEntranceExam, reason, actor); err != nil {
		return nil, err
	}

	if assignment.Status == models.ExamAssignmentAssigned {
		if err := s.repo.UpdateAssignmentStatus(ctx, assignment.ID, models.ExamAssignmentScheduled); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm exam seat")
		}
		assignment.Status = models.ExamAssignmentScheduled
	}
	return assignment, nil
}

// BulkAssign seats each applicant independently.
func (s *ExamScheduleService) BulkAssign(ctx context.Context, scheduleID string, req dto.BulkAssignRequest, actor string) (*dto.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk assign payload")
	}
	report := &dto.BulkResult{Succeeded: []string{}, Failed: []dto.BulkError{}}
	for _, applicantID := range req.ApplicantIDs {
		if _, err := s.Assign(ctx, scheduleID, applicantID, actor); err != nil {
			report.Failed = append(report.Failed, bulkError(applicantID, err))
			continue
		}
		report.Succeeded = append(report.Succeeded, applicantID)
	}
	return report, nil
}

// RecordScore stores an exam result and then passes or declines the
// applicant. The score is saved before any pipeline step so a later failure
// never loses it.
func (s *ExamScheduleService) RecordScore(ctx context.Context, assignmentID string, req dto.RecordScoreRequest, actor string) (*dto.ExamOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	total := s.cfg.DefaultTotalItems
	if req.TotalItems != nil {
		total = *req.TotalItems
	}
	score := *req.Score
	if score > float64(total) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score cannot exceed total_items")
	}
	passing := PassingScore(total, s.cfg.PassingRatio)
	remarks := models.ExamRemarkFailed
	if score >= passing {
		remarks = models.ExamRemarkPassed
	}

	assignment, err := s.repo.FindAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam assignment")
	}
	applicant, err := findApplicant(ctx, s.applicants, assignment.ApplicantID)
	if err != nil {
		return nil, err
	}
	outcome := &dto.ExamOutcome{Assignment: assignment, PassingScore: passing, Remarks: remarks, ApplicantStatus: applicant.Status}

	if sameResult(assignment, score, total, remarks) && resultApplied(applicant, remarks) {
		outcome.Unchanged = true
		return outcome, nil
	}
	if applicant.Status == models.ApplicantStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant is already enrolled")
	}
	if remarks == models.ExamRemarkPassed && !awaitingExamOutcome(applicant) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant is no longer awaiting an exam result")
	}

	assignment.Score = &score
	assignment.TotalItems = &total
	assignment.Remarks = remarks
	assignment.Status = models.ExamAssignmentAttended
	if err := s.repo.SaveResult(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save exam result")
	}

	schedule, err := s.repo.FindByID(ctx, assignment.ExamScheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam schedule")
	}
	examReason := models.ReasonData{
		models.ReasonKeyExamDate:     schedule.ExamDate.Format("2006-01-02"),
		models.ReasonKeyScore:        score,
		models.ReasonKeyTotalItems:   total,
		models.ReasonKeyPassingScore: passing,
	}

	if remarks == models.ExamRemarkFailed {
		err = s.failApplicant(ctx, applicant, examReason, actor)
	} else {
		err = s.passApplicant(ctx, applicant, examReason, actor, outcome)
	}
	if err != nil {
		return nil, err
	}
	outcome.ApplicantStatus = applicant.Status
	return outcome, nil
}

func (s *ExamScheduleService) failApplicant(ctx context.Context, applicant *models.Applicant, examReason models.ReasonData, actor string) error {
	s.releaseInterviewSlot(ctx, applicant.ID)
	applicant.IsBlacklisted = true
	applicant.AwaitingResource = false
	reason := models.NewReason(models.ReasonExamFailed).Merge(examReason)
	_, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusDeclined, reason, actor)
	return err
}

func (s *ExamScheduleService) passApplicant(ctx context.Context, applicant *models.Applicant, examReason models.ReasonData, actor string, outcome *dto.ExamOutcome) error {
	// an approved interview already moved the applicant past this step
	if applicant.Status == models.ApplicantStatusForEnrollment {
		return nil
	}
	applicant.IsBlacklisted = false

	held := false
	err := s.allocator.HoldEarliest(ctx, applicant.ID, func(assignment *models.ApplicantInterviewSchedule, schedule *models.InterviewSchedule) error {
		if schedule == nil {
			return nil
		}
		held = true
		applicant.AwaitingResource = false
		reason := withInterview(models.NewReason(models.ReasonExamPassed).Merge(examReason), schedule)
		if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusForInterview, reason, actor); err != nil {
			return err
		}
		outcome.Interview = assignment
		return nil
	})
	if err != nil || held {
		return err
	}

	wasAwaiting := applicant.AwaitingResource
	applicant.AwaitingResource = true
	reason := models.NewReason(models.ReasonExamPassedAwaitingInterview).Merge(examReason)
	if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusForInterview, reason, actor); err != nil {
		return err
	}
	outcome.Warnings = append(outcome.Warnings, "no interview schedule has free capacity; the applicant is queued for interview")
	if wasAwaiting {
		return nil
	}
	s.metrics.RecordCapacityExhausted("interview")
	if s.notifier != nil {
		s.notifier.NotifyProgramHeads(ctx, NotificationMessage{
			Title:       "Interview schedules are full",
			Body:        fmt.Sprintf("%s passed the entrance exam but no interview schedule has free capacity.", applicant.FullName),
			Actions:     []models.NotificationAction{{Label: "Create interview schedule", URL: "/interview-schedules"}},
			RelatedType: "applicant",
			RelatedID:   applicant.ID,
		})
	}
	return nil
}

// releaseInterviewSlot frees a slot held from an earlier passing score.
func (s *ExamScheduleService) releaseInterviewSlot(ctx context.Context, applicantID string) {
	if s.interviews == nil {
		return
	}
	current, err := s.interviews.FindAssignmentByApplicant(ctx, applicantID)
	if err != nil || current.Status != models.InterviewAssignmentScheduled {
		return
	}
	note := "exam score corrected to failed"
	if _, err := s.interviews.Decide(ctx, current.ID, models.InterviewAssignmentScheduled, models.InterviewAssignmentDeclined, &note); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to release interview slot", zap.String("applicant_id", applicantID), zap.Error(err))
	}
}

func sameResult(assignment *models.ApplicantExamSchedule, score float64, total int, remarks string) bool {
	return assignment.Status == models.ExamAssignmentAttended &&
		assignment.Score != nil && *assignment.Score == score &&
		assignment.TotalItems != nil && *assignment.TotalItems == total &&
		assignment.Remarks == remarks
}

// resultApplied reports whether the applicant already reflects remarks. A
// repeated passing result only has work left when an earlier run saved the
// score but never moved the applicant off the exam step.
func resultApplied(applicant *models.Applicant, remarks string) bool {
	if remarks == models.ExamRemarkFailed {
		return applicant.Status == models.ApplicantStatusDeclined && applicant.IsBlacklisted
	}
	return applicant.Status != models.ApplicantStatusForEntranceExam
}

// awaitingExamOutcome reports whether a passing result may move the
// applicant. Only an exam_failed decline is reopened by a corrected score;
// every other decline is final.
func awaitingExamOutcome(applicant *models.Applicant) bool {
	switch applicant.Status {
	case models.ApplicantStatusForEntranceExam, models.ApplicantStatusForInterview, models.ApplicantStatusForEnrollment:
		return true
	case models.ApplicantStatusDeclined:
		return applicant.StatusReason == models.ReasonExamFailed
	}
	return false
}
