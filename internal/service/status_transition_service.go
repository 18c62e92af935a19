package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/pkg/config"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/events"
)

// EventApplicantStatusChanged is published after every recorded transition.
const EventApplicantStatusChanged = "applicant.status_changed"

// ApplicantStatusChanged carries a committed status change to subscribers.
// ReasonData is passed through exactly as the caller supplied it.
type ApplicantStatusChanged struct {
	Applicant  models.Applicant
	OldStatus  models.ApplicantStatus
	NewStatus  models.ApplicantStatus
	ReasonData models.ReasonData
	ChangedBy  string
	OccurredAt time.Time
}

// EventName implements events.Event.
func (ApplicantStatusChanged) EventName() string { return EventApplicantStatusChanged }

type applicantStatusStore interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	SaveStatus(ctx context.Context, applicant *models.Applicant, history *models.StatusHistory) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event events.Event) (int, error)
}

// allowedTransitions is the documented pipeline. Re-entering the same status
// with a different reason is always allowed.
var allowedTransitions = map[models.ApplicantStatus][]models.ApplicantStatus{
	models.ApplicantStatusNone:            {models.ApplicantStatusPending},
	models.ApplicantStatusPending:         {models.ApplicantStatusApproved, models.ApplicantStatusForInterview, models.ApplicantStatusDeclined},
	models.ApplicantStatusApproved:        {models.ApplicantStatusForEntranceExam, models.ApplicantStatusForInterview, models.ApplicantStatusDeclined},
	models.ApplicantStatusForEntranceExam: {models.ApplicantStatusForInterview, models.ApplicantStatusDeclined},
	models.ApplicantStatusForInterview:    {models.ApplicantStatusForEnrollment, models.ApplicantStatusDeclined},
	models.ApplicantStatusForEnrollment:   {models.ApplicantStatusEnrolled, models.ApplicantStatusDeclined},
	// a corrected exam score may lift an exam_failed decline
	models.ApplicantStatusDeclined: {models.ApplicantStatusForInterview},
}

// repeatableReasons always record a transition, even when the applicant
// already carries the same status and reason. Callers only use them for a
// real change such as a move to another interview block.
var repeatableReasons = map[string]bool{
	models.ReasonInterviewRescheduled: true,
}

// StatusTransitionService is the single writer of Applicant.status. Every
// change is saved with a history row and then announced on the event bus.
type StatusTransitionService struct {
	store     applicantStatusStore
	publisher eventPublisher
	policy    string
	logger    *zap.Logger
	now       func() time.Time
}

// NewStatusTransitionService builds the engine. An empty policy means warn.
func NewStatusTransitionService(store applicantStatusStore, publisher eventPublisher, policy string, logger *zap.Logger) *StatusTransitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy != config.TransitionPolicyStrict {
		policy = config.TransitionPolicyWarn
	}
	return &StatusTransitionService{
		store:     store,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Transition moves applicant to newStatus. It reports false without writing
// anything when both the status and the reason_type are already current.
// Fields the caller changed on applicant (blacklist, awaiting flag) are saved
// along with the status. When the transition is rejected or the save fails,
// applicant is reloaded from the store.
func (s *StatusTransitionService) Transition(ctx context.Context, applicant *models.Applicant, newStatus models.ApplicantStatus, reason models.ReasonData, actor string) (bool, error) {
	if applicant == nil {
		return false, appErrors.Clone(appErrors.ErrValidation, "applicant is required")
	}
	if !newStatus.Valid() {
		return false, appErrors.Clone(appErrors.ErrValidation, "unknown applicant status")
	}
	if reason == nil {
		reason = models.ReasonData{}
	}
	reasonType := reason.Type()
	oldStatus := applicant.Status
	oldReason := applicant.StatusReason

	if oldStatus == newStatus && oldReason == reasonType && !repeatableReasons[reasonType] {
		return false, nil
	}

	if !IsAllowedTransition(oldStatus, newStatus) {
		if s.policy == config.TransitionPolicyStrict {
			s.restore(ctx, applicant)
			return false, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move applicant from "+describeStatus(oldStatus)+" to "+string(newStatus))
		}
		s.logger.Warn("transition outside documented pipeline",
			zap.String("applicant_id", applicant.ID),
			zap.String("from", string(oldStatus)),
			zap.String("to", string(newStatus)),
			zap.String("reason_type", reasonType),
		)
	}

	payload, err := json.Marshal(reason)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "reason data is not serialisable")
	}

	applicant.Status = newStatus
	applicant.StatusReason = reasonType
	history := &models.StatusHistory{
		ApplicantID: applicant.ID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		ReasonType:  reasonType,
		ReasonData:  payload,
		ChangedBy:   actor,
	}
	if err := s.store.SaveStatus(ctx, applicant, history); err != nil {
		applicant.Status = oldStatus
		applicant.StatusReason = oldReason
		s.restore(ctx, applicant)
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save applicant status")
	}

	s.logger.Info("applicant status changed",
		zap.String("applicant_id", applicant.ID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(newStatus)),
		zap.String("reason_type", reasonType),
		zap.String("actor", actor),
	)

	if s.publisher != nil {
		event := ApplicantStatusChanged{
			Applicant:  *applicant,
			OldStatus:  oldStatus,
			NewStatus:  newStatus,
			ReasonData: reason,
			ChangedBy:  actor,
			OccurredAt: s.now(),
		}
		if failed, err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("status change event not published", zap.String("applicant_id", applicant.ID), zap.Error(err))
		} else if failed > 0 {
			s.logger.Warn("status change subscribers failed", zap.String("applicant_id", applicant.ID), zap.Int("failed", failed))
		}
	}
	return true, nil
}

// restore reloads applicant from the store, dropping field changes the caller
// made for a transition that was not saved. Status and reason are already
// reset when the reload fails.
func (s *StatusTransitionService) restore(ctx context.Context, applicant *models.Applicant) {
	stored, err := s.store.FindByID(ctx, applicant.ID)
	if err != nil {
		s.logger.Warn("failed to reload applicant after rejected transition", zap.String("applicant_id", applicant.ID), zap.Error(err))
		return
	}
	*applicant = *stored
}

// IsAllowedTransition reports whether from -> to is part of the documented pipeline.
func IsAllowedTransition(from, to models.ApplicantStatus) bool {
	if from == to {
		return true
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func describeStatus(status models.ApplicantStatus) string {
	if status == models.ApplicantStatusNone {
		return "no status"
	}
	return string(status)
}
