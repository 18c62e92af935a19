package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
	"github.com/noah-isme/admissions-api/pkg/jobs"
)

const statusMailJobType = "status_change_mail"

type notificationStore interface {
	CreateBatch(ctx context.Context, items []models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
}

type roleLookup interface {
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// Mailer delivers a status change mail. Template selection is driven by
// event.NewStatus and the reason_type in event.ReasonData.
type Mailer interface {
	SendStatusChange(ctx context.Context, event ApplicantStatusChanged) error
}

// LogMailer writes the mail envelope to the log instead of delivering it.
type LogMailer struct {
	From   string
	Logger *zap.Logger
}

// SendStatusChange implements Mailer.
func (m LogMailer) SendStatusChange(ctx context.Context, event ApplicantStatusChanged) error {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("status mail",
		zap.String("from", m.From),
		zap.String("to", event.Applicant.Email),
		zap.String("applicant_id", event.Applicant.ID),
		zap.String("old_status", string(event.OldStatus)),
		zap.String("new_status", string(event.NewStatus)),
		zap.String("reason_type", event.ReasonData.Type()),
	)
	return nil
}

// NotificationMessage is an in-app notice addressed to staff users.
type NotificationMessage struct {
	Title       string
	Body        string
	Actions     []models.NotificationAction
	RelatedType string
	RelatedID   string
}

// NotificationConfig tunes the status mail queue.
type NotificationConfig struct {
	ProgramHeadRole string
	MailWorkers     int
	MailRetries     int
	MailRetryDelay  time.Duration
}

// NotificationService is the Notification Dispatcher. Every failure is logged
// and counted; none is returned to the pipeline step that triggered it.
type NotificationService struct {
	store    notificationStore
	roles    roleLookup
	mailer   Mailer
	metrics  *MetricsService
	queue    *jobs.Queue
	headRole models.UserRole
	logger   *zap.Logger
}

// NewNotificationService wires the dispatcher and its mail queue. The queue
// only accepts jobs after Start.
func NewNotificationService(store notificationStore, roles roleLookup, mailer Mailer, metrics *MetricsService, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	headRole := models.UserRole(cfg.ProgramHeadRole)
	if headRole == "" {
		headRole = models.RoleProgramHead
	}
	svc := &NotificationService{
		store:    store,
		roles:    roles,
		mailer:   mailer,
		metrics:  metrics,
		headRole: headRole,
		logger:   logger,
	}
	svc.queue = jobs.NewQueue("status-mail", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.MailWorkers,
		MaxRetries: cfg.MailRetries,
		RetryDelay: cfg.MailRetryDelay,
		Logger:     logger,
		OnGiveUp: func(job jobs.Job, err error) {
			metrics.RecordNotificationFailure("mail")
		},
	})
	return svc
}

// Start launches the mail workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and stops the mail workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify persists one notice per recipient and returns how many were stored.
func (s *NotificationService) Notify(ctx context.Context, userIDs []string, msg NotificationMessage) int {
	if len(userIDs) == 0 {
		return 0
	}
	actions := "[]"
	if len(msg.Actions) > 0 {
		if payload, err := json.Marshal(msg.Actions); err == nil {
			actions = string(payload)
		}
	}
	var relatedType, relatedID *string
	if msg.RelatedType != "" {
		relatedType = &msg.RelatedType
	}
	if msg.RelatedID != "" {
		relatedID = &msg.RelatedID
	}
	now := time.Now().UTC()
	items := make([]models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		items = append(items, models.Notification{
			ID:          uuid.NewString(),
			UserID:      userID,
			Title:       msg.Title,
			Body:        msg.Body,
			Actions:     json.RawMessage(actions),
			RelatedType: relatedType,
			RelatedID:   relatedID,
			CreatedAt:   now,
		})
	}
	if err := s.store.CreateBatch(ctx, items); err != nil {
		s.metrics.RecordNotificationFailure("in_app")
		s.logger.Warn("failed to persist notifications", zap.String("title", msg.Title), zap.Int("recipients", len(items)), zap.Error(err))
		return 0
	}
	return len(items)
}

// NotifyRole notifies every active user holding role.
func (s *NotificationService) NotifyRole(ctx context.Context, role models.UserRole, msg NotificationMessage) int {
	users, err := s.roles.ListByRole(ctx, role)
	if err != nil {
		s.metrics.RecordNotificationFailure("in_app")
		s.logger.Warn("role lookup failed", zap.String("role", string(role)), zap.Error(err))
		return 0
	}
	if len(users) == 0 {
		s.logger.Warn("no recipients for role notification", zap.String("role", string(role)), zap.String("title", msg.Title))
		return 0
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return s.Notify(ctx, ids, msg)
}

// NotifyProgramHeads notifies the configured program head role.
func (s *NotificationService) NotifyProgramHeads(ctx context.Context, msg NotificationMessage) int {
	return s.NotifyRole(ctx, s.headRole, msg)
}

// SendStatusChangeMail queues the status mail. When the queue is not running
// the mail is sent inline.
func (s *NotificationService) SendStatusChangeMail(ctx context.Context, event ApplicantStatusChanged) error {
	job := jobs.Job{ID: uuid.NewString(), Type: statusMailJobType, Payload: event}
	err := s.queue.Enqueue(job)
	if err == nil {
		s.metrics.SetMailQueueDepth(s.queue.Len())
		return nil
	}
	s.logger.Debug("mail queue unavailable, sending inline", zap.Error(err))
	if err := s.deliver(ctx, job); err != nil {
		s.metrics.RecordNotificationFailure("mail")
		return err
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(ApplicantStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type)
	}
	defer s.metrics.SetMailQueueDepth(s.queue.Len())
	return s.mailer.SendStatusChange(ctx, event)
}

// ListForUser returns the user's notices, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	items, err := s.store.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// MarkRead marks a notice as read for its owner.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.store.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}
