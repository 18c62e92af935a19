package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type mockNotificationStore struct {
	mu        sync.Mutex
	items     []models.Notification
	createErr error
}

func (m *mockNotificationStore) CreateBatch(ctx context.Context, items []models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.items = append(m.items, items...)
	return nil
}

func (m *mockNotificationStore) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.items {
		if n.UserID == userID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			now := time.Now()
			m.items[i].ReadAt = &now
			return true, nil
		}
	}
	return false, nil
}

type mockRoleLookup struct {
	users map[models.UserRole][]models.User
	err   error
}

func (m mockRoleLookup) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	return m.users[role], m.err
}

type recordingMailer struct {
	mu    sync.Mutex
	sent  []ApplicantStatusChanged
	err   error
	calls int
}

func (m *recordingMailer) SendStatusChange(ctx context.Context, event ApplicantStatusChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, event)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestNotifyProgramHeads(t *testing.T) {
	store := &mockNotificationStore{}
	roles := mockRoleLookup{users: map[models.UserRole][]models.User{
		models.RoleProgramHead: {{ID: "h1"}, {ID: "h2"}},
	}}
	svc := NewNotificationService(store, roles, nil, NewMetricsService(), NotificationConfig{}, nil)

	sent := svc.NotifyProgramHeads(context.Background(), NotificationMessage{
		Title:       "Interview schedules are full",
		Actions:     []models.NotificationAction{{Label: "Create interview schedule", URL: "/interview-schedules"}},
		RelatedType: "applicant",
		RelatedID:   "a1",
	})
	assert.Equal(t, 2, sent)
	require.Len(t, store.items, 2)

	var actions []models.NotificationAction
	require.NoError(t, json.Unmarshal(store.items[0].Actions, &actions))
	assert.Equal(t, "/interview-schedules", actions[0].URL)
	assert.Equal(t, "a1", *store.items[0].RelatedID)

	assert.Zero(t, svc.NotifyRole(context.Background(), models.RoleAdmin, NotificationMessage{Title: "nobody"}))
}

func TestNotifySwallowsFailures(t *testing.T) {
	store := &mockNotificationStore{createErr: errors.New("insert failed")}
	roles := mockRoleLookup{err: errors.New("db down")}
	svc := NewNotificationService(store, roles, nil, NewMetricsService(), NotificationConfig{}, nil)

	assert.Zero(t, svc.Notify(context.Background(), []string{"u1"}, NotificationMessage{Title: "t"}))
	assert.Zero(t, svc.NotifyProgramHeads(context.Background(), NotificationMessage{Title: "t"}))
}

func TestSendStatusChangeMailInlineWhenStopped(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewNotificationService(&mockNotificationStore{}, mockRoleLookup{}, mailer, NewMetricsService(), NotificationConfig{}, nil)

	err := svc.SendStatusChangeMail(context.Background(), ApplicantStatusChanged{Applicant: models.Applicant{ID: "a1"}, NewStatus: models.ApplicantStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 1, mailer.count())

	mailer.err = errors.New("smtp refused")
	err = svc.SendStatusChangeMail(context.Background(), ApplicantStatusChanged{Applicant: models.Applicant{ID: "a1"}})
	require.Error(t, err)
}

func TestSendStatusChangeMailQueued(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewNotificationService(&mockNotificationStore{}, mockRoleLookup{}, mailer, NewMetricsService(), NotificationConfig{MailWorkers: 2, MailRetryDelay: time.Millisecond}, nil)
	svc.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.SendStatusChangeMail(context.Background(), ApplicantStatusChanged{Applicant: models.Applicant{ID: "a1"}}))
	}
	assert.Eventually(t, func() bool { return mailer.count() == 5 }, time.Second, 5*time.Millisecond)
	svc.Stop()
}

func TestNotificationInbox(t *testing.T) {
	store := &mockNotificationStore{}
	svc := NewNotificationService(store, mockRoleLookup{}, nil, nil, NotificationConfig{}, nil)
	require.Equal(t, 1, svc.Notify(context.Background(), []string{"u1"}, NotificationMessage{Title: "hello"}))
	assert.JSONEq(t, "[]", string(store.items[0].Actions))

	items, err := svc.ListForUser(context.Background(), "u1", true, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.MarkRead(context.Background(), items[0].ID, "u1"))
	err = svc.MarkRead(context.Background(), items[0].ID, "u2")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	items, err = svc.ListForUser(context.Background(), "u1", true, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{From: "admissions@example.com"}.SendStatusChange(context.Background(), ApplicantStatusChanged{
		Applicant:  models.Applicant{ID: "a1", Email: "a@example.com"},
		NewStatus:  models.ApplicantStatusDeclined,
		ReasonData: models.NewReason(models.ReasonExamFailed),
	}))
}
