package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/repository"
	"github.com/noah-isme/admissions-api/pkg/config"
	"github.com/noah-isme/admissions-api/pkg/events"
)

type mockApplicantStore struct {
	mu         sync.Mutex
	applicants map[string]models.Applicant
	history    []models.StatusHistory
	awaitCalls int
	saveErr    error
}

func newMockApplicantStore(applicants ...models.Applicant) *mockApplicantStore {
	store := &mockApplicantStore{applicants: make(map[string]models.Applicant)}
	for _, a := range applicants {
		store.applicants[a.ID] = a
	}
	return store
}

func (m *mockApplicantStore) get(id string) models.Applicant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applicants[id]
}

func (m *mockApplicantStore) Create(ctx context.Context, applicant *models.Applicant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if applicant.ID == "" {
		applicant.ID = fmt.Sprintf("app-%d", len(m.applicants)+1)
	}
	if applicant.ExternalID == "" {
		applicant.ExternalID = "APP-" + applicant.ID
	}
	m.applicants[applicant.ID] = *applicant
	return nil
}

func (m *mockApplicantStore) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applicants[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m *mockApplicantStore) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.Applicant
	for _, a := range m.applicants {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, len(items), nil
}

func (m *mockApplicantStore) SaveStatus(ctx context.Context, applicant *models.Applicant, history *models.StatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.applicants[applicant.ID] = *applicant
	m.history = append(m.history, *history)
	return nil
}

func (m *mockApplicantStore) SetAwaitingResource(ctx context.Context, id string, awaiting bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.applicants[id]
	a.AwaitingResource = awaiting
	m.applicants[id] = a
	m.awaitCalls++
	return nil
}

func (m *mockApplicantStore) SetStudentNumber(ctx context.Context, id, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.applicants[id]
	a.StudentNumber = &number
	m.applicants[id] = a
	return nil
}

func (m *mockApplicantStore) ListAwaitingResource(ctx context.Context, limit int) ([]models.Applicant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.Applicant
	for _, a := range m.applicants {
		if a.AwaitingResource && !a.IsBlacklisted {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *mockApplicantStore) ListHistory(ctx context.Context, applicantID string) ([]models.StatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.StatusHistory
	for _, h := range m.history {
		if h.ApplicantID == applicantID {
			items = append(items, h)
		}
	}
	return items, nil
}

func (m *mockApplicantStore) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.ApplicantStatus]int{}
	for _, a := range m.applicants {
		counts[a.Status]++
	}
	var items []models.StatusCount
	for status, total := range counts {
		items = append(items, models.StatusCount{Status: status, Total: total})
	}
	return items, nil
}

func (m *mockApplicantStore) CountAwaitingResource(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, a := range m.applicants {
		if a.AwaitingResource {
			total++
		}
	}
	return total, nil
}

func (m *mockApplicantStore) transitionsFor(applicantID string) []models.StatusHistory {
	items, _ := m.ListHistory(context.Background(), applicantID)
	return items
}

type mockDocumentStore struct {
	docs map[string]models.AdmissionDocument
}

func newMockDocumentStore(docs ...models.AdmissionDocument) *mockDocumentStore {
	store := &mockDocumentStore{docs: make(map[string]models.AdmissionDocument)}
	for _, d := range docs {
		store.docs[d.ID] = d
	}
	return store
}

func (m *mockDocumentStore) Create(ctx context.Context, doc *models.AdmissionDocument) error {
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", len(m.docs)+1)
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *mockDocumentStore) FindByID(ctx context.Context, id string) (*models.AdmissionDocument, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (m *mockDocumentStore) ListByApplicant(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error) {
	var items []models.AdmissionDocument
	for _, d := range m.docs {
		if d.ApplicantID == applicantID {
			items = append(items, d)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *mockDocumentStore) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, remarkLine string) (*models.AdmissionDocument, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d.Status = status
	if d.Remarks != "" {
		d.Remarks += "\n"
	}
	d.Remarks += remarkLine
	m.docs[id] = d
	return &d, nil
}

// mockInterviewStore enforces capacity under a mutex the way the repository
// does under a row lock.
type mockInterviewStore struct {
	mu          sync.Mutex
	schedules   map[string]models.InterviewSchedule
	assignments map[string]models.ApplicantInterviewSchedule
	assignCalls int
}

func newMockInterviewStore(schedules ...models.InterviewSchedule) *mockInterviewStore {
	store := &mockInterviewStore{schedules: make(map[string]models.InterviewSchedule), assignments: make(map[string]models.ApplicantInterviewSchedule)}
	for _, s := range schedules {
		store.schedules[s.ID] = s
	}
	return store
}

func (m *mockInterviewStore) usedLocked(scheduleID, exceptApplicant string) int {
	used := 0
	for _, a := range m.assignments {
		if a.InterviewScheduleID == scheduleID && a.Status.OccupiesCapacity() && a.ApplicantID != exceptApplicant {
			used++
		}
	}
	return used
}

func (m *mockInterviewStore) Create(ctx context.Context, schedule *models.InterviewSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if schedule.ID == "" {
		schedule.ID = fmt.Sprintf("int-%d", len(m.schedules)+1)
	}
	m.schedules[schedule.ID] = *schedule
	return nil
}

func (m *mockInterviewStore) Update(ctx context.Context, schedule *models.InterviewSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[schedule.ID] = *schedule
	return nil
}

func (m *mockInterviewStore) FindByID(ctx context.Context, id string) (*models.InterviewSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.UsedSlots = m.usedLocked(id, "")
	return &s, nil
}

func (m *mockInterviewStore) ListAvailable(ctx context.Context, onOrAfter time.Time, limit int) ([]models.InterviewSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.InterviewSchedule
	for _, s := range m.schedules {
		if s.InterviewDate.Before(onOrAfter) {
			continue
		}
		s.UsedSlots = m.usedLocked(s.ID, "")
		if s.UsedSlots < s.Capacity {
			items = append(items, s)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].InterviewDate.Equal(items[j].InterviewDate) {
			return items[i].InterviewDate.Before(items[j].InterviewDate)
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *mockInterviewStore) Assign(ctx context.Context, scheduleID, applicantID string) (*models.ApplicantInterviewSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignCalls++
	s, ok := m.schedules[scheduleID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	existing, has := m.findByApplicantLocked(applicantID)
	if has && existing.InterviewScheduleID == scheduleID && existing.Status.OccupiesCapacity() {
		return &existing, nil
	}
	if m.usedLocked(scheduleID, applicantID) >= s.Capacity {
		return nil, repository.ErrCapacityReached
	}
	row := models.ApplicantInterviewSchedule{ID: fmt.Sprintf("ia-%s", applicantID), ApplicantID: applicantID}
	if has {
		row = existing
	}
	row.InterviewScheduleID = scheduleID
	row.Status = models.InterviewAssignmentScheduled
	row.DeclineReason = nil
	m.assignments[row.ID] = row
	return &row, nil
}

func (m *mockInterviewStore) findByApplicantLocked(applicantID string) (models.ApplicantInterviewSchedule, bool) {
	for _, a := range m.assignments {
		if a.ApplicantID == applicantID {
			return a, true
		}
	}
	return models.ApplicantInterviewSchedule{}, false
}

func (m *mockInterviewStore) FindAssignment(ctx context.Context, id string) (*models.ApplicantInterviewSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m *mockInterviewStore) FindAssignmentByApplicant(ctx context.Context, applicantID string) (*models.ApplicantInterviewSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.findByApplicantLocked(applicantID)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m *mockInterviewStore) Decide(ctx context.Context, id string, from, to models.InterviewAssignmentStatus, reason *string) (*models.ApplicantInterviewSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok || a.Status != from {
		return nil, sql.ErrNoRows
	}
	a.Status = to
	a.DeclineReason = reason
	m.assignments[id] = a
	return &a, nil
}

type mockExamStore struct {
	mu          sync.Mutex
	rooms       map[string]models.Room
	schedules   map[string]models.ExamSchedule
	assignments map[string]models.ApplicantExamSchedule
	saved       int
}

func newMockExamStore() *mockExamStore {
	return &mockExamStore{
		rooms:       make(map[string]models.Room),
		schedules:   make(map[string]models.ExamSchedule),
		assignments: make(map[string]models.ApplicantExamSchedule),
	}
}

func (m *mockExamStore) countLocked(scheduleID string) int {
	used := 0
	for _, a := range m.assignments {
		if a.ExamScheduleID == scheduleID {
			used++
		}
	}
	return used
}

func (m *mockExamStore) FindRoom(ctx context.Context, id string) (*models.Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m *mockExamStore) Create(ctx context.Context, schedule *models.ExamSchedule) error {
	if schedule.ID == "" {
		schedule.ID = fmt.Sprintf("exam-%d", len(m.schedules)+1)
	}
	m.schedules[schedule.ID] = *schedule
	return nil
}

func (m *mockExamStore) Update(ctx context.Context, schedule *models.ExamSchedule) error {
	m.schedules[schedule.ID] = *schedule
	return nil
}

func (m *mockExamStore) FindByID(ctx context.Context, id string) (*models.ExamSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.ApprovedApplicantsCount = m.countLocked(id)
	return &s, nil
}

func (m *mockExamStore) FindOverlapping(ctx context.Context, roomID string, date time.Time, start, end, excludeID string) ([]models.ExamSchedule, error) {
	var items []models.ExamSchedule
	for _, s := range m.schedules {
		if s.ID == excludeID || s.RoomID != roomID || !s.ExamDate.Equal(date) {
			continue
		}
		if s.StartTime < end && s.EndTime > start {
			items = append(items, s)
		}
	}
	return items, nil
}

func (m *mockExamStore) Assign(ctx context.Context, scheduleID, applicantID string) (*models.ApplicantExamSchedule, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[scheduleID]
	if !ok {
		return nil, false, sql.ErrNoRows
	}
	for _, a := range m.assignments {
		if a.ApplicantID == applicantID && a.ExamScheduleID == scheduleID {
			return &a, false, nil
		}
	}
	if m.countLocked(scheduleID) >= s.Capacity {
		return nil, false, repository.ErrCapacityReached
	}
	a := models.ApplicantExamSchedule{ID: fmt.Sprintf("ea-%s-%s", scheduleID, applicantID), ApplicantID: applicantID, ExamScheduleID: scheduleID, Status: models.ExamAssignmentAssigned}
	m.assignments[a.ID] = a
	return &a, true, nil
}

func (m *mockExamStore) FindAssignment(ctx context.Context, id string) (*models.ApplicantExamSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m *mockExamStore) UpdateAssignmentStatus(ctx context.Context, id string, status models.ExamAssignmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.assignments[id]
	a.Status = status
	m.assignments[id] = a
	return nil
}

func (m *mockExamStore) SaveResult(ctx context.Context, assignment *models.ApplicantExamSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[assignment.ID] = *assignment
	m.saved++
	return nil
}

type mockHeadNotifier struct {
	mu       sync.Mutex
	messages []NotificationMessage
}

func (m *mockHeadNotifier) NotifyProgramHeads(ctx context.Context, msg NotificationMessage) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return 1
}

func (m *mockHeadNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ApplicantStatusChanged
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if changed, ok := event.(ApplicantStatusChanged); ok {
		p.events = append(p.events, changed)
	}
	return 0, nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// pipelineFixture wires the real pipeline services over in-memory stores.
type pipelineFixture struct {
	applicants  *mockApplicantStore
	documents   *mockDocumentStore
	interviews  *mockInterviewStore
	exams       *mockExamStore
	notifier    *mockHeadNotifier
	publisher   *recordingPublisher
	metrics     *MetricsService
	transitions *StatusTransitionService
	capacity    *CapacityResolver
	allocator   *InterviewAllocator
	gate        *DocumentGate
}

func newPipelineFixture(applicants ...models.Applicant) *pipelineFixture {
	f := &pipelineFixture{
		applicants: newMockApplicantStore(applicants...),
		documents:  newMockDocumentStore(),
		interviews: newMockInterviewStore(),
		exams:      newMockExamStore(),
		notifier:   &mockHeadNotifier{},
		publisher:  &recordingPublisher{},
		metrics:    NewMetricsService(),
	}
	f.transitions = NewStatusTransitionService(f.applicants, f.publisher, config.TransitionPolicyWarn, nil)
	f.capacity = NewCapacityResolver(f.exams, f.interviews)
	f.allocator = NewInterviewAllocator(f.capacity, f.interviews, nil)
	f.gate = NewDocumentGate(f.applicants, f.documents, NewCategoryResolver(nil, nil), f.allocator, f.transitions, f.notifier, f.metrics, GateConfig{
		InterviewOnlyCategories: []string{models.CategoryTESDA, models.CategoryDiploma},
		RequiredDocuments:       map[string][]string{},
	}, nil)
	return f
}

func futureDate(days int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

// failingTransitioner rejects every transition without touching the store.
type failingTransitioner struct {
	err error
}

func (f failingTransitioner) Transition(ctx context.Context, applicant *models.Applicant, newStatus models.ApplicantStatus, reason models.ReasonData, actor string) (bool, error) {
	return false, f.err
}
