package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type gateApplicantStore interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	SetAwaitingResource(ctx context.Context, id string, awaiting bool) error
}

type gateDocumentReader interface {
	ListByApplicant(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error)
}

type applicantTransitioner interface {
	Transition(ctx context.Context, applicant *models.Applicant, newStatus models.ApplicantStatus, reason models.ReasonData, actor string) (bool, error)
}

type interviewSlotAllocator interface {
	HoldEarliest(ctx context.Context, applicantID string, commit func(*models.ApplicantInterviewSchedule, *models.InterviewSchedule) error) error
}

type programHeadNotifier interface {
	NotifyProgramHeads(ctx context.Context, msg NotificationMessage) int
}

// GateConfig lists the category rules of the verification gate.
type GateConfig struct {
	InterviewOnlyCategories []string
	ExamCategories          []string
	RequiredDocuments       map[string][]string
}

// DocumentGate decides whether a document-complete applicant may leave
// document review and where they go next.
type DocumentGate struct {
	applicants  gateApplicantStore
	documents   gateDocumentReader
	categories  *CategoryResolver
	allocator   interviewSlotAllocator
	transitions applicantTransitioner
	notifier    programHeadNotifier
	metrics     *MetricsService
	cfg         GateConfig
	logger      *zap.Logger
}

// NewDocumentGate constructs the gate.
func NewDocumentGate(applicants gateApplicantStore, documents gateDocumentReader, categories *CategoryResolver, allocator interviewSlotAllocator, transitions applicantTransitioner, notifier programHeadNotifier, metrics *MetricsService, cfg GateConfig, logger *zap.Logger) *DocumentGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if categories == nil {
		categories = NewCategoryResolver(nil, logger)
	}
	return &DocumentGate{
		applicants:  applicants,
		documents:   documents,
		categories:  categories,
		allocator:   allocator,
		transitions: transitions,
		notifier:    notifier,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
	}
}

// Evaluate runs the gate for one applicant. Running it again without any
// document change neither transitions nor notifies a second time.
func (g *DocumentGate) Evaluate(ctx context.Context, applicantID, actor string) (*dto.GateResult, error) {
	applicant, err := findApplicant(ctx, g.applicants, applicantID)
	if err != nil {
		return nil, err
	}

	category := g.categories.Resolve(ctx, applicant.ProgramCategory)
	result := &dto.GateResult{ApplicantID: applicant.ID, Category: category, Status: applicant.Status}

	if applicant.IsBlacklisted || (applicant.Status != models.ApplicantStatusPending && applicant.Status != models.ApplicantStatusApproved) {
		result.Outcome = dto.GateOutcomeNotEligible
		return result, nil
	}

	docs, err := g.documents.ListByApplicant(ctx, applicant.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	if missing := incompleteDocuments(docs, g.cfg.RequiredDocuments[category]); len(missing) > 0 {
		result.Outcome = dto.GateOutcomeIncomplete
		result.Warnings = []string{"documents not yet verified: " + strings.Join(missing, ", ")}
		return result, nil
	}

	switch {
	case categoryIn(category, g.cfg.ExamCategories):
		return g.advance(ctx, applicant, models.ApplicantStatusApproved, models.NewReason(models.ReasonDocumentsVerified), actor, result)
	case categoryIn(category, g.cfg.InterviewOnlyCategories):
		return g.requireInterviewSlot(ctx, applicant, category, actor, result)
	default:
		err := g.allocator.HoldEarliest(ctx, applicant.ID, func(assignment *models.ApplicantInterviewSchedule, schedule *models.InterviewSchedule) error {
			reason := models.NewReason(models.ReasonDocumentsVerified)
			if schedule != nil {
				applicant.AwaitingResource = false
				withInterview(reason, schedule)
				result.Interview = assignment
			} else {
				// queued until ProcessQueue finds a slot
				applicant.AwaitingResource = true
			}
			_, err := g.advance(ctx, applicant, models.ApplicantStatusForInterview, reason, actor, result)
			return err
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// requireInterviewSlot only advances interview-only categories when a slot
// can be held for them.
func (g *DocumentGate) requireInterviewSlot(ctx context.Context, applicant *models.Applicant, category, actor string, result *dto.GateResult) (*dto.GateResult, error) {
	held := false
	err := g.allocator.HoldEarliest(ctx, applicant.ID, func(assignment *models.ApplicantInterviewSchedule, schedule *models.InterviewSchedule) error {
		if schedule == nil {
			return nil
		}
		held = true
		applicant.AwaitingResource = false
		result.Interview = assignment
		reason := withInterview(models.NewReason(models.ReasonInterviewScheduled), schedule)
		_, err := g.advance(ctx, applicant, models.ApplicantStatusForInterview, reason, actor, result)
		return err
	})
	if err != nil {
		return nil, err
	}
	if held {
		return result, nil
	}

	result.Outcome = dto.GateOutcomeAwaitingInterview
	result.Warnings = append(result.Warnings, "no interview schedule has free capacity; the applicant stays in document review")
	if applicant.AwaitingResource {
		return result, nil
	}
	if err := g.applicants.SetAwaitingResource(ctx, applicant.ID, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue applicant")
	}
	g.metrics.RecordCapacityExhausted("interview")
	g.logger.Info("applicant queued for interview capacity", zap.String("applicant_id", applicant.ID), zap.String("category", category))
	if g.notifier != nil {
		g.notifier.NotifyProgramHeads(ctx, NotificationMessage{
			Title:       "Interview schedules are full",
			Body:        fmt.Sprintf("%s (%s) has verified documents but no interview schedule has free capacity. Add an interview schedule to continue.", applicant.FullName, category),
			Actions:     []models.NotificationAction{{Label: "Create interview schedule", URL: "/interview-schedules"}},
			RelatedType: "applicant",
			RelatedID:   applicant.ID,
		})
	}
	return result, nil
}

func (g *DocumentGate) advance(ctx context.Context, applicant *models.Applicant, status models.ApplicantStatus, reason models.ReasonData, actor string, result *dto.GateResult) (*dto.GateResult, error) {
	changed, err := g.transitions.Transition(ctx, applicant, status, reason, actor)
	if err != nil {
		return nil, err
	}
	result.Status = applicant.Status
	result.Transitioned = changed
	if changed {
		result.Outcome = dto.GateOutcomeAdvanced
	} else {
		result.Outcome = dto.GateOutcomeUnchanged
	}
	return result, nil
}

// incompleteDocuments returns the document types blocking completion. An
// applicant with no documents at all is never complete.
func incompleteDocuments(docs []models.AdmissionDocument, required []string) []string {
	if len(docs) == 0 {
		return []string{"no documents on file"}
	}
	var missing []string
	verified := make(map[string]bool, len(docs))
	for _, doc := range docs {
		key := strings.ToLower(strings.TrimSpace(doc.DocumentType))
		if doc.Status != models.DocumentStatusVerified {
			missing = append(missing, doc.DocumentType)
			continue
		}
		verified[key] = true
	}
	for _, docType := range required {
		key := strings.ToLower(strings.TrimSpace(docType))
		if !verified[key] && !containsFold(missing, docType) {
			missing = append(missing, docType)
		}
	}
	return missing
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return true
		}
	}
	return false
}

func withInterview(reason models.ReasonData, schedule *models.InterviewSchedule) models.ReasonData {
	return reason.
		With(models.ReasonKeyInterviewDate, schedule.InterviewDate.Format("2006-01-02")).
		With(models.ReasonKeyInterviewTime, schedule.StartTime+" - "+schedule.EndTime).
		With(models.ReasonKeyVenue, schedule.Venue)
}
