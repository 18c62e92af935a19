package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

const summaryCacheKey = "summary:pipeline"

type applicantRepository interface {
	Create(ctx context.Context, applicant *models.Applicant) error
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error)
	ListHistory(ctx context.Context, applicantID string) ([]models.StatusHistory, error)
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountAwaitingResource(ctx context.Context) (int, error)
}

type documentCreator interface {
	Create(ctx context.Context, doc *models.AdmissionDocument) error
}

// ApplicantService handles intake, lookup and manual decline of applicants.
type ApplicantService struct {
	repo        applicantRepository
	documents   documentCreator
	transitions applicantTransitioner
	cache       *CacheService
	summaryTTL  time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewApplicantService constructs ApplicantService.
func NewApplicantService(repo applicantRepository, documents documentCreator, transitions applicantTransitioner, cache *CacheService, summaryTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ApplicantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicantService{
		repo:        repo,
		documents:   documents,
		transitions: transitions,
		cache:       cache,
		summaryTTL:  summaryTTL,
		validator:   validate,
		logger:      logger,
	}
}

// Create registers an applicant and records the application as received.
// Listed document types are created as Missing requirements.
func (s *ApplicantService) Create(ctx context.Context, req dto.CreateApplicantRequest, actor string) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid applicant payload")
	}
	applicant := &models.Applicant{
		FullName:        strings.TrimSpace(req.FullName),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:           strings.TrimSpace(req.Phone),
		ProgramID:       req.ProgramID,
		ProgramCategory: strings.TrimSpace(req.ProgramCategory),
	}
	if req.BirthDate != "" {
		birth, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid birth_date")
		}
		applicant.BirthDate = &birth
	}
	if err := s.repo.Create(ctx, applicant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create applicant")
	}

	for _, docType := range req.Documents {
		doc := &models.AdmissionDocument{ApplicantID: applicant.ID, DocumentType: strings.TrimSpace(docType), Status: models.DocumentStatusMissing}
		if err := s.documents.Create(ctx, doc); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create applicant documents")
		}
	}

	reason := models.NewReason(models.ReasonApplicationReceived)
	if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusPending, reason, actor); err != nil {
		return nil, err
	}
	return applicant, nil
}

// Get returns one applicant.
func (s *ApplicantService) Get(ctx context.Context, id string) (*models.Applicant, error) {
	return findApplicant(ctx, s.repo, id)
}

// List returns applicants with pagination metadata.
func (s *ApplicantService) List(ctx context.Context, query dto.ApplicantQuery) ([]models.Applicant, *models.Pagination, error) {
	filter := models.ApplicantFilter{
		Status:    models.ApplicantStatus(strings.ToLower(strings.TrimSpace(query.Status))),
		Category:  strings.TrimSpace(query.Category),
		Awaiting:  query.Awaiting,
		Search:    strings.TrimSpace(query.Search),
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	applicants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applicants")
	}
	return applicants, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Decline lets staff decline an applicant who is still in the pipeline.
func (s *ApplicantService) Decline(ctx context.Context, id string, req dto.DeclineApplicantRequest, actor string) (*models.Applicant, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a decline reason is required")
	}
	applicant, err := findApplicant(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if applicant.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant is already "+string(applicant.Status))
	}
	reason := models.NewReason(models.ReasonApplicationDeclined).With(models.ReasonKeyRejectionReason, req.Reason)
	if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusDeclined, reason, actor); err != nil {
		return nil, err
	}
	return applicant, nil
}

// History lists the recorded status transitions of an applicant.
func (s *ApplicantService) History(ctx context.Context, id string) ([]models.StatusHistory, error) {
	if _, err := findApplicant(ctx, s.repo, id); err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	return history, nil
}

// Summary reports applicant counts per status. The second return value is
// true when the response came from cache.
func (s *ApplicantService) Summary(ctx context.Context) (*models.PipelineSummary, bool, error) {
	var cached models.PipelineSummary
	value, hit, err := s.cache.Remember(ctx, summaryCacheKey, s.summaryTTL, &cached, func(ctx context.Context) (interface{}, error) {
		counts, err := s.repo.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		awaiting, err := s.repo.CountAwaitingResource(ctx)
		if err != nil {
			return nil, err
		}
		return &models.PipelineSummary{Counts: counts, AwaitingResource: awaiting, GeneratedAt: time.Now().UTC()}, nil
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build pipeline summary")
	}
	return value.(*models.PipelineSummary), hit, nil
}

// InvalidateSummary drops the cached summary.
func (s *ApplicantService) InvalidateSummary(ctx context.Context) error {
	return s.cache.Invalidate(ctx, summaryCacheKey)
}
