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
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.AdmissionDocument) error
	FindByID(ctx context.Context, id string) (*models.AdmissionDocument, error)
	ListByApplicant(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error)
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, remarkLine string) (*models.AdmissionDocument, error)
}

type applicantReader interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
}

type documentGate interface {
	Evaluate(ctx context.Context, applicantID, actor string) (*dto.GateResult, error)
}

// DocumentService manages admission documents and triggers the verification
// gate when a document becomes Verified.
type DocumentService struct {
	repo        documentRepository
	applicants  applicantReader
	gate        documentGate
	transitions applicantTransitioner
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(repo documentRepository, applicants applicantReader, gate documentGate, transitions applicantTransitioner, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:        repo,
		applicants:  applicants,
		gate:        gate,
		transitions: transitions,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a document requirement for an applicant.
func (s *DocumentService) Create(ctx context.Context, applicantID string, req dto.CreateDocumentRequest) (*models.AdmissionDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if _, err := findApplicant(ctx, s.applicants, applicantID); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = models.DocumentStatusMissing
	}
	doc := &models.AdmissionDocument{
		ApplicantID:  applicantID,
		DocumentType: strings.TrimSpace(req.DocumentType),
		Status:       status,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	return doc, nil
}

// List returns the documents of an applicant.
func (s *DocumentService) List(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error) {
	if _, err := findApplicant(ctx, s.applicants, applicantID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// UpdateStatus records a review decision. The document change is always kept;
// pipeline failures after it are reported as warnings.
func (s *DocumentService) UpdateStatus(ctx context.Context, id string, req dto.UpdateDocumentStatusRequest, actor string) (*dto.DocumentReviewResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document status payload")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	remark := strings.TrimSpace(req.Remark)
	doc, err := s.repo.UpdateStatus(ctx, id, req.Status, s.remarkLine(req.Status, actor, remark))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	result := &dto.DocumentReviewResult{Document: doc}

	switch doc.Status {
	case models.DocumentStatusVerified:
		gate, err := s.gate.Evaluate(ctx, doc.ApplicantID, actor)
		if err != nil {
			s.logger.Warn("verification gate failed", zap.String("applicant_id", doc.ApplicantID), zap.String("document_id", doc.ID), zap.Error(err))
			result.Warnings = append(result.Warnings, "document saved but the applicant was not advanced: "+appErrors.FromError(err).Message)
			return result, nil
		}
		result.Pipeline = gate
		if gate.Outcome == dto.GateOutcomeAwaitingInterview {
			result.Warnings = append(result.Warnings, gate.Warnings...)
		}
	case models.DocumentStatusInvalid:
		if err := s.declineForInvalidDocument(ctx, doc, remark, actor); err != nil {
			s.logger.Warn("failed to decline applicant for invalid document", zap.String("applicant_id", doc.ApplicantID), zap.Error(err))
			result.Warnings = append(result.Warnings, "document saved but the applicant status was not updated: "+appErrors.FromError(err).Message)
		}
	}
	return result, nil
}

// BulkVerify verifies each document independently; one failure does not undo
// the others.
func (s *DocumentService) BulkVerify(ctx context.Context, req dto.BulkVerifyRequest, actor string) (*dto.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk verify payload")
	}
	report := &dto.BulkResult{Succeeded: []string{}, Failed: []dto.BulkError{}}
	for _, id := range req.DocumentIDs {
		res, err := s.UpdateStatus(ctx, id, dto.UpdateDocumentStatusRequest{Status: models.DocumentStatusVerified, Remark: req.Remark}, actor)
		if err != nil {
			report.Failed = append(report.Failed, bulkError(id, err))
			continue
		}
		report.Succeeded = append(report.Succeeded, id)
		report.Warnings = appendUnique(report.Warnings, res.Warnings...)
	}
	return report, nil
}

// Reprocess re-runs the verification gate for an applicant.
func (s *DocumentService) Reprocess(ctx context.Context, applicantID, actor string) (*dto.GateResult, error) {
	return s.gate.Evaluate(ctx, applicantID, actor)
}

func (s *DocumentService) declineForInvalidDocument(ctx context.Context, doc *models.AdmissionDocument, remark, actor string) error {
	applicant, err := findApplicant(ctx, s.applicants, doc.ApplicantID)
	if err != nil {
		return err
	}
	if applicant.Status.Terminal() {
		return nil
	}
	reason := models.NewReason(models.ReasonDocumentInvalid).
		With(models.ReasonKeyDocumentName, doc.DocumentType).
		With(models.ReasonKeyRejectionReason, remark)
	_, err = s.transitions.Transition(ctx, applicant, models.ApplicantStatusDeclined, reason, actor)
	return err
}

func (s *DocumentService) remarkLine(status models.DocumentStatus, actor, remark string) string {
	if actor == "" {
		actor = "system"
	}
	line := fmt.Sprintf("[%s] %s by %s", s.now().Format(time.RFC3339), status, actor)
	if remark != "" {
		line += ": " + remark
	}
	return line
}

func findApplicant(ctx context.Context, applicants applicantReader, id string) (*models.Applicant, error) {
	applicant, err := applicants.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	return applicant, nil
}

func bulkError(id string, err error) dto.BulkError {
	appErr := appErrors.FromError(err)
	return dto.BulkError{ID: id, Code: appErr.Code, Error: appErr.Message}
}

func appendUnique(values []string, extra ...string) []string {
	for _, v := range extra {
		if !containsFold(values, v) {
			values = append(values, v)
		}
	}
	return values
}
