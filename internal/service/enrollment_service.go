package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type enrollmentMaterializer interface {
	Materialize(ctx context.Context, applicant *models.Applicant, req dto.EnrollRequest) (*dto.EnrollmentResult, error)
}

// EnrollmentService makes an interview-approved applicant officially enrolled.
type EnrollmentService struct {
	applicants   applicantReader
	transitions  applicantTransitioner
	materializer enrollmentMaterializer
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(applicants applicantReader, transitions applicantTransitioner, materializer enrollmentMaterializer, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{applicants: applicants, transitions: transitions, materializer: materializer, validator: validate, logger: logger}
}

// Enroll transitions the applicant to "officially enrolled" and materializes
// the student. Retrying an already enrolled applicant completes whatever the
// previous attempt left out.
func (s *EnrollmentService) Enroll(ctx context.Context, applicantID string, req dto.EnrollRequest, actor string) (*dto.EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	applicant, err := findApplicant(ctx, s.applicants, applicantID)
	if err != nil {
		return nil, err
	}
	if applicant.Status != models.ApplicantStatusForEnrollment && applicant.Status != models.ApplicantStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant has not passed the interview")
	}

	reason := models.NewReason(models.ReasonOfficiallyEnrolled)
	if _, err := s.transitions.Transition(ctx, applicant, models.ApplicantStatusEnrolled, reason, actor); err != nil {
		return nil, err
	}
	result, err := s.materializer.Materialize(ctx, applicant, req)
	if err != nil {
		s.logger.Error("enrollment materialization failed", zap.String("applicant_id", applicant.ID), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// BulkEnroll enrolls each applicant independently and collects the students
// whose courses need manual review.
func (s *EnrollmentService) BulkEnroll(ctx context.Context, req dto.BulkEnrollRequest, actor string) (*dto.BulkEnrollReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk enrollment payload")
	}
	report := &dto.BulkEnrollReport{
		BulkResult:   dto.BulkResult{Succeeded: []string{}, Failed: []dto.BulkError{}},
		ManualReview: []dto.ManualReviewItem{},
	}
	for _, applicantID := range req.ApplicantIDs {
		result, err := s.Enroll(ctx, applicantID, req.EnrollRequest, actor)
		if err != nil {
			report.Failed = append(report.Failed, bulkError(applicantID, err))
			continue
		}
		report.Succeeded = append(report.Succeeded, applicantID)
		if result.NeedsManualReview {
			report.ManualReview = append(report.ManualReview, dto.ManualReviewItem{
				ApplicantID:   applicantID,
				StudentNumber: result.Student.StudentNumber,
				Reason:        result.ManualReviewReason,
			})
		}
	}
	return report, nil
}
