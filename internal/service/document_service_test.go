package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type failingGate struct{}

func (failingGate) Evaluate(ctx context.Context, applicantID, actor string) (*dto.GateResult, error) {
	return nil, errors.New("database unavailable")
}

func newDocumentService(f *pipelineFixture) *DocumentService {
	svc := NewDocumentService(f.documents, f.applicants, f.gate, f.transitions, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC) }
	return svc
}

func TestDocumentUpdateStatusAppendsRemarks(t *testing.T) {
	f := newPipelineFixture(models.Applicant{ID: "a1", ProgramCategory: "CHED", Status: models.ApplicantStatusPending})
	f.documents.docs["d1"] = models.AdmissionDocument{ID: "d1", ApplicantID: "a1", DocumentType: "Form 138", Status: models.DocumentStatusSubmitted}
	f.documents.docs["d2"] = models.AdmissionDocument{ID: "d2", ApplicantID: "a1", DocumentType: "Birth Certificate", Status: models.DocumentStatusSubmitted}
	svc := newDocumentService(f)
	ctx := context.Background()

	result, err := svc.UpdateStatus(ctx, "d1", dto.UpdateDocumentStatusRequest{Status: models.DocumentStatusVerified, Remark: "clear copy"}, "registrar")
	require.NoError(t, err)
	assert.Equal(t, "[2026-10-01T08:30:00Z] Verified by registrar: clear copy", result.Document.Remarks)
	require.NotNil(t, result.Pipeline)
	assert.Equal(t, dto.GateOutcomeIncomplete, result.Pipeline.Outcome)
	assert.Empty(t, result.Warnings)

	_, err = svc.UpdateStatus(ctx, "d1", dto.UpdateDocumentStatusRequest{Status: models.DocumentStatusVerified}, "")
	require.NoError(t, err)
	assert.Equal(t, "[2026-10-01T08:30:00Z] Verified by registrar: clear copy\n[2026-10-01T08:30:00Z] Verified by system", f.documents.docs["d1"].Remarks)

	result, err = svc.UpdateStatus(ctx, "d2", dto.UpdateDocumentStatusRequest{Status: models.DocumentStatusVerified}, "registrar")
	require.NoError(t, err)
	assert.Equal(t, dto.GateOutcomeAdvanced, result.Pipeline.Outcome)
	assert.Equal(t, models.ApplicantStatusForInterview, f.applicants.get("a1").Status)
}

func TestDocumentUpdateStatusInvalidDeclines(t *testing.T) {
	f := newPipelineFixture(models.Applicant{ID: "a1", Status: models.ApplicantStatusPending})
	f.documents.docs["d1"] = models.AdmissionDocument{ID: "d1", ApplicantID: "a1", DocumentType: "Form 138", Status: models.DocumentStatusSubmitted}
	svc := newDocumentService(f)

	_, err := svc.UpdateStatus(context.Background(), "d1", dto.UpdateDocumentStatusRequest{Status: models.DocumentStatusInvalid, Remark: "unreadable scan"}, "registrar")
	require.NoError(t, err)

	assert.Equal(t, models.ApplicantStatusDeclined, f.applicants.get("a1").Status)
	reason := f.publisher.events[0].ReasonData
	assert.Equal(t, models.ReasonDocumentInvalid, reason.Type())
	assert.Equal(t, "Form 138", reason[models.ReasonKeyDocumentName])
	assert.Equal(t, "unreadable scan", reason[models.ReasonKeyRejectionReason])
}

func TestDocumentUpdateStatusKeepsDocumentWhenGateFails(t *testing.T) {
	f := newPipelineFixture(models.Applicant{ID: "a1", Status: models.ApplicantStatusPending})
	f.documents.docs["d1"] = models.AdmissionDocument{ID: "d1", ApplicantID: "a1", DocumentType: "Form 138", Status: models.DocumentStatusSubmitted}
	svc := NewDocumentService(f.documents, f.applicants, failingGate{}, f.transitions, nil, nil)

	result, err := svc.UpdateStatus(context.Background(), "d1", dto.UpdateDocumentStatusRequest{Status: models.DocumentStatusVerified}, "registrar")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusVerified, f.documents.docs["d1"].Status)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "not advanced")
}

func TestDocumentUpdateStatusErrors(t *testing.T) {
	f := newPipelineFixture(models.Applicant{ID: "a1", Status: models.ApplicantStatusPending})
	svc := newDocumentService(f)

	_, err := svc.UpdateStatus(context.Background(), "missing", dto.UpdateDocumentStatusRequest{Status: models.DocumentStatusVerified}, "registrar")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.UpdateStatus(context.Background(), "missing", dto.UpdateDocumentStatusRequest{Status: "Lost"}, "registrar")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDocumentBulkVerifyPartialFailure(t *testing.T) {
	f := newPipelineFixture(models.Applicant{ID: "a1", FullName: "Liza Santos", ProgramCategory: "TESDA", Status: models.ApplicantStatusPending})
	f.documents.docs["d1"] = models.AdmissionDocument{ID: "d1", ApplicantID: "a1", DocumentType: "Form 138", Status: models.DocumentStatusSubmitted}
	f.documents.docs["d2"] = models.AdmissionDocument{ID: "d2", ApplicantID: "a1", DocumentType: "Birth Certificate", Status: models.DocumentStatusSubmitted}
	svc := newDocumentService(f)

	report, err := svc.BulkVerify(context.Background(), dto.BulkVerifyRequest{DocumentIDs: []string{"d1", "ghost", "d2"}}, "registrar")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "ghost", report.Failed[0].ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, report.Failed[0].Code)
	// TESDA without interview capacity stays in document review
	assert.Len(t, report.Warnings, 1)
	assert.Equal(t, models.ApplicantStatusPending, f.applicants.get("a1").Status)
	assert.Equal(t, 1, f.notifier.count())
}

func TestDocumentCreateDefaultsToMissing(t *testing.T) {
	f := newPipelineFixture(models.Applicant{ID: "a1", Status: models.ApplicantStatusPending})
	svc := newDocumentService(f)

	doc, err := svc.Create(context.Background(), "a1", dto.CreateDocumentRequest{DocumentType: " Good Moral "})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusMissing, doc.Status)
	assert.Equal(t, "Good Moral", doc.DocumentType)

	_, err = svc.Create(context.Background(), "nobody", dto.CreateDocumentRequest{DocumentType: "Form 138"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	docs, err := svc.List(context.Background(), "a1")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
