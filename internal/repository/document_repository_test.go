package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
)

func TestDocumentRepositoryUpdateStatusAppendsRemark(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	now := time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)
	line := "[2026-10-01T08:30:00Z] Verified by registrar@school.test"
	rows := sqlmock.NewRows([]string{"id", "applicant_id", "document_type", "status", "remarks", "created_at", "updated_at"}).
		AddRow("d1", "a1", "Form 138", "Verified", "earlier note\n"+line, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE admission_documents")).
		WithArgs("d1", models.DocumentStatusVerified, line, sqlmock.AnyArg()).
		WillReturnRows(rows)

	doc, err := repo.UpdateStatus(context.Background(), "d1", models.DocumentStatusVerified, line)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusVerified, doc.Status)
	assert.Contains(t, doc.Remarks, line)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE admission_documents")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateStatus(context.Background(), "ghost", models.DocumentStatusVerified, "")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListByApplicant(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "applicant_id", "document_type", "status", "remarks", "created_at", "updated_at"}).
		AddRow("d1", "a1", "Form 138", "Verified", "", now, now).
		AddRow("d2", "a1", "Birth Certificate", "Missing", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM admission_documents WHERE applicant_id = $1")).
		WithArgs("a1").
		WillReturnRows(rows)

	docs, err := repo.ListByApplicant(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, models.DocumentStatusMissing, docs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	userID := "staff-1"
	resourceID := "a1"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), userID, models.AuditActionApplicantDecline, "applicant", resourceID, `{"status":200}`, "10.0.0.1", "curl", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionApplicantDecline,
		Resource:   "applicant",
		ResourceID: &resourceID,
		NewValues:  []byte(`{"status":200}`),
		IPAddress:  "10.0.0.1",
		UserAgent:  "curl",
	}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
