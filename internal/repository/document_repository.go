package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

const documentColumns = `id, applicant_id, document_type, status, remarks, created_at, updated_at`

// DocumentRepository persists admission documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.AdmissionDocument) error {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	const query = `INSERT INTO admission_documents (` + documentColumns + `)
        VALUES (:id, :applicant_id, :document_type, :status, :remarks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create admission document: %w", err)
	}
	return nil
}

// FindByID returns a document by id.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.AdmissionDocument, error) {
	const query = `SELECT ` + documentColumns + ` FROM admission_documents WHERE id = $1`
	var doc models.AdmissionDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByApplicant returns every document for an applicant.
func (r *DocumentRepository) ListByApplicant(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error) {
	const query = `SELECT ` + documentColumns + ` FROM admission_documents WHERE applicant_id = $1 ORDER BY created_at ASC, id ASC`
	var docs []models.AdmissionDocument
	if err := r.db.SelectContext(ctx, &docs, query, applicantID); err != nil {
		return nil, fmt.Errorf("list admission documents: %w", err)
	}
	return docs, nil
}

// UpdateStatus sets the status and appends remarkLine to the remarks log.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, remarkLine string) (*models.AdmissionDocument, error) {
	const query = `UPDATE admission_documents
        SET status = $2,
            remarks = CASE WHEN $3::text = '' THEN remarks WHEN remarks = '' THEN $3::text ELSE remarks || E'\n' || $3::text END,
            updated_at = $4
        WHERE id = $1
        RETURNING ` + documentColumns
	var doc models.AdmissionDocument
	if err := r.db.GetContext(ctx, &doc, query, id, status, remarkLine, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &doc, nil
}
