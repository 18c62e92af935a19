package dto

import "github.com/noah-isme/admissions-api/internal/models"

// CreateDocumentRequest registers a requirement for an applicant.
type CreateDocumentRequest struct {
	DocumentType string                `json:"document_type" validate:"required,max=100"`
	Status       models.DocumentStatus `json:"status" validate:"omitempty,oneof=Missing Submitted"`
}

// UpdateDocumentStatusRequest is a reviewer decision on one document.
type UpdateDocumentStatusRequest struct {
	Status models.DocumentStatus `json:"status" validate:"required,oneof=Missing Submitted Verified Invalid"`
	Remark string                `json:"remark" validate:"max=500"`
}

// BulkVerifyRequest verifies several documents at once.
type BulkVerifyRequest struct {
	DocumentIDs []string `json:"document_ids" validate:"required,min=1,max=200,dive,required"`
	Remark      string   `json:"remark" validate:"max=500"`
}

// DocumentReviewResult is returned after a document status change.
type DocumentReviewResult struct {
	Document *models.AdmissionDocument `json:"document"`
	Pipeline *GateResult               `json:"pipeline,omitempty"`
	Warnings []string                  `json:"-"`
}
