package models

import "time"

// DocumentStatus is the review state of an admission document.
type DocumentStatus string

const (
	DocumentStatusMissing   DocumentStatus = "Missing"
	DocumentStatusSubmitted DocumentStatus = "Submitted"
	DocumentStatusVerified  DocumentStatus = "Verified"
	DocumentStatusInvalid   DocumentStatus = "Invalid"
)

// Valid reports whether s is a known document status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusMissing, DocumentStatusSubmitted, DocumentStatusVerified, DocumentStatusInvalid:
		return true
	}
	return false
}

// AdmissionDocument is a requirement submitted by an applicant. Remarks is an
// append-only log.
type AdmissionDocument struct {
	ID           string         `db:"id" json:"id"`
	ApplicantID  string         `db:"applicant_id" json:"applicant_id"`
	DocumentType string         `db:"document_type" json:"document_type"`
	Status       DocumentStatus `db:"status" json:"status"`
	Remarks      string         `db:"remarks" json:"remarks"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}
