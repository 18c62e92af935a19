package dto

// BulkError describes why one item of a bulk operation failed.
type BulkError struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// BulkResult is the per-item report of a partial-failure tolerant batch.
type BulkResult struct {
	Succeeded []string    `json:"succeeded"`
	Failed    []BulkError `json:"failed"`
	Warnings  []string    `json:"warnings,omitempty"`
}
