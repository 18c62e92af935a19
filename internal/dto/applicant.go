package dto

// CreateApplicantRequest captures intake fields for a new applicant.
type CreateApplicantRequest struct {
	FullName        string   `json:"full_name" validate:"required,max=200"`
	Email           string   `json:"email" validate:"required,email"`
	Phone           string   `json:"phone" validate:"omitempty,max=32"`
	BirthDate       string   `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	ProgramID       *string  `json:"program_id" validate:"omitempty,uuid"`
	ProgramCategory string   `json:"program_category" validate:"required,max=64"`
	Documents       []string `json:"documents" validate:"omitempty,dive,required,max=100"`
}

// ApplicantQuery represents list filters accepted by GET /applicants.
type ApplicantQuery struct {
	Status    string `form:"status"`
	Category  string `form:"category"`
	Awaiting  *bool  `form:"awaiting"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// DeclineApplicantRequest carries a staff decline reason.
type DeclineApplicantRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}
