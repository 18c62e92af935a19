package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

const applicantColumns = `id, external_id, full_name, email, phone, birth_date, program_id, program_category, status, status_reason, is_blacklisted, awaiting_resource, student_number, created_at, updated_at`

// ApplicantRepository handles persistence of applicants and their status history.
type ApplicantRepository struct {
	db *sqlx.DB
}

// NewApplicantRepository constructs the repository.
func NewApplicantRepository(db *sqlx.DB) *ApplicantRepository {
	return &ApplicantRepository{db: db}
}

// Create inserts a new applicant row.
func (r *ApplicantRepository) Create(ctx context.Context, applicant *models.Applicant) error {
	now := time.Now().UTC()
	if applicant.ID == "" {
		applicant.ID = uuid.NewString()
	}
	if applicant.ExternalID == "" {
		applicant.ExternalID = fmt.Sprintf("APP-%s", strings.ToUpper(applicant.ID[:8]))
	}
	applicant.CreatedAt = now
	applicant.UpdatedAt = now
	const query = `INSERT INTO applicants (` + applicantColumns + `)
        VALUES (:id, :external_id, :full_name, :email, :phone, :birth_date, :program_id, :program_category, :status, :status_reason, :is_blacklisted, :awaiting_resource, :student_number, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, applicant); err != nil {
		return fmt.Errorf("create applicant: %w", err)
	}
	return nil
}

// FindByID returns an applicant by id.
func (r *ApplicantRepository) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	const query = `SELECT ` + applicantColumns + ` FROM applicants WHERE id = $1`
	var applicant models.Applicant
	if err := r.db.GetContext(ctx, &applicant, query, id); err != nil {
		return nil, err
	}
	return &applicant, nil
}

// List returns applicants filtered by the provided criteria.
func (r *ApplicantRepository) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error) {
	base := "FROM applicants"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("UPPER(program_category) = $%d", len(args)+1))
		args = append(args, models.NormalizeCategory(filter.Category))
	}
	if filter.Awaiting != nil {
		conditions = append(conditions, fmt.Sprintf("awaiting_resource = $%d", len(args)+1))
		args = append(args, *filter.Awaiting)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d OR external_id ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "created_at",
		"full_name":  "full_name",
		"status":     "status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", applicantColumns, base+clause, orderBy, order, size, offset)
	var applicants []models.Applicant
	if err := r.db.SelectContext(ctx, &applicants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applicants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applicants: %w", err)
	}
	return applicants, total, nil
}

// SaveStatus persists the applicant's pipeline fields and appends the history
// row in one transaction.
func (r *ApplicantRepository) SaveStatus(ctx context.Context, applicant *models.Applicant, history *models.StatusHistory) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin applicant status transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const updateQuery = `UPDATE applicants SET status = $2, status_reason = $3, is_blacklisted = $4, awaiting_resource = $5, student_number = $6, updated_at = $7 WHERE id = $1`
	res, err := tx.ExecContext(ctx, updateQuery, applicant.ID, applicant.Status, applicant.StatusReason, applicant.IsBlacklisted, applicant.AwaitingResource, applicant.StudentNumber, now)
	if err != nil {
		return fmt.Errorf("update applicant status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = fmt.Errorf("update applicant status: applicant %s not found", applicant.ID)
		return err
	}

	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	history.CreatedAt = now
	reasonData := string(history.ReasonData)
	if reasonData == "" {
		reasonData = "{}"
	}
	const historyQuery = `INSERT INTO applicant_status_histories (id, applicant_id, old_status, new_status, reason_type, reason_data, changed_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, historyQuery, history.ID, history.ApplicantID, history.OldStatus, history.NewStatus, history.ReasonType, reasonData, history.ChangedBy, now); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit applicant status: %w", err)
	}
	applicant.UpdatedAt = now
	return nil
}

// SetAwaitingResource flips the queued-on-capacity flag without touching status.
func (r *ApplicantRepository) SetAwaitingResource(ctx context.Context, id string, awaiting bool) error {
	const query = `UPDATE applicants SET awaiting_resource = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, awaiting, time.Now().UTC()); err != nil {
		return fmt.Errorf("set awaiting resource: %w", err)
	}
	return nil
}

// SetStudentNumber records the student number assigned at enrollment.
func (r *ApplicantRepository) SetStudentNumber(ctx context.Context, id, studentNumber string) error {
	const query = `UPDATE applicants SET student_number = $2, updated_at = $3 WHERE id = $1 AND (student_number IS NULL OR student_number = $2)`
	if _, err := r.db.ExecContext(ctx, query, id, studentNumber, time.Now().UTC()); err != nil {
		return fmt.Errorf("set applicant student number: %w", err)
	}
	return nil
}

// ListAwaitingResource returns applicants queued on schedule capacity, oldest first.
func (r *ApplicantRepository) ListAwaitingResource(ctx context.Context, limit int) ([]models.Applicant, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM applicants WHERE awaiting_resource = TRUE AND is_blacklisted = FALSE ORDER BY updated_at ASC, id ASC LIMIT %d`, applicantColumns, limit)
	var applicants []models.Applicant
	if err := r.db.SelectContext(ctx, &applicants, query); err != nil {
		return nil, fmt.Errorf("list awaiting applicants: %w", err)
	}
	return applicants, nil
}

// ListHistory returns recorded transitions for an applicant, oldest first.
func (r *ApplicantRepository) ListHistory(ctx context.Context, applicantID string) ([]models.StatusHistory, error) {
	const query = `SELECT id, applicant_id, old_status, new_status, reason_type, reason_data, changed_by, created_at
        FROM applicant_status_histories WHERE applicant_id = $1 ORDER BY created_at ASC, id ASC`
	var history []models.StatusHistory
	if err := r.db.SelectContext(ctx, &history, query, applicantID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return history, nil
}

// CountByStatus aggregates applicants per status.
func (r *ApplicantRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS total FROM applicants WHERE status <> '' GROUP BY status ORDER BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count applicants by status: %w", err)
	}
	return counts, nil
}

// CountAwaitingResource counts applicants queued on capacity.
func (r *ApplicantRepository) CountAwaitingResource(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM applicants WHERE awaiting_resource = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count awaiting applicants: %w", err)
	}
	return total, nil
}
