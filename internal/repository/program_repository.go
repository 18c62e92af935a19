package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

// ProgramRepository reads programs, program categories and academic years.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// FindByID returns a program.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, code, name, category_id FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// FindCategoryName resolves a program category foreign key to its name.
func (r *ProgramRepository) FindCategoryName(ctx context.Context, id int64) (string, error) {
	const query = `SELECT name FROM program_categories WHERE id = $1`
	var name string
	if err := r.db.GetContext(ctx, &name, query, id); err != nil {
		return "", err
	}
	return name, nil
}

// FindAcademicYear returns an academic year by id.
func (r *ProgramRepository) FindAcademicYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_year, active FROM academic_years WHERE id = $1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// FindActiveAcademicYear returns the academic year currently flagged active.
func (r *ProgramRepository) FindActiveAcademicYear(ctx context.Context) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_year, active FROM academic_years WHERE active = TRUE ORDER BY start_year DESC LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query); err != nil {
		return nil, err
	}
	return &year, nil
}
