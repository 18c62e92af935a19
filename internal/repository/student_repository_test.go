package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
)

func TestStudentRepositoryNextSequence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO student_number_sequences")).
		WithArgs("MN", "01").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(42))

	next, err := repo.NextSequence(context.Background(), "MN", "01")
	require.NoError(t, err)
	assert.Equal(t, 42, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByNumberOrEmailNormalizesEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students")).
		WithArgs("", "juan@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByNumberOrEmail(context.Background(), "", "  Juan@Example.com ")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "MN2601000001", nil, "Juan Dela Cruz", "juan@example.com", "", nil, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{StudentNumber: "MN2601000001", FullName: "Juan Dela Cruz", Email: "juan@example.com", Active: true}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
