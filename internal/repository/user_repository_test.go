package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
)

func TestUserRepositoryListByRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "active", "created_at", "updated_at"}).
		AddRow("head-1", "head@example.com", "hash", "Program Head", "PROGRAM_HEAD", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1 AND active = TRUE")).
		WithArgs(models.RoleProgramHead).
		WillReturnRows(rows)

	users, err := repo.ListByRole(context.Background(), models.RoleProgramHead)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleProgramHead, users[0].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
