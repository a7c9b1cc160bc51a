package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"mindlog/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_Create_DuplicateIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "a", Email: "a@example.com", Password: "x"})
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeConflict, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Lookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	u := &models.User{Username: "alice", Email: "Alice@Example.com", Password: "hash"}
	require.NoError(t, repo.Create(ctx, u))

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byEmail, err := repo.GetByEmail(ctx, " alice@example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.Password)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	dup := &models.User{Username: "alice", Email: "other@example.com", Password: "hash"}
	err = repo.Create(ctx, dup)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "sqlite unique failure maps to conflict")
	assert.Equal(t, models.CodeConflict, appErr.Code)
}
