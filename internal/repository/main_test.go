package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"mindlog/internal/models"
	"mindlog/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newTestDB returns a migrated in-memory SQLite database private to t.
func newTestDB(t *testing.T) *gorm.DB {
	return testutil.NewSQLiteDB(t)
}

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "hash"}
	require.NoError(t, db.Create(u).Error)
	return u
}

var seedClock atomic.Int64

// nextCreatedAt hands out strictly increasing timestamps so ordering
// assertions do not depend on clock resolution.
func nextCreatedAt() time.Time {
	n := seedClock.Add(1)
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute)
}

func seedLog(t *testing.T, db *gorm.DB, owner *models.User, title string, public bool) *models.Log {
	t.Helper()
	l := &models.Log{
		Title:            title,
		Description:      "about " + title,
		OwnerID:          owner.ID,
		IsPublic:         public,
		Images:           []models.LogImage{},
		RelatedLogIDs:    []uint{},
		RelatedLogTitles: []string{},
		CreatedAt:        nextCreatedAt(),
	}
	require.NoError(t, NewLogRepository(db).Create(context.Background(), l))
	return l
}
