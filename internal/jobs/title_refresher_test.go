package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"mindlog/internal/models"
	"mindlog/internal/relation"
	"mindlog/internal/repository"
	"mindlog/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedLog(t *testing.T, db *gorm.DB, ownerID uint, title string, related []uint, titles []string) *models.Log {
	t.Helper()
	l := &models.Log{
		Title:            title,
		OwnerID:          ownerID,
		IsPublic:         true,
		Images:           []models.LogImage{},
		RelatedLogIDs:    related,
		RelatedLogTitles: titles,
	}
	if l.RelatedLogIDs == nil {
		l.RelatedLogIDs = []uint{}
		l.RelatedLogTitles = []string{}
	}
	require.NoError(t, repository.NewLogRepository(db).Create(context.Background(), l))
	return l
}

func TestTitleRefresher_RewritesOnlyStaleRows(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	owner := &models.User{Username: "ada", Email: "ada@example.com", Password: "hash"}
	require.NoError(t, db.Create(owner).Error)

	foo := seedLog(t, db, owner.ID, "Foo", nil, nil)
	bar := seedLog(t, db, owner.ID, "Bar", nil, nil)
	fresh := seedLog(t, db, owner.ID, "Fresh", []uint{foo.ID}, []string{"Foo"})
	stale := seedLog(t, db, owner.ID, "Stale", []uint{bar.ID, 999}, []string{"Old Bar", "Gone"})

	before := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Log{}).Where("id = ?", fresh.ID).UpdateColumn("updated_at", before).Error)

	refresher := NewTitleRefresher(repository.NewLogRepository(db), "", 1)
	stats, err := refresher.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefreshStats{Scanned: 2, Updated: 1}, stats)

	var got models.Log
	require.NoError(t, db.First(&got, stale.ID).Error)
	assert.Equal(t, []string{"Bar", relation.MissingTitle}, got.RelatedLogTitles)

	var untouched models.Log
	require.NoError(t, db.First(&untouched, fresh.ID).Error)
	assert.WithinDuration(t, before, untouched.UpdatedAt, time.Second)
}

func TestTitleRefresher_PicksUpRenamesAndDeletes(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	owner := &models.User{Username: "ada", Email: "ada@example.com", Password: "hash"}
	require.NoError(t, db.Create(owner).Error)
	repo := repository.NewLogRepository(db)

	target := seedLog(t, db, owner.ID, "Before", nil, nil)
	doomed := seedLog(t, db, owner.ID, "Doomed", nil, nil)
	src := seedLog(t, db, owner.ID, "Source", []uint{target.ID, doomed.ID}, []string{"Before", "Doomed"})

	require.NoError(t, db.Model(&models.Log{}).Where("id = ?", target.ID).Update("title", "After").Error)
	require.NoError(t, repo.Delete(context.Background(), doomed.ID))

	stats, err := NewTitleRefresher(repo, "", 0).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	var got models.Log
	require.NoError(t, db.First(&got, src.ID).Error)
	assert.Equal(t, []string{"After", relation.MissingTitle}, got.RelatedLogTitles)

	// A second pass finds nothing to do.
	stats, err = NewTitleRefresher(repo, "", 0).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Updated)
}

func TestTitleRefresher_HidesLogsTurnedPrivate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ada := &models.User{Username: "ada", Email: "ada@example.com", Password: "hash"}
	bob := &models.User{Username: "bob", Email: "bob@example.com", Password: "hash"}
	require.NoError(t, db.Create(ada).Error)
	require.NoError(t, db.Create(bob).Error)
	repo := repository.NewLogRepository(db)

	plan := seedLog(t, db, ada.ID, "Merger plan", nil, nil)
	own := seedLog(t, db, ada.ID, "Ada notes", []uint{plan.ID}, []string{"Merger plan"})
	other := seedLog(t, db, bob.ID, "Bob notes", []uint{plan.ID}, []string{"Merger plan"})

	require.NoError(t, db.Model(&models.Log{}).Where("id = ?", plan.ID).Update("is_public", false).Error)

	stats, err := NewTitleRefresher(repo, "", 0).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefreshStats{Scanned: 2, Updated: 1}, stats)

	var got models.Log
	require.NoError(t, db.First(&got, other.ID).Error)
	assert.Equal(t, []string{relation.MissingTitle}, got.RelatedLogTitles)

	require.NoError(t, db.First(&got, own.ID).Error)
	assert.Equal(t, []string{"Merger plan"}, got.RelatedLogTitles, "the owner still sees the title")
}

// failingRepo fails title resolution.
type failingRepo struct {
	repository.LogRepository
}

func (failingRepo) TitlesByID(context.Context, uint, []uint) (map[uint]string, error) {
	return nil, errors.New("db down")
}

func TestTitleRefresher_ResolverError(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	owner := &models.User{Username: "ada", Email: "ada@example.com", Password: "hash"}
	require.NoError(t, db.Create(owner).Error)
	target := seedLog(t, db, owner.ID, "T", nil, nil)
	seedLog(t, db, owner.ID, "S", []uint{target.ID}, []string{"old"})

	_, err := NewTitleRefresher(failingRepo{repository.NewLogRepository(db)}, "", 0).RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestNewTitleRefresher_Defaults(t *testing.T) {
	r := NewTitleRefresher(nil, "", -1)
	assert.Equal(t, DefaultTitleRefreshSchedule, r.Schedule())
	assert.Equal(t, DefaultTitleRefreshBatch, r.batchSize)
	assert.Equal(t, "title-refresher", r.Name())
}
