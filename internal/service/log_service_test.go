package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mindlog/internal/cache"
	"mindlog/internal/graph"
	"mindlog/internal/models"
	"mindlog/internal/relation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogService(t *testing.T, repo *logRepoStub, up ImageUploader, admins ...uint) *LogService {
	t.Helper()
	graphs, err := cache.NewGraphCache(16)
	require.NoError(t, err)
	isAdmin := func(_ context.Context, userID uint) (bool, error) {
		for _, id := range admins {
			if id == userID {
				return true, nil
			}
		}
		return false, nil
	}
	return NewLogService(repo, up, graphs, isAdmin)
}

func TestLogService_Create_Validation(t *testing.T) {
	t.Parallel()
	repo, _ := memLogRepo()
	svc := newLogService(t, repo, &uploaderStub{})
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateLogInput
		code string
	}{
		{"anonymous", CreateLogInput{Title: "x"}, models.CodeUnauthorized},
		{"missing title", CreateLogInput{OwnerID: 1, Title: "   "}, models.CodeValidation},
		{"title too long", CreateLogInput{OwnerID: 1, Title: strings.Repeat("x", 151)}, models.CodeValidation},
		{"description too long", CreateLogInput{OwnerID: 1, Title: "ok", Description: strings.Repeat("x", 5001)}, models.CodeValidation},
		{"bad youtube", CreateLogInput{OwnerID: 1, Title: "ok", YoutubeLink: "https://vimeo.com/1"}, models.CodeValidation},
		{"too many supporting images", CreateLogInput{OwnerID: 1, Title: "ok", Uploads: make([]ImageBlob, 10)}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assertAppErrorCode(t, err, tt.code)
		})
	}
}

func TestLogService_Create_ResolvesRelations(t *testing.T) {
	t.Parallel()
	repo, _ := memLogRepo(
		&models.Log{ID: 1, Title: "Foo", IsPublic: true, OwnerID: 2},
		&models.Log{ID: 2, Title: "", IsPublic: true, OwnerID: 2},
	)
	svc := newLogService(t, repo, &uploaderStub{})

	created, err := svc.Create(context.Background(), CreateLogInput{
		OwnerID:       7,
		Title:         "  Trip  ",
		RelatedLogIDs: []uint{1, 99, 1, 0, 2},
		YoutubeLink:   "https://youtu.be/dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Trip", created.Title)
	assert.Equal(t, []uint{1, 99, 2}, created.RelatedLogIDs)
	assert.Equal(t, []string{"Foo", relation.MissingTitle, relation.UntitledTitle}, created.RelatedLogTitles)
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", created.YoutubeEmbedURL)
}

func TestLogService_Create_UploadsBeforeSave(t *testing.T) {
	t.Parallel()
	repo, rows := memLogRepo()
	up := &uploaderStub{}
	svc := newLogService(t, repo, up)

	created, err := svc.Create(context.Background(), CreateLogInput{
		OwnerID: 3,
		Title:   "With images",
		Images:  []models.LogImage{{Caption: strPtr("caption only")}},
		Uploads: []ImageBlob{
			{Filename: "a.webp", Caption: "first"},
			{Filename: "b.webp", IsMain: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, created.Images, 3)

	assert.Equal(t, "/media/logs/3/b.webp", created.MainImageURL())
	assert.False(t, created.Images[0].HasURL())
	assert.Equal(t, "first", *created.Images[1].Caption)
}

func TestLogService_Create_UploadFailureWritesNothing(t *testing.T) {
	t.Parallel()
	repo, rows := memLogRepo()
	up := &uploaderStub{failAt: 2}
	svc := newLogService(t, repo, up)

	_, err := svc.Create(context.Background(), CreateLogInput{
		OwnerID: 3,
		Title:   "x",
		Uploads: []ImageBlob{{Filename: "a.webp"}, {Filename: "b.webp"}},
	})
	assertAppErrorCode(t, err, models.CodeUpload)
	assert.Empty(t, rows)
	assert.Equal(t, []string{"/media/logs/3/a.webp"}, up.removed)
}

func TestLogService_Create_StoreFailureCleansUp(t *testing.T) {
	t.Parallel()
	repo, _ := memLogRepo()
	repo.createFn = func(context.Context, *models.Log) error { return errors.New("disk full") }
	up := &uploaderStub{}
	svc := newLogService(t, repo, up)

	_, err := svc.Create(context.Background(), CreateLogInput{
		OwnerID: 3,
		Title:   "x",
		Uploads: []ImageBlob{{Filename: "a.webp"}},
	})
	assertAppErrorCode(t, err, models.CodeInternal)
	assert.Equal(t, up.uploaded, up.removed)
}

func TestLogService_Create_ResolverFailureAborts(t *testing.T) {
	t.Parallel()
	repo, rows := memLogRepo()
	repo.titlesByIDFn = func(context.Context, uint, []uint) (map[uint]string, error) {
		return nil, context.DeadlineExceeded
	}
	svc := newLogService(t, repo, &uploaderStub{})

	_, err := svc.Create(context.Background(), CreateLogInput{OwnerID: 1, Title: "x", RelatedLogIDs: []uint{4}})
	assertAppErrorCode(t, err, models.CodeUnavailable)
	assert.Empty(t, rows)
}

func TestLogService_Get_Visibility(t *testing.T) {
	t.Parallel()
	repo, _ := memLogRepo(&models.Log{ID: 1, Title: "secret", OwnerID: 5})
	svc := newLogService(t, repo, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, 1, 0)
	assertAppErrorCode(t, err, models.CodeNotFound)
	_, err = svc.Get(ctx, 1, 6)
	assertAppErrorCode(t, err, models.CodeNotFound)
	_, err = svc.Get(ctx, 2, 5)
	assertAppErrorCode(t, err, models.CodeNotFound)

	l, err := svc.Get(ctx, 1, 5)
	require.NoError(t, err)
	assert.NotNil(t, l.Images)
	assert.NotNil(t, l.RelatedLogIDs)
}

func TestLogService_Update_Ownership(t *testing.T) {
	t.Parallel()
	repo, rows := memLogRepo(
		&models.Log{ID: 1, Title: "public", IsPublic: true, OwnerID: 5},
		&models.Log{ID: 2, Title: "private", OwnerID: 5},
	)
	svc := newLogService(t, repo, nil, 9)
	ctx := context.Background()
	title := "renamed"

	_, err := svc.Update(ctx, 1, 6, UpdateLogInput{Title: &title})
	assertAppErrorCode(t, err, models.CodeForbidden)

	_, err = svc.Update(ctx, 2, 6, UpdateLogInput{Title: &title})
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = svc.Update(ctx, 1, 0, UpdateLogInput{Title: &title})
	assertAppErrorCode(t, err, models.CodeUnauthorized)

	updated, err := svc.Update(ctx, 2, 9, UpdateLogInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "renamed", rows[2].Title)
}

func TestLogService_Update_PartialFieldsAndRelations(t *testing.T) {
	t.Parallel()
	repo, rows := memLogRepo(
		&models.Log{ID: 1, Title: "A", Description: "keep", OwnerID: 5, RelatedLogIDs: []uint{2}, RelatedLogTitles: []string{"B"}},
		&models.Log{ID: 2, Title: "B", IsPublic: true, OwnerID: 5},
		&models.Log{ID: 3, Title: "C", IsPublic: true, OwnerID: 5},
	)
	svc := newLogService(t, repo, nil)
	ctx := context.Background()
	public := true

	// No relation ids supplied: cached titles are left alone.
	updated, err := svc.Update(ctx, 1, 5, UpdateLogInput{IsPublic: &public})
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.Equal(t, "keep", updated.Description)
	assert.Equal(t, []string{"B"}, updated.RelatedLogTitles)

	related := []uint{1, 3, 3, 2}
	updated, err = svc.Update(ctx, 1, 5, UpdateLogInput{RelatedLogIDs: &related})
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 2}, updated.RelatedLogIDs)
	assert.Equal(t, []string{"C", "B"}, rows[1].RelatedLogTitles)
}

func TestLogService_Update_RemovesDroppedBlobs(t *testing.T) {
	t.Parallel()
	old := "/media/logs/5/old.webp"
	repo, _ := memLogRepo(&models.Log{ID: 1, Title: "A", OwnerID: 5, Images: []models.LogImage{{URL: &old, IsMain: true}}})
	up := &uploaderStub{}
	svc := newLogService(t, repo, up)

	images := []models.LogImage{}
	updated, err := svc.Update(context.Background(), 1, 5, UpdateLogInput{
		Images:  &images,
		Uploads: []ImageBlob{{Filename: "new.webp"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "/media/logs/5/new.webp", updated.MainImageURL())
	assert.Equal(t, []string{old}, up.removed)
}

func TestLogService_Delete(t *testing.T) {
	t.Parallel()
	img := "/media/logs/5/a.webp"
	repo, rows := memLogRepo(&models.Log{ID: 1, Title: "A", IsPublic: true, OwnerID: 5, Images: []models.LogImage{{URL: &img, IsMain: true}}})
	up := &uploaderStub{}
	svc := newLogService(t, repo, up)
	ctx := context.Background()

	assertAppErrorCode(t, svc.Delete(ctx, 1, 6), models.CodeForbidden)
	require.NoError(t, svc.Delete(ctx, 1, 5))
	assert.Empty(t, rows)
	assert.Equal(t, []string{img}, up.removed)

	assertAppErrorCode(t, svc.Delete(ctx, 1, 5), models.CodeNotFound)
}

func TestLogService_Create_RejectsAnotherUsersImage(t *testing.T) {
	t.Parallel()
	repo, rows := memLogRepo()
	up := &uploaderStub{}
	svc := newLogService(t, repo, up)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateLogInput{
		OwnerID: 2,
		Title:   "Borrowed",
		Images:  []models.LogImage{{URL: strPtr("/media/logs/1/theirs.webp")}},
	})
	assertAppErrorCode(t, err, models.CodeValidation)
	assert.Empty(t, rows)

	created, err := svc.Create(ctx, CreateLogInput{
		OwnerID: 2,
		Title:   "Linked",
		Images: []models.LogImage{
			{URL: strPtr("https://cdn.example.com/pic.jpg")},
			{URL: strPtr("/media/logs/2/mine.webp")},
		},
	})
	require.NoError(t, err)
	assert.Len(t, created.Images, 2)
}

func TestLogService_Update_AdminUploadsUnderOwner(t *testing.T) {
	t.Parallel()
	repo, _ := memLogRepo(&models.Log{ID: 1, Title: "A", OwnerID: 5})
	up := &uploaderStub{}
	svc := newLogService(t, repo, up, 9)

	theirs := []models.LogImage{{URL: strPtr("/media/logs/9/admin.webp")}}
	_, err := svc.Update(context.Background(), 1, 9, UpdateLogInput{Images: &theirs})
	assertAppErrorCode(t, err, models.CodeValidation)

	updated, err := svc.Update(context.Background(), 1, 9, UpdateLogInput{Uploads: []ImageBlob{{Filename: "n.webp"}}})
	require.NoError(t, err)
	assert.Equal(t, "/media/logs/5/n.webp", updated.MainImageURL())
}

func TestLogService_Delete_KeepsSharedAndForeignBlobs(t *testing.T) {
	t.Parallel()
	shared := "/media/logs/5/shared.webp"
	foreign := "/media/logs/6/foreign.webp"
	own := "/media/logs/5/own.webp"
	repo, _ := memLogRepo(
		&models.Log{ID: 1, Title: "A", OwnerID: 5, Images: []models.LogImage{{URL: &shared}, {URL: &foreign}, {URL: &own}}},
		&models.Log{ID: 2, Title: "B", OwnerID: 5, Images: []models.LogImage{{URL: &shared}}},
	)
	up := &uploaderStub{}
	svc := newLogService(t, repo, up)

	require.NoError(t, svc.Delete(context.Background(), 1, 5))
	assert.Equal(t, []string{own}, up.removed)
}

func TestLogService_Delete_KeepsBlobWhenLookupFails(t *testing.T) {
	t.Parallel()
	img := "/media/logs/5/a.webp"
	repo, _ := memLogRepo(&models.Log{ID: 1, Title: "A", OwnerID: 5, Images: []models.LogImage{{URL: &img}}})
	repo.imageInUseFn = func(context.Context, string) (bool, error) { return false, errors.New("db down") }
	up := &uploaderStub{}
	svc := newLogService(t, repo, up)

	require.NoError(t, svc.Delete(context.Background(), 1, 5))
	assert.Empty(t, up.removed)
}

func TestLogService_Search_TwoPass(t *testing.T) {
	t.Parallel()
	direct := &models.Log{ID: 1, Title: "Bali trip"}
	relatedToHit := &models.Log{ID: 2, Title: "Packing list", RelatedLogIDs: []uint{1}}
	titleMatch := &models.Log{ID: 3, Title: "Photos", RelatedLogIDs: []uint{50}, RelatedLogTitles: []string{"Old TRIP notes"}}
	unrelated := &models.Log{ID: 4, Title: "Recipes"}

	repo, _ := memLogRepo()
	var directQuery string
	repo.searchDirectFn = func(_ context.Context, q string, _ uint, _ int) ([]*models.Log, error) {
		directQuery = q
		return []*models.Log{direct}, nil
	}
	repo.listVisibleFn = func(context.Context, uint, int) ([]*models.Log, error) {
		return []*models.Log{unrelated, titleMatch, relatedToHit, direct}, nil
	}
	svc := newLogService(t, repo, nil)

	got, err := svc.Search(context.Background(), "  trip ", 0)
	require.NoError(t, err)
	assert.Equal(t, "trip", directQuery)

	ids := make([]uint, len(got))
	for i, l := range got {
		ids[i] = l.ID
	}
	assert.Equal(t, []uint{1, 3, 2}, ids)
}

func TestLogService_Search_EmptyQueryListsVisible(t *testing.T) {
	t.Parallel()
	repo, _ := memLogRepo()
	repo.searchDirectFn = func(context.Context, string, uint, int) ([]*models.Log, error) {
		t.Fatal("direct search must not run for an empty query")
		return nil, nil
	}
	repo.listVisibleFn = func(_ context.Context, viewerID uint, _ int) ([]*models.Log, error) {
		assert.Equal(t, uint(8), viewerID)
		return []*models.Log{{ID: 1}, {ID: 2}}, nil
	}
	svc := newLogService(t, repo, nil)

	got, err := svc.Search(context.Background(), "", 8)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLogService_Graph_Memoized(t *testing.T) {
	t.Parallel()
	mainURL := "/media/main.webp"
	repo, rows := memLogRepo(&models.Log{
		ID:               1,
		Title:            "Trip",
		IsPublic:         true,
		OwnerID:          5,
		Images:           []models.LogImage{{URL: &mainURL, IsMain: true}},
		RelatedLogIDs:    []uint{2},
		RelatedLogTitles: []string{"Packing"},
		UpdatedAt:        time.Unix(100, 0),
	})
	svc := newLogService(t, repo, nil)
	ctx := context.Background()

	g, err := svc.Graph(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, graph.MainNodeID, g.Nodes[0].ID)
	assert.Equal(t, mainURL, g.Nodes[0].ImageURL)
	assert.Equal(t, "Packing", g.Nodes[1].Label)
	assert.Equal(t, 1, svc.graphs.Len())

	again, err := svc.Graph(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, g, again)

	// A newer updatedAt misses the memo and rebuilds.
	rows[1].RelatedLogTitles = []string{"Renamed"}
	rows[1].UpdatedAt = time.Unix(200, 0)
	rebuilt, err := svc.Graph(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", rebuilt.Nodes[1].Label)
}

func TestLogService_Graph_PrivateIsNotFound(t *testing.T) {
	t.Parallel()
	repo, _ := memLogRepo(&models.Log{ID: 1, Title: "secret", OwnerID: 5})
	svc := newLogService(t, repo, nil)

	_, err := svc.Graph(context.Background(), 1, 0)
	assertAppErrorCode(t, err, models.CodeNotFound)
}
