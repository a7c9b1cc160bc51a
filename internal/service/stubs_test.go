package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"mindlog/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// logRepoStub is a stub for repository.LogRepository.
type logRepoStub struct {
	createFn            func(context.Context, *models.Log) error
	getByIDFn           func(context.Context, uint, uint) (*models.Log, error)
	listPublicFn        func(context.Context, int, int, uint) ([]*models.Log, error)
	listByOwnerFn       func(context.Context, uint, int, int) ([]*models.Log, error)
	listLikedFn         func(context.Context, uint, int, int) ([]*models.Log, error)
	listVisibleFn       func(context.Context, uint, int) ([]*models.Log, error)
	searchDirectFn      func(context.Context, string, uint, int) ([]*models.Log, error)
	relatedCandidatesFn func(context.Context, uint, uint) ([]models.LogTitle, error)
	titlesByIDFn        func(context.Context, uint, []uint) (map[uint]string, error)
	listWithRelationsFn func(context.Context, uint, int) ([]*models.Log, error)
	updateTitlesFn      func(context.Context, uint, []string) error
	updateFn            func(context.Context, *models.Log) error
	deleteFn            func(context.Context, uint) error
	imageInUseFn        func(context.Context, string) (bool, error)
}

func (s *logRepoStub) Create(ctx context.Context, l *models.Log) error { return s.createFn(ctx, l) }
func (s *logRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Log, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *logRepoStub) ListPublic(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Log, error) {
	return s.listPublicFn(ctx, limit, offset, viewerID)
}
func (s *logRepoStub) ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Log, error) {
	return s.listByOwnerFn(ctx, ownerID, limit, offset)
}
func (s *logRepoStub) ListLiked(ctx context.Context, userID uint, limit, offset int) ([]*models.Log, error) {
	return s.listLikedFn(ctx, userID, limit, offset)
}
func (s *logRepoStub) ListVisible(ctx context.Context, viewerID uint, limit int) ([]*models.Log, error) {
	return s.listVisibleFn(ctx, viewerID, limit)
}
func (s *logRepoStub) SearchDirect(ctx context.Context, query string, viewerID uint, limit int) ([]*models.Log, error) {
	return s.searchDirectFn(ctx, query, viewerID, limit)
}
func (s *logRepoStub) RelatedCandidates(ctx context.Context, userID, excludeID uint) ([]models.LogTitle, error) {
	return s.relatedCandidatesFn(ctx, userID, excludeID)
}
func (s *logRepoStub) TitlesByID(ctx context.Context, viewerID uint, ids []uint) (map[uint]string, error) {
	return s.titlesByIDFn(ctx, viewerID, ids)
}
func (s *logRepoStub) ListWithRelations(ctx context.Context, afterID uint, limit int) ([]*models.Log, error) {
	return s.listWithRelationsFn(ctx, afterID, limit)
}
func (s *logRepoStub) UpdateRelatedTitles(ctx context.Context, id uint, titles []string) error {
	return s.updateTitlesFn(ctx, id, titles)
}
func (s *logRepoStub) Update(ctx context.Context, l *models.Log) error { return s.updateFn(ctx, l) }
func (s *logRepoStub) Delete(ctx context.Context, id uint) error       { return s.deleteFn(ctx, id) }
func (s *logRepoStub) ImageInUse(ctx context.Context, url string) (bool, error) {
	return s.imageInUseFn(ctx, url)
}

// memLogRepo returns a stub backed by a map, enough for service flows.
func memLogRepo(seed ...*models.Log) (*logRepoStub, map[uint]*models.Log) {
	var mu sync.Mutex
	rows := map[uint]*models.Log{}
	nextID := uint(100)
	for _, l := range seed {
		rows[l.ID] = l
	}
	clone := func(l *models.Log) *models.Log {
		c := *l
		return &c
	}
	stub := &logRepoStub{
		createFn: func(_ context.Context, l *models.Log) error {
			mu.Lock()
			defer mu.Unlock()
			nextID++
			l.ID = nextID
			rows[l.ID] = clone(l)
			return nil
		},
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Log, error) {
			mu.Lock()
			defer mu.Unlock()
			l, ok := rows[id]
			if !ok {
				return nil, gorm.ErrRecordNotFound
			}
			return clone(l), nil
		},
		listPublicFn:  func(context.Context, int, int, uint) ([]*models.Log, error) { return nil, nil },
		listByOwnerFn: func(context.Context, uint, int, int) ([]*models.Log, error) { return nil, nil },
		listLikedFn:   func(context.Context, uint, int, int) ([]*models.Log, error) { return nil, nil },
		listVisibleFn: func(context.Context, uint, int) ([]*models.Log, error) { return nil, nil },
		searchDirectFn: func(context.Context, string, uint, int) ([]*models.Log, error) {
			return nil, nil
		},
		relatedCandidatesFn: func(context.Context, uint, uint) ([]models.LogTitle, error) { return nil, nil },
		titlesByIDFn: func(_ context.Context, viewerID uint, ids []uint) (map[uint]string, error) {
			mu.Lock()
			defer mu.Unlock()
			out := map[uint]string{}
			for _, id := range ids {
				if l, ok := rows[id]; ok && l.VisibleTo(viewerID) {
					out[id] = l.Title
				}
			}
			return out, nil
		},
		listWithRelationsFn: func(context.Context, uint, int) ([]*models.Log, error) { return nil, nil },
		updateTitlesFn:      func(context.Context, uint, []string) error { return nil },
		updateFn: func(_ context.Context, l *models.Log) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := rows[l.ID]; !ok {
				return gorm.ErrRecordNotFound
			}
			rows[l.ID] = clone(l)
			return nil
		},
		deleteFn: func(_ context.Context, id uint) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := rows[id]; !ok {
				return gorm.ErrRecordNotFound
			}
			delete(rows, id)
			return nil
		},
		imageInUseFn: func(_ context.Context, url string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			for _, l := range rows {
				for _, img := range l.Images {
					if img.HasURL() && *img.URL == url {
						return true, nil
					}
				}
			}
			return false, nil
		},
	}
	return stub, rows
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	listByLogFn  func(context.Context, uint, int, int) ([]*models.Comment, error)
	countByLogFn func(context.Context, uint) (int64, error)
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) ListByLog(ctx context.Context, logID uint, limit, offset int) ([]*models.Comment, error) {
	return s.listByLogFn(ctx, logID, limit, offset)
}
func (s *commentRepoStub) CountByLog(ctx context.Context, logID uint) (int64, error) {
	return s.countByLogFn(ctx, logID)
}

// likeRepoStub keeps likes in a set keyed by (user, log).
type likeRepoStub struct {
	mu    sync.Mutex
	liked map[[2]uint]bool
	err   error
}

func newLikeRepoStub() *likeRepoStub { return &likeRepoStub{liked: map[[2]uint]bool{}} }

func (s *likeRepoStub) IsLiked(_ context.Context, userID, logID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liked[[2]uint{userID, logID}], s.err
}
func (s *likeRepoStub) Like(_ context.Context, userID, logID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liked[[2]uint{userID, logID}] = true
	return s.err
}
func (s *likeRepoStub) Unlike(_ context.Context, userID, logID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.liked, [2]uint{userID, logID})
	return s.err
}
func (s *likeRepoStub) Toggle(_ context.Context, userID, logID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	key := [2]uint{userID, logID}
	if s.liked[key] {
		delete(s.liked, key)
		return false, nil
	}
	s.liked[key] = true
	return true, nil
}
func (s *likeRepoStub) CountByLog(_ context.Context, logID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.liked {
		if k[1] == logID {
			n++
		}
	}
	return n, s.err
}

// publisherStub records published events.
type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	LogID   uint
	Type    string
	Payload any
}

func (p *publisherStub) PublishLogEvent(_ context.Context, logID uint, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{LogID: logID, Type: eventType, Payload: payload})
	return p.err
}

// uploaderStub is an ImageUploader that records uploads and removals.
type uploaderStub struct {
	mu       sync.Mutex
	uploaded []string
	removed  []string
	failAt   int // 1-based upload index that fails; 0 never fails
	calls    int
}

func (u *uploaderStub) Upload(_ context.Context, in UploadImageInput) (*UploadedImage, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.failAt == u.calls {
		return nil, models.NewUploadError("Failed to store image", errors.New("store down"))
	}
	objectPath := fmt.Sprintf("logs/%d/%s", in.UserID, in.Filename)
	u.uploaded = append(u.uploaded, "/media/"+objectPath)
	return &UploadedImage{URL: "/media/" + objectPath, Path: objectPath}, nil
}

func (u *uploaderStub) Owns(ownerID uint, url string) (managed, owned bool) {
	if !strings.HasPrefix(url, "/media/") {
		return false, false
	}
	return true, strings.HasPrefix(url, fmt.Sprintf("/media/logs/%d/", ownerID))
}

func (u *uploaderStub) Remove(_ context.Context, ownerID uint, url string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, owned := u.Owns(ownerID, url); owned {
		u.removed = append(u.removed, url)
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T", err)
	require.Equal(t, code, appErr.Code)
}

func strPtr(s string) *string { return &s }
