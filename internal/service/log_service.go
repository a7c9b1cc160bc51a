package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"mindlog/internal/cache"
	"mindlog/internal/graph"
	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/observability"
	"mindlog/internal/relation"
	"mindlog/internal/repository"
	"mindlog/internal/validation"

	"gorm.io/gorm"
)

// searchScanLimit bounds how many visible logs a search considers.
const searchScanLimit = 500

// pendingUploadURL stands in for an upload's URL while the image list is
// validated before any blob is written.
const pendingUploadURL = "pending-upload"

// ImageBlob is an image attached to a create or update request.
type ImageBlob struct {
	Filename    string
	ContentType string
	Content     []byte
	Caption     string
	IsMain      bool
}

type CreateLogInput struct {
	OwnerID       uint
	Title         string
	Description   string
	Images        []models.LogImage
	Uploads       []ImageBlob
	RelatedLogIDs []uint
	YoutubeLink   string
	IsPublic      bool
}

// UpdateLogInput carries a partial update; nil fields are left unchanged.
// Uploads are appended to the resulting image list.
type UpdateLogInput struct {
	Title         *string
	Description   *string
	Images        *[]models.LogImage
	Uploads       []ImageBlob
	RelatedLogIDs *[]uint
	YoutubeLink   *string
	IsPublic      *bool
}

type LogService struct {
	logs    repository.LogRepository
	images  ImageUploader
	graphs  *cache.GraphCache
	layout  graph.Layout
	isAdmin func(ctx context.Context, userID uint) (bool, error)
}

func NewLogService(
	logs repository.LogRepository,
	images ImageUploader,
	graphs *cache.GraphCache,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *LogService {
	return &LogService{
		logs:    logs,
		images:  images,
		graphs:  graphs,
		layout:  graph.DefaultLayout,
		isAdmin: isAdmin,
	}
}

func (s *LogService) Create(ctx context.Context, in CreateLogInput) (*models.Log, error) {
	ctx, span := observability.StartSpan(ctx, "log_service", "create")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if in.OwnerID == 0 {
		err = models.NewUnauthorizedError("Authentication required")
		return nil, err
	}
	if err = validateLogFields(in.Title, in.Description, in.YoutubeLink); err != nil {
		return nil, err
	}
	if err = validateImageList(in.Images, in.Uploads); err != nil {
		return nil, err
	}
	if err = s.checkImageOwner(in.OwnerID, in.Images, nil); err != nil {
		return nil, err
	}

	uploaded, err := s.uploadAll(ctx, in.OwnerID, in.Uploads)
	if err != nil {
		return nil, err
	}

	log := &models.Log{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Images:      models.NormalizeImages(append(slices.Clone(in.Images), uploaded...)),
		YoutubeLink: strings.TrimSpace(in.YoutubeLink),
		IsPublic:    in.IsPublic,
		OwnerID:     in.OwnerID,
	}
	if err = relation.Apply(ctx, s.logs, log, in.RelatedLogIDs); err != nil {
		s.removeAll(ctx, in.OwnerID, uploaded)
		err = models.ClassifyStoreError(err)
		return nil, err
	}
	if err = s.logs.Create(ctx, log); err != nil {
		s.removeAll(ctx, in.OwnerID, uploaded)
		err = models.ClassifyStoreError(err)
		return nil, err
	}

	return s.reload(ctx, log.ID, in.OwnerID)
}

func (s *LogService) Update(ctx context.Context, logID, callerID uint, in UpdateLogInput) (*models.Log, error) {
	log, err := s.loadOwned(ctx, logID, callerID)
	if err != nil {
		return nil, err
	}

	title, description, youtube := log.Title, log.Description, log.YoutubeLink
	if in.Title != nil {
		title = *in.Title
	}
	if in.Description != nil {
		description = *in.Description
	}
	if in.YoutubeLink != nil {
		youtube = *in.YoutubeLink
	}
	if err := validateLogFields(title, description, youtube); err != nil {
		return nil, err
	}

	images := log.Images
	if in.Images != nil {
		images = *in.Images
	}
	if err := validateImageList(images, in.Uploads); err != nil {
		return nil, err
	}
	if err := s.checkImageOwner(log.OwnerID, images, log.Images); err != nil {
		return nil, err
	}

	// Admin edits still file new blobs under the log owner.
	uploaded, err := s.uploadAll(ctx, log.OwnerID, in.Uploads)
	if err != nil {
		return nil, err
	}

	previous := log.Images
	log.Title = strings.TrimSpace(title)
	log.Description = description
	log.YoutubeLink = strings.TrimSpace(youtube)
	log.Images = models.NormalizeImages(append(slices.Clone(images), uploaded...))
	if in.IsPublic != nil {
		log.IsPublic = *in.IsPublic
	}
	if in.RelatedLogIDs != nil {
		if err := relation.Apply(ctx, s.logs, log, *in.RelatedLogIDs); err != nil {
			s.removeAll(ctx, log.OwnerID, uploaded)
			return nil, models.ClassifyStoreError(err)
		}
	}

	if err := s.logs.Update(ctx, log); err != nil {
		s.removeAll(ctx, log.OwnerID, uploaded)
		return nil, models.ClassifyStoreError(err)
	}
	s.forgetGraph(logID)
	s.removeAll(ctx, log.OwnerID, droppedImages(previous, log.Images))

	return s.reload(ctx, logID, callerID)
}

// Delete removes the log with its comments and likes, then the owner's blobs
// that no other log references.
func (s *LogService) Delete(ctx context.Context, logID, callerID uint) error {
	log, err := s.loadOwned(ctx, logID, callerID)
	if err != nil {
		return err
	}
	if err := s.logs.Delete(ctx, logID); err != nil {
		return mapLogError(err, logID)
	}
	s.forgetGraph(logID)
	s.removeAll(ctx, log.OwnerID, log.Images)
	return nil
}

// Get returns the log when viewerID may see it. Private logs of other owners
// are reported as not found.
func (s *LogService) Get(ctx context.Context, logID, viewerID uint) (*models.Log, error) {
	log, err := s.logs.GetByID(ctx, logID, viewerID)
	if err != nil {
		return nil, mapLogError(err, logID)
	}
	if !log.VisibleTo(viewerID) {
		return nil, models.NewNotFoundError("Log", logID)
	}
	decorate(log)
	return log, nil
}

func (s *LogService) ListPublic(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Log, error) {
	logs, err := s.logs.ListPublic(ctx, limit, offset, viewerID)
	return decorateAll(logs, err)
}

func (s *LogService) ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Log, error) {
	logs, err := s.logs.ListByOwner(ctx, ownerID, limit, offset)
	return decorateAll(logs, err)
}

func (s *LogService) ListLiked(ctx context.Context, userID uint, limit, offset int) ([]*models.Log, error) {
	logs, err := s.logs.ListLiked(ctx, userID, limit, offset)
	return decorateAll(logs, err)
}

// Search matches title and description first, then adds visible logs that
// relate to a direct hit or whose related titles match.
func (s *LogService) Search(ctx context.Context, query string, viewerID uint) ([]*models.Log, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		logs, err := s.logs.ListVisible(ctx, viewerID, searchScanLimit)
		return decorateAll(logs, err)
	}

	direct, err := s.logs.SearchDirect(ctx, query, viewerID, searchScanLimit)
	if err != nil {
		return nil, models.ClassifyStoreError(err)
	}
	all, err := s.logs.ListVisible(ctx, viewerID, searchScanLimit)
	if err != nil {
		return nil, models.ClassifyStoreError(err)
	}
	return decorateAll(mergeSearch(query, direct, all), nil)
}

func mergeSearch(query string, direct, all []*models.Log) []*models.Log {
	lower := strings.ToLower(query)
	added := make(map[uint]bool, len(direct))
	out := make([]*models.Log, 0, len(direct))
	for _, l := range direct {
		if !added[l.ID] {
			added[l.ID] = true
			out = append(out, l)
		}
	}
	hits := make(map[uint]bool, len(added))
	for id := range added {
		hits[id] = true
	}

	for _, l := range all {
		if added[l.ID] {
			continue
		}
		related := slices.ContainsFunc(l.RelatedLogIDs, func(id uint) bool { return hits[id] })
		titleMatch := slices.ContainsFunc(l.RelatedLogTitles, func(t string) bool {
			return strings.Contains(strings.ToLower(t), lower)
		})
		if related || titleMatch {
			added[l.ID] = true
			out = append(out, l)
		}
	}
	return out
}

// RelatedCandidates lists the logs callerID may link from excludeID.
func (s *LogService) RelatedCandidates(ctx context.Context, callerID, excludeID uint) ([]models.LogTitle, error) {
	out, err := s.logs.RelatedCandidates(ctx, callerID, excludeID)
	if err != nil {
		return nil, models.ClassifyStoreError(err)
	}
	return out, nil
}

// Graph builds the mind-map of a log, memoized per (logID, updatedAt).
func (s *LogService) Graph(ctx context.Context, logID, viewerID uint) (graph.Graph, error) {
	log, err := s.Get(ctx, logID, viewerID)
	if err != nil {
		return graph.Graph{}, err
	}
	if s.graphs != nil {
		if g, ok := s.graphs.Get(log.ID, log.UpdatedAt); ok {
			observability.GraphBuilds.WithLabelValues("hit").Inc()
			return g, nil
		}
	}
	g := graph.Build(graph.FromLog(log), s.layout)
	observability.GraphBuilds.WithLabelValues("miss").Inc()
	if s.graphs != nil {
		s.graphs.Add(log.ID, log.UpdatedAt, g)
	}
	return g, nil
}

// reload re-reads a log the caller just wrote, with fresh counters.
func (s *LogService) reload(ctx context.Context, logID, callerID uint) (*models.Log, error) {
	log, err := s.logs.GetByID(ctx, logID, callerID)
	if err != nil {
		return nil, mapLogError(err, logID)
	}
	decorate(log)
	return log, nil
}

// loadOwned fetches a log for mutation by callerID. Admins may mutate any
// log; everyone else only their own.
func (s *LogService) loadOwned(ctx context.Context, logID, callerID uint) (*models.Log, error) {
	if callerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	log, err := s.logs.GetByID(ctx, logID, callerID)
	if err != nil {
		return nil, mapLogError(err, logID)
	}
	if log.OwnerID == callerID {
		return log, nil
	}
	admin := false
	if s.isAdmin != nil {
		if admin, err = s.isAdmin(ctx, callerID); err != nil {
			return nil, models.ClassifyStoreError(err)
		}
	}
	if admin {
		return log, nil
	}
	if !log.VisibleTo(callerID) {
		return nil, models.NewNotFoundError("Log", logID)
	}
	return nil, models.NewForbiddenError("You can only modify your own logs")
}

func (s *LogService) uploadAll(ctx context.Context, userID uint, blobs []ImageBlob) ([]models.LogImage, error) {
	if len(blobs) == 0 {
		return nil, nil
	}
	if s.images == nil {
		return nil, models.NewUploadError("Image uploads are not configured", nil)
	}
	out := make([]models.LogImage, 0, len(blobs))
	for _, blob := range blobs {
		up, err := s.images.Upload(ctx, UploadImageInput{
			UserID:      userID,
			Filename:    blob.Filename,
			ContentType: blob.ContentType,
			Content:     blob.Content,
		})
		if err != nil {
			s.removeAll(ctx, userID, out)
			return nil, err
		}
		url := up.URL
		img := models.LogImage{URL: &url, IsMain: blob.IsMain}
		if caption := strings.TrimSpace(blob.Caption); caption != "" {
			img.Caption = &caption
		}
		out = append(out, img)
	}
	return out, nil
}

// checkImageOwner rejects store URLs outside ownerID's prefix. URLs already
// on the log in kept pass unchanged; external URLs are allowed.
func (s *LogService) checkImageOwner(ownerID uint, images, kept []models.LogImage) error {
	if s.images == nil {
		return nil
	}
	known := make(map[string]bool, len(kept))
	for _, img := range kept {
		if img.HasURL() {
			known[*img.URL] = true
		}
	}
	for _, img := range images {
		if !img.HasURL() || known[*img.URL] {
			continue
		}
		if managed, owned := s.images.Owns(ownerID, *img.URL); managed && !owned {
			return models.NewValidationError("Image URL belongs to another user")
		}
	}
	return nil
}

// removeAll deletes ownerID's blobs for images, skipping any URL another
// live log still references. A failed lookup keeps the blob.
func (s *LogService) removeAll(ctx context.Context, ownerID uint, images []models.LogImage) {
	if s.images == nil {
		return
	}
	for _, img := range images {
		if !img.HasURL() {
			continue
		}
		if _, owned := s.images.Owns(ownerID, *img.URL); !owned {
			continue
		}
		inUse, err := s.logs.ImageInUse(ctx, *img.URL)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "image reference check failed, keeping blob", "url", *img.URL, "error", err)
			continue
		}
		if !inUse {
			s.images.Remove(ctx, ownerID, *img.URL)
		}
	}
}

func (s *LogService) forgetGraph(logID uint) {
	if s.graphs != nil {
		s.graphs.Forget(logID)
	}
}

func validateLogFields(title, description, youtube string) error {
	if err := validation.ValidateTitle(title); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateDescription(description); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateYoutubeLink(youtube); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

// validateImageList checks the list as it will look once uploads are
// stored, so bad requests never write blobs.
func validateImageList(images []models.LogImage, uploads []ImageBlob) error {
	pending := slices.Clone(images)
	for _, blob := range uploads {
		url := pendingUploadURL
		img := models.LogImage{URL: &url, IsMain: blob.IsMain}
		if blob.Caption != "" {
			caption := blob.Caption
			img.Caption = &caption
		}
		pending = append(pending, img)
	}
	if err := validation.ValidateImages(models.NormalizeImages(pending)); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

// droppedImages returns the entries of before whose URL no longer appears
// in after.
func droppedImages(before, after []models.LogImage) []models.LogImage {
	kept := make(map[string]bool, len(after))
	for _, img := range after {
		if img.HasURL() {
			kept[*img.URL] = true
		}
	}
	var out []models.LogImage
	for _, img := range before {
		if img.HasURL() && !kept[*img.URL] {
			out = append(out, img)
		}
	}
	return out
}

func mapLogError(err error, logID uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Log", logID)
	}
	return models.ClassifyStoreError(err)
}

func decorate(l *models.Log) {
	l.YoutubeEmbedURL = validation.YoutubeEmbedURL(l.YoutubeLink)
	if l.Images == nil {
		l.Images = []models.LogImage{}
	}
	if l.RelatedLogIDs == nil {
		l.RelatedLogIDs = []uint{}
		l.RelatedLogTitles = []string{}
	}
}

func decorateAll(logs []*models.Log, err error) ([]*models.Log, error) {
	if err != nil {
		return nil, models.ClassifyStoreError(err)
	}
	if logs == nil {
		logs = []*models.Log{}
	}
	for _, l := range logs {
		decorate(l)
	}
	return logs, nil
}
