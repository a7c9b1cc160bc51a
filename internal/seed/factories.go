// Package seed creates demo and test data. It is meant for development and
// tests only.
package seed

import (
	"context"
	"fmt"
	"time"

	"mindlog/internal/models"
	"mindlog/internal/relation"
	"mindlog/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "Password-123"

var youtubeIDs = []string{"dQw4w9WgXcQ", "9bZkp7q19f0", "3JZ_D3ELwOQ", "L_jWHffIx5E", "kXYiU_JCYtU"}

// Factory builds domain entities and persists them.
type Factory struct {
	db    *gorm.DB
	logs  repository.LogRepository
	faker *gofakeit.Faker
	hash  string
}

// NewFactory binds a factory to db. A zero seed picks a random one.
func NewFactory(db *gorm.DB, seed int64) (*Factory, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	return &Factory{
		db:    db,
		logs:  repository.NewLogRepository(db),
		faker: gofakeit.New(seed),
		hash:  string(hash),
	}, nil
}

// CreateUser persists a fake user. Overrides run before the insert.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(100, 999)),
		Email:    f.faker.Email(),
		Password: f.hash,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildLog returns an unsaved fake log owned by owner.
func (f *Factory) BuildLog(owner *models.User, overrides ...func(*models.Log)) *models.Log {
	l := &models.Log{
		Title:       f.faker.Sentence(4),
		Description: f.faker.Paragraph(1, 3, 8, "\n"),
		OwnerID:     owner.ID,
		IsPublic:    f.faker.Number(1, 10) <= 8,
		Images:      f.fakeImages(),
	}
	if f.faker.Bool() {
		l.YoutubeLink = "https://www.youtube.com/watch?v=" + f.faker.RandomString(youtubeIDs)
	}
	l.CreatedAt = time.Now().Add(-time.Duration(f.faker.Number(0, 90*24)) * time.Hour)
	for _, override := range overrides {
		override(l)
	}
	return l
}

// CreateLog saves a fake log, linking it to related with resolved titles.
func (f *Factory) CreateLog(ctx context.Context, owner *models.User, related []uint, overrides ...func(*models.Log)) (*models.Log, error) {
	l := f.BuildLog(owner, overrides...)
	l.Images = models.NormalizeImages(l.Images)
	if err := relation.Apply(ctx, f.logs, l, related); err != nil {
		return nil, err
	}
	if err := f.logs.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateComment adds a fake comment by author on logID.
func (f *Factory) CreateComment(author *models.User, logID uint) (*models.Comment, error) {
	c := &models.Comment{
		LogID:      logID,
		UserID:     author.ID,
		AuthorName: author.DisplayName(),
		Category:   models.CommentCategories[f.faker.Number(0, len(models.CommentCategories)-1)],
		Content:    f.faker.Sentence(f.faker.Number(4, 20)),
	}
	if err := f.db.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// CreateLike records that user liked logID.
func (f *Factory) CreateLike(user *models.User, logID uint) error {
	return f.db.Create(&models.Like{UserID: user.ID, LogID: logID}).Error
}

func (f *Factory) fakeImages() []models.LogImage {
	n := f.faker.Number(0, 5)
	images := make([]models.LogImage, 0, n)
	for i := 0; i < n; i++ {
		url := fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())
		img := models.LogImage{URL: &url}
		if f.faker.Bool() {
			caption := f.faker.Sentence(3)
			img.Caption = &caption
		}
		images = append(images, img)
	}
	return images
}
