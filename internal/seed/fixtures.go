package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"mindlog/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Fixture is a hand-written data set. Logs refer to owners by username and
// to each other by key.
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
	Logs  []FixtureLog  `yaml:"logs"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Admin    bool   `yaml:"admin"`
}

type FixtureImage struct {
	URL     string `yaml:"url"`
	Caption string `yaml:"caption"`
	Main    bool   `yaml:"main"`
}

type FixtureLog struct {
	Key         string         `yaml:"key"`
	Owner       string         `yaml:"owner"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Public      bool           `yaml:"public"`
	Youtube     string         `yaml:"youtube"`
	Images      []FixtureImage `yaml:"images"`
	Related     []string       `yaml:"related"`
	LikedBy     []string       `yaml:"liked_by"`
}

// LoadFixture decodes a YAML fixture, rejecting unknown fields.
func LoadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &fx, nil
}

func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path) // #nosec G304: operator supplied path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadFixture(f)
}

// ApplyFixture inserts fx. Logs are created in file order, so a log may only
// relate to logs listed before it.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (Result, error) {
	var res Result
	users := make(map[string]*models.User, len(fx.Users))
	for _, fu := range fx.Users {
		password := fu.Password
		if password == "" {
			password = DefaultPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			return res, err
		}
		u, err := s.factory.CreateUser(func(u *models.User) {
			u.Username = fu.Username
			u.Email = strings.ToLower(fu.Email)
			u.Password = string(hash)
			u.IsAdmin = fu.Admin
		})
		if err != nil {
			return res, fmt.Errorf("create user %q: %w", fu.Username, err)
		}
		users[fu.Username] = u
		res.Users++
	}

	keys := make(map[string]uint, len(fx.Logs))
	for _, fl := range fx.Logs {
		owner, ok := users[fl.Owner]
		if !ok {
			return res, fmt.Errorf("log %q: unknown owner %q", fl.Key, fl.Owner)
		}
		related := make([]uint, 0, len(fl.Related))
		for _, key := range fl.Related {
			id, ok := keys[key]
			if !ok {
				return res, fmt.Errorf("log %q: related key %q must be defined earlier", fl.Key, key)
			}
			related = append(related, id)
		}

		l, err := s.factory.CreateLog(ctx, owner, related, func(l *models.Log) {
			l.Title = fl.Title
			l.Description = fl.Description
			l.IsPublic = fl.Public
			l.YoutubeLink = fl.Youtube
			l.Images = fixtureImages(fl.Images)
		})
		if err != nil {
			return res, fmt.Errorf("create log %q: %w", fl.Key, err)
		}
		if fl.Key != "" {
			keys[fl.Key] = l.ID
		}
		res.Logs++

		for _, name := range fl.LikedBy {
			u, ok := users[name]
			if !ok {
				return res, fmt.Errorf("log %q: unknown liker %q", fl.Key, name)
			}
			if err := s.factory.CreateLike(u, l.ID); err != nil {
				return res, err
			}
			res.Likes++
		}
	}
	return res, nil
}

func fixtureImages(in []FixtureImage) []models.LogImage {
	out := make([]models.LogImage, 0, len(in))
	for _, fi := range in {
		img := models.LogImage{IsMain: fi.Main}
		if fi.URL != "" {
			url := fi.URL
			img.URL = &url
		}
		if fi.Caption != "" {
			caption := fi.Caption
			img.Caption = &caption
		}
		out = append(out, img)
	}
	return out
}
