package seed

import (
	"context"
	"fmt"

	"mindlog/internal/middleware"
	"mindlog/internal/models"

	"gorm.io/gorm"
)

// Options controls a random seeding run.
type Options struct {
	Users       int
	Logs        int
	MaxRelated  int
	ShouldClean bool
	RandSeed    int64
}

// Result counts what a run created.
type Result struct {
	Users    int
	Logs     int
	Comments int
	Likes    int
}

// Seeder fills a database with generated or fixture data.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

func NewSeeder(db *gorm.DB, randSeed int64) (*Seeder, error) {
	f, err := NewFactory(db, randSeed)
	if err != nil {
		return nil, err
	}
	return &Seeder{db: db, factory: f}, nil
}

// ClearAll removes every row the application owns.
func (s *Seeder) ClearAll() error {
	for _, table := range []string{"likes", "comments", "logs", "users"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	middleware.Logger.Info("cleared seed tables")
	return nil
}

// Seed generates users and logs. Later logs relate to earlier ones, then
// every user comments on and likes a few of the logs they can see.
func (s *Seeder) Seed(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return res, err
		}
	}
	if opts.Users <= 0 {
		opts.Users = 1
	}

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			return res, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)

	faker := s.factory.faker
	logs := make([]*models.Log, 0, opts.Logs)
	for i := 0; i < opts.Logs; i++ {
		owner := users[faker.Number(0, len(users)-1)]
		var related []uint
		if len(logs) > 0 && opts.MaxRelated > 0 {
			for n := faker.Number(0, opts.MaxRelated); n > 0; n-- {
				related = append(related, logs[faker.Number(0, len(logs)-1)].ID)
			}
		}
		l, err := s.factory.CreateLog(ctx, owner, related)
		if err != nil {
			return res, fmt.Errorf("create log: %w", err)
		}
		logs = append(logs, l)
	}
	res.Logs = len(logs)

	for _, u := range users {
		for _, l := range logs {
			if !l.VisibleTo(u.ID) || faker.Number(1, 4) != 1 {
				continue
			}
			if _, err := s.factory.CreateComment(u, l.ID); err != nil {
				return res, fmt.Errorf("create comment: %w", err)
			}
			res.Comments++
			if faker.Bool() {
				if err := s.factory.CreateLike(u, l.ID); err != nil {
					return res, fmt.Errorf("create like: %w", err)
				}
				res.Likes++
			}
		}
	}

	middleware.Logger.Info("seeding finished",
		"users", res.Users, "logs", res.Logs, "comments", res.Comments, "likes", res.Likes)
	return res, nil
}
