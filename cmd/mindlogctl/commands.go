package main

import (
	"time"

	"mindlog/internal/database"
	"mindlog/internal/jobs"
	"mindlog/internal/repository"
	"mindlog/internal/seed"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			cmd.Println("schema up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var (
		opts    seed.Options
		fixture string
	)
	command := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with generated users, logs, comments and likes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			if opts.RandSeed == 0 {
				opts.RandSeed = time.Now().UnixNano()
			}
			s, err := seed.NewSeeder(db, opts.RandSeed)
			if err != nil {
				return err
			}

			var res seed.Result
			if fixture != "" {
				fx, err := seed.LoadFixtureFile(fixture)
				if err != nil {
					return err
				}
				if opts.ShouldClean {
					if err := s.ClearAll(); err != nil {
						return err
					}
				}
				res, err = s.ApplyFixture(cmd.Context(), fx)
				if err != nil {
					return err
				}
			} else {
				res, err = s.Seed(cmd.Context(), opts)
				if err != nil {
					return err
				}
			}

			cmd.Printf("created %d users, %d logs, %d comments, %d likes\n",
				res.Users, res.Logs, res.Comments, res.Likes)
			if fixture == "" {
				cmd.Printf("generated users share the password %q\n", seed.DefaultPassword)
			}
			return nil
		},
	}

	f := command.Flags()
	f.IntVar(&opts.Users, "users", 10, "number of users to create")
	f.IntVar(&opts.Logs, "logs", 40, "number of logs to create")
	f.IntVar(&opts.MaxRelated, "related", 3, "maximum related logs per log")
	f.BoolVar(&opts.ShouldClean, "clean", false, "delete existing data first")
	f.Int64Var(&opts.RandSeed, "seed", 0, "random seed; 0 picks one from the clock")
	f.StringVar(&fixture, "fixture", "", "YAML fixture to load instead of random data")
	return command
}

func refreshTitlesCmd() *cobra.Command {
	var batch int
	command := &cobra.Command{
		Use:   "refresh-titles",
		Short: "Rewrite stale related-log titles once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			if batch <= 0 {
				batch = cfg.TitleRefreshBatchSize
			}
			refresher := jobs.NewTitleRefresher(repository.NewLogRepository(db), cfg.TitleRefreshSchedule, batch)
			stats, err := refresher.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("scanned %d logs, updated %d\n", stats.Scanned, stats.Updated)
			return nil
		},
	}
	command.Flags().IntVar(&batch, "batch", 0, "rows per batch; 0 uses TITLE_REFRESH_BATCH_SIZE")
	return command
}
