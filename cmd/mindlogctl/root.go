package main

import (
	"fmt"
	"os"

	"mindlog/internal/config"
	"mindlog/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "mindlogctl",
	Short: "mindlog maintenance tool",
	Example: `mindlogctl migrate
mindlogctl seed --users 20 --logs 80 --clean
mindlogctl seed --fixture internal/seed/testdata/demo.yml
mindlogctl refresh-titles --batch 500`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd(), seedCmd(), refreshTitlesCmd())
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}

// openDB loads configuration and connects with it.
func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}
