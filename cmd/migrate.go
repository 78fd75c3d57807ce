package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tawan/askai/internal/config"
	"github.com/tawan/askai/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(*cobra.Command, []string) error {
		return runMigrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateMigrate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := database.Migrate(cfg.DatabaseURL, slog.Default()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
