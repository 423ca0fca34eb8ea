package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentkb/agentkb/db"
	"github.com/agentkb/agentkb/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := db.Migrate(cfg.PostgresURL()); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}
