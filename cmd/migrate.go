package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Juliodvp29/venti-multi-tenant/db"
	"github.com/Juliodvp29/venti-multi-tenant/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplica las migraciones pendientes de la base de datos",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg)
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Println("Migraciones aplicadas.")
	return nil
}
