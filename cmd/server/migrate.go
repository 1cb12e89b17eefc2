package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.DatabaseConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("host", cfg.DBHost).Wrap(err)
			}
			defer db.Close()

			if status {
				return database.MigrationStatus(ctx, db)
			}
			cmd.Println("Running migrations...")
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "print migration status instead of applying")
	return cmd
}
