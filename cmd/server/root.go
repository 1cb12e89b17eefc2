package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/homestay-auth/internal/config"
)

var envFile string

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "homestay-auth",
		Short:         "Homestay account authentication and host verification service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewMailWorkerCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewCreateAdminCmd())
	return cmd
}
