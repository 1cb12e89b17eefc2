package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewCreateAdminCmd creates the create-admin subcommand.
func NewCreateAdminCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision an administrator account",
		Long: `Provision an administrator account. Sign-up never grants the admin role,
so this is the only way to create one. The password is read from ADMIN_PASSWORD.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("ADMIN_PASSWORD")
			if password == "" {
				return oops.Code("CONFIG_INVALID").Errorf("ADMIN_PASSWORD environment variable is required")
			}
			a, err := buildApp(cmd.Context(), storeMySQL)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			acc, err := a.auth.CreateAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			cmd.Printf("admin %s created (id %s)\n", acc.Email, acc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
