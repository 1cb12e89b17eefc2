package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/homestay-auth/internal/apperr"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired login codes and password reset tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, storeMySQL)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := a.auth.Sweep(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("removed %d codes and %d reset tokens\n", res.Otps, res.Resets)
			if every <= 0 {
				return nil
			}

			t := time.NewTicker(every)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					if _, err := a.auth.Sweep(context.WithoutCancel(ctx)); err != nil {
						apperr.LogError(a.logger, "sweep failed", err)
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat at this interval instead of running once")
	return cmd
}
