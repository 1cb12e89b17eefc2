package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/queue"
)

// NewMailWorkerCmd creates the mail-worker subcommand.
func NewMailWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mail-worker",
		Short: "Consume the mail queues and deliver messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := bootstrapLogger()
			w := queue.NewWorker(config.LoadAMQPConfig(), queue.NewSender(config.LoadSMTPConfig(), logger), logger)
			err := w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				logger.Info("mail-worker stopped")
				return nil
			}
			return err
		},
	}
}
