package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/handler"
	"github.com/iliyamo/homestay-auth/internal/metrics"
	"github.com/iliyamo/homestay-auth/internal/ratelimit"
	"github.com/iliyamo/homestay-auth/internal/router"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var store string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, store)
		},
	}
	cmd.Flags().StringVar(&store, "store", storeMySQL, "account store backend: mysql or memory")
	return cmd
}

func runServe(ctx context.Context, store string) error {
	a, err := buildApp(ctx, store)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	rateCfg := config.LoadRateLimitConfig()
	rdb := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
	} else if rateCfg.Backend == "redis" {
		a.logger.Warn("redis unreachable, rate limiter falls back to memory")
	}

	// A nil *sql.DB must not become a non-nil Pinger.
	var db handler.Pinger
	if a.db != nil {
		db = a.db
	}
	e := router.New(router.Deps{
		Auth:     handler.NewAuthHandler(a.auth),
		Host:     handler.NewHostHandler(a.verify),
		Admin:    handler.NewAdminHandler(a.verify, a.admin),
		Tokens:   a.tokens,
		Accounts: a.accounts,
		Limiter:  ratelimit.New(rateCfg, rdb),
		RateCfg:  rateCfg,
		Metrics:  a.metrics,
		Exporter: metrics.Handler(a.registry),
		DB:       db,
		Logger:   a.logger,
	})

	addr := ":" + a.cfg.Port
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr, "env", a.cfg.Env, "store", store)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_FAILED").With("addr", addr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
