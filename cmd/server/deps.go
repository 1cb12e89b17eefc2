package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/database"
	"github.com/iliyamo/homestay-auth/internal/logging"
	"github.com/iliyamo/homestay-auth/internal/metrics"
	"github.com/iliyamo/homestay-auth/internal/oauth"
	"github.com/iliyamo/homestay-auth/internal/queue"
	"github.com/iliyamo/homestay-auth/internal/repository"
	"github.com/iliyamo/homestay-auth/internal/repository/memory"
	"github.com/iliyamo/homestay-auth/internal/service"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

const serviceName = "homestay-auth"

const (
	storeMySQL  = "mysql"
	storeMemory = "memory"
)

// app is the fully wired service shared by the commands that need it.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB // nil for the memory store
	tokens   *utils.TokenService
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	accounts service.AccountStore
	auth     *service.AuthService
	verify   *service.VerificationService
	admin    *service.AdminService

	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// bootstrapLogger is used before the configuration is known.
func bootstrapLogger() *slog.Logger {
	return logging.New(os.Getenv("LOG_LEVEL"), serviceName, os.Getenv("APP_ENV"))
}

func loadConfig(store string) (config.Config, error) {
	switch store {
	case storeMySQL:
		return config.Load()
	case storeMemory:
		return config.LoadWithoutDatabase()
	default:
		return config.Config{}, oops.Code("CONFIG_INVALID").With("store", store).Errorf("unknown store %q", store)
	}
}

func buildApp(ctx context.Context, store string) (*app, error) {
	cfg, err := loadConfig(store)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logging.New(cfg.LogLevel, serviceName, cfg.Env)}
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	a.tokens = utils.NewTokenService(utils.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		Issuer:        cfg.JWTIssuer,
	})

	var (
		otps   service.OtpStore
		resets service.ResetStore
	)
	switch store {
	case storeMySQL:
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("host", cfg.DBHost).Wrap(err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		a.accounts = repository.NewAccountRepo(db)
		otps = repository.NewOtpRepo(db)
		resets = repository.NewResetRepo(db)
	case storeMemory:
		a.logger.Warn("using in-memory store; data is lost on restart")
		a.accounts = memory.NewAccounts(time.Now)
		otps = memory.NewOtps(time.Now)
		resets = memory.NewResets()
	}

	a.auth, err = service.NewAuthService(service.Deps{
		Accounts: a.accounts,
		Otps:     otps,
		Resets:   resets,
		Hasher:   utils.NewPasswordHasher(cfg.BcryptCost),
		Tokens:   a.tokens,
		Mailer:   a.buildMailer(),
		Identity: oauth.NewGoogleVerifier(config.LoadOAuthConfig()),
		Logger:   a.logger,
		Metrics:  a.metrics,
	}, service.Options{
		OTPTTL:            cfg.OTPTTL,
		ResetTTL:          cfg.ResetTokenTTL,
		ResetURL:          cfg.ResetURL,
		PasswordMinLength: cfg.PasswordMinLength,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.verify, err = service.NewVerificationService(a.accounts, a.logger, a.metrics); err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.admin, err = service.NewAdminService(a.accounts, a.logger); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// buildMailer publishes to RabbitMQ when the queue is enabled and sends
// over SMTP otherwise. Either transport sits behind the outbox so request
// handlers never wait on it.
func (a *app) buildMailer() service.Mailer {
	var transport service.Mailer
	amqpCfg := config.LoadAMQPConfig()
	if amqpCfg.Enabled {
		p := queue.NewPublisher(amqpCfg, a.logger)
		a.closers = append(a.closers, p.Close)
		transport = p
	} else {
		transport = &queue.DirectMailer{Sender: queue.NewSender(config.LoadSMTPConfig(), a.logger)}
	}
	// Registered after the publisher so it drains before the connection closes.
	outbox := queue.NewOutbox(transport, config.LoadOutboxConfig(), a.logger)
	a.closers = append(a.closers, outbox.Close)
	return outbox
}
