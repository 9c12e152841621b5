package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	accountrepo "ident-plane/internal/account/repository"
	"ident-plane/internal/auth/service"
	"ident-plane/internal/auth/store"
	"ident-plane/internal/config"
	"ident-plane/internal/db"
	"ident-plane/internal/notify"
	otprepo "ident-plane/internal/otp/repository"
	"ident-plane/internal/security"
	"ident-plane/internal/server"
	"ident-plane/internal/telemetry/otel"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "ident-plane").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTLPTraceEndpoint, "ident-plane")
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry")
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database")
	}
	defer conn.Close()

	var notifier notify.Notifier
	var devSink *notify.DevSink
	if cfg.OTPReturnToClient {
		devSink = notify.NewDevSink()
		notifier = devSink
		logger.Warn().Msg("dev OTP mode enabled; codes are not emailed")
	} else {
		notifier = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}

	tokens := security.NewTokenProvider([]byte(cfg.AppSecret), cfg.TokenIssuer, cfg.TokenLifetime())
	svc := service.NewAuthService(
		accountrepo.NewPostgresStore(conn),
		otprepo.NewPostgresStore(conn),
		store.NewPostgresTxRunner(conn),
		security.NewHasher(cfg.BcryptCost),
		tokens,
		notifier,
		cfg.CodeLifetime(),
	)

	router := server.NewRouter(cfg, server.Deps{
		Auth:   svc,
		Tokens: tokens,
		DB:     conn,
		DevOTP: devSink,
		Logger: logger,
	})

	srv := server.New(cfg.HTTPAddr, router, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server")
	}
	logger.Info().Msg("server stopped")
}
