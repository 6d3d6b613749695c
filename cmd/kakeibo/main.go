package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"kakeibo/internal/cli"
	apphttp "kakeibo/internal/http"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
	"kakeibo/internal/slack"
	"kakeibo/internal/sources/localdir"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	ledgers := services.NewLedgerService(localdir.New(cfg.KakeiboDir))
	if dir, _, err := ledgers.SourceStatus(); err != nil {
		logger.Warn("Ledger directory unavailable", log.FieldError, err.Error())
	} else {
		logger.Info("Ledger directory configured", "base_dir", dir)
	}

	var poster services.DigestPoster
	switch {
	case cfg.SlackWebhookURL != "":
		poster = slack.NewWebhook(cfg.SlackWebhookURL, cfg.SlackTimeout)
	case cfg.SlackWebhookRejected:
		logger.Warn("SLACK_WEBHOOK_URL ignored: not a Slack incoming webhook")
	}

	// Typed nils must not leak into the service interfaces.
	var deliveries services.DeliveryLog
	if repo := cli.OpenDeliveryLog(logger, cfg.SQLiteDBPath); repo != nil {
		defer repo.Close()
		deliveries = repo
	}
	var publisher services.ReportPublisher
	if client := cli.OpenQueue(logger, cfg, false); client != nil {
		defer client.Close()
		publisher = client
	}

	reports := services.NewReportService(ledgers, poster, deliveries, publisher)
	verifier := slack.NewVerifier(cfg.SlackSigningSecret, cfg.SlackVerificationToken)
	if verifier.Mode() == "" {
		logger.Info("Slash commands disabled - no signing secret or verification token")
	}

	srv := apphttp.NewServer(cfg.Addr(), ledgers, reports, verifier, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.SlackTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx := cli.GracefulShutdown(logger, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting kakeibo server", "addr", cfg.Addr(), log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err, "addr", cfg.Addr())
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
