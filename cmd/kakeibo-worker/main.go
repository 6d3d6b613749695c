package main

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/cli"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
	"kakeibo/internal/slack"
	"kakeibo/internal/sources/localdir"
	"kakeibo/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting kakeibo-worker", log.FieldOperation, log.OpStartup)

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Worker cannot start", errors.New("AMQP_URL is required"))
	}
	if cfg.SlackWebhookURL == "" {
		cli.Fatal(logger, "Worker cannot start", errors.New("SLACK_WEBHOOK_URL is missing or not a Slack incoming webhook"))
	}

	var deliveries services.DeliveryLog
	if repo := cli.OpenDeliveryLog(logger, cfg.SQLiteDBPath); repo != nil {
		defer repo.Close()
		deliveries = repo
	}
	client := cli.OpenQueue(logger, cfg, true)
	defer client.Close()

	ledgers := services.NewLedgerService(localdir.New(cfg.KakeiboDir))
	webhook := slack.NewWebhook(cfg.SlackWebhookURL, cfg.SlackTimeout)
	reportWorker := worker.NewReportWorker(services.NewReportService(ledgers, webhook, deliveries, nil))

	ctx := cli.GracefulShutdown(logger, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Consume(gctx, reportWorker.HandleReportRequest)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker...")
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err.Error())
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Message consumption failed", err)
	}
	logger.Info("Worker shutdown complete")
}
