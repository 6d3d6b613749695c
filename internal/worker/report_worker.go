// Package worker turns queued report requests into posted digests.
package worker

import (
	"context"
	"errors"
	"fmt"

	"kakeibo/internal/amqp"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
)

// ErrRejectedByWebhook is returned when the webhook answers with a non-2xx status.
var ErrRejectedByWebhook = errors.New("webhook rejected digest")

// ReportWorker handles report requests consumed from the queue. The ledger
// is reloaded for every message.
type ReportWorker struct {
	reports *services.ReportService
}

func NewReportWorker(reports *services.ReportService) *ReportWorker {
	return &ReportWorker{reports: reports}
}

// HandleReportRequest summarizes the requested month and posts its digest once.
// Every failure wraps amqp.ErrDrop: the post is not retried, and a failed
// attempt is already in the delivery log when one is configured.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)

	res, err := w.reports.Report(ctx, services.ReportRequest{
		Month:     msg.Month,
		Filename:  msg.Filename,
		Post:      true,
		RequestID: msg.ID.String(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrDrop, err)
	}

	if !res.SlackPosted {
		logger.WarnContext(ctx, "Webhook rejected digest",
			log.FieldOperation, log.OpPost,
			log.FieldStatusCode, res.SlackStatusCode,
			log.FieldDeliveryID, res.DeliveryID)
		return fmt.Errorf("%w: %w: status %d", amqp.ErrDrop, ErrRejectedByWebhook, res.SlackStatusCode)
	}

	logger.InfoContext(ctx, "Report delivered",
		log.FieldOperation, log.OpReport,
		log.FieldMonth, msg.Month.String(),
		log.FieldRows, res.Summary.RowsUsed,
		log.FieldDeliveryID, res.DeliveryID)
	return nil
}
