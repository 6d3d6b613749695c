package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/slack"
)

var (
	ErrQueueNotConfigured       = errors.New("report queue is not configured")
	ErrDeliveryLogNotConfigured = errors.New("delivery log is not configured")
)

type (
	// DigestPoster delivers a rendered digest to the chat channel.
	DigestPoster interface {
		Configured() bool
		PostDigest(ctx context.Context, text string) (slack.PostResult, error)
	}

	// DeliveryLog records and lists outbound posts.
	DeliveryLog interface {
		RecordDelivery(ctx context.Context, d core.Delivery) (int64, error)
		ListDeliveries(ctx context.Context, limit int) ([]core.Delivery, error)
		PostedCount(ctx context.Context, month core.MonthToken) (int64, error)
		Ping(ctx context.Context) error
	}

	// ReportPublisher hands report requests to the worker queue.
	ReportPublisher interface {
		PublishReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error
	}
)

// ReportRequest selects what to summarize and whether to post the digest.
type ReportRequest struct {
	Month     core.MonthToken
	Filename  string
	Post      bool
	RequestID string
}

type ReportResult struct {
	Summary         SummaryResult `json:"summary"`
	SlackPosted     bool          `json:"slack_posted"`
	SlackStatusCode int           `json:"slack_status_code,omitempty"`
	DeliveryID      int64         `json:"delivery_id,omitempty"`
	RequestID       string        `json:"request_id,omitempty"`
}

// ReportService summarizes a month and optionally posts its digest. Poster,
// delivery log and publisher are all optional.
type ReportService struct {
	ledgers   *LedgerService
	poster    DigestPoster
	deliverer DeliveryLog
	publisher ReportPublisher
}

func NewReportService(ledgers *LedgerService, poster DigestPoster, deliveries DeliveryLog, publisher ReportPublisher) *ReportService {
	return &ReportService{
		ledgers:   ledgers,
		poster:    poster,
		deliverer: deliveries,
		publisher: publisher,
	}
}

func (s *ReportService) CanPost() bool {
	return s.poster != nil && s.poster.Configured()
}

func (s *ReportService) CanEnqueue() bool {
	return s.publisher != nil
}

// Report summarizes and, when requested, posts the digest once without retry.
// A non-2xx webhook reply is reported in the result; a transport failure is
// returned as an error wrapping slack.ErrPostFailed. Every post attempt is
// recorded when a delivery log is configured.
func (s *ReportService) Report(ctx context.Context, req ReportRequest) (ReportResult, error) {
	if req.Post && !s.CanPost() {
		return ReportResult{}, slack.ErrWebhookNotConfigured
	}

	sum, err := s.ledgers.Summarize(ctx, req.Month, req.Filename)
	if err != nil {
		return ReportResult{}, err
	}
	result := ReportResult{Summary: sum}
	if !req.Post {
		return result, nil
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	result.RequestID = req.RequestID

	digest := core.RenderDigest(sum.Summary)
	posted, postErr := s.poster.PostDigest(ctx, digest)
	result.SlackPosted = posted.Posted
	result.SlackStatusCode = posted.StatusCode

	result.DeliveryID = s.record(ctx, req, digest, posted, postErr)
	if postErr != nil {
		return result, postErr
	}
	return result, nil
}

// record writes the delivery audit row. Failures are logged, not returned:
// the post already happened.
func (s *ReportService) record(ctx context.Context, req ReportRequest, digest string, res slack.PostResult, postErr error) int64 {
	if s.deliverer == nil {
		return 0
	}
	d := core.Delivery{
		RequestID:  req.RequestID,
		Month:      req.Month.String(),
		Channel:    core.ChannelWebhook,
		Digest:     digest,
		Posted:     res.Posted,
		StatusCode: res.StatusCode,
	}
	if postErr != nil {
		d.Error = postErr.Error()
	}
	id, err := s.deliverer.RecordDelivery(ctx, d)
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentStorage).ErrorContext(ctx, "Failed to record delivery",
			log.FieldRequestID, req.RequestID,
			log.FieldError, err.Error())
		return 0
	}
	return id
}

// Enqueue publishes a report request for the worker and returns its id.
func (s *ReportService) Enqueue(ctx context.Context, month core.MonthToken, filename string) (string, error) {
	if s.publisher == nil {
		return "", ErrQueueNotConfigured
	}
	msg := amqp.NewReportRequestMessage(month, filename)
	if err := s.publisher.PublishReportRequest(ctx, msg); err != nil {
		return "", fmt.Errorf("enqueue report: %w", err)
	}
	return msg.ID.String(), nil
}

// Delivery log states reported by DeliveryLogStatus.
const (
	DeliveryLogDisabled    = "disabled"
	DeliveryLogOK          = "ok"
	DeliveryLogUnavailable = "unavailable"
)

// DeliveryLogStatus pings the delivery log.
func (s *ReportService) DeliveryLogStatus(ctx context.Context) string {
	if s.deliverer == nil {
		return DeliveryLogDisabled
	}
	if err := s.deliverer.Ping(ctx); err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentStorage).WarnContext(ctx, "Delivery log unreachable",
			log.FieldError, err.Error())
		return DeliveryLogUnavailable
	}
	return DeliveryLogOK
}

// PostedCount returns how many digests for month were accepted by the webhook.
func (s *ReportService) PostedCount(ctx context.Context, month core.MonthToken) (int64, error) {
	if s.deliverer == nil {
		return 0, ErrDeliveryLogNotConfigured
	}
	return s.deliverer.PostedCount(ctx, month)
}

// Deliveries lists the most recent delivery records.
func (s *ReportService) Deliveries(ctx context.Context, limit int) ([]core.Delivery, error) {
	if s.deliverer == nil {
		return nil, ErrDeliveryLogNotConfigured
	}
	return s.deliverer.ListDeliveries(ctx, limit)
}
