// Package slack posts digests to an incoming webhook and authenticates
// inbound slash commands.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kakeibo/internal/log"
)

// WebhookPrefix is the only accepted webhook URL prefix.
const WebhookPrefix = "https://hooks.slack.com/services/"

const DefaultTimeout = 10 * time.Second

var (
	ErrWebhookNotConfigured = errors.New("slack webhook is not configured")
	ErrPostFailed           = errors.New("failed to post to slack")
)

// ValidWebhookURL reports whether url points at the Slack webhook host.
func ValidWebhookURL(url string) bool {
	return strings.HasPrefix(url, WebhookPrefix)
}

// PostResult describes a completed webhook call. A non-2xx status is not an error.
type PostResult struct {
	Posted     bool
	StatusCode int
}

// Webhook posts plain-text messages to one incoming webhook.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns a poster bound to url. The timeout bounds the whole call;
// posts are never retried.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Configured() bool {
	return w != nil && w.url != ""
}

// PostDigest sends {"text": text}. Transport failures wrap ErrPostFailed.
func (w *Webhook) PostDigest(ctx context.Context, text string) (PostResult, error) {
	if !w.Configured() {
		return PostResult{}, ErrWebhookNotConfigured
	}
	logger := log.FromContext(ctx).WithComponent(log.ComponentSlack)

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return PostResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return PostResult{}, fmt.Errorf("%w: %v", ErrPostFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "Webhook post failed", log.FieldError, err.Error())
		return PostResult{}, fmt.Errorf("%w: %v", ErrPostFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res := PostResult{
		Posted:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}
	logger.InfoContext(ctx, "Webhook post completed",
		log.FieldOperation, log.OpPost,
		log.FieldStatusCode, res.StatusCode,
		log.FieldPosted, res.Posted)
	return res, nil
}
