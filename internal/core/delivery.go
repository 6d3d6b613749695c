package core

import "time"

// ChannelWebhook marks deliveries sent to the incoming webhook.
const ChannelWebhook = "slack_webhook"

// Delivery is an audit record of one outbound digest post.
type Delivery struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id"`
	Month      string    `json:"month"`
	Channel    string    `json:"channel"`
	Digest     string    `json:"digest"`
	Posted     bool      `json:"posted"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
