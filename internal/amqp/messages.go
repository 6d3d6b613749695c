package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/core"
)

// ErrInvalidMessage marks a body that can never be processed.
var ErrInvalidMessage = errors.New("invalid report request message")

// ReportRequestMessage asks the worker to summarize a month and post the digest.
// The ledger is loaded by the worker; the message only names what to load.
type ReportRequestMessage struct {
	ID        uuid.UUID       `json:"id"`
	Month     core.MonthToken `json:"month"`
	Filename  string          `json:"filename,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewReportRequestMessage creates a message with a fresh id.
func NewReportRequestMessage(month core.MonthToken, filename string) *ReportRequestMessage {
	return &ReportRequestMessage{
		ID:        uuid.New(),
		Month:     month,
		Filename:  filename,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON decodes and validates a message body.
// Every failure wraps ErrInvalidMessage.
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	if msg.Month.IsZero() {
		return nil, fmt.Errorf("%w: missing month", ErrInvalidMessage)
	}
	return &msg, nil
}
