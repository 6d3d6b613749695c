package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"kakeibo/internal/core"
)

var errInvalidBody = errors.New("invalid request body")

type readCSVRequest struct {
	Filename string `json:"filename"`
	Limit    *int   `json:"limit"`
}

type summarizeRequest struct {
	Month    string `json:"month"`
	Filename string `json:"filename"`
}

type reportRequest struct {
	summarizeRequest
	PostToSlack bool `json:"post_to_slack"`
	Async       bool `json:"async"`
}

// decodeJSON reads a JSON object body. An empty body decodes as {}.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// parseMonth validates the canonical month field; a missing month is malformed.
func parseMonth(s string) (core.MonthToken, error) {
	m, err := core.ParseMonthToken(s)
	if err != nil {
		return core.MonthToken{}, fmt.Errorf("%w: month must be in YYYY-MM format", core.ErrMalformedMonth)
	}
	return m, nil
}
