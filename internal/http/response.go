package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
	"kakeibo/internal/slack"
	"kakeibo/internal/sources"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, core.ErrMalformedMonth),
		errors.Is(err, services.ErrInvalidLimit),
		errors.Is(err, ledger.ErrSourceUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sources.ErrInvalidName),
		errors.Is(err, slack.ErrWebhookNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, sources.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, slack.ErrPostFailed):
		return http.StatusBadGateway
	case errors.Is(err, sources.ErrNotConfigured),
		errors.Is(err, services.ErrQueueNotConfigured),
		errors.Is(err, services.ErrDeliveryLogNotConfigured),
		errors.Is(err, slack.ErrVerificationNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, slack.ErrInvalidSignature),
		errors.Is(err, slack.ErrStaleRequest),
		errors.Is(err, slack.ErrReplayedRequest),
		errors.Is(err, slack.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a {"detail": ...} body. Internal errors are logged and
// their text is not exposed.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := err.Error()
	switch {
	case errors.Is(err, slack.ErrWebhookNotConfigured):
		detail = "SLACK_WEBHOOK_URL is not configured or invalid"
	case status == http.StatusInternalServerError:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		detail = "internal error"
	}
	writeError(w, status, detail)
}
