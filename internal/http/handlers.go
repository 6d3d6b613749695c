package http

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/middleware/trace"
	"kakeibo/internal/services"
	"kakeibo/internal/slack"
	"kakeibo/internal/storage"
)

type healthResponse struct {
	Status   string   `json:"status"`
	App      string   `json:"app"`
	BaseDir  *string  `json:"base_dir"`
	CSVFiles []string `json:"csv_files"`
	Reason   *string  `json:"reason"`

	DeliveryLog string `json:"delivery_log"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", App: core.AppName, CSVFiles: []string{}}

	dir, isDir, err := s.ledgers.SourceStatus()
	switch {
	case err != nil:
		reason := err.Error()
		resp.Status, resp.Reason = "unconfigured", &reason
	case isDir:
		resp.BaseDir = &dir
	}

	if files, err := s.ledgers.ListSources(r.Context()); err == nil {
		resp.CSVFiles = files
	}
	resp.DeliveryLog = s.reports.DeliveryLogStatus(r.Context())
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReadCSV(w http.ResponseWriter, r *http.Request) {
	var req readCSVRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	if req.Filename == "" {
		files, err := s.ledgers.ListSources(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": files, "count": len(files)})
		return
	}

	limit := services.DefaultPreviewLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	p, err := s.ledgers.Preview(r.Context(), req.Filename, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	month, err := parseMonth(req.Month)
	if err != nil {
		fail(w, r, err)
		return
	}

	res, err := s.ledgers.Summarize(r.Context(), month, req.Filename)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	month, err := parseMonth(req.Month)
	if err != nil {
		fail(w, r, err)
		return
	}

	if req.Async {
		id, err := s.reports.Enqueue(r.Context(), month, req.Filename)
		if err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to enqueue report",
					log.FieldMonth, month.String(),
					log.FieldError, err.Error())
				writeError(w, http.StatusServiceUnavailable, "report queue unavailable")
				return
			}
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"queued":       true,
			"slack_posted": false,
			"request_id":   id,
		})
		return
	}

	res, err := s.reports.Report(r.Context(), services.ReportRequest{
		Month:     month,
		Filename:  req.Filename,
		Post:      req.PostToSlack,
		RequestID: trace.GetRequestID(r.Context()),
	})
	if err != nil {
		if statusFor(err) == http.StatusBadGateway {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to post to Slack: %v", err))
			return
		}
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSlackCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		fail(w, r, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		fail(w, r, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}
	cmd := slack.ParseCommand(form)

	if err := s.verifier.Verify(r.Header, body, cmd.Token); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentSlack).WarnContext(r.Context(), "Slash command rejected",
			log.FieldError, err.Error())
		fail(w, r, err)
		return
	}

	month := s.ledgers.ResolveMonth(cmd.Text)
	res, err := s.ledgers.Summarize(r.Context(), month, "")
	if err != nil {
		fail(w, r, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentSlack).InfoContext(r.Context(), "Slash command answered",
		log.FieldMonth, month.String(),
		"user_id", cmd.UserID,
		"channel_id", cmd.ChannelID)
	writeJSON(w, http.StatusOK, slack.Ephemeral(core.RenderBrief(res.Summary)))
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := storage.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > storage.MaxListLimit {
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("limit must be between 1 and %d", storage.MaxListLimit))
			return
		}
		limit = n
	}

	list, err := s.reports.Deliveries(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	resp := map[string]any{"deliveries": list, "count": len(list)}

	if v := r.URL.Query().Get("month"); v != "" {
		month, err := parseMonth(v)
		if err != nil {
			fail(w, r, err)
			return
		}
		posted, err := s.reports.PostedCount(r.Context(), month)
		if err != nil {
			fail(w, r, err)
			return
		}
		resp["month"], resp["posted_count"] = month.String(), posted
	}
	writeJSON(w, http.StatusOK, resp)
}
