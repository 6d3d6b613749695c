package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/services"
	"kakeibo/internal/slack"
	"kakeibo/internal/sources/memory"
)

const ledgerCSV = "計算対象,日付,内容,金額（円）,大項目\n" +
	"1,2024/03/01,給与,300000,収入\n" +
	"1,2024/03/05,スーパー,-5000,食費\n"

func newWorker(t *testing.T, status int) (*ReportWorker, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	store := memory.New(map[string][]byte{"2024.csv": []byte(ledgerCSV)})
	reports := services.NewReportService(
		services.NewLedgerService(store),
		slack.NewWebhook(srv.URL, time.Second),
		nil, nil)
	return NewReportWorker(reports), &calls
}

func request(t *testing.T, filename string) *amqp.ReportRequestMessage {
	t.Helper()
	m, err := core.ParseMonthToken("2024-03")
	if err != nil {
		t.Fatal(err)
	}
	return amqp.NewReportRequestMessage(m, filename)
}

func TestHandleReportRequest(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		filename string
		wantErr  bool
		wantDrop bool
		wantPost bool
	}{
		{"posted", http.StatusOK, "", false, false, true},
		{"named file", http.StatusOK, "2024.csv", false, false, true},
		{"missing file is dropped", http.StatusOK, "missing.csv", true, true, false},
		{"bad name is dropped", http.StatusOK, "../etc/passwd", true, true, false},
		{"4xx is dropped", http.StatusBadRequest, "", true, true, true},
		{"5xx is dropped", http.StatusBadGateway, "", true, true, true},
		{"429 is dropped", http.StatusTooManyRequests, "", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, calls := newWorker(t, tt.status)
			err := w.HandleReportRequest(context.Background(), request(t, tt.filename))

			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, amqp.ErrDrop) != tt.wantDrop {
				t.Fatalf("drop = %v, want %v (err %v)", errors.Is(err, amqp.ErrDrop), tt.wantDrop, err)
			}
			if (atomic.LoadInt32(calls) > 0) != tt.wantPost {
				t.Fatalf("webhook calls = %d, wantPost %v", *calls, tt.wantPost)
			}
		})
	}
}

func TestHandleReportRequestWithoutWebhook(t *testing.T) {
	store := memory.New(map[string][]byte{"2024.csv": []byte(ledgerCSV)})
	reports := services.NewReportService(services.NewLedgerService(store), slack.NewWebhook("", time.Second), nil, nil)

	err := NewReportWorker(reports).HandleReportRequest(context.Background(), request(t, ""))
	if !errors.Is(err, amqp.ErrDrop) || !errors.Is(err, slack.ErrWebhookNotConfigured) {
		t.Fatalf("expected drop, got %v", err)
	}
}

type countingLog struct{ items []core.Delivery }

func (c *countingLog) RecordDelivery(_ context.Context, d core.Delivery) (int64, error) {
	c.items = append(c.items, d)
	return int64(len(c.items)), nil
}

func (c *countingLog) ListDeliveries(_ context.Context, limit int) ([]core.Delivery, error) {
	return c.items, nil
}

func (c *countingLog) PostedCount(context.Context, core.MonthToken) (int64, error) {
	return 0, nil
}

func (c *countingLog) Ping(context.Context) error {
	return nil
}

func TestUnavailableWebhookIsPostedOncePerMessage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	deliveries := &countingLog{}
	store := memory.New(map[string][]byte{"2024.csv": []byte(ledgerCSV)})
	reports := services.NewReportService(services.NewLedgerService(store), slack.NewWebhook(srv.URL, time.Second), deliveries, nil)
	w := NewReportWorker(reports)

	err := w.HandleReportRequest(context.Background(), request(t, ""))
	if !errors.Is(err, amqp.ErrDrop) || !errors.Is(err, ErrRejectedByWebhook) {
		t.Fatalf("expected dropped rejection, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one webhook call, got %d", calls)
	}
	if len(deliveries.items) != 1 || deliveries.items[0].Posted || deliveries.items[0].StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected one failed delivery, got %+v", deliveries.items)
	}
}

func TestUnreachableWebhookIsDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	store := memory.New(map[string][]byte{"2024.csv": []byte(ledgerCSV)})
	reports := services.NewReportService(services.NewLedgerService(store), slack.NewWebhook(url, time.Second), nil, nil)

	err := NewReportWorker(reports).HandleReportRequest(context.Background(), request(t, ""))
	if !errors.Is(err, amqp.ErrDrop) || !errors.Is(err, slack.ErrPostFailed) {
		t.Fatalf("expected dropped transport failure, got %v", err)
	}
}
