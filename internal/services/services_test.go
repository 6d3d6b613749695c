package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
	"kakeibo/internal/slack"
	"kakeibo/internal/sources"
	"kakeibo/internal/sources/memory"
)

const header = "計算対象,日付,内容,金額（円）,保有金融機関,大項目,中項目,メモ,振替,ID\n"

func testStore() *memory.Store {
	return memory.New(map[string][]byte{
		"2024-03.csv": []byte(header +
			"1,2024/03/01,給与,300000,銀行,収入,給与,,0,a1\n" +
			"1,2024/03/05,スーパー,-5000,カード,食費,食料品,,0,a2\n" +
			"1,2024/03/10,家賃,-80000,銀行,住宅,家賃,,0,a3\n" +
			"0,2024/03/11,立替,-99999,カード,食費,食料品,,0,a4\n"),
		"2024-02.csv": []byte(header +
			"1,2024/02/10,スーパー,-3000,カード,食費,食料品,,0,b1\n"),
		"broken.csv": {0xff, 0xfe, 0xfd, 0x81},
	})
}

func month(t *testing.T, s string) core.MonthToken {
	t.Helper()
	m, err := core.ParseMonthToken(s)
	if err != nil {
		t.Fatalf("parse month %q: %v", s, err)
	}
	return m
}

func TestLedgerService_Preview(t *testing.T) {
	svc := NewLedgerService(testStore())
	ctx := context.Background()

	p, err := svc.Preview(ctx, "2024-03.csv", 2)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if p.Rows != 4 || len(p.Preview) != 2 {
		t.Fatalf("unexpected preview rows=%d len=%d", p.Rows, len(p.Preview))
	}
	if v, _ := p.Preview[0].Get(core.ColAmount); v != "300000" {
		t.Fatalf("preview should keep raw text, got %q", v)
	}

	for _, limit := range []int{0, -1, MaxPreviewLimit + 1} {
		if _, err := svc.Preview(ctx, "2024-03.csv", limit); !errors.Is(err, ErrInvalidLimit) {
			t.Fatalf("limit %d: expected ErrInvalidLimit, got %v", limit, err)
		}
	}
	if _, err := svc.Preview(ctx, "missing.csv", 5); !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Preview(ctx, "broken.csv", 5); !errors.Is(err, ledger.ErrSourceUnreadable) {
		t.Fatalf("expected ErrSourceUnreadable, got %v", err)
	}
}

func TestLedgerService_Summarize(t *testing.T) {
	svc := NewLedgerService(testStore())
	ctx := context.Background()

	all, err := svc.Summarize(ctx, month(t, "2024-03"), "")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !all.Net.Equal(core.ParseAmount("215000")) {
		t.Fatalf("unexpected net %s", all.Net)
	}
	if len(all.FilesUsed) != 3 || len(all.SkippedFiles) != 1 || all.SkippedFiles[0] != "broken.csv" {
		t.Fatalf("unexpected files used=%v skipped=%v", all.FilesUsed, all.SkippedFiles)
	}

	one, err := svc.Summarize(ctx, month(t, "2024-02"), "2024-03.csv")
	if err != nil {
		t.Fatalf("Summarize single: %v", err)
	}
	if one.RowsUsed != 0 || !one.Net.IsZero() || len(one.FilesUsed) != 1 {
		t.Fatalf("expected empty summary for other month, got %+v", one)
	}

	broken, err := svc.Summarize(ctx, month(t, "2024-03"), "broken.csv")
	if err != nil {
		t.Fatalf("unreadable source should degrade to an empty summary: %v", err)
	}
	if broken.RowsUsed != 0 || len(broken.SkippedFiles) != 1 {
		t.Fatalf("unexpected result %+v", broken)
	}

	if _, err := svc.Summarize(ctx, month(t, "2024-03"), "nope.csv"); !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerService_ResolveMonth(t *testing.T) {
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, core.JST)
	svc := NewLedgerService(memory.New(nil)).WithClock(func() time.Time { return ref })

	tests := map[string]string{
		"先月":      "2024-02",
		"2023/11": "2023-11",
		"hello":   "2024-03",
		"":        "2024-03",
	}
	for in, want := range tests {
		if got := svc.ResolveMonth(in).String(); got != want {
			t.Errorf("ResolveMonth(%q) = %s, want %s", in, got, want)
		}
	}

	// 2024-03-31 20:00 UTC is already April in JST.
	late := NewLedgerService(memory.New(nil)).WithClock(func() time.Time {
		return time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC)
	})
	if got := late.ResolveMonth("").String(); got != "2024-04" {
		t.Fatalf("fallback should use JST, got %s", got)
	}
}

type fakePoster struct {
	configured bool
	result     slack.PostResult
	err        error
	texts      []string
}

func (f *fakePoster) Configured() bool { return f.configured }

func (f *fakePoster) PostDigest(_ context.Context, text string) (slack.PostResult, error) {
	f.texts = append(f.texts, text)
	return f.result, f.err
}

type fakeDeliveryLog struct {
	records []core.Delivery
	err     error
}

func (f *fakeDeliveryLog) RecordDelivery(_ context.Context, d core.Delivery) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.records = append(f.records, d)
	return int64(len(f.records)), nil
}

func (f *fakeDeliveryLog) ListDeliveries(_ context.Context, limit int) ([]core.Delivery, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeDeliveryLog) PostedCount(_ context.Context, month core.MonthToken) (int64, error) {
	var n int64
	for _, d := range f.records {
		if d.Posted && d.Month == month.String() {
			n++
		}
	}
	return n, nil
}

func (f *fakeDeliveryLog) Ping(context.Context) error {
	return f.err
}

type fakePublisher struct {
	msgs []*amqp.ReportRequestMessage
	err  error
}

func (f *fakePublisher) PublishReportRequest(_ context.Context, msg *amqp.ReportRequestMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestReportService_Report(t *testing.T) {
	ctx := context.Background()
	mar := month(t, "2024-03")

	t.Run("summary only", func(t *testing.T) {
		svc := NewReportService(NewLedgerService(testStore()), nil, nil, nil)
		res, err := svc.Report(ctx, ReportRequest{Month: mar})
		if err != nil {
			t.Fatalf("Report: %v", err)
		}
		if res.SlackPosted || res.RequestID != "" || res.Summary.RowsUsed != 3 {
			t.Fatalf("unexpected result %+v", res)
		}
	})

	t.Run("post without webhook", func(t *testing.T) {
		svc := NewReportService(NewLedgerService(testStore()), &fakePoster{}, nil, nil)
		if _, err := svc.Report(ctx, ReportRequest{Month: mar, Post: true}); !errors.Is(err, slack.ErrWebhookNotConfigured) {
			t.Fatalf("expected ErrWebhookNotConfigured, got %v", err)
		}
	})

	t.Run("posted and recorded", func(t *testing.T) {
		poster := &fakePoster{configured: true, result: slack.PostResult{Posted: true, StatusCode: 200}}
		deliveries := &fakeDeliveryLog{}
		svc := NewReportService(NewLedgerService(testStore()), poster, deliveries, nil)

		res, err := svc.Report(ctx, ReportRequest{Month: mar, Post: true, RequestID: "req-1"})
		if err != nil {
			t.Fatalf("Report: %v", err)
		}
		if !res.SlackPosted || res.SlackStatusCode != 200 || res.DeliveryID != 1 || res.RequestID != "req-1" {
			t.Fatalf("unexpected result %+v", res)
		}
		if len(poster.texts) != 1 || poster.texts[0] != core.RenderDigest(res.Summary.Summary) {
			t.Fatalf("digest not posted: %v", poster.texts)
		}
		d := deliveries.records[0]
		if d.Month != "2024-03" || !d.Posted || d.Channel != core.ChannelWebhook || d.Error != "" {
			t.Fatalf("unexpected delivery %+v", d)
		}
	})

	t.Run("transport failure is recorded and returned", func(t *testing.T) {
		poster := &fakePoster{configured: true, err: fmt.Errorf("%w: timeout", slack.ErrPostFailed)}
		deliveries := &fakeDeliveryLog{}
		svc := NewReportService(NewLedgerService(testStore()), poster, deliveries, nil)

		_, err := svc.Report(ctx, ReportRequest{Month: mar, Post: true})
		if !errors.Is(err, slack.ErrPostFailed) {
			t.Fatalf("expected ErrPostFailed, got %v", err)
		}
		if len(deliveries.records) != 1 || deliveries.records[0].Error == "" || deliveries.records[0].RequestID == "" {
			t.Fatalf("failed post not recorded: %+v", deliveries.records)
		}
	})

	t.Run("recording failure does not fail the report", func(t *testing.T) {
		poster := &fakePoster{configured: true, result: slack.PostResult{Posted: true, StatusCode: 200}}
		svc := NewReportService(NewLedgerService(testStore()), poster, &fakeDeliveryLog{err: errors.New("disk full")}, nil)
		res, err := svc.Report(ctx, ReportRequest{Month: mar, Post: true})
		if err != nil || !res.SlackPosted || res.DeliveryID != 0 {
			t.Fatalf("unexpected result %+v, %v", res, err)
		}
	})
}

func TestReportService_EnqueueAndDeliveries(t *testing.T) {
	ctx := context.Background()
	mar := month(t, "2024-03")

	svc := NewReportService(NewLedgerService(testStore()), nil, nil, nil)
	if _, err := svc.Enqueue(ctx, mar, ""); !errors.Is(err, ErrQueueNotConfigured) {
		t.Fatalf("expected ErrQueueNotConfigured, got %v", err)
	}
	if _, err := svc.Deliveries(ctx, 10); !errors.Is(err, ErrDeliveryLogNotConfigured) {
		t.Fatalf("expected ErrDeliveryLogNotConfigured, got %v", err)
	}

	pub := &fakePublisher{}
	svc = NewReportService(NewLedgerService(testStore()), nil, &fakeDeliveryLog{}, pub)
	id, err := svc.Enqueue(ctx, mar, "2024-03.csv")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].ID.String() != id || pub.msgs[0].Month != mar || pub.msgs[0].Filename != "2024-03.csv" {
		t.Fatalf("unexpected published message %+v", pub.msgs)
	}

	pub.err = amqp.ErrCircuitOpen
	if _, err := svc.Enqueue(ctx, mar, ""); !errors.Is(err, amqp.ErrCircuitOpen) {
		t.Fatalf("publish error not wrapped: %v", err)
	}

	list, err := svc.Deliveries(ctx, 10)
	if err != nil || len(list) != 0 {
		t.Fatalf("unexpected deliveries %v, %v", list, err)
	}
}

func TestReportService_DeliveryLogStatus(t *testing.T) {
	ctx := context.Background()
	mar := month(t, "2024-03")

	svc := NewReportService(NewLedgerService(testStore()), nil, nil, nil)
	if got := svc.DeliveryLogStatus(ctx); got != DeliveryLogDisabled {
		t.Fatalf("expected %q, got %q", DeliveryLogDisabled, got)
	}
	if _, err := svc.PostedCount(ctx, mar); !errors.Is(err, ErrDeliveryLogNotConfigured) {
		t.Fatalf("expected ErrDeliveryLogNotConfigured, got %v", err)
	}

	deliveries := &fakeDeliveryLog{records: []core.Delivery{
		{Month: "2024-03", Posted: true},
		{Month: "2024-03", Posted: false},
		{Month: "2024-02", Posted: true},
	}}
	svc = NewReportService(NewLedgerService(testStore()), nil, deliveries, nil)
	if got := svc.DeliveryLogStatus(ctx); got != DeliveryLogOK {
		t.Fatalf("expected %q, got %q", DeliveryLogOK, got)
	}
	if n, err := svc.PostedCount(ctx, mar); err != nil || n != 1 {
		t.Fatalf("PostedCount = %d, %v", n, err)
	}

	deliveries.err = errors.New("disk I/O error")
	if got := svc.DeliveryLogStatus(ctx); got != DeliveryLogUnavailable {
		t.Fatalf("expected %q, got %q", DeliveryLogUnavailable, got)
	}
}
