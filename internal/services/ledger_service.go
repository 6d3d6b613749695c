package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
	"kakeibo/internal/log"
	"kakeibo/internal/sources"
)

const (
	DefaultPreviewLimit = 10
	MaxPreviewLimit     = 200
)

var ErrInvalidLimit = fmt.Errorf("limit must be between 1 and %d", MaxPreviewLimit)

// Preview is the head of one normalized source.
type Preview struct {
	Filename string        `json:"filename"`
	Rows     int           `json:"rows"`
	Preview  []core.Record `json:"preview"`
}

// SummaryResult is a Summary plus the sources it was computed from.
type SummaryResult struct {
	core.Summary
	FilesUsed    []string `json:"files_used"`
	SkippedFiles []string `json:"skipped_files,omitempty"`
}

// LedgerService exposes the ledger operations to the request layer. Every
// call reloads its sources; nothing is cached between calls.
type LedgerService struct {
	store  sources.Store
	loader *ledger.Loader
	now    func() time.Time
}

func NewLedgerService(store sources.Store) *LedgerService {
	return &LedgerService{
		store:  store,
		loader: ledger.NewLoader(store, store),
		now:    time.Now,
	}
}

// WithClock replaces the reference time used for month resolution.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// ListSources passes through the source listing.
func (s *LedgerService) ListSources(ctx context.Context) ([]string, error) {
	names, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Preview returns up to limit raw records of one source.
func (s *LedgerService) Preview(ctx context.Context, name string, limit int) (Preview, error) {
	if limit < 1 || limit > MaxPreviewLimit {
		return Preview{}, ErrInvalidLimit
	}

	l, err := s.loader.LoadSource(ctx, name)
	if err != nil {
		return Preview{}, err
	}

	records := l.Records
	if len(records) > limit {
		records = records[:limit]
	}
	log.FromContext(ctx).WithComponent(log.ComponentLedger).DebugContext(ctx, "Source previewed",
		log.FieldOperation, log.OpPreview,
		log.FieldSource, name,
		log.FieldRows, l.Len())

	return Preview{Filename: name, Rows: l.Len(), Preview: records}, nil
}

// Summarize aggregates month over one named source, or over every source
// when filename is empty. An unreadable source is skipped, so the result may
// be the zero summary. A missing or rejected filename is an error.
func (s *LedgerService) Summarize(ctx context.Context, month core.MonthToken, filename string) (SummaryResult, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentSummary)

	var (
		l       core.Ledger
		used    []string
		skipped []string
	)
	if filename != "" {
		part, err := s.loader.LoadSource(ctx, filename)
		switch {
		case errors.Is(err, ledger.ErrSourceUnreadable):
			logger.WarnContext(ctx, "Failed to read ledger source",
				log.FieldSource, filename,
				log.FieldError, err.Error())
			l, skipped = core.EmptyLedger(), []string{filename}
		case err != nil:
			return SummaryResult{}, err
		default:
			l = part
		}
		used = []string{filename}
	} else {
		res, err := s.loader.Load(ctx)
		if err != nil {
			return SummaryResult{}, err
		}
		l, used, skipped = res.Ledger, res.Sources, res.Skipped
	}
	if used == nil {
		used = []string{}
	}

	summary := core.Summarize(l, month)
	logger.InfoContext(ctx, "Month summarized",
		log.FieldOperation, log.OpSummarize,
		log.FieldMonth, month.String(),
		log.FieldSources, len(used),
		log.FieldRows, summary.RowsUsed)

	return SummaryResult{Summary: summary, FilesUsed: used, SkippedFiles: skipped}, nil
}

// ResolveMonth interprets free-form text, falling back to the current JST month.
func (s *LedgerService) ResolveMonth(text string) core.MonthToken {
	now := s.now()
	if m, ok := core.ResolveMonth(text, now); ok {
		return m
	}
	return core.MonthOf(now.In(core.JST))
}

// SourceStatus reports the resolved ledger directory when the store is
// directory-backed. ok is false for stores without a directory.
func (s *LedgerService) SourceStatus() (dir string, ok bool, err error) {
	b, isDir := s.store.(interface{ Base() (string, error) })
	if !isDir {
		return "", false, nil
	}
	dir, err = b.Base()
	return dir, true, err
}
