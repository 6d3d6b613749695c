package ledger

import (
	"context"
	"fmt"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/sources"
)

// Result is a loaded ledger plus the sources it was built from.
type Result struct {
	Ledger  core.Ledger
	Sources []string
	Skipped []string
}

// Loader concatenates every listed source into one Ledger. It keeps no state
// between calls.
type Loader struct {
	lister sources.SourceLister
	reader sources.SourceReader
}

func NewLoader(lister sources.SourceLister, reader sources.SourceReader) *Loader {
	return &Loader{lister: lister, reader: reader}
}

// Load reads all sources in listing order. A source that cannot be read or parsed
// is logged and skipped; only a listing failure is returned as an error.
// With no usable source the ledger is empty and carries the canonical headers.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentLedger)

	names, err := l.lister.ListSources(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list sources: %w", err)
	}

	res := Result{Ledger: core.Ledger{Records: []core.Record{}}, Sources: names}
	for _, name := range names {
		part, err := l.LoadSource(ctx, name)
		if err != nil {
			logger.WarnContext(ctx, "Failed to read ledger source",
				log.FieldSource, name,
				log.FieldError, err.Error())
			res.Skipped = append(res.Skipped, name)
			continue
		}
		res.Ledger.Append(part.Records)
	}
	if res.Ledger.Len() == 0 && len(res.Ledger.Columns) == 0 {
		res.Ledger = core.EmptyLedger()
	}

	logger.DebugContext(ctx, "Ledger loaded",
		log.FieldSources, len(names),
		log.FieldSkipped, len(res.Skipped),
		log.FieldRows, res.Ledger.Len())
	return res, nil
}

// LoadSource reads and normalizes a single source. Reader errors are returned
// unchanged so callers can tell sources.ErrNotFound from ErrSourceUnreadable.
func (l *Loader) LoadSource(ctx context.Context, name string) (core.Ledger, error) {
	data, err := l.reader.ReadSource(ctx, name)
	if err != nil {
		return core.Ledger{}, err
	}
	part, err := Normalize(data)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("%s: %w", name, err)
	}
	return part, nil
}
