package core

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// AppName is used as the header of rendered digests and in health responses.
const AppName = "kakeibo-mcp-server"

// Canonical ledger columns, in the order they appear in exported household-ledger CSVs.
const (
	ColIncluded      = "計算対象"
	ColDate          = "日付"
	ColDescription   = "内容"
	ColAmount        = "金額（円）"
	ColInstitution   = "保有金融機関"
	ColMajorCategory = "大項目"
	ColMinorCategory = "中項目"
	ColMemo          = "メモ"
	ColTransfer      = "振替"
	ColID            = "ID"
)

var canonicalColumns = []string{
	ColIncluded,
	ColDate,
	ColDescription,
	ColAmount,
	ColInstitution,
	ColMajorCategory,
	ColMinorCategory,
	ColMemo,
	ColTransfer,
	ColID,
}

// CanonicalColumns returns a copy of the canonical column list.
func CanonicalColumns() []string {
	return append([]string(nil), canonicalColumns...)
}

type (
	Date struct {
		time.Time
	}

	// Record is one raw row of a ledger file, restricted to the canonical columns
	// present in that file. Values are kept exactly as read.
	Record struct {
		Columns []string
		Values  []string
	}

	// Ledger is the ordered concatenation of records from one or more sources.
	Ledger struct {
		Columns []string
		Records []Record
	}

	// Transaction is a Record coerced into the canonical schema.
	// Empty text fields stand for missing values.
	Transaction struct {
		IncludedInCalc bool
		Date           Date
		Description    string
		Amount         decimal.Decimal
		Institution    string
		MajorCategory  string
		MinorCategory  string
		Memo           string
		IsTransfer     bool
		ID             string
	}
)

var (
	ErrInvalidMonth   = errors.New("invalid month")
	ErrMalformedMonth = errors.New("month must be in YYYY-MM format")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the date is missing or could not be parsed.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String returns the ISO date, or "" for an empty date.
func (d Date) String() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format("2006-01-02")
}

// MarshalJSON encodes an empty date as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsEmpty() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// Get returns the raw value of column col and whether the column exists in the record.
func (r Record) Get(col string) (string, bool) {
	for i, c := range r.Columns {
		if c == col {
			if i < len(r.Values) {
				return r.Values[i], true
			}
			return "", true
		}
	}
	return "", false
}

// Has reports whether the record carries column col.
func (r Record) Has(col string) bool {
	_, ok := r.Get(col)
	return ok
}

// MarshalJSON encodes the record as an object keeping the file's column order.
func (r Record) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, c := range r.Columns {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v := ""
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

// EmptyLedger returns a ledger with no rows and the canonical column headers.
func EmptyLedger() Ledger {
	return Ledger{Columns: CanonicalColumns(), Records: []Record{}}
}

// Len returns the number of records in the ledger.
func (l Ledger) Len() int {
	return len(l.Records)
}

// Append concatenates records, extending the column set in canonical order.
func (l *Ledger) Append(records []Record) {
	seen := make(map[string]bool, len(l.Columns))
	for _, c := range l.Columns {
		seen[c] = true
	}
	for _, rec := range records {
		for _, c := range rec.Columns {
			seen[c] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for _, c := range canonicalColumns {
		if seen[c] {
			cols = append(cols, c)
		}
	}
	l.Columns = cols
	l.Records = append(l.Records, records...)
}

// Transactions coerces every record of the ledger.
func (l Ledger) Transactions() []Transaction {
	out := make([]Transaction, 0, len(l.Records))
	for _, rec := range l.Records {
		out = append(out, NewTransaction(rec))
	}
	return out
}

// NewTransaction coerces a raw record. A file without the included-in-calc column
// counts every row; a present but empty or unparsable flag counts as 0.
func NewTransaction(rec Record) Transaction {
	t := Transaction{IncludedInCalc: true}
	if v, ok := rec.Get(ColIncluded); ok {
		t.IncludedInCalc = ParseFlag(v)
	}
	if v, ok := rec.Get(ColDate); ok {
		t.Date, _ = ParseDate(v)
	}
	if v, ok := rec.Get(ColAmount); ok {
		t.Amount = ParseAmount(v)
	}
	if v, ok := rec.Get(ColTransfer); ok {
		t.IsTransfer = ParseFlag(v)
	}
	t.Description, _ = rec.Get(ColDescription)
	t.Institution, _ = rec.Get(ColInstitution)
	t.MajorCategory, _ = rec.Get(ColMajorCategory)
	t.MinorCategory, _ = rec.Get(ColMinorCategory)
	t.Memo, _ = rec.Get(ColMemo)
	t.ID, _ = rec.Get(ColID)
	return t
}
