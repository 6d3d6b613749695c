package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// JST is the civil calendar used to interpret "this month" and "last month".
var JST = time.FixedZone("JST", 9*60*60)

const (
	thisMonthToken = "今月"
	lastMonthToken = "先月"
)

var (
	monthTokenRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

	// Two-digit months are listed first so "2023/11" resolves to November.
	yearMonthRe = regexp.MustCompile(`(\d{4})[-/]?(1[0-2]|0?[1-9])(?:月)?`)
	bareMonthRe = regexp.MustCompile(`(1[0-2]|0?[1-9])月`)
	isoMonthRe  = regexp.MustCompile(`(\d{4})-(\d{2})`)
)

// MonthToken is a calendar month in canonical YYYY-MM form.
// The zero value matches no transaction.
type MonthToken struct {
	year  int
	month time.Month
}

// NewMonthToken validates year and month.
func NewMonthToken(year int, month time.Month) (MonthToken, error) {
	if month < time.January || month > time.December {
		return MonthToken{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	if year < 0 || year > 9999 {
		return MonthToken{}, fmt.Errorf("%w: year %d", ErrInvalidMonth, year)
	}
	return MonthToken{year: year, month: month}, nil
}

// ParseMonthToken accepts only the canonical YYYY-MM shape.
func ParseMonthToken(s string) (MonthToken, error) {
	if !monthTokenRe.MatchString(s) {
		return MonthToken{}, fmt.Errorf("%w: %q", ErrMalformedMonth, s)
	}
	y, _ := strconv.Atoi(s[:4])
	m, _ := strconv.Atoi(s[5:])
	return MonthToken{year: y, month: time.Month(m)}, nil
}

// MonthOf returns the month containing t in t's location.
func MonthOf(t time.Time) MonthToken {
	return MonthToken{year: t.Year(), month: t.Month()}
}

func (m MonthToken) Year() int {
	return m.year
}

func (m MonthToken) Month() time.Month {
	return m.month
}

func (m MonthToken) IsZero() bool {
	return m.month == 0
}

func (m MonthToken) String() string {
	return fmt.Sprintf("%04d-%02d", m.year, int(m.month))
}

// Contains compares the formatted year-month of d with the token.
func (m MonthToken) Contains(d Date) bool {
	if d.IsEmpty() || m.IsZero() {
		return false
	}
	return d.Format("2006-01") == m.String()
}

// MarshalText implements encoding.TextMarshaler.
func (m MonthToken) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MonthToken) UnmarshalText(b []byte) error {
	tok, err := ParseMonthToken(string(b))
	if err != nil {
		return err
	}
	*m = tok
	return nil
}

// ResolveMonth interprets free-form text such as "今月", "先月", "2023/11" or "5月"
// relative to now in JST. It returns false when no rule matches; callers decide
// the fallback.
func ResolveMonth(text string, now time.Time) (MonthToken, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return MonthToken{}, false
	}
	now = now.In(JST)

	if strings.Contains(t, thisMonthToken) {
		return MonthOf(now), true
	}
	if strings.Contains(t, lastMonthToken) {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, JST)
		return MonthOf(first.AddDate(0, 0, -1)), true
	}
	if m := yearMonthRe.FindStringSubmatch(t); m != nil {
		y, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if tok, err := NewMonthToken(y, time.Month(mm)); err == nil {
			return tok, true
		}
	}
	if m := bareMonthRe.FindStringSubmatch(t); m != nil {
		mm, _ := strconv.Atoi(m[1])
		y := now.Year()
		if time.Month(mm) > now.Month() {
			y--
		}
		if tok, err := NewMonthToken(y, time.Month(mm)); err == nil {
			return tok, true
		}
	}
	if m := isoMonthRe.FindStringSubmatch(t); m != nil {
		y, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if tok, err := NewMonthToken(y, time.Month(mm)); err == nil {
			return tok, true
		}
	}
	return MonthToken{}, false
}
