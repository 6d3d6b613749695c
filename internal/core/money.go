// Package core provides the canonical ledger schema and the monthly summary logic.
//
// This file contains the lenient coercion rules applied to raw ledger text:
// amounts, 0/1 flags and dates. None of them fail; unparsable input degrades
// to a zero amount, a false flag or an empty date.
package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order. Single-digit layout elements also accept
// zero-padded input, so "2006/1/2" covers "2024/03/05" as well.
var dateLayouts = []string{
	"2006/1/2",
	"2006-1-2",
	"2006.1.2",
	"2006年1月2日",
	"20060102",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-1-2 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseAmount converts a signed decimal string into an amount.
//
// Surrounding whitespace is ignored. Anything else that is not a plain
// number, thousands separators included, is treated as zero rather than
// rejected.
//
// Examples:
//   ParseAmount("-1200")   -> -1200
//   ParseAmount("1,234.5") -> 0
//   ParseAmount("abc")     -> 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseFlag reads a 0/1 column. The value is truncated to an integer and only 1 is true.
func ParseFlag(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return d.IntPart() == 1
}

// ParseDate parses the date formats found in household-ledger exports.
// The boolean is false and the Date empty when no layout matches.
func ParseDate(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), true
		}
	}
	return Date{}, false
}
