// Package ledger turns raw ledger files into canonical records.
//
// Normalization only decodes, tokenizes and restricts columns; values stay raw
// text so previews are faithful to the source. Type coercion happens in core.
package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"kakeibo/internal/core"
)

// ErrSourceUnreadable marks a source that cannot be decoded or tokenized.
var ErrSourceUnreadable = errors.New("source unreadable")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns the text of a ledger file. UTF-8 (with or without BOM) is tried
// first, then Shift_JIS / cp932 as written by Japanese Windows tools.
func Decode(data []byte) (string, error) {
	trimmed := bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(trimmed) {
		return string(trimmed), nil
	}
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("%w: decode cp932: %v", ErrSourceUnreadable, err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("%w: neither utf-8 nor cp932", ErrSourceUnreadable)
	}
	return string(out), nil
}

// Normalize parses one ledger file into a Ledger holding only canonical columns,
// in canonical order. Columns absent from the header are absent from every record.
func Normalize(data []byte) (core.Ledger, error) {
	text, err := Decode(data)
	if err != nil {
		return core.Ledger{}, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return core.Ledger{}, fmt.Errorf("%w: no columns to parse", ErrSourceUnreadable)
	}
	if err != nil {
		return core.Ledger{}, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	var cols []string
	var pos []int
	for _, c := range core.CanonicalColumns() {
		if i, ok := index[c]; ok {
			cols = append(cols, c)
			pos = append(pos, i)
		}
	}

	l := core.Ledger{Columns: cols, Records: []core.Record{}}
	for line := 2; ; line++ {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return core.Ledger{}, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
		}
		if len(fields) > len(header) {
			return core.Ledger{}, fmt.Errorf("%w: expected %d fields in line %d, saw %d",
				ErrSourceUnreadable, len(header), line, len(fields))
		}
		values := make([]string, len(pos))
		for j, i := range pos {
			if i < len(fields) {
				values[j] = fields[i]
			}
		}
		l.Records = append(l.Records, core.Record{Columns: cols, Values: values})
	}
	return l, nil
}
