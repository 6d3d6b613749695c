package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func row(included, date, desc, amount, major, minor string) Record {
	return Record{
		Columns: CanonicalColumns(),
		Values:  []string{included, date, desc, amount, "銀行", major, minor, "", "0", ""},
	}
}

func march(t *testing.T) MonthToken {
	t.Helper()
	tok, err := ParseMonthToken("2024-03")
	if err != nil {
		t.Fatalf("parse month: %v", err)
	}
	return tok
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleLedger() Ledger {
	var l Ledger
	l.Append([]Record{
		row("1", "2024/03/01", "給与", "300000", "収入", "給与"),
		row("1", "2024/03/05", "スーパー", "-5000", "食費", "食料品"),
		row("1", "2024/03/10", "家賃", "-80000", "住宅", "家賃"),
		row("0", "2024/03/11", "立替", "-99999", "食費", "食料品"),
		row("1", "2024/02/29", "前月分", "-1000", "食費", "食料品"),
		row("1", "2024/04/01", "翌月分", "-2000", "食費", "食料品"),
		row("1", "不明", "日付なし", "-3000", "食費", "食料品"),
		row("1", "2024/03/20", "外食", "-1234.56", "食費", "外食"),
		row("1", "2024/03/21", "雑費", "-100", "", ""),
		row("1", "2024/03/22", "返金", "500.5", "食費", "食料品"),
	})
	return l
}

func TestSummarizeTotals(t *testing.T) {
	s := Summarize(sampleLedger(), march(t))

	if s.Month.String() != "2024-03" {
		t.Fatalf("unexpected month %s", s.Month)
	}
	if s.RowsUsed != 6 || s.RowsTotal != 6 {
		t.Fatalf("expected 6 rows, got total=%d used=%d", s.RowsTotal, s.RowsUsed)
	}
	if !s.TotalIncome.Equal(dec("300500.5")) {
		t.Fatalf("unexpected income %s", s.TotalIncome)
	}
	if !s.TotalExpense.Equal(dec("86334.56")) {
		t.Fatalf("unexpected expense %s", s.TotalExpense)
	}
	if !s.Net.Equal(dec("214165.94")) {
		t.Fatalf("unexpected net %s", s.Net)
	}
	if !s.TotalIncome.Sub(s.TotalExpense).Equal(s.Net) {
		t.Fatalf("income - expense must equal net")
	}
}

func TestSummarizeByCategory(t *testing.T) {
	s := Summarize(sampleLedger(), march(t))

	want := []CategoryTotal{
		{Category: "住宅", Total: dec("-80000")},
		{Category: "食費", Total: dec("-5734.06")},
		{Category: UnknownCategory, Total: dec("-100")},
		{Category: "収入", Total: dec("300000")},
	}
	if len(s.ByCategory) != len(want) {
		t.Fatalf("unexpected categories: %+v", s.ByCategory)
	}
	sum := decimal.Zero
	for i, w := range want {
		got := s.ByCategory[i]
		if got.Category != w.Category || !got.Total.Equal(w.Total) {
			t.Fatalf("category %d: expected %s=%s, got %s=%s", i, w.Category, w.Total, got.Category, got.Total)
		}
		sum = sum.Add(got.Total)
	}
	if !sum.Equal(s.Net) {
		t.Fatalf("category totals %s must sum to net %s", sum, s.Net)
	}
}

func TestSummarizeTopExpenses(t *testing.T) {
	s := Summarize(sampleLedger(), march(t))

	wantTitles := []string{"家賃", "スーパー", "外食", "雑費"}
	if len(s.TopExpenses) != len(wantTitles) {
		t.Fatalf("expected %d top expenses, got %+v", len(wantTitles), s.TopExpenses)
	}
	for i, title := range wantTitles {
		if s.TopExpenses[i].Title != title {
			t.Fatalf("top expense %d: expected %s, got %s", i, title, s.TopExpenses[i].Title)
		}
	}
	first := s.TopExpenses[0]
	if first.Date.String() != "2024-03-10" || first.Category == nil || *first.Category != "住宅" || first.Subcategory == nil || *first.Subcategory != "家賃" {
		t.Fatalf("unexpected first expense %+v", first)
	}
	for _, item := range s.TopExpenses {
		if item.Title == "立替" {
			t.Fatalf("excluded row leaked into top expenses")
		}
	}
}

func TestSummarizeTopExpensesLimitAndOrder(t *testing.T) {
	var l Ledger
	for _, amt := range []string{"-10", "-700", "-30", "-700", "-5", "-90", "-1", "20"} {
		l.Append([]Record{row("1", "2024/03/02", "x"+amt, amt, "食費", "")})
	}
	s := Summarize(l, march(t))
	if len(s.TopExpenses) != 5 {
		t.Fatalf("expected 5 top expenses, got %d", len(s.TopExpenses))
	}
	for i := 1; i < len(s.TopExpenses); i++ {
		if s.TopExpenses[i].Amount.LessThan(s.TopExpenses[i-1].Amount) {
			t.Fatalf("top expenses must be non-decreasing: %+v", s.TopExpenses)
		}
	}
	if !s.TopExpenses[0].Amount.Equal(dec("-700")) || !s.TopExpenses[4].Amount.Equal(dec("-10")) {
		t.Fatalf("unexpected top expenses: %+v", s.TopExpenses)
	}
}

func TestSummarizeEmptyLedger(t *testing.T) {
	for _, l := range []Ledger{EmptyLedger(), {}} {
		s := Summarize(l, march(t))
		if !s.TotalIncome.IsZero() || !s.TotalExpense.IsZero() || !s.Net.IsZero() {
			t.Fatalf("expected zero totals: %+v", s)
		}
		if s.ByCategory == nil || len(s.ByCategory) != 0 || s.TopExpenses == nil || len(s.TopExpenses) != 0 {
			t.Fatalf("expected empty non-nil lists: %+v", s)
		}
		if s.RowsUsed != 0 || s.RowsTotal != 0 {
			t.Fatalf("expected zero rows: %+v", s)
		}
	}
}

func TestSummarizeNoRowsInMonth(t *testing.T) {
	tok, _ := ParseMonthToken("2019-01")
	s := Summarize(sampleLedger(), tok)
	if s.RowsUsed != 0 || len(s.ByCategory) != 0 || !s.Net.IsZero() {
		t.Fatalf("expected zero summary, got %+v", s)
	}
	if s.Month != tok {
		t.Fatalf("month must be carried: %s", s.Month)
	}
}

func TestSummarizeSubsetOfColumns(t *testing.T) {
	var l Ledger
	cols := []string{ColDate, ColAmount}
	l.Append([]Record{
		{Columns: cols, Values: []string{"2024/03/01", "-100"}},
		{Columns: cols, Values: []string{"2024/03/02", "250"}},
	})
	s := Summarize(l, march(t))
	if s.RowsUsed != 2 {
		t.Fatalf("expected 2 rows, got %d", s.RowsUsed)
	}
	if len(s.ByCategory) != 1 || s.ByCategory[0].Category != UnknownCategory || !s.ByCategory[0].Total.Equal(dec("150")) {
		t.Fatalf("expected single unknown bucket, got %+v", s.ByCategory)
	}

	if len(s.TopExpenses) != 1 || s.TopExpenses[0].Category != nil || s.TopExpenses[0].Subcategory != nil {
		t.Fatalf("missing categories must stay nil, got %+v", s.TopExpenses)
	}
	b, err := json.Marshal(s.TopExpenses[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"category":null`) || !strings.Contains(string(b), `"subcategory":null`) {
		t.Fatalf("missing categories must encode as null: %s", b)
	}

	// Without a date column nothing can match a month.
	var undated Ledger
	undated.Append([]Record{{Columns: []string{ColAmount}, Values: []string{"-100"}}})
	if s := Summarize(undated, march(t)); s.RowsUsed != 0 {
		t.Fatalf("undated rows must be dropped, got %d", s.RowsUsed)
	}
}

func TestSummarizeRoundsTotals(t *testing.T) {
	var l Ledger
	l.Append([]Record{
		row("1", "2024/03/01", "a", "0.005", "x", ""),
		row("1", "2024/03/01", "b", "-0.333", "x", ""),
	})
	s := Summarize(l, march(t))
	if !s.TotalIncome.Equal(dec("0.01")) || !s.TotalExpense.Equal(dec("0.33")) || !s.Net.Equal(dec("-0.33")) {
		t.Fatalf("unexpected rounding: income=%s expense=%s net=%s", s.TotalIncome, s.TotalExpense, s.Net)
	}
}
