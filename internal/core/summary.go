package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// UnknownCategory groups rows without a major category.
const UnknownCategory = "(unknown)"

const topExpensesLimit = 5

// CategoryTotal is the signed sum of amounts for one major category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// ExpenseItem is one of the largest expenses of the month. Missing
// categories are nil.
type ExpenseItem struct {
	Date        Date            `json:"date"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Category    *string         `json:"category"`
	Subcategory *string         `json:"subcategory"`
}

// Summary is the monthly aggregation of a ledger.
type Summary struct {
	Month        MonthToken      `json:"month"`
	RowsTotal    int             `json:"rows_total"`
	RowsUsed     int             `json:"rows_used"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Net          decimal.Decimal `json:"net"`
	ByCategory   []CategoryTotal `json:"by_category"`
	TopExpenses  []ExpenseItem   `json:"top_expenses"`
}

// EmptySummary is the zero-valued summary for a month with no usable rows.
func EmptySummary(month MonthToken) Summary {
	return Summary{
		Month:        month,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Net:          decimal.Zero,
		ByCategory:   []CategoryTotal{},
		TopExpenses:  []ExpenseItem{},
	}
}

// Summarize aggregates the ledger rows flagged for calculation and dated in month.
func Summarize(l Ledger, month MonthToken) Summary {
	if l.Len() == 0 {
		return EmptySummary(month)
	}
	return SummarizeTransactions(l.Transactions(), month)
}

// SummarizeTransactions is Summarize over already coerced transactions.
func SummarizeTransactions(txs []Transaction, month MonthToken) Summary {
	used := FilterMonth(txs, month)
	if len(used) == 0 {
		return EmptySummary(month)
	}

	income, expense, net := decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range used {
		switch t.Amount.Sign() {
		case 1:
			income = income.Add(t.Amount)
		case -1:
			expense = expense.Sub(t.Amount)
		}
		net = net.Add(t.Amount)
	}

	s := EmptySummary(month)
	s.RowsTotal = len(used)
	s.RowsUsed = len(used)
	s.TotalIncome = income.Round(2)
	s.TotalExpense = expense.Round(2)
	s.Net = net.Round(2)
	s.ByCategory = groupByCategory(used)
	s.TopExpenses = topExpenses(used, topExpensesLimit)
	return s
}

// FilterMonth keeps transactions included in calculation whose date falls in month.
func FilterMonth(txs []Transaction, month MonthToken) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.IncludedInCalc {
			continue
		}
		if !month.Contains(t.Date) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// groupByCategory sums signed amounts per major category, most negative first.
// Equal totals keep category name order.
func groupByCategory(txs []Transaction) []CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	for _, t := range txs {
		cat := t.MajorCategory
		if cat == "" {
			cat = UnknownCategory
		}
		totals[cat] = totals[cat].Add(t.Amount)
	}

	out := make([]CategoryTotal, 0, len(totals))
	for cat, total := range totals {
		out = append(out, CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c < 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// topExpenses returns up to n negative-amount rows, most negative first.
// Equal amounts keep ledger order.
func topExpenses(txs []Transaction, n int) []ExpenseItem {
	expenses := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Amount.IsNegative() {
			expenses = append(expenses, t)
		}
	}
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Amount.LessThan(expenses[j].Amount)
	})
	if len(expenses) > n {
		expenses = expenses[:n]
	}

	out := make([]ExpenseItem, 0, len(expenses))
	for _, t := range expenses {
		out = append(out, ExpenseItem{
			Date:        t.Date,
			Title:       t.Description,
			Amount:      t.Amount,
			Category:    nullable(t.MajorCategory),
			Subcategory: nullable(t.MinorCategory),
		})
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
