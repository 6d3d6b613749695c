package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const digestCategoryLimit = 6

// RenderDigest formats a summary as the plain-text monthly report posted to chat.
//
// Categories are re-ranked by absolute total, independent of the ascending
// order stored in the summary, and cut to the largest six.
func RenderDigest(s Summary) string {
	lines := []string{
		fmt.Sprintf("%s 月次レポート: %s", AppName, s.Month),
		"収入: " + formatYen(s.TotalIncome),
		"支出: " + formatYen(s.TotalExpense),
		"収支: " + formatYen(s.Net),
		"カテゴリ内訳:",
	}

	cats := append([]CategoryTotal(nil), s.ByCategory...)
	sort.SliceStable(cats, func(i, j int) bool {
		return cats[i].Total.Abs().GreaterThan(cats[j].Total.Abs())
	})
	if len(cats) > digestCategoryLimit {
		cats = cats[:digestCategoryLimit]
	}
	for _, c := range cats {
		lines = append(lines, fmt.Sprintf("・%s: %s", c.Category, formatYen(c.Total)))
	}
	return strings.Join(lines, "\n")
}

// RenderBrief is the three-line balance reply used for slash commands.
func RenderBrief(s Summary) string {
	return strings.Join([]string{
		fmt.Sprintf("%sの収支", s.Month),
		"収入: " + formatYen(s.TotalIncome),
		"支出: " + formatYen(s.TotalExpense),
		"収支: " + formatYen(s.Net),
	}, "\n")
}

// formatYen truncates toward zero and groups thousands, e.g. -12345.9 -> "-12,345 円".
func formatYen(d decimal.Decimal) string {
	return humanize.Comma(d.IntPart()) + " 円"
}
