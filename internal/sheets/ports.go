// Package sheets defines the report export port and its row layout.
package sheets

import (
	"context"

	"expenses/internal/analytics"
	"expenses/internal/core"
)

// ReportWriter replaces the contents of the two report sheets.
type ReportWriter interface {
	WriteMonthlySummary(ctx context.Context, rows []analytics.MonthSummary) error
	WriteCategoryTotals(ctx context.Context, rows []analytics.CategoryShare) error
}

var (
	SummaryHeader  = []any{"Month", "Total", "Count", "Average"}
	CategoryHeader = []any{"Category", "Total", "Share"}
)

// SummaryValues lays out the monthly summary with its header. Amounts are
// rounded to cents here and nowhere else.
func SummaryValues(rows []analytics.MonthSummary) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, SummaryHeader)
	for _, r := range rows {
		out = append(out, []any{r.Month.String(), core.FormatCost(r.Total), r.Count, core.FormatCost(r.Average)})
	}
	return out
}

// CategoryValues lays out category totals with shares as percentages.
func CategoryValues(rows []analytics.CategoryShare) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, CategoryHeader)
	for _, r := range rows {
		out = append(out, []any{r.Category.String(), core.FormatCost(r.Total), r.Share.Shift(2).StringFixed(2) + "%"})
	}
	return out
}
