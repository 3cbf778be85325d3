// Package analytics turns a snapshot of tagged expenses into derived views.
//
// Every function here is pure: it reads the slice it is given, never mutates
// it, performs no I/O and keeps no state between calls. Sums are exact
// decimals; nothing is rounded.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
)

// DefaultTopN is the number of records TopN returns when n is not positive.
const DefaultTopN = 10

type (
	// MonthKey identifies a calendar month.
	MonthKey struct {
		Year  int        `json:"year"`
		Month time.Month `json:"month"`
	}

	MonthTotal struct {
		Month MonthKey        `json:"month"`
		Total decimal.Decimal `json:"total"`
	}

	MonthCategoryTotal struct {
		Month    MonthKey        `json:"month"`
		Category core.Category   `json:"category"`
		Total    decimal.Decimal `json:"total"`
	}

	CategoryTotal struct {
		Category core.Category   `json:"category"`
		Total    decimal.Decimal `json:"total"`
	}

	// CategoryShare is a category total with its fraction of the grand total (0..1).
	CategoryShare struct {
		Category core.Category   `json:"category"`
		Total    decimal.Decimal `json:"total"`
		Share    decimal.Decimal `json:"share"`
	}

	DayTotal struct {
		Date  core.Date       `json:"date"`
		Total decimal.Decimal `json:"total"`
	}

	WeekdayTotal struct {
		Weekday time.Weekday    `json:"-"`
		Name    string          `json:"weekday"`
		Total   decimal.Decimal `json:"total"`
	}

	MonthSummary struct {
		Month   MonthKey        `json:"month"`
		Total   decimal.Decimal `json:"total"`
		Count   int             `json:"count"`
		Average decimal.Decimal `json:"average"`
	}
)

// canonicalWeek is the fixed presentation order of weekdays.
var canonicalWeek = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func MonthOf(d core.Date) MonthKey {
	return MonthKey{Year: d.Year(), Month: d.Month()}
}

func (m MonthKey) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (m MonthKey) Before(o MonthKey) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Filter keeps the records whose date falls inside rng, bounds included.
// Bounds are compared as calendar days whatever their time of day or zone.
// A nil range keeps everything. A malformed range is rejected before any
// record is looked at.
func Filter(records []core.TaggedExpense, rng *core.DateRange) ([]core.TaggedExpense, error) {
	if rng == nil {
		return append([]core.TaggedExpense(nil), records...), nil
	}
	bounds := rng.Normalized()
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	out := make([]core.TaggedExpense, 0, len(records))
	for _, r := range records {
		if bounds.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ByCategory restricts a combined set to one partition, preserving order.
func ByCategory(records []core.TaggedExpense, c core.Category) []core.TaggedExpense {
	out := make([]core.TaggedExpense, 0)
	for _, r := range records {
		if r.Category == c {
			out = append(out, r)
		}
	}
	return out
}

// TotalSpent sums every cost. Empty input yields zero.
func TotalSpent(records []core.TaggedExpense) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Cost)
	}
	return total
}

func TransactionCount(records []core.TaggedExpense) int {
	return len(records)
}

// AverageDailySpend averages the per-day totals over the days that have at
// least one record; days without spending do not count as zero days.
// Empty input yields an invalid NullDecimal.
func AverageDailySpend(records []core.TaggedExpense) decimal.NullDecimal {
	days := DailySeries(records)
	if len(days) == 0 {
		return decimal.NullDecimal{}
	}
	return average(TotalSpent(records), len(days))
}

// AverageTransactionValue is total spent over transaction count. Empty input
// yields an invalid NullDecimal.
func AverageTransactionValue(records []core.TaggedExpense) decimal.NullDecimal {
	if len(records) == 0 {
		return decimal.NullDecimal{}
	}
	return average(TotalSpent(records), len(records))
}

// MonthlyTrend sums costs per month across all categories, oldest first.
func MonthlyTrend(records []core.TaggedExpense) []MonthTotal {
	sums := map[MonthKey]decimal.Decimal{}
	for _, r := range records {
		k := MonthOf(r.Date)
		sums[k] = sums[k].Add(r.Cost)
	}
	out := make([]MonthTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, MonthTotal{Month: k, Total: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// MonthlyByCategory sums costs per (month, category) pair actually present.
// Rows are ordered by month, then by canonical category order.
func MonthlyByCategory(records []core.TaggedExpense) []MonthCategoryTotal {
	type key struct {
		month MonthKey
		cat   core.Category
	}
	sums := map[key]decimal.Decimal{}
	for _, r := range records {
		k := key{MonthOf(r.Date), r.Category}
		sums[k] = sums[k].Add(r.Cost)
	}
	out := make([]MonthCategoryTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, MonthCategoryTotal{Month: k.month, Category: k.cat, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CategoryTotals sums costs per category present, in canonical category order.
func CategoryTotals(records []core.TaggedExpense) []CategoryTotal {
	sums := map[core.Category]decimal.Decimal{}
	for _, r := range records {
		sums[r.Category] = sums[r.Category].Add(r.Cost)
	}
	out := make([]CategoryTotal, 0, len(sums))
	for _, c := range core.Categories() {
		if v, ok := sums[c]; ok {
			out = append(out, CategoryTotal{Category: c, Total: v})
		}
	}
	return out
}

// CategoryShares reports each category total as a fraction of the grand total.
func CategoryShares(records []core.TaggedExpense) []CategoryShare {
	totals := CategoryTotals(records)
	grand := TotalSpent(records)
	out := make([]CategoryShare, 0, len(totals))
	for _, t := range totals {
		share := decimal.Zero
		if grand.IsPositive() {
			share = t.Total.Div(grand)
		}
		out = append(out, CategoryShare{Category: t.Category, Total: t.Total, Share: share})
	}
	return out
}

// CategoryRanking orders category totals from largest to smallest; equal
// totals keep canonical category order.
func CategoryRanking(records []core.TaggedExpense) []CategoryTotal {
	out := CategoryTotals(records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total.GreaterThan(out[j].Total) })
	return out
}

// DailySeries sums costs per calendar day, oldest first.
func DailySeries(records []core.TaggedExpense) []DayTotal {
	sums := map[string]*DayTotal{}
	for _, r := range records {
		k := r.Date.String()
		if d, ok := sums[k]; ok {
			d.Total = d.Total.Add(r.Cost)
			continue
		}
		sums[k] = &DayTotal{Date: r.Date, Total: r.Cost}
	}
	out := make([]DayTotal, 0, len(sums))
	for _, d := range sums {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// WeekdayTotals always returns seven rows, Monday through Sunday, with zero
// for weekdays that have no records.
func WeekdayTotals(records []core.TaggedExpense) []WeekdayTotal {
	var sums [7]decimal.Decimal
	for _, r := range records {
		wd := r.Date.Weekday()
		sums[wd] = sums[wd].Add(r.Cost)
	}
	out := make([]WeekdayTotal, 0, len(canonicalWeek))
	for _, wd := range canonicalWeek {
		out = append(out, WeekdayTotal{Weekday: wd, Name: wd.String(), Total: sums[wd]})
	}
	return out
}

// TopN returns the n most expensive records, largest first. Ties keep the
// order of the input. A non-positive n means DefaultTopN.
func TopN(records []core.TaggedExpense, n int) []core.TaggedExpense {
	if n <= 0 {
		n = DefaultTopN
	}
	out := append([]core.TaggedExpense(nil), records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cost.GreaterThan(out[j].Cost) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// MonthlySummary reports total, count and average per month present, oldest first.
func MonthlySummary(records []core.TaggedExpense) []MonthSummary {
	rows := map[MonthKey]*MonthSummary{}
	for _, r := range records {
		k := MonthOf(r.Date)
		row, ok := rows[k]
		if !ok {
			row = &MonthSummary{Month: k, Total: decimal.Zero}
			rows[k] = row
		}
		row.Total = row.Total.Add(r.Cost)
		row.Count++
	}
	out := make([]MonthSummary, 0, len(rows))
	for _, row := range rows {
		row.Average = row.Total.Div(decimal.NewFromInt(int64(row.Count)))
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

func average(total decimal.Decimal, n int) decimal.NullDecimal {
	return decimal.NewNullDecimal(total.Div(decimal.NewFromInt(int64(n))))
}
