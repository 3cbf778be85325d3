package analytics

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
)

// ViewName selects one derived view in ComputeView.
type ViewName string

const (
	ViewTotalSpent              ViewName = "totalSpent"
	ViewAverageDailySpend       ViewName = "averageDailySpend"
	ViewTransactionCount        ViewName = "transactionCount"
	ViewAverageTransactionValue ViewName = "averageTransactionValue"
	ViewMonthlyTrend            ViewName = "monthlyTrend"
	ViewMonthlyByCategory       ViewName = "monthlyByCategory"
	ViewCategoryTotals          ViewName = "categoryTotals"
	ViewCategoryShares          ViewName = "categoryShares"
	ViewCategoryRanking         ViewName = "categoryRanking"
	ViewDailySeries             ViewName = "dailySeries"
	ViewWeekdayTotals           ViewName = "weekdayTotals"
	ViewTopN                    ViewName = "topN"
	ViewMonthlySummary          ViewName = "monthlySummary"
)

var ErrUnknownView = errors.New("unknown view")

// Params carries optional view arguments.
type Params struct {
	// N is the TopN size; zero or negative means DefaultTopN.
	N int
}

var viewFuncs = map[ViewName]func([]core.TaggedExpense, Params) any{
	ViewTotalSpent:              func(r []core.TaggedExpense, _ Params) any { return TotalSpent(r) },
	ViewAverageDailySpend:       func(r []core.TaggedExpense, _ Params) any { return AverageDailySpend(r) },
	ViewTransactionCount:        func(r []core.TaggedExpense, _ Params) any { return TransactionCount(r) },
	ViewAverageTransactionValue: func(r []core.TaggedExpense, _ Params) any { return AverageTransactionValue(r) },
	ViewMonthlyTrend:            func(r []core.TaggedExpense, _ Params) any { return MonthlyTrend(r) },
	ViewMonthlyByCategory:       func(r []core.TaggedExpense, _ Params) any { return MonthlyByCategory(r) },
	ViewCategoryTotals:          func(r []core.TaggedExpense, _ Params) any { return CategoryTotals(r) },
	ViewCategoryShares:          func(r []core.TaggedExpense, _ Params) any { return CategoryShares(r) },
	ViewCategoryRanking:         func(r []core.TaggedExpense, _ Params) any { return CategoryRanking(r) },
	ViewDailySeries:             func(r []core.TaggedExpense, _ Params) any { return DailySeries(r) },
	ViewWeekdayTotals:           func(r []core.TaggedExpense, _ Params) any { return WeekdayTotals(r) },
	ViewTopN:                    func(r []core.TaggedExpense, p Params) any { return TopN(r, p.N) },
	ViewMonthlySummary:          func(r []core.TaggedExpense, _ Params) any { return MonthlySummary(r) },
}

// Views lists every view name ComputeView accepts.
func Views() []ViewName {
	return []ViewName{
		ViewTotalSpent, ViewAverageDailySpend, ViewTransactionCount, ViewAverageTransactionValue,
		ViewMonthlyTrend, ViewMonthlyByCategory, ViewCategoryTotals, ViewCategoryShares,
		ViewCategoryRanking, ViewDailySeries, ViewWeekdayTotals, ViewTopN, ViewMonthlySummary,
	}
}

// ComputeView evaluates one named view over an already filtered record set.
func ComputeView(name ViewName, records []core.TaggedExpense, p Params) (any, error) {
	fn, ok := viewFuncs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, string(name))
	}
	return fn(records, p), nil
}

// Dashboard bundles every view over the same record set.
type Dashboard struct {
	TotalSpent              decimal.Decimal      `json:"totalSpent"`
	AverageDailySpend       decimal.NullDecimal  `json:"averageDailySpend"`
	TransactionCount        int                  `json:"transactionCount"`
	AverageTransactionValue decimal.NullDecimal  `json:"averageTransactionValue"`
	MonthlyTrend            []MonthTotal         `json:"monthlyTrend"`
	MonthlyByCategory       []MonthCategoryTotal `json:"monthlyByCategory"`
	CategoryTotals          []CategoryTotal      `json:"categoryTotals"`
	CategoryShares          []CategoryShare      `json:"categoryShares"`
	CategoryRanking         []CategoryTotal      `json:"categoryRanking"`
	DailySeries             []DayTotal           `json:"dailySeries"`
	WeekdayTotals           []WeekdayTotal       `json:"weekdayTotals"`
	TopN                    []core.TaggedExpense `json:"topN"`
	MonthlySummary          []MonthSummary       `json:"monthlySummary"`
}

// Clone returns a copy that shares no slice storage with d.
func (d Dashboard) Clone() Dashboard {
	d.MonthlyTrend = slices.Clone(d.MonthlyTrend)
	d.MonthlyByCategory = slices.Clone(d.MonthlyByCategory)
	d.CategoryTotals = slices.Clone(d.CategoryTotals)
	d.CategoryShares = slices.Clone(d.CategoryShares)
	d.CategoryRanking = slices.Clone(d.CategoryRanking)
	d.DailySeries = slices.Clone(d.DailySeries)
	d.WeekdayTotals = slices.Clone(d.WeekdayTotals)
	d.TopN = slices.Clone(d.TopN)
	d.MonthlySummary = slices.Clone(d.MonthlySummary)
	return d
}

// Compute builds a Dashboard; n sizes the TopN table.
func Compute(records []core.TaggedExpense, n int) Dashboard {
	return Dashboard{
		TotalSpent:              TotalSpent(records),
		AverageDailySpend:       AverageDailySpend(records),
		TransactionCount:        TransactionCount(records),
		AverageTransactionValue: AverageTransactionValue(records),
		MonthlyTrend:            MonthlyTrend(records),
		MonthlyByCategory:       MonthlyByCategory(records),
		CategoryTotals:          CategoryTotals(records),
		CategoryShares:          CategoryShares(records),
		CategoryRanking:         CategoryRanking(records),
		DailySeries:             DailySeries(records),
		WeekdayTotals:           WeekdayTotals(records),
		TopN:                    TopN(records, n),
		MonthlySummary:          MonthlySummary(records),
	}
}
