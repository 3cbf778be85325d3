// Package memory is a ReportWriter that keeps the last export in process,
// used when no spreadsheet is configured and in tests.
package memory

import (
	"context"
	"sync"

	"expenses/internal/analytics"
	ports "expenses/internal/sheets"
)

type Writer struct {
	mu         sync.Mutex
	summary    [][]any
	categories [][]any
	writes     int
}

var _ ports.ReportWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

func (w *Writer) WriteMonthlySummary(_ context.Context, rows []analytics.MonthSummary) error {
	values := ports.SummaryValues(rows)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.summary = values
	w.writes++
	return nil
}

func (w *Writer) WriteCategoryTotals(_ context.Context, rows []analytics.CategoryShare) error {
	values := ports.CategoryValues(rows)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.categories = values
	w.writes++
	return nil
}

// Summary returns the last summary sheet contents, header included.
func (w *Writer) Summary() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]any(nil), w.summary...)
}

// Categories returns the last category sheet contents, header included.
func (w *Writer) Categories() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]any(nil), w.categories...)
}

// Writes counts sheet writes since creation.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
