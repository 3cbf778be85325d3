// Package worker keeps the spreadsheet reports in step with the ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/analytics"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/sheets"
)

// DefaultExportInterval is used when Run is given a non-positive interval.
const DefaultExportInterval = 10 * time.Minute

// Snapshotter reads one consistent snapshot of the ledger.
type Snapshotter interface {
	GetCombinedExpenses(ctx context.Context, rng *core.DateRange) ([]core.TaggedExpense, error)
}

// ExportWorker rewrites the monthly summary and category sheets from a fresh
// ledger snapshot.
type ExportWorker struct {
	ledger Snapshotter
	writer sheets.ReportWriter
	now    func() time.Time

	mu          sync.Mutex
	lastStarted time.Time
}

func NewExportWorker(ledger Snapshotter, writer sheets.ReportWriter) *ExportWorker {
	return &ExportWorker{
		ledger: ledger,
		writer: writer,
		now:    time.Now,
	}
}

// Export reads the ledger once and writes both report sheets concurrently.
// Exports are serialized.
func (w *ExportWorker) Export(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := w.now()
	records, err := w.ledger.GetCombinedExpenses(ctx, nil)
	if err != nil {
		return fmt.Errorf("read ledger snapshot: %w", err)
	}

	summary := analytics.MonthlySummary(records)
	shares := analytics.CategoryShares(records)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.writer.WriteMonthlySummary(gctx, summary); err != nil {
			return fmt.Errorf("write monthly summary: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := w.writer.WriteCategoryTotals(gctx, shares); err != nil {
			return fmt.Errorf("write category totals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	w.lastStarted = started
	slog.InfoContext(ctx, "Reports exported",
		"component", "worker",
		"records", len(records),
		"months", len(summary),
		"categories", len(shares),
		"duration_ms", w.now().Sub(started).Milliseconds())
	return nil
}

// HandleLedgerChange exports unless a successful export already started
// after the change was published. A failed export is logged and the message
// is still consumed: the periodic Run loop retries, so an unavailable sheet
// never turns into a redelivery loop. Only cancellation is returned, which
// requeues the message for the next consumer.
func (w *ExportWorker) HandleLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	w.mu.Lock()
	covered := !w.lastStarted.IsZero() && msg.Timestamp.Before(w.lastStarted)
	w.mu.Unlock()

	if covered {
		slog.DebugContext(ctx, "Ledger change already exported",
			"component", "worker",
			"expense_id", msg.ID,
			"version", msg.Version)
		return nil
	}

	slog.InfoContext(ctx, "Exporting after ledger change",
		"component", "worker",
		"kind", msg.Kind,
		"category", msg.Category.String(),
		"expense_id", msg.ID)
	if err := w.Export(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		applog.FromContext(ctx).WithComponent(applog.ComponentWorker).LogError(ctx,
			"Export after ledger change failed; leaving it to the next scheduled export",
			err, applog.OpExport, applog.NewFields().WithExpense(msg.Category, msg.ID))
	}
	return nil
}

// Run exports immediately and then every interval until ctx is cancelled.
// Failed exports are logged and retried on the next tick.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultExportInterval
	}
	w.exportLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Export loop stopped", "component", "worker", "reason", ctx.Err())
			return
		case <-ticker.C:
			w.exportLogged(ctx)
		}
	}
}

func (w *ExportWorker) exportLogged(ctx context.Context) {
	if err := w.Export(ctx); err != nil && ctx.Err() == nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentWorker).LogError(ctx,
			"Report export failed", err, applog.OpExport, applog.NewFields())
	}
}
