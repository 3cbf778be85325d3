// Package services exposes the ledger's boundary operations to the presentation
// layer and background workers.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"expenses/internal/amqp"
	"expenses/internal/analytics"
	"expenses/internal/cache"
	"expenses/internal/core"
	applog "expenses/internal/log"
)

// Store is the ledger persistence contract implemented by the SQLite and
// in-memory stores.
type Store interface {
	Initialize(ctx context.Context) error
	Add(ctx context.Context, e core.NewExpense) (int64, error)
	ListAll(ctx context.Context, c core.Category) ([]core.Expense, error)
	ListCombined(ctx context.Context) ([]core.TaggedExpense, error)
	Delete(ctx context.Context, c core.Category, id int64) error
	Close() error
}

// ChangePublisher receives a notification after every committed write.
type ChangePublisher interface {
	PublishLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error
	Close() error
}

// CategorySummary is one partition with its footer figures.
type CategorySummary struct {
	Category core.Category   `json:"category"`
	Expenses []core.Expense  `json:"expenses"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

// Options tunes the dashboard cache.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

func DefaultOptions() Options {
	return Options{CacheSize: 64, CacheTTL: 5 * time.Minute}
}

// ExpenseService orchestrates the ledger store, analytics and change feed.
type ExpenseService struct {
	store     Store
	publisher ChangePublisher
	views     *cache.LRUCache[analytics.Dashboard]
	group     singleflight.Group
	version   atomic.Int64
}

// NewExpenseService wires a store with an optional publisher; a nil
// publisher disables the change feed.
func NewExpenseService(store Store, publisher ChangePublisher, opts Options) *ExpenseService {
	if opts.CacheSize <= 0 || opts.CacheTTL <= 0 {
		def := DefaultOptions()
		if opts.CacheSize <= 0 {
			opts.CacheSize = def.CacheSize
		}
		if opts.CacheTTL <= 0 {
			opts.CacheTTL = def.CacheTTL
		}
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		views:     cache.NewLRUCache[analytics.Dashboard](opts.CacheSize, opts.CacheTTL),
	}
}

// ViewCache exposes the dashboard cache so a cache.Manager can clean it.
func (s *ExpenseService) ViewCache() cache.Cleaner {
	return s.views
}

// Version is bumped on every committed add or delete.
func (s *ExpenseService) Version() int64 {
	return s.version.Load()
}

// InitializeStore prepares every partition; call once at process start.
func (s *ExpenseService) InitializeStore(ctx context.Context) error {
	if err := s.store.Initialize(ctx); err != nil {
		s.logFault(ctx, "initialize", err)
		return fmt.Errorf("initialize store: %w", err)
	}
	slog.InfoContext(ctx, "Ledger store initialized", "component", "expense", "categories", len(core.Categories()))
	return nil
}

// AddExpense validates and persists one record, returning its id.
func (s *ExpenseService) AddExpense(ctx context.Context, c core.Category, date core.Date, title string, cost decimal.Decimal) (int64, error) {
	id, err := s.store.Add(ctx, core.NewExpense{Category: c, Date: date, Title: title, Cost: cost})
	if err != nil {
		s.logFault(ctx, "add", err)
		return 0, fmt.Errorf("add expense: %w", err)
	}

	v := s.committed()
	slog.InfoContext(ctx, "Expense added",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldCategory, c.String(),
		applog.FieldExpenseID, id,
		applog.FieldCost, cost.String(),
		"version", v)
	s.publish(ctx, amqp.NewLedgerChangeMessage(amqp.ChangeAdded, c, id, v))
	return id, nil
}

// ListExpenses returns one partition in insertion order.
func (s *ExpenseService) ListExpenses(ctx context.Context, c core.Category) ([]core.Expense, error) {
	records, err := s.store.ListAll(ctx, c)
	if err != nil {
		s.logFault(ctx, "list", err)
		return nil, fmt.Errorf("list %s expenses: %w", c, err)
	}
	return records, nil
}

// CategorySummary lists a partition with its count and unrounded total.
func (s *ExpenseService) CategorySummary(ctx context.Context, c core.Category) (CategorySummary, error) {
	records, err := s.ListExpenses(ctx, c)
	if err != nil {
		return CategorySummary{}, err
	}
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Cost)
	}
	return CategorySummary{Category: c, Expenses: records, Count: len(records), Total: total}, nil
}

// DeleteExpense removes one record. Deleting an absent id succeeds.
func (s *ExpenseService) DeleteExpense(ctx context.Context, c core.Category, id int64) error {
	if err := s.store.Delete(ctx, c, id); err != nil {
		s.logFault(ctx, "delete", err)
		return fmt.Errorf("delete expense: %w", err)
	}

	v := s.committed()
	slog.InfoContext(ctx, "Expense deleted",
		"component", "expense",
		"category", c.String(),
		"expense_id", id,
		"version", v)
	s.publish(ctx, amqp.NewLedgerChangeMessage(amqp.ChangeDeleted, c, id, v))
	return nil
}

// GetCombinedExpenses returns one consistent snapshot of every partition,
// filtered to rng when it is non-nil.
func (s *ExpenseService) GetCombinedExpenses(ctx context.Context, rng *core.DateRange) ([]core.TaggedExpense, error) {
	if rng != nil {
		if err := rng.Validate(); err != nil {
			return nil, err
		}
	}

	records, err := s.store.ListCombined(ctx)
	if err != nil {
		s.logFault(ctx, "list combined", err)
		return nil, fmt.Errorf("combined expenses: %w", err)
	}
	return analytics.Filter(records, rng)
}

// ComputeView evaluates a named view over a record set the caller already filtered.
func (s *ExpenseService) ComputeView(name analytics.ViewName, records []core.TaggedExpense, p analytics.Params) (any, error) {
	return analytics.ComputeView(name, records, p)
}

// View reads the filtered snapshot and evaluates one named view over it.
func (s *ExpenseService) View(ctx context.Context, name analytics.ViewName, rng *core.DateRange, p analytics.Params) (any, error) {
	records, err := s.GetCombinedExpenses(ctx, rng)
	if err != nil {
		return nil, err
	}
	return s.ComputeView(name, records, p)
}

// Dashboard computes every view over the filtered snapshot. Results are
// cached until the next write; concurrent misses share one computation.
// The returned Dashboard belongs to the caller.
func (s *ExpenseService) Dashboard(ctx context.Context, rng *core.DateRange, n int) (analytics.Dashboard, error) {
	if n <= 0 {
		n = analytics.DefaultTopN
	}
	v := s.version.Load()
	key := rng.Key() + "|n=" + strconv.Itoa(n) + "|v=" + strconv.FormatInt(v, 10)

	if d, ok := s.views.Get(key); ok {
		slog.DebugContext(ctx, "Dashboard cache hit", "component", "cache", "key", key)
		return d.Clone(), nil
	}

	res, err, _ := s.group.Do(key, func() (any, error) {
		records, err := s.GetCombinedExpenses(ctx, rng)
		if err != nil {
			return nil, err
		}
		d := analytics.Compute(records, n)
		// a write that raced this computation bumped the version; do not
		// cache a result that may predate it
		if s.version.Load() == v {
			s.views.Set(key, d)
		}
		return d, nil
	})
	if err != nil {
		return analytics.Dashboard{}, err
	}
	// the cached value is shared; every caller gets its own copy
	return res.(analytics.Dashboard).Clone(), nil
}

// Ready probes the store with a cheap read.
func (s *ExpenseService) Ready(ctx context.Context) error {
	if _, err := s.store.ListAll(ctx, core.Fuel); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}
	return nil
}

// Close closes the store and the publisher.
func (s *ExpenseService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}

func (s *ExpenseService) committed() int64 {
	v := s.version.Add(1)
	s.views.Purge()
	return v
}

func (s *ExpenseService) publish(ctx context.Context, msg *amqp.LedgerChangeMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChange(ctx, msg); err != nil {
		// the write is already durable
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"component", "amqp",
			"kind", msg.Kind,
			"expense_id", msg.ID,
			"error", err)
	}
}

// logFault reports configuration and storage faults; validation errors are
// the caller's to surface.
func (s *ExpenseService) logFault(ctx context.Context, op string, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownCategory):
		slog.ErrorContext(ctx, "Unknown category reached the ledger", "component", "expense", "operation", op, "error", err)
	case core.IsStorage(err):
		slog.ErrorContext(ctx, "Ledger storage failure", "component", "storage", "operation", op, "error", err)
	}
}
