package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/amqp"
	"expenses/internal/analytics"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	msgs   []*amqp.LedgerChangeMessage
	err    error
	closed bool
}

func (p *recordingPublisher) PublishLedgerChange(_ context.Context, msg *amqp.LedgerChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

// countingStore counts combined reads to observe cache behaviour.
type countingStore struct {
	*memory.Store
	mu       sync.Mutex
	combined int
}

func (s *countingStore) ListCombined(ctx context.Context) ([]core.TaggedExpense, error) {
	s.mu.Lock()
	s.combined++
	s.mu.Unlock()
	return s.Store.ListCombined(ctx)
}

func (s *countingStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combined
}

type failingStore struct {
	*memory.Store
}

func (failingStore) ListCombined(context.Context) ([]core.TaggedExpense, error) {
	return nil, &core.StorageError{Op: "list combined", Err: errors.New("disk I/O error")}
}

func newService(t *testing.T, pub ChangePublisher) (*ExpenseService, *countingStore) {
	t.Helper()
	store := &countingStore{Store: memory.New()}
	svc := NewExpenseService(store, pub, Options{})
	require.NoError(t, svc.InitializeStore(context.Background()))
	return svc, store
}

func cost(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, svc *ExpenseService) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		c     core.Category
		date  core.Date
		title string
		cost  string
	}{
		{core.Coffee, core.NewDate(2024, 3, 1), "Latte", "15.50"},
		{core.Coffee, core.NewDate(2024, 3, 2), "Beans", "40.00"},
		{core.Fuel, core.NewDate(2024, 2, 10), "Tank", "60"},
		{core.Gifting, core.NewDate(2024, 3, 20), "Flowers", "20"},
	}
	for _, r := range rows {
		_, err := svc.AddExpense(ctx, r.c, r.date, r.title, cost(r.cost))
		require.NoError(t, err)
	}
}

func TestAddAndListExpenses(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, pub)
	ctx := context.Background()

	id, err := svc.AddExpense(ctx, core.Coffee, core.NewDate(2024, 3, 1), "  Latte ", cost("15.50"))
	require.NoError(t, err)

	list, err := svc.ListExpenses(ctx, core.Coffee)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "Latte", list[0].Title)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, amqp.ChangeAdded, pub.msgs[0].Kind)
	assert.Equal(t, core.Coffee, pub.msgs[0].Category)
	assert.Equal(t, id, pub.msgs[0].ID)
	assert.Equal(t, int64(1), pub.msgs[0].Version)
}

func TestAddExpenseLogsRecordFields(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	svc, _ := newService(t, nil)
	id, err := svc.AddExpense(context.Background(), core.Food, core.NewDate(2024, 3, 2), "Bread", cost("3.25"))
	require.NoError(t, err)

	line := buf.String()
	assert.Contains(t, line, applog.FieldCost+"=3.25")
	assert.Contains(t, line, applog.FieldCategory+"=Food")
	assert.Contains(t, line, applog.FieldExpenseID+"="+strconv.FormatInt(id, 10))
}

func TestAddExpenseValidation(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, pub)
	ctx := context.Background()

	_, err := svc.AddExpense(ctx, core.Food, core.NewDate(2024, 1, 1), "", cost("1"))
	assert.True(t, core.IsValidation(err))
	assert.ErrorIs(t, err, core.ErrEmptyTitle)

	_, err = svc.AddExpense(ctx, core.Food, core.NewDate(2024, 1, 1), "Bread", cost("-2"))
	assert.ErrorIs(t, err, core.ErrInvalidCost)

	_, err = svc.AddExpense(ctx, core.Category(42), core.NewDate(2024, 1, 1), "Bread", cost("2"))
	assert.ErrorIs(t, err, core.ErrUnknownCategory)
	assert.False(t, core.IsValidation(err))

	assert.Empty(t, pub.msgs, "rejected writes are not announced")
	assert.Equal(t, int64(0), svc.Version())
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, _ := newService(t, pub)
	ctx := context.Background()

	id, err := svc.AddExpense(ctx, core.Food, core.NewDate(2024, 1, 1), "Bread", cost("2"))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteExpense(ctx, core.Food, id))
	assert.Len(t, pub.msgs, 2)
	assert.Equal(t, amqp.ChangeDeleted, pub.msgs[1].Kind)
}

func TestDeleteExpense(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	id, err := svc.AddExpense(ctx, core.Products, core.NewDate(2024, 6, 1), "Soap", cost("4.25"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteExpense(ctx, core.Products, id))
	require.NoError(t, svc.DeleteExpense(ctx, core.Products, id), "deleting an absent id is a no-op")

	list, err := svc.ListExpenses(ctx, core.Products)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCategorySummary(t *testing.T) {
	svc, _ := newService(t, nil)
	seed(t, svc)

	sum, err := svc.CategorySummary(context.Background(), core.Coffee)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.True(t, cost("55.50").Equal(sum.Total), sum.Total.String())

	empty, err := svc.CategorySummary(context.Background(), core.Food)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Count)
	assert.True(t, empty.Total.IsZero())
}

func TestGetCombinedExpenses(t *testing.T) {
	svc, _ := newService(t, nil)
	seed(t, svc)
	ctx := context.Background()

	all, err := svc.GetCombinedExpenses(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	march := core.DateRange{Start: core.NewDate(2024, 3, 1), End: core.NewDate(2024, 3, 31)}
	got, err := svc.GetCombinedExpenses(ctx, &march)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for _, r := range got {
		assert.True(t, march.Contains(r.Date))
	}

	bad := core.DateRange{Start: core.NewDate(2024, 3, 31), End: core.NewDate(2024, 3, 1)}
	_, err = svc.GetCombinedExpenses(ctx, &bad)
	assert.ErrorIs(t, err, core.ErrInvalidRange)
}

func TestViewAndComputeView(t *testing.T) {
	svc, _ := newService(t, nil)
	seed(t, svc)
	ctx := context.Background()

	coffee := core.DateRange{Start: core.NewDate(2024, 3, 1), End: core.NewDate(2024, 3, 2)}
	v, err := svc.View(ctx, analytics.ViewTotalSpent, &coffee, analytics.Params{})
	require.NoError(t, err)
	assert.True(t, cost("55.50").Equal(v.(decimal.Decimal)))

	_, err = svc.View(ctx, "median", nil, analytics.Params{})
	assert.ErrorIs(t, err, analytics.ErrUnknownView)

	v, err = svc.ComputeView(analytics.ViewAverageDailySpend, nil, analytics.Params{})
	require.NoError(t, err)
	assert.False(t, v.(decimal.NullDecimal).Valid)
}

func TestDashboardIsCachedUntilNextWrite(t *testing.T) {
	svc, store := newService(t, nil)
	seed(t, svc)
	ctx := context.Background()

	d1, err := svc.Dashboard(ctx, nil, 0)
	require.NoError(t, err)
	d2, err := svc.Dashboard(ctx, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, store.reads())
	assert.Equal(t, d1.TransactionCount, d2.TransactionCount)

	_, err = svc.AddExpense(ctx, core.Food, core.NewDate(2024, 3, 5), "Bread", cost("2.20"))
	require.NoError(t, err)

	d3, err := svc.Dashboard(ctx, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads())
	assert.Equal(t, d1.TransactionCount+1, d3.TransactionCount)
	assert.True(t, d1.TotalSpent.Add(cost("2.20")).Equal(d3.TotalSpent))

	rng := core.DateRange{Start: core.NewDate(2024, 2, 1), End: core.NewDate(2024, 2, 29)}
	feb, err := svc.Dashboard(ctx, &rng, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, store.reads(), "different range is a different key")
	assert.Equal(t, 1, feb.TransactionCount)
}

func TestDashboardCallersOwnTheirCopy(t *testing.T) {
	svc, store := newService(t, nil)
	seed(t, svc)
	ctx := context.Background()

	d1, err := svc.Dashboard(ctx, nil, 10)
	require.NoError(t, err)
	require.NotEmpty(t, d1.TopN)
	require.NotEmpty(t, d1.CategoryTotals)
	d1.TopN[0].Title = "changed"
	d1.CategoryTotals[0].Total = cost("-1")
	d1.WeekdayTotals = d1.WeekdayTotals[:0]

	d2, err := svc.Dashboard(ctx, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, store.reads(), "second call must be served from the cache")
	assert.Equal(t, "Tank", d2.TopN[0].Title)
	assert.True(t, d2.CategoryTotals[0].Total.Equal(cost("60")), d2.CategoryTotals[0].Total.String())
	assert.Len(t, d2.WeekdayTotals, 7)

	// the copy handed out on a hit is private too
	d2.TopN[0].Title = "changed again"
	d3, err := svc.Dashboard(ctx, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, "Tank", d3.TopN[0].Title)
}

func TestDashboardConcurrentMisses(t *testing.T) {
	svc, store := newService(t, nil)
	seed(t, svc)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := svc.Dashboard(context.Background(), nil, 5)
			assert.NoError(t, err)
			assert.Equal(t, 4, d.TransactionCount)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, store.reads(), 16)
	assert.GreaterOrEqual(t, store.reads(), 1)
}

func TestStorageFailureIsDistinct(t *testing.T) {
	svc := NewExpenseService(failingStore{Store: memory.New()}, nil, DefaultOptions())
	require.NoError(t, svc.InitializeStore(context.Background()))

	_, err := svc.Dashboard(context.Background(), nil, 0)
	assert.True(t, core.IsStorage(err))
	assert.False(t, core.IsValidation(err))
}

func TestClose(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newService(t, pub)
	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)

	assert.NoError(t, (&ExpenseService{}).Close())
}
