package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"expenses/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable ledger: one table per category.
type SQLiteRepository struct {
	db       *sql.DB
	path     string
	locks    map[core.Category]*sync.Mutex
	combined string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	locks := make(map[core.Category]*sync.Mutex, len(partitionTables))
	for c := range partitionTables {
		locks[c] = &sync.Mutex{}
	}

	return &SQLiteRepository{
		db:       db,
		path:     dbPath,
		locks:    locks,
		combined: combinedQuery(),
	}, nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// combinedQuery unions every partition in canonical category order so the
// combined read is a single statement over one snapshot.
func combinedQuery() string {
	parts := make([]string, 0, len(partitionTables))
	for _, c := range core.Categories() {
		table, ok := partitionTables[c]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("SELECT %d AS category, id, date, title, cost FROM %s", int(c), table))
	}
	return strings.Join(parts, " UNION ALL ") + " ORDER BY category, id"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Initialize applies pending migrations and checks that every category has
// a partition. Safe to call on every start; existing partitions are never
// altered or dropped.
func (r *SQLiteRepository) Initialize(ctx context.Context) error {
	version, err := MigratePartitions(r.path)
	if err != nil {
		return &core.StorageError{Op: "initialize", Err: err}
	}

	for _, c := range core.Categories() {
		table, err := partitionFor(c)
		if err != nil {
			return err
		}
		var name string
		err = r.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: partition %s missing for %s", core.ErrUnknownCategory, table, c)
		}
		if err != nil {
			return &core.StorageError{Op: "initialize", Err: fmt.Errorf("check partition %s: %w", table, err)}
		}
	}

	slog.InfoContext(ctx, "Ledger partitions ready", "path", r.path, "partitions", len(partitionTables), "schema_version", version)
	return nil
}

// Add validates e and inserts it, returning the id assigned by its partition.
func (r *SQLiteRepository) Add(ctx context.Context, e core.NewExpense) (int64, error) {
	e = e.Normalized()
	if err := e.Validate(); err != nil {
		return 0, err
	}
	table, err := partitionFor(e.Category)
	if err != nil {
		return 0, err
	}

	lock := r.locks[e.Category]
	lock.Lock()
	defer lock.Unlock()

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (date, title, cost) VALUES (?, ?, ?)", table),
		e.Date.String(), e.Title, e.Cost.String())
	if err != nil {
		return 0, &core.StorageError{Op: "add", Err: fmt.Errorf("insert into %s: %w", table, err)}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &core.StorageError{Op: "add", Err: fmt.Errorf("read inserted id: %w", err)}
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"category", e.Category.String(),
		"id", id,
		"date", e.Date.String(),
		"cost", e.Cost.String())

	return id, nil
}

// ListAll returns every record of one partition in insertion order.
func (r *SQLiteRepository) ListAll(ctx context.Context, c core.Category) ([]core.Expense, error) {
	table, err := partitionFor(c)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, date, title, cost FROM %s ORDER BY id", table))
	if err != nil {
		return nil, &core.StorageError{Op: "list", Err: fmt.Errorf("query %s: %w", table, err)}
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		var (
			e             core.Expense
			date, costTxt string
		)
		if err := rows.Scan(&e.ID, &date, &e.Title, &costTxt); err != nil {
			return nil, &core.StorageError{Op: "list", Err: fmt.Errorf("scan %s: %w", table, err)}
		}
		if e.Date, e.Cost, err = decodeRow(date, costTxt); err != nil {
			return nil, &core.StorageError{Op: "list", Err: fmt.Errorf("decode %s row %d: %w", table, e.ID, err)}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "list", Err: err}
	}
	return out, nil
}

// ListCombined returns every record of every partition tagged with its category.
func (r *SQLiteRepository) ListCombined(ctx context.Context) ([]core.TaggedExpense, error) {
	rows, err := r.db.QueryContext(ctx, r.combined)
	if err != nil {
		return nil, &core.StorageError{Op: "list combined", Err: err}
	}
	defer rows.Close()

	out := make([]core.TaggedExpense, 0)
	for rows.Next() {
		var (
			t             core.TaggedExpense
			cat           int
			date, costTxt string
		)
		if err := rows.Scan(&cat, &t.ID, &date, &t.Title, &costTxt); err != nil {
			return nil, &core.StorageError{Op: "list combined", Err: fmt.Errorf("scan: %w", err)}
		}
		t.Category = core.Category(cat)
		if t.Date, t.Cost, err = decodeRow(date, costTxt); err != nil {
			return nil, &core.StorageError{Op: "list combined", Err: fmt.Errorf("decode %s row %d: %w", t.Category, t.ID, err)}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "list combined", Err: err}
	}
	return out, nil
}

// Delete removes id from the partition. A missing id is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, c core.Category, id int64) error {
	table, err := partitionFor(c)
	if err != nil {
		return err
	}

	lock := r.locks[c]
	lock.Lock()
	defer lock.Unlock()

	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return &core.StorageError{Op: "delete", Err: fmt.Errorf("delete from %s: %w", table, err)}
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.DebugContext(ctx, "Delete of absent expense ignored", "category", c.String(), "id", id)
		return nil
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "category", c.String(), "id", id)
	return nil
}

func decodeRow(date, cost string) (core.Date, decimal.Decimal, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Date{}, decimal.Zero, err
	}
	amount, err := decimal.NewFromString(cost)
	if err != nil {
		return core.Date{}, decimal.Zero, fmt.Errorf("parse cost %q: %w", cost, err)
	}
	return d, amount, nil
}
