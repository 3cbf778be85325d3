package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO-8601 calendar date format used on the wire and on disk.
const DateLayout = "2006-01-02"

// MaxTitleLength bounds the free-text title of an expense.
const MaxTitleLength = 200

type (
	Date struct {
		time.Time
	}

	// Expense is one persisted transaction inside a category partition.
	Expense struct {
		ID    int64           `json:"id"`
		Date  Date            `json:"date"`
		Title string          `json:"title"`
		Cost  decimal.Decimal `json:"cost"`
	}

	// NewExpense is a candidate record submitted for insertion.
	NewExpense struct {
		Category Category
		Date     Date
		Title    string
		Cost     decimal.Decimal
	}

	// TaggedExpense is an Expense annotated with the partition it came from.
	// Only the combined read produces it.
	TaggedExpense struct {
		Expense
		Category Category `json:"category"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time-of-day and location of t.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Err: fmt.Errorf("%w: %q", ErrInvalidDate, s)}
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if h, m, s := d.Clock(); h != 0 || m != 0 || s != 0 || d.Nanosecond() != 0 {
		return fmt.Errorf("%w: time of day is not allowed", ErrInvalidDate)
	}
	return nil
}

// String returns the ISO-8601 form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &ValidationError{Field: "date", Err: fmt.Errorf("%w: %s", ErrInvalidDate, b)}
	}
	return d.UnmarshalText([]byte(s))
}

// Before reports whether d is an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Validate checks a candidate before anything is written. Category faults are
// reported as ErrUnknownCategory, every other violation as a *ValidationError.
func (e NewExpense) Validate() error {
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, int(e.Category))
	}
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return &ValidationError{Field: "title", Err: ErrEmptyTitle}
	}
	if len([]rune(title)) > MaxTitleLength {
		return &ValidationError{Field: "title", Err: ErrTitleTooLong}
	}
	if !e.Cost.IsPositive() {
		return &ValidationError{Field: "cost", Err: ErrInvalidCost}
	}
	return nil
}

// Normalized returns the candidate with a trimmed title and a date-only timestamp.
func (e NewExpense) Normalized() NewExpense {
	e.Title = strings.TrimSpace(e.Title)
	if !e.Date.IsZero() {
		e.Date = DateOf(e.Date.Time)
	}
	return e
}

// Tag attaches a source category to a partition record.
func (e Expense) Tag(c Category) TaggedExpense {
	return TaggedExpense{Expense: e, Category: c}
}
