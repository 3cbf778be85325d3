package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"expenses/internal/core"
)

// maxBodyBytes caps a create request; a single expense is far smaller.
const maxBodyBytes = 64 << 10

var (
	errRangeIncomplete = errors.New("start and end must be given together")
	errNotPositive     = errors.New("must be a positive integer")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so field errors match the request body
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// createExpenseRequest is the body of POST /api/expenses/{category}.
type createExpenseRequest struct {
	Date  string   `json:"date" validate:"required,datetime=2006-01-02"`
	Title string   `json:"title" validate:"required,max=200"`
	Cost  costText `json:"cost" validate:"required"`
}

// costText accepts a JSON number or string so "12,50" reaches core.ParseCost.
type costText string

func (c *costText) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = costText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = costText(n.String())
	return nil
}

// newExpenseInput is a decoded and parsed create request.
type newExpenseInput struct {
	Date  core.Date
	Title string
	Cost  decimal.Decimal
}

// decodeNewExpense reads, struct-validates and parses a create request body.
func decodeNewExpense(w http.ResponseWriter, r *http.Request) (newExpenseInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req createExpenseRequest
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return newExpenseInput{}, err
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return newExpenseInput{}, &core.ValidationError{Field: "body", Err: err}
	}
	// the ledger stores the trimmed title, so bound that
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Struct(req); err != nil {
		return newExpenseInput{}, fieldError(err)
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		return newExpenseInput{}, err
	}
	cost, err := core.ParseCost(string(req.Cost))
	if err != nil {
		return newExpenseInput{}, err
	}
	return newExpenseInput{Date: date, Title: req.Title, Cost: cost}, nil
}

// fieldError turns the first validator failure into a *core.ValidationError
// carrying the domain error for that field.
func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &core.ValidationError{Field: "body", Err: err}
	}
	fe := verrs[0]
	field := fe.Field()

	switch {
	case field == "date":
		return &core.ValidationError{Field: field, Err: core.ErrInvalidDate}
	case field == "title" && fe.Tag() == "required":
		return &core.ValidationError{Field: field, Err: core.ErrEmptyTitle}
	case field == "title" && fe.Tag() == "max":
		return &core.ValidationError{Field: field, Err: core.ErrTitleTooLong}
	case field == "cost":
		return &core.ValidationError{Field: field, Err: core.ErrInvalidCost}
	}
	return &core.ValidationError{Field: field, Err: fmt.Errorf("failed %q", fe.Tag())}
}

// parseRange reads the optional start/end query pair. Neither means no
// filter; exactly one is rejected.
func parseRange(q url.Values) (*core.DateRange, error) {
	start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, &core.ValidationError{Field: "range", Err: errRangeIncomplete}
	}

	from, err := core.ParseDate(start)
	if err != nil {
		return nil, &core.ValidationError{Field: "start", Err: core.ErrInvalidDate}
	}
	to, err := core.ParseDate(end)
	if err != nil {
		return nil, &core.ValidationError{Field: "end", Err: core.ErrInvalidDate}
	}
	rng, err := core.NewDateRange(from, to)
	if err != nil {
		return nil, err
	}
	return &rng, nil
}

// parseN reads the optional TopN size; absent means the default.
func parseN(q url.Values) (int, error) {
	raw := strings.TrimSpace(q.Get("n"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &core.ValidationError{Field: "n", Err: errNotPositive}
	}
	return n, nil
}

func parseCategory(r *http.Request) (core.Category, error) {
	return core.ParseCategory(r.PathValue("category"))
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "id", Err: errNotPositive}
	}
	return id, nil
}
