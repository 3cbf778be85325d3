package http

import (
	"net/http"
	"strconv"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

type categoryInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	cats := core.Categories()
	out := make([]categoryInfo, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryInfo{Name: c.String(), Path: "/api/expenses/" + c.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListCategory returns one partition with its count and total.
func (s *Server) handleListCategory(w http.ResponseWriter, r *http.Request) {
	c, err := parseCategory(r)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	summary, err := s.ledger.CategorySummary(r.Context(), c)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if summary.Expenses == nil {
		summary.Expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, summary)
}

type createExpenseResponse struct {
	ID       int64         `json:"id"`
	Category core.Category `json:"category"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	c, err := parseCategory(r)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	in, err := decodeNewExpense(w, r)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	id, err := s.ledger.AddExpense(r.Context(), c, in.Date, in.Title, in.Cost)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+c.String()+"/"+strconv.FormatInt(id, 10)).
		Body(createExpenseResponse{ID: id, Category: c}).
		Write(w)
}

// handleDeleteExpense answers 204 whether or not the record existed.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	c, err := parseCategory(r)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.ledger.DeleteExpense(r.Context(), c, id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCombined returns the tagged snapshot of every partition, optionally
// limited to ?start=&end=.
func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	records, err := s.ledger.GetCombinedExpenses(r.Context(), rng)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if records == nil {
		records = []core.TaggedExpense{}
	}
	writeJSON(w, http.StatusOK, records)
}
