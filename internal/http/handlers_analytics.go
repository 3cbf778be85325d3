package http

import (
	"net/http"

	"expenses/internal/analytics"
	applog "expenses/internal/log"
)

type viewResponse struct {
	View   analytics.ViewName `json:"view"`
	Result any                `json:"result"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := analytics.ViewName(r.PathValue("view"))
	q := r.URL.Query()
	rng, err := parseRange(q)
	if err != nil {
		writeError(w, r, applog.OpView, err)
		return
	}
	n, err := parseN(q)
	if err != nil {
		writeError(w, r, applog.OpView, err)
		return
	}

	result, err := s.ledger.View(r.Context(), name, rng, analytics.Params{N: n})
	if err != nil {
		writeError(w, r, applog.OpView, err)
		return
	}
	applog.FromContext(r.Context()).Debug("View computed", applog.NewFields().WithView(string(name), rng).ToSlice()...)
	writeJSON(w, http.StatusOK, viewResponse{View: name, Result: result})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q)
	if err != nil {
		writeError(w, r, applog.OpView, err)
		return
	}
	n, err := parseN(q)
	if err != nil {
		writeError(w, r, applog.OpView, err)
		return
	}

	d, err := s.ledger.Dashboard(r.Context(), rng, n)
	if err != nil {
		writeError(w, r, applog.OpView, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
