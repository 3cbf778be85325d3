package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"expenses/internal/analytics"
	"expenses/internal/core"
	applog "expenses/internal/log"
)

// JSONResponseBuilder assembles a JSON response with a fluent API.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write encodes the body, falling back to a bare 500 if it cannot be marshalled.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message, field, requestID string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message, Field: field, RequestID: requestID})
}

// errorStatus maps the error taxonomy onto HTTP: rejected input is 400,
// an unknown category or view 404, an unavailable store 503.
func errorStatus(err error) (int, string, string) {
	var ve *core.ValidationError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, "request body too large", ""
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Err.Error(), ve.Field
	case errors.Is(err, core.ErrUnknownCategory):
		return http.StatusNotFound, core.ErrUnknownCategory.Error(), ""
	case errors.Is(err, analytics.ErrUnknownView):
		return http.StatusNotFound, analytics.ErrUnknownView.Error(), ""
	case core.IsStorage(err):
		return http.StatusServiceUnavailable, "storage unavailable", ""
	}
	return http.StatusInternalServerError, "internal error", ""
}

// writeError logs err against the request and writes the mapped response.
// Messages for 5xx never carry the underlying cause.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status, message, field := errorStatus(err)
	if status >= http.StatusInternalServerError || status == http.StatusBadRequest {
		applog.FromContext(ctx).LogError(ctx, "Request failed", err, op, applog.LogFields{applog.FieldStatusCode: status})
	}
	ErrorResponse(status, message, field, applog.RequestID(ctx)).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
