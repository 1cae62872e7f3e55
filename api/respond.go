package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/report"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case cocoa.IsValidation(err):
		return http.StatusBadRequest
	case cocoa.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, cocoa.ErrCapacityExceeded),
		errors.Is(err, cocoa.ErrInsufficientPosition):
		return http.StatusUnprocessableEntity
	case cocoa.IsConflict(err):
		return http.StatusConflict
	case cocoa.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve cocoa.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// pathID parses a URL parameter as an id with the expected prefix.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string, prefix id.Prefix) (id.ID, bool) {
	v, err := id.ParseWithPrefix(chi.URLParam(r, param), prefix)
	if err != nil {
		h.writeError(w, r, cocoa.ValidationError{Field: param, Message: err.Error()})
		return id.Nil, false
	}
	return v, true
}

// queryID parses an optional query parameter as an id. Empty yields Nil.
func (h *Handler) queryID(w http.ResponseWriter, r *http.Request, param string, prefix id.Prefix) (id.ID, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return id.Nil, true
	}
	v, err := id.ParseWithPrefix(raw, prefix)
	if err != nil {
		h.writeError(w, r, cocoa.ValidationError{Field: param, Message: err.Error()})
		return id.Nil, false
	}
	return v, true
}

// paging reads limit and offset query parameters.
func (h *Handler) paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &limit}, {"offset", &offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, cocoa.ValidationError{Field: p.name, Message: "must be a non-negative integer"})
			return 0, 0, false
		}
		*p.dst = n
	}
	return limit, offset, true
}

func wantsXLSX(r *http.Request) bool {
	return r.URL.Query().Get("format") == "xlsx"
}

func (h *Handler) writeWorkbook(w http.ResponseWriter, r *http.Request, name string, sheets ...report.Sheet) {
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	if err := report.Write(w, sheets...); err != nil {
		h.logger.Error("failed to write workbook", "report", name, "error", err)
	}
}
