package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rareport/internal/core"
	"rareport/internal/log"
)

// parseSelections reads repeated query parameters named after filter
// dimensions. Blank values are ignored and unknown parameters are skipped.
func parseSelections(q url.Values) core.Selections {
	sel := core.Selections{}
	for _, dim := range core.FilterDimensions {
		for _, v := range q[dim] {
			if v = sanitizeInput(v); v != "" {
				sel[dim] = append(sel[dim], v)
			}
		}
	}
	return sel
}

// encodeSelections is the inverse of parseSelections, in dimension order.
func encodeSelections(sel core.Selections) url.Values {
	q := url.Values{}
	for _, dim := range core.FilterDimensions {
		for _, v := range sel[dim] {
			q.Add(dim, v)
		}
	}
	return q
}

// parseLimit returns the "limit" query parameter clamped to [1, max], or def.
func parseLimit(r *http.Request, def, max int) int {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}

// statusFor maps pipeline and service errors to HTTP status codes.
func statusFor(err error) int {
	var malformed *core.MalformedInputError
	var missing *core.MissingColumnError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnknownDimension):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &malformed), errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError logs err and writes it as JSON. Server errors are not echoed
// to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	msg := err.Error()
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldOperation, op, log.FieldError, err)
		msg = http.StatusText(status)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", log.FieldOperation, op, log.FieldError, err, log.FieldStatusCode, status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// wantsHTML reports whether the request came from the dashboard form.
func wantsHTML(r *http.Request) bool {
	return r.FormValue("redirect") == "1"
}
