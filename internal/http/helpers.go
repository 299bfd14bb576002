package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mymoney/internal/core"
	applog "mymoney/internal/log"
)

// apiError is the body of every non-2xx response.
type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the engine's error taxonomy onto status codes. Anything
// outside the taxonomy is a 500 and its detail stays out of the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error()})
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrInvalidState):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Unhandled error",
			"error", err, "method", r.Method, "url", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id in path", core.ErrValidation)
	}
	return id, nil
}

// parseDate accepts a calendar date ("2006-01-02") or a full RFC3339 stamp.
// An empty string falls back to now.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid date, want YYYY-MM-DD or RFC3339", core.ErrValidation)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseAmount converts a positive decimal string into exact cents.
func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// parseSignedAmount allows zero and negative values, for opening balances and
// manual balance overrides.
func parseSignedAmount(s string) (core.Money, error) {
	cents, err := core.ParseSignedDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

func queryMonth(r *http.Request, name string) (core.YearMonth, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.YearMonthOf(time.Now()), nil
	}
	return core.ParseYearMonth(v)
}

func queryBool(r *http.Request, name string) bool {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	return v == "1" || strings.EqualFold(v, "true")
}
