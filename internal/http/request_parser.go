package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"budgetd/internal/core"
)

const (
	// HeaderUserID carries the caller's identity; authentication happens
	// upstream.
	HeaderUserID = "X-User-ID"
	defaultUser  = "local"
	maxUserIDLen = 64
	maxBodyBytes = 1 << 20
)

var errInvalidUser = errors.New("invalid user id")

// userID returns the caller, or "local" when the header is absent.
func userID(r *http.Request) (string, error) {
	id := sanitizeInput(r.Header.Get(HeaderUserID))
	if id == "" {
		return defaultUser, nil
	}
	if len(id) > maxUserIDLen {
		return "", errInvalidUser
	}
	return id, nil
}

// monthParam reads ?month=YYYY-MM, defaulting to the current month.
func monthParam(r *http.Request) (core.Month, error) {
	return core.ParseMonth(r.URL.Query().Get("month"))
}

// intParam reads a positive integer query parameter, or def when absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// idVar reads a numeric route variable. The router pattern already
// restricts it to digits.
func idVar(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// decodeJSON reads one JSON object into v, rejecting unknown fields and
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// request pulls the common (user, month) pair and writes the error response
// when either is invalid.
func request(w http.ResponseWriter, r *http.Request) (string, core.Month, bool) {
	user, err := userID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return user, month, true
}
