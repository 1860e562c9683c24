// Package handlers exposes the services over JSON. Handlers decode the
// request, call one service method and let WriteError map failures.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/invoicehub/auth"
	"github.com/diewo77/invoicehub/httpx"
	"github.com/diewo77/invoicehub/validation"
)

func currentUser(r *http.Request) uint {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

// pathID parses a numeric path value and writes a 404 when it is not one.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return 0, false
	}
	return uint(id), true
}

// dateRange reads from/to query parameters. Missing bounds fall back to
// the defaults.
func dateRange(r *http.Request, defFrom, defTo time.Time) (time.Time, time.Time, error) {
	v := make(validation.Violations)
	from, to := defFrom, defTo
	if s := r.URL.Query().Get("from"); s != "" {
		from = validation.Date("from", s, v)
	}
	if s := r.URL.Query().Get("to"); s != "" {
		to = validation.Date("to", s, v)
	}
	if v.Empty() && !from.IsZero() && !to.IsZero() && to.Before(from) {
		v["to"] = "before_from"
	}
	return from, to, v.Err()
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
