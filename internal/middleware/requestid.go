// Package middleware provides HTTP middleware for ClaimDesk.
package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Strob0t/ClaimDesk/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"
	headerSessionID = "X-Session-ID"

	maxIDLen = 128
)

// RequestID tags every request with a request id and, when the client
// names one, the claim session it belongs to. A missing or unusable
// X-Request-ID is replaced by a fresh id. Both ids are echoed on the
// response and carried in the context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !usableID(id) {
			id = uuid.NewString()
		}
		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)

		if sid := r.Header.Get(headerSessionID); usableID(sid) {
			ctx = logger.WithSessionID(ctx, sid)
			w.Header().Set(headerSessionID, sid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// usableID rejects empty, oversized and non-printable ids so clients
// cannot inject arbitrary text into logs.
func usableID(id string) bool {
	if id == "" || len(id) > maxIDLen {
		return false
	}
	return !strings.ContainsFunc(id, func(r rune) bool {
		return r < 0x21 || r > 0x7e
	})
}
