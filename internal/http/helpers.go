package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"faturas/internal/core"
	"faturas/internal/dashboard"
	"faturas/internal/selection"
	"faturas/internal/sources"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	return "req_" + randomHex(8)
}

// generateSessionID creates the value of the session cookie.
func generateSessionID() string {
	return randomHex(16)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// isHTMX reports whether the request came from an htmx element, which
// expects HTML fragments instead of JSON.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		fetchErr      *core.FetchError
		transitionErr *core.InvalidStateTransitionError
		unresolvable  *core.UnresolvableSelectionError
	)
	switch {
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.As(err, &transitionErr), errors.Is(err, selection.ErrStaleMonths):
		return http.StatusConflict
	case errors.As(err, &unresolvable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dashboard.ErrUnknownAccount), errors.Is(err, errMissingField):
		return http.StatusBadRequest
	case errors.Is(err, sources.ErrDocumentsUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse builds the response for err in the representation the
// client asked for.
func errorResponse(r *http.Request, err error) *HTMXResponseBuilder {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = http.StatusText(code)
	}
	if isHTMX(r) {
		return ErrorResponse(code, msg).TriggerErrorNotification(msg)
	}
	return JSONErrorResponse(code, msg)
}
