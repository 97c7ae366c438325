package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"coinwise/internal/backend"
	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/ledger/remote"
	"coinwise/internal/log"
)

// requestError is a client mistake caught before any backend call.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{status: http.StatusBadRequest, msg: msg} }

func invalid(msg string) error {
	return &requestError{status: http.StatusUnprocessableEntity, msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes the {"error": msg} body shared by every failure.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusClientClosedRequest is logged when the caller went away first.
const statusClientClosedRequest = 499

// statusFor maps err onto the response status and the message shown to the
// caller. Backend statuses pass through with the backend's message.
func statusFor(err error) (int, string) {
	var reqErr *requestError
	var apiErr *remote.APIError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.msg
	case core.IsValidationError(err), errors.Is(err, ledger.ErrEmptyPrompt),
		errors.Is(err, ledger.ErrUnknownGroup):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ledger.ErrSignInRequired):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, ledger.ErrGuestLimitReached):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, backend.ErrNoGuestID), errors.Is(err, backend.ErrNoToken):
		return http.StatusUnauthorized, err.Error()
	case errors.As(err, &apiErr):
		return apiErr.Status, apiErr.Message
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "request cancelled"
	case errors.Is(err, remote.ErrUnavailable), errors.Is(err, core.ErrMalformedInsights),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "the backend is unavailable, please try again"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError answers a failed request. A backend 401 or a lost token ends the
// session instead.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if remote.IsUnauthorized(err) || errors.Is(err, remote.ErrMissingToken) {
		if _, cookieErr := r.Cookie(AuthCookie); cookieErr == nil {
			s.forceLogout(w, r)
			return
		}
	}
	s.reject(w, r, err)
}

// reject writes the mapped status without touching the session.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status, msg := statusFor(err)
	logger := log.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		log.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, log.ComponentHTTP, r.Method,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()))
	default:
		logger.DebugContext(ctx, "Request rejected",
			log.FieldStatusCode, status, log.FieldError, err)
	}
	writeJSONError(w, status, msg)
}
