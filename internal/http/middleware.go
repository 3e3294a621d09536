package http

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/personal-calendar/internal/application"
)

// Identity headers set by the upstream identity layer.
const (
	HeaderUserID              = "X-Calendar-User-Id"
	HeaderUserEmail           = "X-Calendar-User-Email"
	HeaderUserName            = "X-Calendar-User-Name"
	HeaderSignature           = "X-Calendar-Signature"
	HeaderProviderAccessToken = "X-Provider-Access-Token"
)

// IdentityVerifier checks the signature over an asserted identity.
type IdentityVerifier interface {
	VerifyIdentity(userID, email, name, signature string) bool
}

// RequireIdentity resolves the principal from the signed identity headers and
// rejects the request with 401 when the assertion is absent or forged.
func RequireIdentity(verifier IdentityVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			email := strings.TrimSpace(r.Header.Get(HeaderUserEmail))
			name := strings.TrimSpace(r.Header.Get(HeaderUserName))
			signature := strings.TrimSpace(r.Header.Get(HeaderSignature))

			if userID == "" || signature == "" {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: errorCodeUnauthorized,
					Message:   errMissingIdentity.Error(),
				})
				return
			}
			if verifier == nil || !verifier.VerifyIdentity(userID, email, name, signature) {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "identity assertion rejected", "user_id", userID)
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: errorCodeUnauthorized,
					Message:   errInvalidIdentity.Error(),
				})
				return
			}

			principal := application.Principal{
				UserID:        userID,
				Email:         email,
				Name:          name,
				ProviderToken: strings.TrimSpace(r.Header.Get(HeaderProviderAccessToken)),
			}
			ctx := ContextWithPrincipal(r.Context(), principal)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("principal_id", userID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			recorder := newStatusRecorder(w)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

// HTTPObserver records request metrics.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Instrument reports every request to the observer under a low cardinality route label.
func Instrument(observer HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if observer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := newStatusRecorder(w)
			start := time.Now()
			next.ServeHTTP(recorder, r)
			observer.ObserveHTTP(r.Method, routeLabel(r.URL.Path), recorder.status, time.Since(start))
		})
	}
}

func routeLabel(path string) string {
	switch path {
	case "/events", "/events/search", "/events/upcoming", "/events/categories",
		"/sync", "/activities", "/stats", "/invitations/respond", "/healthz", "/metrics":
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/events/"); ok && rest != "" {
		id, sub, _ := strings.Cut(rest, "/")
		switch {
		case id != "" && sub == "":
			return "/events/{id}"
		case id != "" && sub == "attendees":
			return "/events/{id}/attendees"
		}
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	if existing, ok := w.(*statusRecorder); ok {
		return existing
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
