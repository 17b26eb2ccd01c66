package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/metrics"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionKey   contextKey = "session"
	catalogKey   contextKey = "catalog"
)

// RequestIDFrom returns the id assigned by [RequestID].
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// SessionFrom returns the session injected by [RequireSession].
func SessionFrom(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*models.Session)
	return s, ok
}

// CatalogFrom returns the authenticated catalog injected by [RequireSession].
func CatalogFrom(ctx context.Context) (services.Catalog, bool) {
	c, ok := ctx.Value(catalogKey).(services.Catalog)
	return c, ok
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w}
}

// RequestID reuses an incoming X-Request-ID or assigns a new uuid.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// Logging logs one line per request.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.Status(),
				"elapsed", time.Since(start),
				"request_id", RequestIDFrom(r.Context()),
			)
		})
	}
}

// Recover turns a handler panic into a 500.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := record(w)
			defer func() {
				if v := recover(); v != nil {
					logger.Error("handler panicked", "panic", v, "path", r.URL.Path, "stack", string(debug.Stack()))
					if rec.status == 0 {
						writeError(rec, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", v))
					}
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// Metrics counts requests per matched route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := record(w)
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(r.Method, route, rec.Status(), time.Since(start))
	})
}

// Unauthenticated is the body of a 401 from [RequireSession].
type Unauthenticated struct {
	Error string `json:"error"`
}

// RequireSession rejects requests without a usable TIDAL session and injects the session and an
// authenticated [services.Catalog] into the request context.
func RequireSession(auth services.Authenticator, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			catalog, session, err := auth.Catalog(r.Context())
			if err != nil {
				if errors.Is(err, shared.ErrAuthRequired) || errors.Is(err, shared.ErrSessionNotFound) {
					logger.Debug("rejected request", "path", r.URL.Path, "err", fmt.Errorf("%w: %w", shared.ErrUnauthenticated, err))
					writeJSON(w, http.StatusUnauthorized, Unauthenticated{Error: "Not authenticated"})
					return
				}
				logger.Error("failed to load session", "err", err)
				writeJSON(w, http.StatusUnauthorized, Unauthenticated{Error: "Authentication failed"})
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			ctx = context.WithValue(ctx, catalogKey, catalog)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
