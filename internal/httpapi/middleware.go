package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snapmeal/pkg/id"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	ownerIDKey
)

// requestIDHeaders are checked, in order, for an id supplied by a proxy or
// the client before a fresh one is generated.
var requestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

// RequestID assigns every request a unique id, reusing one supplied by the
// caller. The id goes into the context and the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rid string
		for _, header := range requestIDHeaders {
			if v := r.Header.Get(header); v != "" {
				rid = v
				break
			}
		}
		if rid == "" {
			rid = id.NewULID()
		}

		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, rid)))
	})
}

// RequestIDFromContext returns the request id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}

// RequestIDExtractor stamps the request id onto every log record. Wire it
// into the logger's context extractors.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if rid := RequestIDFromContext(ctx); rid != "" {
		return slog.String("request_id", rid), true
	}
	return slog.Attr{}, false
}

// OwnerIDExtractor stamps the authenticated owner onto every log record.
func OwnerIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if ownerID, ok := ctx.Value(ownerIDKey).(uuid.UUID); ok {
		return slog.String("owner_id", ownerID.String()), true
	}
	return slog.Attr{}, false
}

// TokenVerifier resolves a bearer token to the owner it authenticates.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

// Auth authenticates requests with a bearer token and stores the resolved
// owner id in the context. Requests without a valid token get 401.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
				return
			}

			ownerID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerIDKey, ownerID)))
		})
	}
}

// OwnerIDFromContext returns the authenticated owner, or uuid.Nil outside an
// authenticated request.
func OwnerIDFromContext(ctx context.Context) uuid.UUID {
	ownerID, _ := ctx.Value(ownerIDKey).(uuid.UUID)
	return ownerID
}

// Recover converts handler panics into 500 responses instead of dropped
// connections.
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorContext(r.Context(), "panic recovered in handler",
						slog.Any("panic", rec),
						slog.String("path", r.URL.Path))
					writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
