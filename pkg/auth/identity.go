// Package auth is the trust boundary between the core and its upstream
// authentication provider. The provider validates credentials and forwards
// the authenticated uid in the X-Uid header; this package extracts it,
// enforces its presence, and applies per-uid rate limiting. The core never
// performs authentication itself.
package auth

import (
	"context"
	"net/http"
	"strings"

	"chatsync/pkg/logger"
	"chatsync/pkg/utils"
)

// SecConfig mirrors the security-related configuration driving rate
// limiting. Put here so limiter.go and gateway.go share the type.
type SecConfig struct {
	RPS   float64
	Burst int
}

type ctxUIDKey struct{}

// UID returns the authenticated uid from the request context, or "".
func UID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithUID injects a uid into ctx; used by tests and internal callers.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxUIDKey{}, uid)
}

// RequireUID rejects requests that arrive without a validated uid and
// injects the uid into the request context for handlers.
func RequireUID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get("X-Uid"))
		if uid == "" {
			logger.Warn("missing_uid_header", "path", r.URL.Path, "remote", r.RemoteAddr)
			utils.JSONError(w, http.StatusUnauthorized, "missing authenticated uid")
			return
		}
		r = r.WithContext(WithUID(r.Context(), uid))
		next.ServeHTTP(w, r)
	})
}
