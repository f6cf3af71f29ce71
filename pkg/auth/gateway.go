package auth

import (
	"net/http"
	"strings"

	"chatsync/pkg/logger"
	"chatsync/pkg/utils"
)

// Gateway applies per-uid rate limiting in front of the API. Health and
// metrics endpoints bypass the limiter so probes are never throttled.
func Gateway(cfg SecConfig, next http.Handler) http.Handler {
	pool := &limiterPool{cfg: cfg}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := strings.TrimSpace(r.Header.Get("X-Uid"))
		if key == "" {
			key = r.RemoteAddr
		}
		if !pool.Allow(key) {
			logger.Warn("rate_limited", "key", key, "path", r.URL.Path)
			utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
