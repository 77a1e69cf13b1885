package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// KeyFunc derives the rate-limit identifier for a request. An empty result
// lets the request through unmetered.
type KeyFunc func(*http.Request) string

// RateLimit allows at most limit requests per identifier in each fixed
// window. Rejected requests answer 429 with Retry-After set. Every answer
// carries X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset.
//
// A nil key selects ClientIP. The scope is prepended to the identifier so
// separate limits do not share counters. A limit or window <= 0 takes the
// engine's RateLimit.DefaultLimit or RateLimit.DefaultWindow.
func RateLimit(engine *goSession.Engine, scope string, limit int, window time.Duration, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	if engine != nil && (limit <= 0 || window <= 0) {
		defaults := engine.Config().RateLimit
		if limit <= 0 {
			limit = defaults.DefaultLimit
		}
		if window <= 0 {
			window = defaults.DefaultWindow
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := key(r)
			if engine == nil || id == "" {
				next.ServeHTTP(w, r)
				return
			}
			if scope != "" {
				id = scope + ":" + id
			}

			res, err := engine.RateLimitCheck(r.Context(), id, limit, window)
			if err != nil {
				if errors.Is(err, goSession.ErrBackendUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(res.RetryAfterSeconds()))

			if !res.Allowed {
				h.Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop when present, else the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
