package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/anime-import/internal/platform/api"
	"github.com/example/anime-import/internal/platform/httpserver"
)

// Keyed manages one token bucket per key, typically a client IP.
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type entry struct {
	l    *rate.Limiter
	seen time.Time
}

// NewKeyed allows rps requests per second per key with the given burst.
// Keys unused for 10 minutes are dropped on the next sweep.
func NewKeyed(rps float64, burst int) *Keyed {
	if burst <= 0 {
		burst = 1
	}
	return &Keyed{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	e, ok := k.limiters[key]
	if !ok {
		e = &entry{l: rate.NewLimiter(k.limit, k.burst)}
		k.limiters[key] = e
	}
	e.seen = now
	return e.l.AllowN(now, 1)
}

// Sweep drops idle keys and returns how many were removed.
func (k *Keyed) Sweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := k.now().Add(-k.idle)
	n := 0
	for key, e := range k.limiters {
		if e.seen.Before(cutoff) {
			delete(k.limiters, key)
			n++
		}
	}
	return n
}

// Middleware rejects requests over the per-IP limit with 429 RATE_LIMITED.
func (k *Keyed) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !k.Allow(ClientIP(r)) {
			rid := httpserver.RequestIDFromContext(r.Context())
			api.RateLimited(w, "RATE_LIMITED", "Too many requests", rid, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For hop, else the RemoteAddr host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
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
