package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window and key.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// counter holds the request counts of the current and previous fixed
// windows of one key.
type counter struct {
	start time.Time
	curr  int
	prev  int
}

// limiter approximates a sliding window by weighting the previous fixed
// window with its overlap.
type limiter struct {
	max    int
	window time.Duration
	key    func(*http.Request) string
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	key := cfg.KeyFunc
	if key == nil {
		key = ClientIP
	}
	return &limiter{
		max:      cfg.Max,
		window:   cfg.Window,
		key:      key,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// take consumes one request for key. It returns the remaining budget, the
// end of the current window and whether the request is allowed.
func (l *limiter) take(key string) (remaining int, reset time.Time, ok bool) {
	now := l.now()
	start := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	c, found := l.counters[key]
	switch {
	case !found:
		c = &counter{start: start}
		l.counters[key] = c
	case start.Sub(c.start) >= 2*l.window:
		c.start, c.curr, c.prev = start, 0, 0
	case start.After(c.start):
		c.start, c.prev, c.curr = start, c.curr, 0
	}

	overlap := 1 - float64(now.Sub(c.start))/float64(l.window)
	used := float64(c.prev)*overlap + float64(c.curr)
	reset = c.start.Add(l.window)
	if used >= float64(l.max) {
		return 0, reset, false
	}

	c.curr++
	remaining = l.max - int(used) - 1
	if remaining < 0 {
		remaining = 0
	}
	return remaining, reset, true
}

// sweep drops keys idle for two windows.
func (l *limiter) sweep() {
	cutoff := l.now().Truncate(l.window).Add(-2 * l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, c := range l.counters {
		if !c.start.After(cutoff) {
			delete(l.counters, k)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, reset, ok := l.take(l.key(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			wait := reset.Sub(l.now())
			h.Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits requests per key without evicting idle keys.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit with a background sweep of idle keys
// every two windows until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * l.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
	return l.middleware
}

// ClientIP keys requests by the first X-Forwarded-For address, then
// X-Real-IP, then the remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HeaderKey keys requests by the value of header, falling back to ClientIP
// when it is absent. With the cart session header every cart gets its own
// budget.
func HeaderKey(header string) func(*http.Request) string {
	return func(r *http.Request) string {
		if v := r.Header.Get(header); v != "" {
			return header + ":" + v
		}
		return ClientIP(r)
	}
}
