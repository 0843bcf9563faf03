package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harliandi/sizefit/pkg/metrics"
)

// RateLimiter implements token bucket rate limiting per IP address
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*bucket
	rate   int           // tokens per second
	burst  int           // max burst size
	ttl    time.Duration // idle time before an entry is dropped
	now    func() time.Time
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

type bucket struct {
	tokens  float64
	lastRef time.Time
}

// NewRateLimiter creates a rate limiter allowing rate requests per second
// per IP with bursts of up to burst. Stop releases its cleanup goroutine.
func NewRateLimiter(rate, burst int) *RateLimiter {
	rl := &RateLimiter{
		limits: make(map[string]*bucket),
		rate:   rate,
		burst:  burst,
		ttl:    5 * time.Minute,
		now:    time.Now,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}

	go rl.cleanup(time.Minute)

	return rl
}

// Allow checks if a request from the given IP should be allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.limits[ip]
	if !exists {
		b = &bucket{tokens: float64(rl.burst), lastRef: now}
		rl.limits[ip] = b
	}

	b.tokens += now.Sub(b.lastRef).Seconds() * float64(rl.rate)
	b.lastRef = now
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Len returns the number of tracked IPs.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanup(every time.Duration) {
	defer close(rl.exited)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep removes entries idle for longer than ttl.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, b := range rl.limits {
		if now.Sub(b.lastRef) > rl.ttl {
			delete(rl.limits, ip)
		}
	}
}

// getIP extracts the client IP from the request
func getIP(r *http.Request) string {
	// First hop of X-Forwarded-For (proxies/load balancers)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// getIPPrefix keeps only the leading part of an IP for metric labels.
func getIPPrefix(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "unknown"
	}
	if v4 := parsed.To4(); v4 != nil {
		return net.IPv4(v4[0], 0, 0, 0).String()
	}
	first, _, _ := strings.Cut(parsed.String(), ":")
	return first + ":"
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getIP(r)

		if !rl.Allow(ip) {
			log.Warn().Str("ip", ip).Str("request_id", RequestID(r.Context())).Msg("rate limit exceeded")
			metrics.RecordRateLimitExceeded(getIPPrefix(ip))
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
