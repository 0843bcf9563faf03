package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/harliandi/sizefit/pkg/metrics"
)

// ConcurrencyLimiter limits the number of concurrent requests
type ConcurrencyLimiter struct {
	semaphore chan struct{}
	active    atomic.Int64
	max       int
}

// NewConcurrencyLimiter creates a new concurrency limiter
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{
		semaphore: make(chan struct{}, max),
		max:       max,
	}
}

// Acquire tries to acquire a slot. Returns false if limit is reached
func (cl *ConcurrencyLimiter) Acquire() bool {
	select {
	case cl.semaphore <- struct{}{}:
		active := cl.active.Add(1)
		log.Debug().Int64("active", active).Int("max", cl.max).Msg("slot acquired")
		metrics.UpdateConcurrency(int(active))
		return true
	default:
		return false
	}
}

// Release releases a slot
func (cl *ConcurrencyLimiter) Release() {
	<-cl.semaphore
	active := cl.active.Add(-1)
	log.Debug().Int64("active", active).Int("max", cl.max).Msg("slot released")
	metrics.UpdateConcurrency(int(active))
}

// Active returns the number of held slots.
func (cl *ConcurrencyLimiter) Active() int {
	return int(cl.active.Load())
}

// ConcurrencyLimit returns middleware that enforces concurrency limits
func ConcurrencyLimit(max int) func(http.Handler) http.Handler {
	cl := NewConcurrencyLimiter(max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cl.Acquire() {
				log.Warn().Int("max", max).Str("request_id", RequestID(r.Context())).Msg("concurrency limit reached")
				metrics.RecordConcurrencyLimitExceeded()
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusServiceUnavailable, "Service busy, please try again")
				return
			}

			defer cl.Release()
			next.ServeHTTP(w, r)
		})
	}
}
