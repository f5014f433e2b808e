// Package ratelimit throttles inbound requests per client address so one
// caller cannot drain the provider key pool for everyone else.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ferro-labs/genai-gateway/internal/apierror"
	"github.com/ferro-labs/genai-gateway/internal/metrics"
)

// Defaults for bucket eviction.
const (
	DefaultIdleTTL = 10 * time.Minute
	DefaultMaxKeys = 10000
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Store maintains one token bucket per key. Buckets idle for longer than
// idleTTL are swept, and the store never holds more than maxKeys buckets;
// at the cap the least recently seen bucket is evicted.
type Store struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	maxKeys   int
	lastSweep time.Time
}

// NewStore creates a Store whose per-key limiters share the same rate and
// burst. If burst <= 0 it defaults to ceil(ratePerSecond), minimum 1.
func NewStore(ratePerSecond float64, burst int) *Store {
	if burst <= 0 {
		burst = int(ratePerSecond)
		if float64(burst) < ratePerSecond {
			burst++
		}
		if burst < 1 {
			burst = 1
		}
	}
	return &Store{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(ratePerSecond),
		burst:   burst,
		idleTTL: DefaultIdleTTL,
		maxKeys: DefaultMaxKeys,
	}
}

// WithEviction overrides the idle TTL and key cap. Non-positive values keep
// the current setting.
func (s *Store) WithEviction(idleTTL time.Duration, maxKeys int) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idleTTL > 0 {
		s.idleTTL = idleTTL
	}
	if maxKeys > 0 {
		s.maxKeys = maxKeys
	}
	return s
}

// Allow checks (and creates if needed) the limiter for key.
func (s *Store) Allow(key string) bool {
	return s.AllowAt(key, time.Now())
}

// AllowAt is Allow with an explicit clock reading.
func (s *Store) AllowAt(key string, now time.Time) bool {
	return s.limiter(key, now).AllowN(now, 1)
}

func (s *Store) limiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}

	if now.Sub(s.lastSweep) >= s.idleTTL {
		s.sweep(now)
	}
	if len(s.buckets) >= s.maxKeys {
		s.evictOldest()
	}
	b := &bucket{limiter: rate.NewLimiter(s.limit, s.burst), lastSeen: now}
	s.buckets[key] = b
	return b.limiter
}

// sweep drops buckets idle for at least idleTTL. Callers hold s.mu.
func (s *Store) sweep(now time.Time) {
	for k, b := range s.buckets {
		if now.Sub(b.lastSeen) >= s.idleTTL {
			delete(s.buckets, k)
		}
	}
	s.lastSweep = now
}

// evictOldest drops the least recently seen bucket. Callers hold s.mu.
func (s *Store) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, b := range s.buckets {
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey, oldest = k, b.lastSeen
		}
	}
	delete(s.buckets, oldestKey)
}

// Len reports how many keys currently have a bucket.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Middleware rejects requests over the per-client budget with 429
// RateLimited. A nil store disables limiting.
func Middleware(s *Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Allow(clientKey(r)) {
				metrics.RateLimitRejections.Inc()
				apierror.WritePayload(w, r, apierror.Payload{
					Code:       apierror.CodeRateLimited,
					Message:    "too many requests from this client",
					Status:     http.StatusTooManyRequests,
					Retryable:  true,
					RetryAfter: time.Second,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey returns the host part of RemoteAddr. RemoteAddr is the socket
// peer unless the server was configured to trust proxy headers, in which
// case chi's RealIP middleware has rewritten it.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
