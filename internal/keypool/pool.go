// Package keypool implements an in-memory pool of provider API keys with
// round-robin selection and a fixed failure cooldown per key.
//
// Key lifecycle:
//
//	Eligible → CoolingDown   on ReportFailure (cooldownUntil = now + cooldown)
//	CoolingDown → Eligible   once now >= cooldownUntil, or on ReportSuccess
//
// The pool tracks health only. It never limits how many callers hold the same
// key at once, and the rotation cursor moves only when Acquire succeeds.
package keypool

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNoKeysConfigured is returned by Acquire when the pool holds no keys.
var ErrNoKeysConfigured = errors.New("no provider API keys configured")

// ErrNoKeysAvailable is matched (via errors.Is) by *NoKeysAvailableError.
var ErrNoKeysAvailable = errors.New("no provider API keys available")

// NoKeysAvailableError is returned by Acquire when every key is cooling down.
type NoKeysAvailableError struct {
	// RetryAfter is the shortest time until any key becomes eligible again.
	RetryAfter time.Duration
}

func (e *NoKeysAvailableError) Error() string {
	return fmt.Sprintf("%s; next key ready in %dms", ErrNoKeysAvailable, ceilMillis(e.RetryAfter))
}

// Is reports ErrNoKeysAvailable as a match.
func (e *NoKeysAvailableError) Is(target error) bool {
	return target == ErrNoKeysAvailable
}

// ceilMillis rounds d up to whole milliseconds.
func ceilMillis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Millisecond - 1) / time.Millisecond)
}

// Lease is a key handed out by Acquire. It confers no exclusivity; the holder
// reports the outcome of its call back to the pool by KeyID.
type Lease struct {
	APIKey string
	KeyID  string
}

type key struct {
	apiKey        string
	id            string
	successCount  uint64
	failureCount  uint64
	cooldownUntil time.Time
}

func (k *key) eligible(now time.Time) bool {
	return k.cooldownUntil.IsZero() || !k.cooldownUntil.After(now)
}

func (k *key) remaining(now time.Time) time.Duration {
	if k.eligible(now) {
		return 0
	}
	return k.cooldownUntil.Sub(now)
}

// Pool is safe for concurrent use.
type Pool struct {
	mu       sync.Mutex
	keys     []*key
	byID     map[string]*key
	next     int
	cooldown time.Duration
}

// New builds a pool from the configured credentials. Blank entries are
// skipped; the remaining keys get ids "key-1", "key-2", ... in order.
// A negative cooldown is treated as zero.
func New(apiKeys []string, cooldown time.Duration) *Pool {
	if cooldown < 0 {
		cooldown = 0
	}
	p := &Pool{
		keys:     make([]*key, 0, len(apiKeys)),
		byID:     make(map[string]*key, len(apiKeys)),
		cooldown: cooldown,
	}
	for _, raw := range apiKeys {
		apiKey := strings.TrimSpace(raw)
		if apiKey == "" {
			continue
		}
		k := &key{apiKey: apiKey, id: "key-" + strconv.Itoa(len(p.keys)+1)}
		p.keys = append(p.keys, k)
		p.byID[k.id] = k
	}
	return p
}

// Size returns the number of configured keys.
func (p *Pool) Size() int {
	return len(p.keys)
}

// Cooldown returns the configured failure cooldown.
func (p *Pool) Cooldown() time.Duration {
	return p.cooldown
}

// Acquire returns the next eligible key in rotation order, starting at the
// cursor and wrapping at most once around the pool.
func (p *Pool) Acquire(now time.Time) (Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := len(p.keys)
	if size == 0 {
		return Lease{}, ErrNoKeysConfigured
	}

	wait := time.Duration(-1)
	for i := 0; i < size; i++ {
		idx := (p.next + i) % size
		k := p.keys[idx]
		if k.eligible(now) {
			p.next = (idx + 1) % size
			return Lease{APIKey: k.apiKey, KeyID: k.id}, nil
		}
		if r := k.remaining(now); wait < 0 || r < wait {
			wait = r
		}
	}
	return Lease{}, &NoKeysAvailableError{RetryAfter: wait}
}

// ReportSuccess clears any cooldown on keyID. Unknown ids are ignored.
func (p *Pool) ReportSuccess(keyID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.byID[keyID]
	if !ok {
		return
	}
	k.cooldownUntil = time.Time{}
	k.successCount++
}

// ReportFailure puts keyID into cooldown until now + cooldown. Unknown ids
// are ignored.
func (p *Pool) ReportFailure(keyID string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.byID[keyID]
	if !ok {
		return
	}
	if p.cooldown > 0 {
		k.cooldownUntil = now.Add(p.cooldown)
	}
	k.failureCount++
}

// KeyStatus is the redacted per-key view returned by Snapshot.
type KeyStatus struct {
	KeyID             string
	SuccessCount      uint64
	FailureCount      uint64
	CooldownRemaining time.Duration
}

// Snapshot is a point-in-time, credential-free view of the pool.
type Snapshot struct {
	Configured int
	Available  int
	Cooldown   time.Duration
	Keys       []KeyStatus
}

// Snapshot reports pool health as of now. It never exposes API keys.
func (p *Pool) Snapshot(now time.Time) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		Configured: len(p.keys),
		Cooldown:   p.cooldown,
		Keys:       make([]KeyStatus, 0, len(p.keys)),
	}
	for _, k := range p.keys {
		if k.eligible(now) {
			s.Available++
		}
		s.Keys = append(s.Keys, KeyStatus{
			KeyID:             k.id,
			SuccessCount:      k.successCount,
			FailureCount:      k.failureCount,
			CooldownRemaining: k.remaining(now),
		})
	}
	return s
}
