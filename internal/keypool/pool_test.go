package keypool

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func mustAcquire(t *testing.T, p *Pool, now time.Time) Lease {
	t.Helper()
	l, err := p.Acquire(now)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	return l
}

func TestNew_AssignsSequentialIDs(t *testing.T) {
	p := New([]string{"a", "  ", "b", ""}, time.Second)
	if p.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", p.Size())
	}
	s := p.Snapshot(t0)
	if s.Keys[0].KeyID != "key-1" || s.Keys[1].KeyID != "key-2" {
		t.Fatalf("unexpected ids: %+v", s.Keys)
	}
}

func TestAcquire_EmptyPool(t *testing.T) {
	p := New(nil, time.Second)
	_, err := p.Acquire(t0)
	if !errors.Is(err, ErrNoKeysConfigured) {
		t.Fatalf("err = %v, want ErrNoKeysConfigured", err)
	}
}

func TestAcquire_RoundRobin(t *testing.T) {
	p := New([]string{"a", "b", "c"}, time.Second)
	want := []string{"key-1", "key-2", "key-3", "key-1"}
	for i, id := range want {
		if got := mustAcquire(t, p, t0).KeyID; got != id {
			t.Fatalf("acquire %d = %s, want %s", i, got, id)
		}
	}
}

func TestAcquire_ReturnsSecret(t *testing.T) {
	p := New([]string{"secret-a"}, time.Second)
	if l := mustAcquire(t, p, t0); l.APIKey != "secret-a" {
		t.Fatalf("APIKey = %q", l.APIKey)
	}
}

func TestReportFailure_ExcludesUntilCooldownEnds(t *testing.T) {
	p := New([]string{"a", "b"}, time.Second)
	p.ReportFailure("key-1", t0)

	for i := 0; i < 3; i++ {
		if got := mustAcquire(t, p, t0.Add(999*time.Millisecond)).KeyID; got != "key-2" {
			t.Fatalf("acquire during cooldown = %s, want key-2", got)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[mustAcquire(t, p, t0.Add(time.Second)).KeyID] = true
	}
	if !seen["key-1"] {
		t.Fatal("key-1 not eligible after cooldown elapsed")
	}
}

func TestReportSuccess_ClearsCooldown(t *testing.T) {
	p := New([]string{"a"}, time.Minute)
	p.ReportFailure("key-1", t0)
	if _, err := p.Acquire(t0); err == nil {
		t.Fatal("expected key to be cooling down")
	}
	p.ReportSuccess("key-1")
	if got := mustAcquire(t, p, t0).KeyID; got != "key-1" {
		t.Fatalf("got %s, want key-1", got)
	}
	s := p.Snapshot(t0)
	if s.Keys[0].SuccessCount != 1 || s.Keys[0].FailureCount != 1 {
		t.Fatalf("counters = %+v", s.Keys[0])
	}
}

func TestAcquire_ExhaustedCarriesMinimumWait(t *testing.T) {
	p := New([]string{"a", "b"}, time.Second)
	p.ReportFailure("key-1", t0)
	p.ReportFailure("key-2", t0.Add(300*time.Millisecond))

	_, err := p.Acquire(t0.Add(400 * time.Millisecond))
	if !errors.Is(err, ErrNoKeysAvailable) {
		t.Fatalf("err = %v, want ErrNoKeysAvailable", err)
	}
	var nka *NoKeysAvailableError
	if !errors.As(err, &nka) {
		t.Fatalf("err type = %T", err)
	}
	if nka.RetryAfter != 600*time.Millisecond {
		t.Fatalf("RetryAfter = %v, want 600ms", nka.RetryAfter)
	}
	if !strings.Contains(err.Error(), "no provider API keys available") || !strings.Contains(err.Error(), "600ms") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestNoKeysAvailableError_RoundsUp(t *testing.T) {
	err := &NoKeysAvailableError{RetryAfter: 1500 * time.Microsecond}
	if !strings.HasSuffix(err.Error(), "in 2ms") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestAcquire_ExhaustionDoesNotMoveCursor(t *testing.T) {
	p := New([]string{"a", "b", "c"}, time.Second)
	mustAcquire(t, p, t0) // key-1, cursor -> key-2
	for _, id := range []string{"key-1", "key-2", "key-3"} {
		p.ReportFailure(id, t0)
	}
	if _, err := p.Acquire(t0); err == nil {
		t.Fatal("expected exhaustion")
	}
	if got := mustAcquire(t, p, t0.Add(time.Second)).KeyID; got != "key-2" {
		t.Fatalf("after recovery got %s, want key-2", got)
	}
}

func TestReports_UnknownKeyIsNoop(t *testing.T) {
	p := New([]string{"a"}, time.Second)
	before := p.Snapshot(t0)
	p.ReportSuccess("key-99")
	p.ReportFailure("nope", t0)
	after := p.Snapshot(t0)
	if before.Keys[0] != after.Keys[0] || after.Available != 1 {
		t.Fatalf("state changed: before=%+v after=%+v", before, after)
	}
}

func TestSnapshot(t *testing.T) {
	p := New([]string{"a", "b"}, 2*time.Second)
	p.ReportFailure("key-2", t0)
	s := p.Snapshot(t0.Add(500 * time.Millisecond))

	if s.Configured != 2 || s.Available != 1 {
		t.Fatalf("configured=%d available=%d", s.Configured, s.Available)
	}
	if s.Cooldown != 2*time.Second {
		t.Fatalf("Cooldown = %v", s.Cooldown)
	}
	if s.Keys[0].CooldownRemaining != 0 {
		t.Fatalf("key-1 remaining = %v", s.Keys[0].CooldownRemaining)
	}
	if s.Keys[1].CooldownRemaining != 1500*time.Millisecond {
		t.Fatalf("key-2 remaining = %v", s.Keys[1].CooldownRemaining)
	}
}

// Two keys, 1s cooldown: A fails at t=0, B serves until A recovers at t=1s.
func TestScenario_TwoKeyFailover(t *testing.T) {
	p := New([]string{"A", "B"}, 1000*time.Millisecond)

	if got := mustAcquire(t, p, t0).APIKey; got != "A" {
		t.Fatalf("first acquire = %s, want A", got)
	}
	p.ReportFailure("key-1", t0)

	if got := mustAcquire(t, p, t0).APIKey; got != "B" {
		t.Fatalf("second acquire = %s, want B", got)
	}
	if got := mustAcquire(t, p, t0).APIKey; got != "B" {
		t.Fatalf("third acquire = %s, want B", got)
	}
	if got := mustAcquire(t, p, t0.Add(1000*time.Millisecond)).APIKey; got != "A" {
		t.Fatalf("acquire at t=1000ms = %s, want A", got)
	}
}

func TestAcquire_Concurrent(t *testing.T) {
	p := New([]string{"a", "b", "c", "d"}, time.Second)
	const n = 400

	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := p.Acquire(t0)
			if err != nil {
				t.Error(err)
				return
			}
			p.ReportSuccess(l.KeyID)
			mu.Lock()
			counts[l.KeyID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	for id, c := range counts {
		if c != n/4 {
			t.Errorf("%s acquired %d times, want %d", id, c, n/4)
		}
	}
}
