package service

import (
	"testing"
	"time"
)

func newTestBucket(t *testing.T, rate, capacity float64) (*TokenBucket, *time.Time) {
	t.Helper()
	tb := NewTokenBucket(rate, capacity)
	t.Cleanup(tb.Close)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }
	return tb, &now
}

func TestTokenBucket_AllowsUpToCapacity(t *testing.T) {
	tb, _ := newTestBucket(t, 1, 3)

	for i := 0; i < 3; i++ {
		if !tb.Allow("203.0.113.7") {
			t.Fatalf("request %d should be allowed (bucket not yet empty)", i+1)
		}
	}
	if tb.Allow("203.0.113.7") {
		t.Fatal("4th request should be denied (bucket empty)")
	}
}

func TestTokenBucket_DifferentKeysAreIndependent(t *testing.T) {
	tb, _ := newTestBucket(t, 1, 1)

	if !tb.Allow("ip-a") {
		t.Fatal("ip-a first request should be allowed")
	}
	if tb.Allow("ip-a") {
		t.Fatal("ip-a second request should be denied")
	}
	if !tb.Allow("ip-b") {
		t.Fatal("ip-b first request should be allowed (independent bucket)")
	}
}

func TestTokenBucket_Refills(t *testing.T) {
	tb, now := newTestBucket(t, 2, 1)

	if !tb.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if tb.Allow("k") {
		t.Fatal("second request should be denied")
	}
	*now = now.Add(500 * time.Millisecond)
	if !tb.Allow("k") {
		t.Fatal("request after refill should be allowed")
	}
}

func TestTokenBucket_ZeroRateNeverRefills(t *testing.T) {
	tb, now := newTestBucket(t, 0, 2)

	tb.Allow("k")
	tb.Allow("k")
	*now = now.Add(time.Hour)
	if tb.Allow("k") {
		t.Fatal("third request should be denied (no refill)")
	}
}

func TestTokenBucket_PruneDropsIdleKeys(t *testing.T) {
	tb, now := newTestBucket(t, 1, 1)

	tb.Allow("old")
	*now = now.Add(11 * time.Minute)
	tb.Allow("fresh")
	tb.prune()

	if got := tb.Len(); got != 1 {
		t.Fatalf("expected 1 tracked key after prune, got %d", got)
	}
}

func TestTokenBucket_CloseIsIdempotent(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	tb.Close()
	tb.Close()
}
