package security

import (
	"testing"
	"time"
)

func TestAttemptKeyNormalizesEmail(t *testing.T) {
	if AttemptKey("User@Example.COM", "10.0.0.1") != AttemptKey("user@example.com", "10.0.0.1") {
		t.Fatal("expected case-insensitive email in attempt key")
	}
	if AttemptKey("user@example.com", "10.0.0.1") == AttemptKey("user@example.com", "10.0.0.2") {
		t.Fatal("expected distinct keys for distinct ips")
	}
}

func TestLimiterLocksAtThreshold(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	limiter := NewLoginAttemptLimiter(3, 10*time.Minute)
	limiter.WithClock(func() time.Time { return now })

	key := AttemptKey("user@example.com", "10.0.0.1")

	for i := 0; i < 2; i++ {
		limiter.RecordFailure(key)
		if locked, _ := limiter.IsLocked(key); locked {
			t.Fatalf("locked after %d failures, threshold is 3", i+1)
		}
	}

	limiter.RecordFailure(key)
	locked, retryAfter := limiter.IsLocked(key)
	if !locked {
		t.Fatal("expected lock at threshold")
	}
	if retryAfter != 600 {
		t.Fatalf("retryAfter = %d, want 600", retryAfter)
	}
}

func TestLimiterLockExpiresLazily(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	limiter := NewLoginAttemptLimiter(2, 5*time.Minute)
	limiter.WithClock(func() time.Time { return now })

	key := AttemptKey("user@example.com", "10.0.0.1")
	limiter.RecordFailure(key)
	limiter.RecordFailure(key)

	if locked, _ := limiter.IsLocked(key); !locked {
		t.Fatal("expected lock")
	}

	now = now.Add(5*time.Minute + time.Second)
	if locked, _ := limiter.IsLocked(key); locked {
		t.Fatal("expected lock to expire")
	}

	// Counter was reset at lock time, so one failure does not re-lock.
	limiter.RecordFailure(key)
	if locked, _ := limiter.IsLocked(key); locked {
		t.Fatal("unexpected lock after a single post-expiry failure")
	}
}

func TestLimiterRetryAfterRoundsUp(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	limiter := NewLoginAttemptLimiter(1, 90*time.Second)
	limiter.WithClock(func() time.Time { return now })

	key := AttemptKey("user@example.com", "10.0.0.1")
	limiter.RecordFailure(key)

	now = now.Add(89*time.Second + 500*time.Millisecond)
	locked, retryAfter := limiter.IsLocked(key)
	if !locked {
		t.Fatal("expected lock")
	}
	if retryAfter != 1 {
		t.Fatalf("retryAfter = %d, want 1", retryAfter)
	}
}

func TestLimiterClear(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	limiter := NewLoginAttemptLimiter(2, 5*time.Minute)
	limiter.WithClock(func() time.Time { return now })

	key := AttemptKey("user@example.com", "10.0.0.1")
	limiter.RecordFailure(key)
	limiter.Clear(key)
	limiter.RecordFailure(key)

	if locked, _ := limiter.IsLocked(key); locked {
		t.Fatal("expected counter reset after Clear")
	}
}

func TestLimiterIndependentKeys(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	limiter := NewLoginAttemptLimiter(1, 5*time.Minute)
	limiter.WithClock(func() time.Time { return now })

	limiter.RecordFailure(AttemptKey("a@example.com", "10.0.0.1"))

	if locked, _ := limiter.IsLocked(AttemptKey("a@example.com", "10.0.0.2")); locked {
		t.Fatal("lock leaked to another ip")
	}
	if locked, _ := limiter.IsLocked(AttemptKey("b@example.com", "10.0.0.1")); locked {
		t.Fatal("lock leaked to another email")
	}
}

func TestLimiterPurgesStaleAttempts(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	limiter := NewLoginAttemptLimiter(3, 5*time.Minute)
	limiter.WithClock(func() time.Time { return now })

	key := AttemptKey("user@example.com", "10.0.0.1")
	limiter.RecordFailure(key)
	limiter.RecordFailure(key)

	// After the stale window the counter starts over.
	now = now.Add(staleAttemptThreshold + time.Minute)
	if locked, _ := limiter.IsLocked(key); locked {
		t.Fatal("unexpected lock on stale entry")
	}
	limiter.RecordFailure(key)
	limiter.RecordFailure(key)
	if locked, _ := limiter.IsLocked(key); locked {
		t.Fatal("stale failures should not count toward the threshold")
	}
}
