package security

import (
	"strings"
	"sync"
	"time"
)

const staleAttemptThreshold = 24 * time.Hour

// LoginAttemptLimiter throttles login attempts per (email, ip) key. It is an
// approximate, single-process, memory-only defense; it is not shared across
// horizontally scaled instances.
type LoginAttemptLimiter struct {
	mu           sync.Mutex
	attempts     map[string]*loginAttemptState
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time
}

type loginAttemptState struct {
	failures      int
	lockUntil     time.Time
	lastFailureAt time.Time
}

// NewLoginAttemptLimiter constructs a limiter. Reaching maxAttempts failures
// locks the key for lockDuration and resets the counter; the lock window does
// not compound on further failures.
func NewLoginAttemptLimiter(maxAttempts int, lockDuration time.Duration) *LoginAttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockDuration <= 0 {
		lockDuration = 15 * time.Minute
	}
	return &LoginAttemptLimiter{
		attempts:     make(map[string]*loginAttemptState),
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
		now:          time.Now,
	}
}

// WithClock overrides the clock, primarily for tests.
func (l *LoginAttemptLimiter) WithClock(clock func() time.Time) {
	if clock != nil {
		l.now = clock
	}
}

// AttemptKey builds the limiter key from an email and client IP.
func AttemptKey(email, ip string) string {
	return strings.ToLower(email) + "|" + ip
}

// IsLocked reports whether the key is currently locked out and, if so, how
// many seconds remain. Stale and past-due entries are lazily expired on read.
func (l *LoginAttemptLimiter) IsLocked(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupKeyLocked(key)

	state, ok := l.attempts[key]
	if !ok || state.lockUntil.IsZero() {
		return false, 0
	}

	now := l.now()
	if !state.lockUntil.After(now) {
		delete(l.attempts, key)
		return false, 0
	}

	remaining := state.lockUntil.Sub(now)
	seconds := int(remaining / time.Second)
	if remaining%time.Second > 0 {
		seconds++
	}
	return true, seconds
}

// RecordFailure increments the failure counter for the key; at the threshold
// it sets the lock window and zeroes the counter.
func (l *LoginAttemptLimiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	state, ok := l.attempts[key]
	if !ok {
		state = &loginAttemptState{}
		l.attempts[key] = state
	}

	state.failures++
	state.lastFailureAt = now

	if state.failures >= l.maxAttempts {
		state.lockUntil = now.Add(l.lockDuration)
		state.failures = 0
	}
}

// Clear removes all attempt state for the key; called after a successful login.
func (l *LoginAttemptLimiter) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

func (l *LoginAttemptLimiter) cleanupKeyLocked(key string) {
	state, ok := l.attempts[key]
	if !ok {
		return
	}

	now := l.now()
	if !state.lockUntil.IsZero() && !state.lockUntil.After(now) {
		delete(l.attempts, key)
		return
	}

	if state.lockUntil.IsZero() && now.Sub(state.lastFailureAt) > staleAttemptThreshold {
		delete(l.attempts, key)
	}
}
