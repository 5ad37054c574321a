package memory

import (
	"context"
	"testing"
	"time"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
)

func TestSessionExpiryFollowsInjectedClock(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	store := NewStore()
	store.WithClock(func() time.Time { return now })

	session := domain.AuthSession{
		ID:               "session-1",
		UserID:           "user-1",
		RefreshTokenHash: "hash-1",
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
	}
	if err := store.Sessions().Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	active, err := store.Sessions().IsActive(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if !active {
		t.Fatal("expected active session before expiry")
	}

	now = now.Add(time.Hour + time.Second)
	active, err = store.Sessions().IsActive(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Fatal("expected expired session after the clock passed expires_at")
	}
}

func TestRevokeStampsInjectedClock(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	store := NewStore()
	store.WithClock(func() time.Time { return now })

	if err := store.Sessions().Create(context.Background(), domain.AuthSession{
		ID:               "session-1",
		UserID:           "user-1",
		RefreshTokenHash: "hash-1",
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	now = now.Add(10 * time.Minute)
	if err := store.Sessions().RevokeAllForUser(context.Background(), "user-1", domain.RevokeReasonPasswordReset); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	revoked, err := store.Sessions().FindByTokenHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(now) {
		t.Fatalf("revoked_at = %v, want %v", revoked.RevokedAt, now)
	}
}
