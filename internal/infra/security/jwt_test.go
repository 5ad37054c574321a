package security

import (
	"errors"
	"testing"
	"time"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
)

func testUser() domain.User {
	tenantID := "tenant-1"
	return domain.User{
		ID:       "user-1",
		TenantID: &tenantID,
		Email:    "user@example.com",
		Role:     domain.RoleEmployee,
		IsActive: true,
	}
}

func TestTokenCodecRoundTrip(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", "enrollment-core", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, err := codec.Sign(testUser(), "session-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
	if claims.Role != domain.RoleEmployee {
		t.Fatalf("role = %q", claims.Role)
	}
	if claims.TenantID == nil || *claims.TenantID != "tenant-1" {
		t.Fatalf("tenantId = %v, want tenant-1", claims.TenantID)
	}
	if claims.SessionID != "session-1" {
		t.Fatalf("sid = %q, want session-1", claims.SessionID)
	}
}

func TestTokenCodecRequiresSecret(t *testing.T) {
	if _, err := NewTokenCodec("   ", "enrollment-core", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestTokenCodecRejectsExpired(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	codec, err := NewTokenCodec("test-secret", "enrollment-core", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	codec.WithClock(func() time.Time { return now })

	token, err := codec.Sign(testUser(), "")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := codec.Verify(token); !errors.Is(err, ErrExpiredAccessToken) {
		t.Fatalf("expected ErrExpiredAccessToken, got %v", err)
	}
}

func TestTokenCodecRejectsWrongSecret(t *testing.T) {
	signer, err := NewTokenCodec("secret-a", "enrollment-core", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	verifier, err := NewTokenCodec("secret-b", "enrollment-core", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, err := signer.Sign(testUser(), "")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}

func TestTokenCodecRejectsGarbage(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", "enrollment-core", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidAccessToken) {
			t.Fatalf("token %q: expected ErrInvalidAccessToken, got %v", token, err)
		}
	}
}
