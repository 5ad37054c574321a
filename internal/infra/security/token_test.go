package security

import (
	"regexp"
	"testing"
)

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken(48)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}
	// 48 bytes encode to 64 base64url characters without padding.
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64", len(token))
	}

	other, err := GenerateSecureToken(48)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}
	if token == other {
		t.Fatal("expected distinct tokens")
	}

	if _, err := GenerateSecureToken(0); err == nil {
		t.Fatal("expected error for non-positive length")
	}
}

func TestHashTokenIsDeterministic(t *testing.T) {
	a := HashToken("some-token")
	b := HashToken("some-token")
	if a != b {
		t.Fatal("expected deterministic hash")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}
	if a == HashToken("other-token") {
		t.Fatal("expected different hashes for different tokens")
	}
}

func TestGenerateConfirmationCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^ENR-[0-9A-F]{10}$`)
	for i := 0; i < 20; i++ {
		code, err := GenerateConfirmationCode()
		if err != nil {
			t.Fatalf("GenerateConfirmationCode: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("code %q does not match %s", code, pattern)
		}
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	encoded, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("expected password to verify")
	}

	ok, err = VerifyPassword("wrong password", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	if _, err := VerifyPassword("anything", "not-a-valid-encoding"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}
