package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/infra/security"
	"github.com/benefitsdesk/enrollment-core/internal/repository/memory"
)

const (
	testPassword = "correct-horse-battery-staple-42"
	testIP       = "203.0.113.7"
	testAgent    = "enrollment-tests/1.0"
)

type authHarness struct {
	store   *memory.Store
	limiter *security.LoginAttemptLimiter
	codec   *security.TokenCodec
	service *AuthService
	now     time.Time
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	store := memory.NewStore()
	limiter := security.NewLoginAttemptLimiter(3, 10*time.Minute)
	codec, err := security.NewTokenCodec("test-secret", "enrollment-core", 15*time.Minute)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	events := NewSecurityEvents(store.SecurityEvents(), nil, nil, nil)
	service := NewAuthService(
		store.Users(),
		store.Sessions(),
		store.Invites(),
		limiter,
		codec,
		events,
		nil,
		nil,
		7*24*time.Hour,
	)

	h := &authHarness{
		store:   store,
		limiter: limiter,
		codec:   codec,
		service: service,
		now:     testNow,
	}
	store.WithClock(func() time.Time { return h.now })
	service.WithClock(func() time.Time { return h.now })
	limiter.WithClock(func() time.Time { return h.now })
	codec.WithClock(func() time.Time { return h.now })
	events.WithClock(func() time.Time { return h.now })

	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	tenantID := testTenantID
	if err := store.Users().Create(context.Background(), domain.User{
		ID:           testEmployeeID,
		TenantID:     &tenantID,
		Email:        "employee@example.com",
		PasswordHash: hash,
		Role:         domain.RoleEmployee,
		IsActive:     true,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return h
}

func (h *authHarness) login(t *testing.T) *TokenPair {
	t.Helper()
	pair, err := h.service.Login(context.Background(), LoginInput{
		Email:     "employee@example.com",
		Password:  testPassword,
		IPAddress: testIP,
		UserAgent: testAgent,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return pair
}

func TestLoginIssuesSessionAndTokens(t *testing.T) {
	h := newAuthHarness(t)
	pair := h.login(t)

	if len(pair.RefreshToken) != 64 {
		t.Fatalf("refresh token length = %d, want 64", len(pair.RefreshToken))
	}
	if pair.SessionID == "" {
		t.Fatal("missing session id")
	}

	claims, err := h.service.VerifyAccessToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if claims.Subject != testEmployeeID {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.SessionID != pair.SessionID {
		t.Fatalf("sid = %q, want %q", claims.SessionID, pair.SessionID)
	}
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	h := newAuthHarness(t)

	_, wrongPassErr := h.service.Login(context.Background(), LoginInput{
		Email:     "employee@example.com",
		Password:  "wrong-password",
		IPAddress: testIP,
	})
	_, unknownErr := h.service.Login(context.Background(), LoginInput{
		Email:     "ghost@example.com",
		Password:  testPassword,
		IPAddress: testIP,
	})

	if KindOf(wrongPassErr) != KindUnauthorized || KindOf(unknownErr) != KindUnauthorized {
		t.Fatalf("expected unauthorized for both, got %v / %v", wrongPassErr, unknownErr)
	}
	if wrongPassErr.Error() != unknownErr.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPassErr.Error(), unknownErr.Error())
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	h := newAuthHarness(t)

	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := h.store.Users().Create(context.Background(), domain.User{
		ID:           "inactive-1",
		Email:        "inactive@example.com",
		PasswordHash: hash,
		Role:         domain.RoleEmployee,
		IsActive:     false,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	_, err = h.service.Login(context.Background(), LoginInput{
		Email:     "inactive@example.com",
		Password:  testPassword,
		IPAddress: testIP,
	})
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("kind = %v, want unauthorized", KindOf(err))
	}
}

func TestLoginLockout(t *testing.T) {
	h := newAuthHarness(t)

	for i := 0; i < 3; i++ {
		_, _ = h.service.Login(context.Background(), LoginInput{
			Email:     "employee@example.com",
			Password:  "wrong-password",
			IPAddress: testIP,
		})
	}

	// Correct credentials are still rejected while locked.
	_, err := h.service.Login(context.Background(), LoginInput{
		Email:     "employee@example.com",
		Password:  testPassword,
		IPAddress: testIP,
	})
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("kind = %v, want unauthorized", KindOf(err))
	}
	var ucErr *Error
	if !asUsecaseError(err, &ucErr) || ucErr.RetryAfterSeconds <= 0 {
		t.Fatalf("expected RetryAfterSeconds > 0, got %+v", ucErr)
	}

	// A different ip for the same account is unaffected.
	if _, err := h.service.Login(context.Background(), LoginInput{
		Email:     "employee@example.com",
		Password:  testPassword,
		IPAddress: "198.51.100.9",
	}); err != nil {
		t.Fatalf("login from other ip: %v", err)
	}

	// After the lock window the account recovers.
	h.now = h.now.Add(10*time.Minute + time.Second)
	if _, err := h.service.Login(context.Background(), LoginInput{
		Email:     "employee@example.com",
		Password:  testPassword,
		IPAddress: testIP,
	}); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
}

func TestLoginSuccessResetsFailureCount(t *testing.T) {
	h := newAuthHarness(t)

	for i := 0; i < 2; i++ {
		_, _ = h.service.Login(context.Background(), LoginInput{
			Email:     "employee@example.com",
			Password:  "wrong-password",
			IPAddress: testIP,
		})
	}
	h.login(t)

	// Two more failures would lock if the counter had carried over.
	for i := 0; i < 2; i++ {
		_, _ = h.service.Login(context.Background(), LoginInput{
			Email:     "employee@example.com",
			Password:  "wrong-password",
			IPAddress: testIP,
		})
	}
	if _, err := h.service.Login(context.Background(), LoginInput{
		Email:     "employee@example.com",
		Password:  testPassword,
		IPAddress: testIP,
	}); err != nil {
		t.Fatalf("expected counter reset after success, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	h := newAuthHarness(t)
	pair := h.login(t)

	rotated, err := h.service.Refresh(context.Background(), RefreshInput{
		RefreshToken: pair.RefreshToken,
		IPAddress:    testIP,
		UserAgent:    testAgent,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if rotated.SessionID == pair.SessionID {
		t.Fatal("session id was not rotated")
	}

	// The new token works.
	if _, err := h.service.VerifyAccessToken(context.Background(), rotated.AccessToken); err != nil {
		t.Fatalf("verify rotated access token: %v", err)
	}

	// The old session's access token is now rejected.
	if _, err := h.service.VerifyAccessToken(context.Background(), pair.AccessToken); KindOf(err) != KindUnauthorized {
		t.Fatalf("expected unauthorized for pre-rotation access token, got %v", err)
	}
}

func TestRefreshReplayRevokesAllSessions(t *testing.T) {
	h := newAuthHarness(t)
	first := h.login(t)
	second := h.login(t)

	rotated, err := h.service.Refresh(context.Background(), RefreshInput{
		RefreshToken: first.RefreshToken,
		IPAddress:    testIP,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Replaying the consumed token fails and revokes the whole family.
	if _, err := h.service.Refresh(context.Background(), RefreshInput{
		RefreshToken: first.RefreshToken,
		IPAddress:    testIP,
	}); KindOf(err) != KindUnauthorized {
		t.Fatalf("expected unauthorized on replay, got %v", err)
	}

	for name, token := range map[string]string{
		"rotated": rotated.AccessToken,
		"second":  second.AccessToken,
	} {
		if _, err := h.service.VerifyAccessToken(context.Background(), token); KindOf(err) != KindUnauthorized {
			t.Fatalf("%s session survived replay cascade: %v", name, err)
		}
	}

	// The rotated refresh token is dead too; a second replay cascade fires.
	if _, err := h.service.Refresh(context.Background(), RefreshInput{
		RefreshToken: rotated.RefreshToken,
		IPAddress:    testIP,
	}); KindOf(err) != KindUnauthorized {
		t.Fatalf("expected unauthorized for revoked rotated token, got %v", err)
	}
}

func TestRefreshExpiredTokenNoCascade(t *testing.T) {
	h := newAuthHarness(t)
	expired := h.login(t)
	h.now = h.now.Add(7*24*time.Hour + time.Minute)
	fresh := h.login(t)

	_, err := h.service.Refresh(context.Background(), RefreshInput{
		RefreshToken: expired.RefreshToken,
		IPAddress:    testIP,
	})
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry message, got %q", err.Error())
	}

	// Expiry is not replay: other sessions stay alive.
	if _, err := h.service.VerifyAccessToken(context.Background(), fresh.AccessToken); err != nil {
		t.Fatalf("fresh session was revoked on expiry: %v", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	h := newAuthHarness(t)

	_, err := h.service.Refresh(context.Background(), RefreshInput{
		RefreshToken: "never-issued",
		IPAddress:    testIP,
	})
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("kind = %v, want unauthorized", KindOf(err))
	}
}

func TestLogoutRevokesSessionIdempotently(t *testing.T) {
	h := newAuthHarness(t)
	pair := h.login(t)

	if err := h.service.Logout(context.Background(), pair.RefreshToken, testIP, testAgent); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := h.service.VerifyAccessToken(context.Background(), pair.AccessToken); KindOf(err) != KindUnauthorized {
		t.Fatalf("expected revoked session, got %v", err)
	}

	// Second logout and logout of unknown tokens are no-ops.
	if err := h.service.Logout(context.Background(), pair.RefreshToken, testIP, testAgent); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
	if err := h.service.Logout(context.Background(), "never-issued", testIP, testAgent); err != nil {
		t.Fatalf("logout unknown token: %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	h := newAuthHarness(t)
	first := h.login(t)
	second := h.login(t)

	if err := h.service.LogoutAll(context.Background(), testEmployeeID, testIP, testAgent); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	for _, token := range []string{first.AccessToken, second.AccessToken} {
		if _, err := h.service.VerifyAccessToken(context.Background(), token); KindOf(err) != KindUnauthorized {
			t.Fatalf("session survived logout all: %v", err)
		}
	}
}

func seedInvite(t *testing.T, h *authHarness, invite domain.InviteCode) {
	t.Helper()
	if invite.ID == "" {
		invite.ID = "invite-" + invite.Code
	}
	if invite.TenantID == "" {
		invite.TenantID = testTenantID
	}
	if invite.TargetRole == "" {
		invite.TargetRole = domain.InviteTargetEmployee
	}
	h.store.SeedInvite(invite)
}

func TestSignupWithInvite(t *testing.T) {
	h := newAuthHarness(t)
	maxUses := 2
	seedInvite(t, h, domain.InviteCode{Code: "WELCOME26", MaxUses: &maxUses, IsActive: true})

	user, err := h.service.SignupWithInvite(context.Background(), SignupInput{
		InviteCode: "WELCOME26",
		Email:      "new-hire@example.com",
		Password:   testPassword,
		IPAddress:  testIP,
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Role != domain.RoleEmployee {
		t.Fatalf("role = %s, want EMPLOYEE", user.Role)
	}
	if user.TenantID == nil || *user.TenantID != testTenantID {
		t.Fatalf("tenant = %v, want %s", user.TenantID, testTenantID)
	}

	// The new account can log in.
	if _, err := h.service.Login(context.Background(), LoginInput{
		Email:     "new-hire@example.com",
		Password:  testPassword,
		IPAddress: testIP,
	}); err != nil {
		t.Fatalf("login as new user: %v", err)
	}
}

func TestSignupInviteRejections(t *testing.T) {
	h := newAuthHarness(t)

	zeroUses := 0
	past := h.now.Add(-time.Hour)
	seedInvite(t, h, domain.InviteCode{Code: "EXHAUSTED", MaxUses: &zeroUses, IsActive: true})
	seedInvite(t, h, domain.InviteCode{Code: "EXPIRED", ExpiresAt: &past, IsActive: true})
	seedInvite(t, h, domain.InviteCode{Code: "DISABLED", IsActive: false})
	seedInvite(t, h, domain.InviteCode{Code: "OPEN", IsActive: true})

	cases := []struct {
		name     string
		input    SignupInput
		wantKind Kind
	}{
		{
			name:     "unknown code",
			input:    SignupInput{InviteCode: "NOPE", Email: "a@example.com", Password: testPassword},
			wantKind: KindUnauthorized,
		},
		{
			name:     "exhausted code",
			input:    SignupInput{InviteCode: "EXHAUSTED", Email: "b@example.com", Password: testPassword},
			wantKind: KindUnauthorized,
		},
		{
			name:     "expired code",
			input:    SignupInput{InviteCode: "EXPIRED", Email: "c@example.com", Password: testPassword},
			wantKind: KindUnauthorized,
		},
		{
			name:     "disabled code",
			input:    SignupInput{InviteCode: "DISABLED", Email: "d@example.com", Password: testPassword},
			wantKind: KindUnauthorized,
		},
		{
			name:     "weak password",
			input:    SignupInput{InviteCode: "OPEN", Email: "e@example.com", Password: "aaaa"},
			wantKind: KindValidationFailed,
		},
		{
			name:     "duplicate email",
			input:    SignupInput{InviteCode: "OPEN", Email: "employee@example.com", Password: testPassword},
			wantKind: KindConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.service.SignupWithInvite(context.Background(), tc.input)
			if KindOf(err) != tc.wantKind {
				t.Fatalf("kind = %v, want %v (err: %v)", KindOf(err), tc.wantKind, err)
			}
		})
	}
}

func TestSignupInviteConsumesUses(t *testing.T) {
	h := newAuthHarness(t)
	maxUses := 1
	seedInvite(t, h, domain.InviteCode{Code: "SINGLE", MaxUses: &maxUses, IsActive: true})

	if _, err := h.service.SignupWithInvite(context.Background(), SignupInput{
		InviteCode: "SINGLE",
		Email:      "first@example.com",
		Password:   testPassword,
	}); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	_, err := h.service.SignupWithInvite(context.Background(), SignupInput{
		InviteCode: "SINGLE",
		Email:      "second@example.com",
		Password:   testPassword,
	})
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("expected exhausted invite, got %v", err)
	}
}

func TestFailedSignupDoesNotConsumeInvite(t *testing.T) {
	h := newAuthHarness(t)
	maxUses := 1
	seedInvite(t, h, domain.InviteCode{Code: "ONCE", MaxUses: &maxUses, IsActive: true})

	// Duplicate email aborts the transaction; the use is returned.
	if _, err := h.service.SignupWithInvite(context.Background(), SignupInput{
		InviteCode: "ONCE",
		Email:      "employee@example.com",
		Password:   testPassword,
	}); KindOf(err) != KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := h.service.SignupWithInvite(context.Background(), SignupInput{
		InviteCode: "ONCE",
		Email:      "fresh@example.com",
		Password:   testPassword,
	}); err != nil {
		t.Fatalf("signup after rolled-back attempt: %v", err)
	}
}

func asUsecaseError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
