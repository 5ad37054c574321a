package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/infra/logger"
	"github.com/benefitsdesk/enrollment-core/internal/infra/security"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

const resetTokenByteLength = 32

// PasswordResetService implements the two-step reset flow: request a
// single-use token, then confirm it with a new password.
type PasswordResetService struct {
	users       port.UserStore
	sessions    port.SessionStore
	resetTokens port.ResetTokenStore
	passwords   *security.PasswordValidator
	events      *SecurityEvents
	logger      *zap.Logger
	tokenTTL    time.Duration
	production  bool
	now         func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService. In production
// the raw token is never returned to the caller; outside production it is,
// since no mail delivery exists yet.
func NewPasswordResetService(
	users port.UserStore,
	sessions port.SessionStore,
	resetTokens port.ResetTokenStore,
	events *SecurityEvents,
	log *zap.Logger,
	tokenTTL time.Duration,
	production bool,
) *PasswordResetService {
	if log == nil {
		log = zap.NewNop()
	}
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	return &PasswordResetService{
		users:       users,
		sessions:    sessions,
		resetTokens: resetTokens,
		passwords:   security.DefaultPasswordValidator(),
		events:      events,
		logger:      log,
		tokenTTL:    tokenTTL,
		production:  production,
		now:         time.Now,
	}
}

// WithClock overrides the clock, primarily for tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Request issues a reset token for the email. The call succeeds whether or
// not the email is registered so it cannot be used to probe for accounts.
// The returned token is empty in production.
func (s *PasswordResetService) Request(ctx context.Context, email, ipAddress, userAgent string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return "", nil
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	rawToken, err := security.GenerateSecureToken(resetTokenByteLength)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now().UTC()
	token := domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(rawToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.resetTokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("create reset token: %w", err)
	}

	s.events.Emit(ctx, SecurityEventInput{
		EventType: EventPasswordResetRequested,
		UserID:    &user.ID,
		TenantID:  user.TenantID,
		IPAddress: strPtr(ipAddress),
		UserAgent: strPtr(userAgent),
	})

	if s.production {
		return "", nil
	}
	return rawToken, nil
}

// Confirm redeems a reset token and sets the new password. On success every
// session for the user is revoked.
func (s *PasswordResetService) Confirm(ctx context.Context, rawToken, newPassword, ipAddress, userAgent string) error {
	token, err := s.resetTokens.FindByHash(ctx, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFoundf("reset token not found")
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now().UTC()
	if token.UsedAt != nil {
		return Conflictf("reset token already used")
	}
	if !token.ExpiresAt.After(now) {
		return Unauthorizedf("reset token expired")
	}

	if err := s.passwords.Validate(newPassword); err != nil {
		return Invalidf("%s", err.Error())
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, token.UserID, passwordHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.resetTokens.MarkUsed(ctx, token.ID); err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if err := s.sessions.RevokeAllForUser(ctx, token.UserID, domain.RevokeReasonPasswordReset); err != nil {
		return fmt.Errorf("revoke sessions after reset: %w", err)
	}

	s.events.Emit(ctx, SecurityEventInput{
		EventType: EventPasswordResetCompleted,
		UserID:    &token.UserID,
		IPAddress: strPtr(ipAddress),
		UserAgent: strPtr(userAgent),
	})
	return nil
}
