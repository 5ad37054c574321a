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
	"github.com/benefitsdesk/enrollment-core/internal/infra/telemetry"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

const refreshTokenByteLength = 48

// AuthService implements login, refresh-token rotation with replay detection,
// logout, and invite-gated signup.
type AuthService struct {
	users      port.UserStore
	sessions   port.SessionStore
	invites    port.InviteStore
	limiter    *security.LoginAttemptLimiter
	codec      *security.TokenCodec
	passwords  *security.PasswordValidator
	events     *SecurityEvents
	logger     *zap.Logger
	metrics    *telemetry.Metrics
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserStore,
	sessions port.SessionStore,
	invites port.InviteStore,
	limiter *security.LoginAttemptLimiter,
	codec *security.TokenCodec,
	events *SecurityEvents,
	metrics *telemetry.Metrics,
	log *zap.Logger,
	refreshTTL time.Duration,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNopMetrics()
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		invites:    invites,
		limiter:    limiter,
		codec:      codec,
		passwords:  security.DefaultPasswordValidator(),
		events:     events,
		logger:     log,
		metrics:    metrics,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the clock, primarily for tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// LoginInput carries a credential pair plus client context for auditing.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	User         *domain.User
}

// Login authenticates a credential pair. Unknown email, wrong password, and
// deactivated account all produce the same generic unauthorized failure so
// the response does not leak which part was wrong.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*TokenPair, error) {
	key := security.AttemptKey(input.Email, input.IPAddress)

	if locked, retryAfter := s.limiter.IsLocked(key); locked {
		s.metrics.LoginLockout.Inc()
		s.events.Emit(ctx, SecurityEventInput{
			EventType: EventLoginLockedOut,
			Severity:  domain.SeverityWarn,
			IPAddress: strPtr(input.IPAddress),
			UserAgent: strPtr(input.UserAgent),
			Metadata:  map[string]any{"email": logger.MaskEmail(input.Email)},
		})
		err := Unauthorizedf("too many failed login attempts; try again later")
		err.RetryAfterSeconds = retryAfter
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	authenticated := false
	if user != nil && user.IsActive {
		ok, verr := security.VerifyPassword(input.Password, user.PasswordHash)
		if verr != nil {
			s.logger.Error("password verification failed", zap.Error(verr))
		}
		authenticated = ok && verr == nil
	}

	if !authenticated {
		s.limiter.RecordFailure(key)
		s.metrics.LoginFailure.Inc()
		s.events.Emit(ctx, SecurityEventInput{
			EventType: EventLoginFailed,
			Severity:  domain.SeverityWarn,
			UserID:    userIDPtr(user),
			TenantID:  tenantIDPtr(user),
			IPAddress: strPtr(input.IPAddress),
			UserAgent: strPtr(input.UserAgent),
			Metadata:  map[string]any{"email": logger.MaskEmail(input.Email)},
		})
		return nil, Unauthorizedf("invalid credentials")
	}

	s.limiter.Clear(key)

	pair, err := s.issueSession(ctx, user, input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, err
	}

	s.metrics.LoginSuccess.Inc()
	s.events.Emit(ctx, SecurityEventInput{
		EventType: EventLoginSuccess,
		UserID:    &user.ID,
		TenantID:  user.TenantID,
		IPAddress: strPtr(input.IPAddress),
		UserAgent: strPtr(input.UserAgent),
		Metadata:  map[string]any{"session_id": pair.SessionID},
	})
	return pair, nil
}

// RefreshInput carries the presented refresh token plus client context.
type RefreshInput struct {
	RefreshToken string
	IPAddress    string
	UserAgent    string
}

// Refresh rotates a refresh token: the presented token's session is revoked
// and a fresh session plus access token are issued. Presenting a revoked
// token is treated as replay and revokes every session for the owning user;
// that cascade commits even though the call itself fails.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (*TokenPair, error) {
	tokenHash := security.HashToken(input.RefreshToken)
	now := s.now().UTC()

	var (
		pair       *TokenPair
		replayUser *domain.AuthSession
		expired    bool
	)

	err := s.sessions.WithinTx(ctx, func(tx port.SessionOps) error {
		session, err := tx.FindByTokenHash(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return Unauthorizedf("invalid refresh token")
			}
			return fmt.Errorf("lookup session: %w", err)
		}

		if session.RevokedAt != nil {
			// Replay: revoke the whole family and let the revocations commit
			// by returning nil. The unauthorized failure is raised after the
			// transaction.
			if err := tx.RevokeAllForUser(ctx, session.UserID, domain.RevokeReasonTokenReplay); err != nil {
				return fmt.Errorf("revoke sessions after replay: %w", err)
			}
			replayUser = session
			return nil
		}

		if !session.ExpiresAt.After(now) {
			expired = true
			return nil
		}

		user, err := s.users.GetByID(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return Unauthorizedf("invalid refresh token")
			}
			return fmt.Errorf("lookup user: %w", err)
		}
		if !user.IsActive {
			return Unauthorizedf("invalid refresh token")
		}

		rawToken, err := security.GenerateSecureToken(refreshTokenByteLength)
		if err != nil {
			return fmt.Errorf("generate refresh token: %w", err)
		}

		userAgent := strPtr(input.UserAgent)
		if userAgent == nil {
			userAgent = session.UserAgent
		}

		next := domain.AuthSession{
			ID:               uuid.NewString(),
			UserID:           user.ID,
			RefreshTokenHash: security.HashToken(rawToken),
			UserAgent:        userAgent,
			IPAddress:        strPtr(input.IPAddress),
			CreatedAt:        now,
			ExpiresAt:        now.Add(s.refreshTTL),
		}
		if err := tx.Create(ctx, next); err != nil {
			return fmt.Errorf("create rotated session: %w", err)
		}

		if err := tx.Revoke(ctx, port.RevokeSessionInput{
			SessionID:           session.ID,
			Reason:              domain.RevokeReasonRotated,
			ReplacedBySessionID: &next.ID,
		}); err != nil {
			return fmt.Errorf("revoke rotated session: %w", err)
		}

		access, err := s.codec.Sign(*user, next.ID)
		if err != nil {
			return fmt.Errorf("sign access token: %w", err)
		}

		pair = &TokenPair{
			AccessToken:  access,
			RefreshToken: rawToken,
			SessionID:    next.ID,
			User:         user,
		}
		return nil
	})
	if err != nil {
		var ucErr *Error
		if errors.As(err, &ucErr) && ucErr.Kind == KindUnauthorized {
			s.events.Emit(ctx, SecurityEventInput{
				EventType: EventRefreshInvalidToken,
				Severity:  domain.SeverityWarn,
				IPAddress: strPtr(input.IPAddress),
				UserAgent: strPtr(input.UserAgent),
			})
		}
		return nil, err
	}

	if replayUser != nil {
		s.metrics.RefreshReplays.Inc()
		s.events.Emit(ctx, SecurityEventInput{
			EventType: EventRefreshReplayDetected,
			Severity:  domain.SeverityError,
			UserID:    &replayUser.UserID,
			IPAddress: strPtr(input.IPAddress),
			UserAgent: strPtr(input.UserAgent),
			Metadata:  map[string]any{"session_id": replayUser.ID},
		})
		s.logger.Error("refresh token replay detected; revoked all sessions for user",
			zap.String("user_id", replayUser.UserID),
			zap.String("session_id", replayUser.ID),
		)
		return nil, Unauthorizedf("invalid refresh token")
	}

	if expired {
		s.events.Emit(ctx, SecurityEventInput{
			EventType: EventRefreshExpired,
			Severity:  domain.SeverityWarn,
			IPAddress: strPtr(input.IPAddress),
			UserAgent: strPtr(input.UserAgent),
		})
		return nil, Unauthorizedf("refresh token expired")
	}

	s.metrics.RefreshRotations.Inc()
	s.events.Emit(ctx, SecurityEventInput{
		EventType: EventRefreshRotated,
		UserID:    &pair.User.ID,
		TenantID:  pair.User.TenantID,
		IPAddress: strPtr(input.IPAddress),
		UserAgent: strPtr(input.UserAgent),
		Metadata:  map[string]any{"session_id": pair.SessionID},
	})
	return pair, nil
}

// Logout revokes the session owning the presented refresh token. Unknown and
// already-revoked tokens succeed silently; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken, ipAddress, userAgent string) error {
	tokenHash := security.HashToken(refreshToken)

	session, err := s.sessions.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup session: %w", err)
	}
	if session.RevokedAt != nil {
		return nil
	}

	if err := s.sessions.Revoke(ctx, port.RevokeSessionInput{
		SessionID: session.ID,
		Reason:    domain.RevokeReasonLogout,
	}); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	s.events.Emit(ctx, SecurityEventInput{
		EventType: EventLogout,
		UserID:    &session.UserID,
		IPAddress: strPtr(ipAddress),
		UserAgent: strPtr(userAgent),
		Metadata:  map[string]any{"session_id": session.ID},
	})
	return nil
}

// LogoutAll revokes every session for the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID, ipAddress, userAgent string) error {
	if err := s.sessions.RevokeAllForUser(ctx, userID, domain.RevokeReasonLogoutAll); err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}

	s.events.Emit(ctx, SecurityEventInput{
		EventType: EventLogoutAll,
		UserID:    &userID,
		IPAddress: strPtr(ipAddress),
		UserAgent: strPtr(userAgent),
	})
	return nil
}

// VerifyAccessToken validates the token signature and expiry and, when the
// token carries a session id, confirms the session has not been revoked.
// Revoking a session therefore invalidates its access tokens immediately.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*security.AccessTokenClaims, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredAccessToken) {
			return nil, Unauthorizedf("access token expired")
		}
		return nil, Unauthorizedf("invalid access token")
	}

	if claims.SessionID != "" {
		active, err := s.sessions.IsActive(ctx, claims.SessionID)
		if err != nil {
			return nil, fmt.Errorf("check session: %w", err)
		}
		if !active {
			return nil, Unauthorizedf("session revoked")
		}
	}

	return claims, nil
}

// SignupInput carries an invite-gated registration request.
type SignupInput struct {
	InviteCode string
	Email      string
	Password   string
	IPAddress  string
	UserAgent  string
}

// SignupWithInvite registers a user against an invite code. The code's usable
// check and its uses-count increment run in one transaction so concurrent
// signups cannot exceed maxUses.
func (s *AuthService) SignupWithInvite(ctx context.Context, input SignupInput) (*domain.User, error) {
	if err := s.passwords.Validate(input.Password); err != nil {
		return nil, Invalidf("%s", err.Error())
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	var created domain.User

	err = s.invites.WithinTx(ctx, func(tx port.InviteOps) error {
		invite, err := tx.FindByCode(ctx, input.InviteCode)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return Unauthorizedf("invalid invite code")
			}
			return fmt.Errorf("lookup invite: %w", err)
		}
		if !invite.Usable(now) {
			return Unauthorizedf("invalid invite code")
		}

		user := domain.User{
			ID:           uuid.NewString(),
			TenantID:     &invite.TenantID,
			Email:        input.Email,
			PasswordHash: passwordHash,
			Role:         domain.Role(invite.TargetRole),
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return Conflictf("email already registered")
			}
			return fmt.Errorf("create user: %w", err)
		}

		invite.UsesCount++
		if err := tx.Update(ctx, *invite); err != nil {
			return fmt.Errorf("update invite: %w", err)
		}

		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, SecurityEventInput{
		EventType: EventSignupInvite,
		UserID:    &created.ID,
		TenantID:  created.TenantID,
		IPAddress: strPtr(input.IPAddress),
		UserAgent: strPtr(input.UserAgent),
		Metadata:  map[string]any{"role": string(created.Role)},
	})
	return &created, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *domain.User, ipAddress, userAgent string) (*TokenPair, error) {
	rawToken, err := security.GenerateSecureToken(refreshTokenByteLength)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now().UTC()
	session := domain.AuthSession{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		RefreshTokenHash: security.HashToken(rawToken),
		UserAgent:        strPtr(userAgent),
		IPAddress:        strPtr(ipAddress),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	access, err := s.codec.Sign(*user, session.ID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: rawToken,
		SessionID:    session.ID,
		User:         user,
	}, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func userIDPtr(user *domain.User) *string {
	if user == nil {
		return nil
	}
	return &user.ID
}

func tenantIDPtr(user *domain.User) *string {
	if user == nil {
		return nil
	}
	return user.TenantID
}
