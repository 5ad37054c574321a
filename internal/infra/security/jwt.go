package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
)

var (
	// ErrInvalidAccessToken indicates the token is malformed or its signature failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
)

// AccessTokenClaims augments registered claims with tenant and session context.
type AccessTokenClaims struct {
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	TenantID  *string     `json:"tenantId"`
	SessionID string      `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 access tokens with a shared secret.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec constructs a TokenCodec. The secret must be non-empty.
func NewTokenCodec(secret, issuer string, ttl time.Duration) (*TokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the clock, primarily for tests.
func (c *TokenCodec) WithClock(clock func() time.Time) {
	if clock != nil {
		c.now = clock
	}
}

// Sign issues a short-lived access token for the user. An empty sessionID
// omits the sid claim.
func (c *TokenCodec) Sign(user domain.User, sessionID string) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := c.now().UTC()
	claims := AccessTokenClaims{
		Email:     user.Email,
		Role:      user.Role,
		TenantID:  user.TenantID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates an access token and returns its claims. Callers must
// additionally confirm the embedded session (if any) is still active before
// trusting the token.
func (c *TokenCodec) Verify(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}
