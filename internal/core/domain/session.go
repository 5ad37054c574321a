package domain

import "time"

// AuthSession represents one issued refresh token. The raw token is never
// stored; only its SHA-256 hash.
type AuthSession struct {
	ID                  string
	UserID              string
	RefreshTokenHash    string
	UserAgent           *string
	IPAddress           *string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	RevokedAt           *time.Time
	RevokedReason       *string
	ReplacedBySessionID *string
}

// IsActive reports whether the session is still valid at the supplied moment.
func (s AuthSession) IsActive(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt.After(at)
}

// Revoke marks the session revoked. Already-revoked sessions keep their
// original reason and timestamp; returns true when the session changed state.
func (s *AuthSession) Revoke(at time.Time, reason string, replacedBy *string) bool {
	if s.RevokedAt != nil {
		return false
	}
	s.RevokedAt = &at
	s.RevokedReason = &reason
	if replacedBy != nil {
		id := *replacedBy
		s.ReplacedBySessionID = &id
	}
	return true
}

// Session revocation reasons observed across the auth flows.
const (
	RevokeReasonLogout        = "logout"
	RevokeReasonLogoutAll     = "logout_all"
	RevokeReasonRotated       = "rotated"
	RevokeReasonPasswordReset = "password_reset"
	RevokeReasonTokenReplay   = "refresh_token_replay"
)

// PasswordResetToken is a single-use opaque credential stored as a hash.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Consumable reports whether the token may still be redeemed.
func (t PasswordResetToken) Consumable(at time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(at)
}

// SecurityEventSeverity grades audit events.
type SecurityEventSeverity string

const (
	SeverityInfo  SecurityEventSeverity = "INFO"
	SeverityWarn  SecurityEventSeverity = "WARN"
	SeverityError SecurityEventSeverity = "ERROR"
)

// SecurityEvent is an append-only audit record. Persistence is best-effort:
// a write failure must never abort the operation that emitted the event.
type SecurityEvent struct {
	ID        string
	UserID    *string
	TenantID  *string
	EventType string
	Severity  SecurityEventSeverity
	IPAddress *string
	UserAgent *string
	Metadata  map[string]any
	CreatedAt time.Time
}
