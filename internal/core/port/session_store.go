package port

import (
	"context"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
)

// RevokeSessionInput carries the revocation context for one session.
type RevokeSessionInput struct {
	SessionID           string
	Reason              string
	ReplacedBySessionID *string
}

// SessionOps is the operation set available against session storage, both
// directly and inside a transaction.
type SessionOps interface {
	Create(ctx context.Context, session domain.AuthSession) error
	// FindByTokenHash returns the session owning the refresh-token hash.
	// Inside a transaction the row is locked for the transaction's duration.
	FindByTokenHash(ctx context.Context, tokenHash string) (*domain.AuthSession, error)
	// Revoke soft-deletes a session. Revoking an already-revoked session
	// preserves the original revocation.
	Revoke(ctx context.Context, input RevokeSessionInput) error
	// RevokeAllForUser revokes every session for the user; idempotent.
	RevokeAllForUser(ctx context.Context, userID, reason string) error
	IsActive(ctx context.Context, sessionID string) (bool, error)
}

// SessionStore adds transactional execution over SessionOps so refresh-token
// rotation (lookup, revoke-old, insert-new) cannot race a concurrent replay.
type SessionStore interface {
	SessionOps
	WithinTx(ctx context.Context, fn func(tx SessionOps) error) error
}

// ResetTokenStore persists single-use password reset tokens.
type ResetTokenStore interface {
	Create(ctx context.Context, token domain.PasswordResetToken) error
	FindByHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error)
	MarkUsed(ctx context.Context, tokenID string) error
}

// InviteOps is the operation set for atomic invite-code consumption. The
// durable adapter locks the code row so usesCount cannot exceed maxUses under
// concurrent signups.
type InviteOps interface {
	FindByCode(ctx context.Context, code string) (*domain.InviteCode, error)
	Update(ctx context.Context, invite domain.InviteCode) error
	CreateUser(ctx context.Context, user domain.User) error
}

// InviteStore runs invite consumption transactionally.
type InviteStore interface {
	FindByCode(ctx context.Context, code string) (*domain.InviteCode, error)
	WithinTx(ctx context.Context, fn func(tx InviteOps) error) error
}

// SecurityEventStore is an append-only audit sink.
type SecurityEventStore interface {
	Append(ctx context.Context, event domain.SecurityEvent) error
}
