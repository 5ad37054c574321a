package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// SessionRepository implements port.SessionStore using PostgreSQL.
type SessionRepository struct {
	pool    txBeginner
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	locking bool
}

// NewSessionRepository constructs a repository backed by any executor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: newBuilder(),
	}
	if pool, ok := exec.(txBeginner); ok {
		repo.pool = pool
	}
	return repo
}

func (r *SessionRepository) withTx(tx pgx.Tx) *SessionRepository {
	return &SessionRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
		locking: true,
	}
}

// WithinTx runs fn inside one database transaction. The session row looked
// up via FindByTokenHash is locked FOR UPDATE so a concurrent refresh with
// the same token serializes behind this one and then observes the revocation.
func (r *SessionRepository) WithinTx(ctx context.Context, fn func(tx port.SessionOps) error) error {
	if r.pool == nil {
		return fmt.Errorf("session repository: transactions require a pool-backed repository")
	}
	return withinTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(r.withTx(tx))
	})
}

var sessionColumns = []string{
	"id",
	"user_id",
	"refresh_token_hash",
	"user_agent",
	"ip_address",
	"created_at",
	"expires_at",
	"revoked_at",
	"revoked_reason",
	"replaced_by_session_id",
}

// Create persists a new session row.
func (r *SessionRepository) Create(ctx context.Context, session domain.AuthSession) error {
	stmt, args, err := r.builder.Insert("auth_sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.RefreshTokenHash,
			session.UserAgent,
			session.IPAddress,
			session.CreatedAt,
			session.ExpiresAt,
			session.RevokedAt,
			session.RevokedReason,
			session.ReplacedBySessionID,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if mapped := mapWriteError(err); mapped == repository.ErrConflict {
			return mapped
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByTokenHash returns the session owning the refresh-token hash. On a
// tx-bound repository the row is locked for the transaction's duration.
func (r *SessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.AuthSession, error) {
	query := r.builder.Select(sessionColumns...).
		From("auth_sessions").
		Where(squirrel.Eq{"refresh_token_hash": tokenHash})
	if r.locking {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	var session domain.AuthSession
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshTokenHash,
		&session.UserAgent,
		&session.IPAddress,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.RevokedReason,
		&session.ReplacedBySessionID,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &session, nil
}

// Revoke soft-deletes a session. An already-revoked session keeps its
// original revocation untouched.
func (r *SessionRepository) Revoke(ctx context.Context, input port.RevokeSessionInput) error {
	stmt, args, err := r.builder.Update("auth_sessions").
		Set("revoked_at", time.Now().UTC()).
		Set("revoked_reason", input.Reason).
		Set("replaced_by_session_id", input.ReplacedBySessionID).
		Where(squirrel.Eq{"id": input.SessionID, "revoked_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every active session for the user; idempotent.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID, reason string) error {
	stmt, args, err := r.builder.Update("auth_sessions").
		Set("revoked_at", time.Now().UTC()).
		Set("revoked_reason", reason).
		Where(squirrel.Eq{"user_id": userID, "revoked_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke all sessions sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}
	return nil
}

// IsActive reports whether the session exists, is unrevoked, and is unexpired.
func (r *SessionRepository) IsActive(ctx context.Context, sessionID string) (bool, error) {
	stmt, args, err := r.builder.Select("1").
		From("auth_sessions").
		Where(squirrel.Eq{"id": sessionID, "revoked_at": nil}).
		Where(squirrel.Expr("expires_at > NOW()")).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select session active sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("query session active: %w", err)
	}
	return true, nil
}
