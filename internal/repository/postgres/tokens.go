package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// ResetTokenRepository implements port.ResetTokenStore using PostgreSQL.
type ResetTokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewResetTokenRepository constructs a repository backed by any executor.
func NewResetTokenRepository(exec pgExecutor) *ResetTokenRepository {
	return &ResetTokenRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Create persists a new reset token row.
func (r *ResetTokenRepository) Create(ctx context.Context, token domain.PasswordResetToken) error {
	stmt, args, err := r.builder.Insert("password_reset_tokens").
		Columns("id", "user_id", "token_hash", "created_at", "expires_at", "used_at").
		Values(token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.UsedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert reset token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if mapped := mapWriteError(err); mapped == repository.ErrConflict {
			return mapped
		}
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// FindByHash retrieves a reset token by its hash.
func (r *ResetTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	stmt, args, err := r.builder.Select("id", "user_id", "token_hash", "created_at", "expires_at", "used_at").
		From("password_reset_tokens").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reset token sql: %w", err)
	}

	var token domain.PasswordResetToken
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.UsedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan reset token: %w", err)
	}
	return &token, nil
}

// MarkUsed stamps the token's used_at once; later calls are no-ops.
func (r *ResetTokenRepository) MarkUsed(ctx context.Context, tokenID string) error {
	stmt, args, err := r.builder.Update("password_reset_tokens").
		Set("used_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": tokenID, "used_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark reset token used sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	return nil
}
