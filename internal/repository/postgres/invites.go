package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// InviteRepository implements port.InviteStore using PostgreSQL. Consumption
// runs inside a transaction that locks the invite row, so usesCount cannot
// exceed maxUses under concurrent signups.
type InviteRepository struct {
	pool    txBeginner
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	locking bool
}

// NewInviteRepository constructs a repository backed by any executor.
func NewInviteRepository(exec pgExecutor) *InviteRepository {
	repo := &InviteRepository{
		exec:    exec,
		builder: newBuilder(),
	}
	if pool, ok := exec.(txBeginner); ok {
		repo.pool = pool
	}
	return repo
}

func (r *InviteRepository) withTx(tx pgx.Tx) *InviteRepository {
	return &InviteRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
		locking: true,
	}
}

// WithinTx runs fn inside one database transaction with the invite row
// locked on lookup.
func (r *InviteRepository) WithinTx(ctx context.Context, fn func(tx port.InviteOps) error) error {
	if r.pool == nil {
		return fmt.Errorf("invite repository: transactions require a pool-backed repository")
	}
	return withinTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(r.withTx(tx))
	})
}

var inviteColumns = []string{
	"id",
	"tenant_id",
	"code",
	"target_role",
	"created_by_user_id",
	"expires_at",
	"max_uses",
	"uses_count",
	"is_active",
	"created_at",
}

// FindByCode retrieves an invite by its code. On a tx-bound repository the
// row is locked for the transaction's duration.
func (r *InviteRepository) FindByCode(ctx context.Context, code string) (*domain.InviteCode, error) {
	query := r.builder.Select(inviteColumns...).
		From("invite_codes").
		Where(squirrel.Eq{"code": code})
	if r.locking {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select invite sql: %w", err)
	}

	var invite domain.InviteCode
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&invite.ID,
		&invite.TenantID,
		&invite.Code,
		&invite.TargetRole,
		&invite.CreatedByUserID,
		&invite.ExpiresAt,
		&invite.MaxUses,
		&invite.UsesCount,
		&invite.IsActive,
		&invite.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan invite: %w", err)
	}
	return &invite, nil
}

// Update rewrites the invite's mutable fields.
func (r *InviteRepository) Update(ctx context.Context, invite domain.InviteCode) error {
	stmt, args, err := r.builder.Update("invite_codes").
		Set("uses_count", invite.UsesCount).
		Set("is_active", invite.IsActive).
		Set("expires_at", invite.ExpiresAt).
		Set("max_uses", invite.MaxUses).
		Where(squirrel.Eq{"id": invite.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update invite sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateUser inserts the signed-up user within the consumption transaction.
func (r *InviteRepository) CreateUser(ctx context.Context, user domain.User) error {
	return NewUserRepository(r.exec).Create(ctx, user)
}
