package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// ProfileRepository implements port.ProfileStore using PostgreSQL.
type ProfileRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewProfileRepository constructs a repository backed by any executor.
func NewProfileRepository(exec pgExecutor) *ProfileRepository {
	return &ProfileRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

var profileColumns = []string{
	"user_id",
	"tenant_id",
	"employee_id",
	"first_name",
	"last_name",
	"date_of_birth",
	"hire_date",
	"salary_amount",
	"benefit_class",
	"employment_status",
	"created_at",
	"updated_at",
}

// Upsert inserts or replaces the profile keyed by user id. The created_at of
// an existing row is preserved. A duplicate (tenant, employee id) pair on a
// different user maps to ErrConflict.
func (r *ProfileRepository) Upsert(ctx context.Context, profile domain.EmployeeProfile) (*domain.EmployeeProfile, error) {
	stmt, args, err := r.builder.Insert("employee_profiles").
		Columns(profileColumns...).
		Values(
			profile.UserID,
			profile.TenantID,
			profile.EmployeeID,
			profile.FirstName,
			profile.LastName,
			profile.DateOfBirth,
			profile.HireDate,
			profile.SalaryAmount,
			profile.BenefitClass,
			profile.EmploymentStatus,
			profile.CreatedAt,
			profile.UpdatedAt,
		).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			employee_id = EXCLUDED.employee_id,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			date_of_birth = EXCLUDED.date_of_birth,
			hire_date = EXCLUDED.hire_date,
			salary_amount = EXCLUDED.salary_amount,
			benefit_class = EXCLUDED.benefit_class,
			employment_status = EXCLUDED.employment_status,
			updated_at = EXCLUDED.updated_at
			RETURNING created_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert profile sql: %w", err)
	}

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&profile.CreatedAt); err != nil {
		if mapped := mapWriteError(err); mapped == repository.ErrConflict {
			return nil, mapped
		}
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &profile, nil
}

// GetByUserID retrieves the profile for one employee user.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.EmployeeProfile, error) {
	stmt, args, err := r.builder.Select(profileColumns...).
		From("employee_profiles").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select profile sql: %w", err)
	}

	var profile domain.EmployeeProfile
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&profile.UserID,
		&profile.TenantID,
		&profile.EmployeeID,
		&profile.FirstName,
		&profile.LastName,
		&profile.DateOfBirth,
		&profile.HireDate,
		&profile.SalaryAmount,
		&profile.BenefitClass,
		&profile.EmploymentStatus,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &profile, nil
}
