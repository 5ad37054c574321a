package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// PlanRepository implements port.PlanStore using PostgreSQL. Plan
// configuration is read-only from the enrollment core's point of view.
type PlanRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPlanRepository constructs a repository backed by any executor.
func NewPlanRepository(exec pgExecutor) *PlanRepository {
	return &PlanRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// GetPlanYear retrieves a plan year scoped to the tenant.
func (r *PlanRepository) GetPlanYear(ctx context.Context, tenantID, planYearID string) (*domain.PlanYear, error) {
	stmt, args, err := r.builder.Select(
		"id",
		"tenant_id",
		"name",
		"start_date",
		"end_date",
		"created_by_user_id",
		"created_at",
		"updated_at",
	).
		From("plan_years").
		Where(squirrel.Eq{"id": planYearID, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select plan year sql: %w", err)
	}

	var planYear domain.PlanYear
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&planYear.ID,
		&planYear.TenantID,
		&planYear.Name,
		&planYear.StartDate,
		&planYear.EndDate,
		&planYear.CreatedByUserID,
		&planYear.CreatedAt,
		&planYear.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan plan year: %w", err)
	}
	return &planYear, nil
}

// GetPlan retrieves a plan scoped to the tenant and plan year.
func (r *PlanRepository) GetPlan(ctx context.Context, tenantID, planYearID, planID string) (*domain.Plan, error) {
	stmt, args, err := r.builder.Select(
		"id",
		"tenant_id",
		"plan_year_id",
		"plan_type",
		"carrier",
		"plan_name",
		"is_active",
		"created_at",
		"updated_at",
	).
		From("plans").
		Where(squirrel.Eq{"id": planID, "tenant_id": tenantID, "plan_year_id": planYearID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select plan sql: %w", err)
	}

	var plan domain.Plan
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&plan.ID,
		&plan.TenantID,
		&plan.PlanYearID,
		&plan.Type,
		&plan.Carrier,
		&plan.PlanName,
		&plan.IsActive,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return &plan, nil
}

// GetPremium retrieves the premium row for a (plan, coverage tier) pair.
func (r *PlanRepository) GetPremium(ctx context.Context, planID string, tier domain.CoverageTier) (*domain.PlanPremium, error) {
	stmt, args, err := r.builder.Select(
		"id",
		"plan_id",
		"coverage_tier",
		"employee_monthly_cost",
		"employer_monthly_cost",
		"created_at",
		"updated_at",
	).
		From("plan_premiums").
		Where(squirrel.Eq{"plan_id": planID, "coverage_tier": tier}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select premium sql: %w", err)
	}

	var premium domain.PlanPremium
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&premium.ID,
		&premium.PlanID,
		&premium.CoverageTier,
		&premium.EmployeeMonthlyCost,
		&premium.EmployerMonthlyCost,
		&premium.CreatedAt,
		&premium.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan premium: %w", err)
	}
	return &premium, nil
}
