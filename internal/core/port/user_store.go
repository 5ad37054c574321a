package port

import (
	"context"
	"time"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
)

// UserStore exposes persistence behavior for platform users.
type UserStore interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
}

// ProfileStore persists employee profiles. Upsert keeps the zero-or-one
// profile per employee user invariant.
type ProfileStore interface {
	Upsert(ctx context.Context, profile domain.EmployeeProfile) (*domain.EmployeeProfile, error)
	GetByUserID(ctx context.Context, userID string) (*domain.EmployeeProfile, error)
}

// DependentStore persists dependents scoped to (tenant, employee).
type DependentStore interface {
	Create(ctx context.Context, dependent domain.Dependent) error
	ListByEmployee(ctx context.Context, tenantID, employeeUserID string) ([]domain.Dependent, error)
	// ListByIDs returns only dependents that belong to the given employee and
	// tenant; callers detect foreign ids by comparing lengths.
	ListByIDs(ctx context.Context, tenantID, employeeUserID string, ids []string) ([]domain.Dependent, error)
}

// PlanStore reads plan-year, plan, and premium configuration.
type PlanStore interface {
	GetPlanYear(ctx context.Context, tenantID, planYearID string) (*domain.PlanYear, error)
	GetPlan(ctx context.Context, tenantID, planYearID, planID string) (*domain.Plan, error)
	GetPremium(ctx context.Context, planID string, tier domain.CoverageTier) (*domain.PlanPremium, error)
}
