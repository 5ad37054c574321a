package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// DependentRepository implements port.DependentStore using PostgreSQL.
type DependentRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewDependentRepository constructs a repository backed by any executor.
func NewDependentRepository(exec pgExecutor) *DependentRepository {
	return &DependentRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

var dependentColumns = []string{
	"id",
	"tenant_id",
	"employee_user_id",
	"relationship",
	"first_name",
	"last_name",
	"date_of_birth",
	"created_at",
	"updated_at",
}

// Create inserts a dependent row.
func (r *DependentRepository) Create(ctx context.Context, dependent domain.Dependent) error {
	stmt, args, err := r.builder.Insert("dependents").
		Columns(dependentColumns...).
		Values(
			dependent.ID,
			dependent.TenantID,
			dependent.EmployeeUserID,
			dependent.Relationship,
			dependent.FirstName,
			dependent.LastName,
			dependent.DateOfBirth,
			dependent.CreatedAt,
			dependent.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert dependent sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if mapped := mapWriteError(err); mapped == repository.ErrConflict {
			return mapped
		}
		return fmt.Errorf("insert dependent: %w", err)
	}
	return nil
}

// ListByEmployee returns the employee's dependents, oldest first.
func (r *DependentRepository) ListByEmployee(ctx context.Context, tenantID, employeeUserID string) ([]domain.Dependent, error) {
	stmt, args, err := r.builder.Select(dependentColumns...).
		From("dependents").
		Where(squirrel.Eq{"tenant_id": tenantID, "employee_user_id": employeeUserID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select dependents sql: %w", err)
	}
	return r.queryDependents(ctx, stmt, args)
}

// ListByIDs returns only dependents from ids that belong to the employee in
// the tenant; foreign ids are silently omitted.
func (r *DependentRepository) ListByIDs(ctx context.Context, tenantID, employeeUserID string, ids []string) ([]domain.Dependent, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	stmt, args, err := r.builder.Select(dependentColumns...).
		From("dependents").
		Where(squirrel.Eq{
			"id":               ids,
			"tenant_id":        tenantID,
			"employee_user_id": employeeUserID,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select dependents by ids sql: %w", err)
	}
	return r.queryDependents(ctx, stmt, args)
}

func (r *DependentRepository) queryDependents(ctx context.Context, stmt string, args []any) ([]domain.Dependent, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query dependents: %w", err)
	}
	defer rows.Close()

	var out []domain.Dependent
	for rows.Next() {
		var dep domain.Dependent
		if err := rows.Scan(
			&dep.ID,
			&dep.TenantID,
			&dep.EmployeeUserID,
			&dep.Relationship,
			&dep.FirstName,
			&dep.LastName,
			&dep.DateOfBirth,
			&dep.CreatedAt,
			&dep.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dependent: %w", err)
		}
		out = append(out, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependents: %w", err)
	}
	return out, nil
}
