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

// EnrollmentRepository implements port.EnrollmentStore using PostgreSQL. The
// enrollment row, its election snapshots, and its dependent links live in
// three tables written together.
type EnrollmentRepository struct {
	pool    txBeginner
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	// locking is set on tx-bound instances; FindByID and FindDrafts then
	// lock the rows they read.
	locking bool
}

// NewEnrollmentRepository constructs a repository backed by any executor.
func NewEnrollmentRepository(exec pgExecutor) *EnrollmentRepository {
	repo := &EnrollmentRepository{
		exec:    exec,
		builder: newBuilder(),
	}
	if pool, ok := exec.(txBeginner); ok {
		repo.pool = pool
	}
	return repo
}

func (r *EnrollmentRepository) withTx(tx pgx.Tx) *EnrollmentRepository {
	return &EnrollmentRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
		locking: true,
	}
}

// WithinTx runs fn inside one database transaction. Enrollment rows read via
// FindByID or FindDrafts are locked FOR UPDATE; FindDrafts locks in a stable
// (created_at, id) order, so a submit that locks the full draft set for its
// key serializes against sibling submits without deadlocking.
func (r *EnrollmentRepository) WithinTx(ctx context.Context, fn func(tx port.EnrollmentOps) error) error {
	if r.pool == nil {
		return fmt.Errorf("enrollment repository: transactions require a pool-backed repository")
	}
	return withinTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(r.withTx(tx))
	})
}

var enrollmentColumns = []string{
	"id",
	"tenant_id",
	"employee_user_id",
	"plan_year_id",
	"status",
	"effective_date",
	"submitted_at",
	"confirmation_code",
	"created_at",
	"updated_at",
}

// FindDrafts returns every DRAFT enrollment for the scope, oldest first.
func (r *EnrollmentRepository) FindDrafts(ctx context.Context, tenantID, employeeUserID, planYearID string) ([]domain.Enrollment, error) {
	query := r.builder.Select(enrollmentColumns...).
		From("enrollments").
		Where(squirrel.Eq{
			"tenant_id":        tenantID,
			"employee_user_id": employeeUserID,
			"plan_year_id":     planYearID,
			"status":           domain.EnrollmentStatusDraft,
		}).
		OrderBy("created_at ASC", "id ASC")
	if r.locking {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select drafts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}

	for i := range out {
		if err := r.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FindByID returns the enrollment scoped to the employee and tenant. On a
// tx-bound repository the row is locked for the transaction's duration.
func (r *EnrollmentRepository) FindByID(ctx context.Context, tenantID, employeeUserID, enrollmentID string) (*domain.Enrollment, error) {
	query := r.builder.Select(enrollmentColumns...).
		From("enrollments").
		Where(squirrel.Eq{
			"id":               enrollmentID,
			"tenant_id":        tenantID,
			"employee_user_id": employeeUserID,
		})
	if r.locking {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select enrollment sql: %w", err)
	}

	enrollment, err := scanEnrollment(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// HasOtherSubmitted reports whether another enrollment for the same
// (employee, plan year) is already SUBMITTED.
func (r *EnrollmentRepository) HasOtherSubmitted(ctx context.Context, employeeUserID, planYearID, excludeEnrollmentID string) (bool, error) {
	stmt, args, err := r.builder.Select("1").
		From("enrollments").
		Where(squirrel.Eq{
			"employee_user_id": employeeUserID,
			"plan_year_id":     planYearID,
			"status":           domain.EnrollmentStatusSubmitted,
		}).
		Where(squirrel.NotEq{"id": excludeEnrollmentID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select submitted sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("query submitted enrollments: %w", err)
	}
	return true, nil
}

// Insert writes the enrollment row plus its elections and dependent links.
func (r *EnrollmentRepository) Insert(ctx context.Context, enrollment domain.Enrollment) error {
	stmt, args, err := r.builder.Insert("enrollments").
		Columns(enrollmentColumns...).
		Values(
			enrollment.ID,
			enrollment.TenantID,
			enrollment.EmployeeUserID,
			enrollment.PlanYearID,
			enrollment.Status,
			enrollment.EffectiveDate,
			enrollment.SubmittedAt,
			enrollment.ConfirmationCode,
			enrollment.CreatedAt,
			enrollment.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert enrollment sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if mapped := mapWriteError(err); mapped == repository.ErrConflict {
			return mapped
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	return r.writeChildren(ctx, enrollment)
}

// Update rewrites the enrollment row and replaces its elections and
// dependent links wholesale.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment domain.Enrollment) error {
	stmt, args, err := r.builder.Update("enrollments").
		Set("status", enrollment.Status).
		Set("effective_date", enrollment.EffectiveDate).
		Set("submitted_at", enrollment.SubmittedAt).
		Set("confirmation_code", enrollment.ConfirmationCode).
		Set("updated_at", enrollment.UpdatedAt).
		Where(squirrel.Eq{"id": enrollment.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update enrollment sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	if err := r.deleteChildren(ctx, []string{enrollment.ID}); err != nil {
		return err
	}
	return r.writeChildren(ctx, enrollment)
}

// Delete removes enrollment rows and their children.
func (r *EnrollmentRepository) Delete(ctx context.Context, enrollmentIDs []string) error {
	if len(enrollmentIDs) == 0 {
		return nil
	}

	if err := r.deleteChildren(ctx, enrollmentIDs); err != nil {
		return err
	}

	stmt, args, err := r.builder.Delete("enrollments").
		Where(squirrel.Eq{"id": enrollmentIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete enrollments sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete enrollments: %w", err)
	}
	return nil
}

func (r *EnrollmentRepository) writeChildren(ctx context.Context, enrollment domain.Enrollment) error {
	if len(enrollment.Elections) > 0 {
		insert := r.builder.Insert("enrollment_elections").
			Columns("enrollment_id", "plan_type", "plan_id", "coverage_tier", "employee_monthly_cost", "employer_monthly_cost")
		for _, e := range enrollment.Elections {
			insert = insert.Values(enrollment.ID, e.PlanType, e.PlanID, e.CoverageTier, e.EmployeeMonthlyCost, e.EmployerMonthlyCost)
		}
		stmt, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert elections sql: %w", err)
		}
		if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert elections: %w", err)
		}
	}

	if len(enrollment.DependentIDs) > 0 {
		insert := r.builder.Insert("enrollment_dependents").
			Columns("enrollment_id", "dependent_id")
		for _, depID := range enrollment.DependentIDs {
			insert = insert.Values(enrollment.ID, depID)
		}
		stmt, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert enrollment dependents sql: %w", err)
		}
		if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert enrollment dependents: %w", err)
		}
	}
	return nil
}

func (r *EnrollmentRepository) deleteChildren(ctx context.Context, enrollmentIDs []string) error {
	for _, table := range []string{"enrollment_elections", "enrollment_dependents"} {
		stmt, args, err := r.builder.Delete(table).
			Where(squirrel.Eq{"enrollment_id": enrollmentIDs}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete %s sql: %w", table, err)
		}
		if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

func (r *EnrollmentRepository) loadChildren(ctx context.Context, enrollment *domain.Enrollment) error {
	stmt, args, err := r.builder.Select("plan_type", "plan_id", "coverage_tier", "employee_monthly_cost", "employer_monthly_cost").
		From("enrollment_elections").
		Where(squirrel.Eq{"enrollment_id": enrollment.ID}).
		OrderBy("plan_type ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("build select elections sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("query elections: %w", err)
	}
	defer rows.Close()

	enrollment.Elections = nil
	for rows.Next() {
		var e domain.ElectionSnapshot
		if err := rows.Scan(&e.PlanType, &e.PlanID, &e.CoverageTier, &e.EmployeeMonthlyCost, &e.EmployerMonthlyCost); err != nil {
			return fmt.Errorf("scan election: %w", err)
		}
		enrollment.Elections = append(enrollment.Elections, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate elections: %w", err)
	}

	stmt, args, err = r.builder.Select("dependent_id").
		From("enrollment_dependents").
		Where(squirrel.Eq{"enrollment_id": enrollment.ID}).
		OrderBy("dependent_id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("build select enrollment dependents sql: %w", err)
	}

	depRows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("query enrollment dependents: %w", err)
	}
	defer depRows.Close()

	enrollment.DependentIDs = nil
	for depRows.Next() {
		var depID string
		if err := depRows.Scan(&depID); err != nil {
			return fmt.Errorf("scan enrollment dependent: %w", err)
		}
		enrollment.DependentIDs = append(enrollment.DependentIDs, depID)
	}
	if err := depRows.Err(); err != nil {
		return fmt.Errorf("iterate enrollment dependents: %w", err)
	}
	return nil
}

func scanEnrollment(row pgx.Row) (*domain.Enrollment, error) {
	var enrollment domain.Enrollment
	if err := row.Scan(
		&enrollment.ID,
		&enrollment.TenantID,
		&enrollment.EmployeeUserID,
		&enrollment.PlanYearID,
		&enrollment.Status,
		&enrollment.EffectiveDate,
		&enrollment.SubmittedAt,
		&enrollment.ConfirmationCode,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}
	return &enrollment, nil
}
