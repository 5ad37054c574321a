package port

import (
	"context"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
)

// EnrollmentOps is the operation set available against enrollment storage,
// both directly and inside a transaction.
type EnrollmentOps interface {
	// FindDrafts returns every DRAFT enrollment for (tenant, employee, plan
	// year), oldest first. More than one element means stray duplicates exist.
	FindDrafts(ctx context.Context, tenantID, employeeUserID, planYearID string) ([]domain.Enrollment, error)
	// FindByID returns the enrollment scoped to the employee and tenant.
	// Inside a transaction the row is locked for the transaction's duration.
	FindByID(ctx context.Context, tenantID, employeeUserID, enrollmentID string) (*domain.Enrollment, error)
	// HasOtherSubmitted reports whether another enrollment for the same
	// (employee, plan year) is already SUBMITTED.
	HasOtherSubmitted(ctx context.Context, employeeUserID, planYearID, excludeEnrollmentID string) (bool, error)
	Insert(ctx context.Context, enrollment domain.Enrollment) error
	// Update rewrites the enrollment row together with its election snapshots
	// and dependent links.
	Update(ctx context.Context, enrollment domain.Enrollment) error
	Delete(ctx context.Context, enrollmentIDs []string) error
}

// EnrollmentStore adds transactional execution over EnrollmentOps. The
// callback's writes commit together or not at all; the durable adapter locks
// touched enrollment rows so concurrent submits for one (employee, plan year)
// serialize.
type EnrollmentStore interface {
	EnrollmentOps
	WithinTx(ctx context.Context, fn func(tx EnrollmentOps) error) error
}
