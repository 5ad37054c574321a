package memory

import (
	"context"
	"sort"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// Enrollments returns the enrollment-store view of the Store.
func (s *Store) Enrollments() port.EnrollmentStore { return &enrollmentStore{s} }

type enrollmentStore struct{ s *Store }

func (r *enrollmentStore) FindDrafts(ctx context.Context, tenantID, employeeUserID, planYearID string) ([]domain.Enrollment, error) {
	r.s.enrollMu.Lock()
	defer r.s.enrollMu.Unlock()
	return r.s.findDraftsLocked(tenantID, employeeUserID, planYearID)
}

func (r *enrollmentStore) FindByID(ctx context.Context, tenantID, employeeUserID, enrollmentID string) (*domain.Enrollment, error) {
	r.s.enrollMu.Lock()
	defer r.s.enrollMu.Unlock()
	return r.s.findEnrollmentLocked(tenantID, employeeUserID, enrollmentID)
}

func (r *enrollmentStore) HasOtherSubmitted(ctx context.Context, employeeUserID, planYearID, excludeEnrollmentID string) (bool, error) {
	r.s.enrollMu.Lock()
	defer r.s.enrollMu.Unlock()
	return r.s.hasOtherSubmittedLocked(employeeUserID, planYearID, excludeEnrollmentID)
}

func (r *enrollmentStore) Insert(ctx context.Context, enrollment domain.Enrollment) error {
	r.s.enrollMu.Lock()
	defer r.s.enrollMu.Unlock()
	return r.s.insertEnrollmentLocked(enrollment)
}

func (r *enrollmentStore) Update(ctx context.Context, enrollment domain.Enrollment) error {
	r.s.enrollMu.Lock()
	defer r.s.enrollMu.Unlock()
	return r.s.updateEnrollmentLocked(enrollment)
}

func (r *enrollmentStore) Delete(ctx context.Context, enrollmentIDs []string) error {
	r.s.enrollMu.Lock()
	defer r.s.enrollMu.Unlock()
	return r.s.deleteEnrollmentsLocked(enrollmentIDs)
}

// WithinTx holds the enrollment mutex for the whole closure and restores the
// pre-transaction enrollment state when the closure fails, mirroring the
// durable adapter's rollback.
func (r *enrollmentStore) WithinTx(ctx context.Context, fn func(tx port.EnrollmentOps) error) error {
	r.s.enrollMu.Lock()
	defer r.s.enrollMu.Unlock()

	snapshot := cloneEnrollmentMap(r.s.enrollments)
	if err := fn(&enrollmentTx{r.s}); err != nil {
		r.s.enrollments = snapshot
		return err
	}
	return nil
}

// enrollmentTx runs against an already-locked store.
type enrollmentTx struct{ s *Store }

func (t *enrollmentTx) FindDrafts(ctx context.Context, tenantID, employeeUserID, planYearID string) ([]domain.Enrollment, error) {
	return t.s.findDraftsLocked(tenantID, employeeUserID, planYearID)
}

func (t *enrollmentTx) FindByID(ctx context.Context, tenantID, employeeUserID, enrollmentID string) (*domain.Enrollment, error) {
	return t.s.findEnrollmentLocked(tenantID, employeeUserID, enrollmentID)
}

func (t *enrollmentTx) HasOtherSubmitted(ctx context.Context, employeeUserID, planYearID, excludeEnrollmentID string) (bool, error) {
	return t.s.hasOtherSubmittedLocked(employeeUserID, planYearID, excludeEnrollmentID)
}

func (t *enrollmentTx) Insert(ctx context.Context, enrollment domain.Enrollment) error {
	return t.s.insertEnrollmentLocked(enrollment)
}

func (t *enrollmentTx) Update(ctx context.Context, enrollment domain.Enrollment) error {
	return t.s.updateEnrollmentLocked(enrollment)
}

func (t *enrollmentTx) Delete(ctx context.Context, enrollmentIDs []string) error {
	return t.s.deleteEnrollmentsLocked(enrollmentIDs)
}

func (s *Store) findDraftsLocked(tenantID, employeeUserID, planYearID string) ([]domain.Enrollment, error) {
	var out []domain.Enrollment
	for _, e := range s.enrollments {
		if e.TenantID == tenantID &&
			e.EmployeeUserID == employeeUserID &&
			e.PlanYearID == planYearID &&
			e.Status == domain.EnrollmentStatusDraft {
			out = append(out, cloneEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) findEnrollmentLocked(tenantID, employeeUserID, enrollmentID string) (*domain.Enrollment, error) {
	e, ok := s.enrollments[enrollmentID]
	if !ok || e.TenantID != tenantID || e.EmployeeUserID != employeeUserID {
		return nil, repository.ErrNotFound
	}
	clone := cloneEnrollment(e)
	return &clone, nil
}

func (s *Store) hasOtherSubmittedLocked(employeeUserID, planYearID, excludeEnrollmentID string) (bool, error) {
	for _, e := range s.enrollments {
		if e.ID == excludeEnrollmentID {
			continue
		}
		if e.EmployeeUserID == employeeUserID &&
			e.PlanYearID == planYearID &&
			e.Status == domain.EnrollmentStatusSubmitted {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) insertEnrollmentLocked(enrollment domain.Enrollment) error {
	if _, ok := s.enrollments[enrollment.ID]; ok {
		return repository.ErrConflict
	}
	s.enrollments[enrollment.ID] = cloneEnrollment(enrollment)
	return nil
}

func (s *Store) updateEnrollmentLocked(enrollment domain.Enrollment) error {
	if _, ok := s.enrollments[enrollment.ID]; !ok {
		return repository.ErrNotFound
	}
	s.enrollments[enrollment.ID] = cloneEnrollment(enrollment)
	return nil
}

func (s *Store) deleteEnrollmentsLocked(enrollmentIDs []string) error {
	for _, id := range enrollmentIDs {
		delete(s.enrollments, id)
	}
	return nil
}
