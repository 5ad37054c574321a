package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// Users returns the user-store view of the Store.
func (s *Store) Users() port.UserStore { return &userStore{s} }

// Profiles returns the profile-store view of the Store.
func (s *Store) Profiles() port.ProfileStore { return &profileStore{s} }

// Dependents returns the dependent-store view of the Store.
func (s *Store) Dependents() port.DependentStore { return &dependentStore{s} }

// Plans returns the plan-store view of the Store.
func (s *Store) Plans() port.PlanStore { return &planStore{s} }

// SecurityEvents returns the append-only audit view of the Store.
func (s *Store) SecurityEvents() port.SecurityEventStore { return &securityEventStore{s} }

type userStore struct{ s *Store }

// Create stores a user; email uniqueness is case-insensitive.
func (r *userStore) Create(ctx context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.createUserLocked(user)
}

func (s *Store) createUserLocked(user domain.User) error {
	if _, ok := s.users[user.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (r *userStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.getUserByIDLocked(id)
}

func (s *Store) getUserByIDLocked(id string) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *userStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userStore) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = changedAt
	r.s.users[id] = user
	return nil
}

type profileStore struct{ s *Store }

// Upsert replaces the profile keyed by user id. A different user claiming the
// same employee id within the tenant conflicts.
func (r *profileStore) Upsert(ctx context.Context, profile domain.EmployeeProfile) (*domain.EmployeeProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.profiles {
		if existing.TenantID == profile.TenantID &&
			existing.EmployeeID == profile.EmployeeID &&
			existing.UserID != profile.UserID {
			return nil, repository.ErrConflict
		}
	}

	if existing, ok := r.s.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	}
	r.s.profiles[profile.UserID] = profile
	return &profile, nil
}

func (r *profileStore) GetByUserID(ctx context.Context, userID string) (*domain.EmployeeProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &profile, nil
}

type dependentStore struct{ s *Store }

func (r *dependentStore) Create(ctx context.Context, dependent domain.Dependent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.dependents[dependent.ID]; ok {
		return repository.ErrConflict
	}
	r.s.dependents[dependent.ID] = dependent
	return nil
}

func (r *dependentStore) ListByEmployee(ctx context.Context, tenantID, employeeUserID string) ([]domain.Dependent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Dependent
	for _, dep := range r.s.dependents {
		if dep.TenantID == tenantID && dep.EmployeeUserID == employeeUserID {
			out = append(out, dep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *dependentStore) ListByIDs(ctx context.Context, tenantID, employeeUserID string, ids []string) ([]domain.Dependent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]domain.Dependent, 0, len(ids))
	for _, id := range ids {
		dep, ok := r.s.dependents[id]
		if !ok || dep.TenantID != tenantID || dep.EmployeeUserID != employeeUserID {
			continue
		}
		out = append(out, dep)
	}
	return out, nil
}

type planStore struct{ s *Store }

func (r *planStore) GetPlanYear(ctx context.Context, tenantID, planYearID string) (*domain.PlanYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	planYear, ok := r.s.planYears[planYearID]
	if !ok || planYear.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return &planYear, nil
}

func (r *planStore) GetPlan(ctx context.Context, tenantID, planYearID, planID string) (*domain.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan, ok := r.s.plans[planID]
	if !ok || plan.TenantID != tenantID || plan.PlanYearID != planYearID {
		return nil, repository.ErrNotFound
	}
	return &plan, nil
}

func (r *planStore) GetPremium(ctx context.Context, planID string, tier domain.CoverageTier) (*domain.PlanPremium, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	premium, ok := r.s.premiums[premiumKey(planID, tier)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &premium, nil
}

type securityEventStore struct{ s *Store }

func (r *securityEventStore) Append(ctx context.Context, event domain.SecurityEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, event)
	return nil
}
