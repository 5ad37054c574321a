// Package memory is the reference in-memory adapter. Each map family is
// guarded by its own mutex so a WithinTx closure, which holds its family's
// lock for the whole closure, can still read the other families through
// their regular store views.
package memory

import (
	"sync"
	"time"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
)

// Store holds all in-memory state. The zero value is not usable; construct
// with NewStore.
//
// mu guards users, profiles, dependents, plan configuration, reset tokens,
// invites, and events. enrollMu guards enrollments and sessionMu guards
// sessions. Lock ordering: enrollMu or sessionMu may be held while taking
// mu, never the reverse.
type Store struct {
	mu        sync.Mutex
	enrollMu  sync.Mutex
	sessionMu sync.Mutex

	now func() time.Time

	users       map[string]domain.User
	profiles    map[string]domain.EmployeeProfile
	dependents  map[string]domain.Dependent
	planYears   map[string]domain.PlanYear
	plans       map[string]domain.Plan
	premiums    map[string]domain.PlanPremium
	enrollments map[string]domain.Enrollment
	sessions    map[string]domain.AuthSession
	resetTokens map[string]domain.PasswordResetToken
	invites     map[string]domain.InviteCode
	events      []domain.SecurityEvent
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		now:         time.Now,
		users:       make(map[string]domain.User),
		profiles:    make(map[string]domain.EmployeeProfile),
		dependents:  make(map[string]domain.Dependent),
		planYears:   make(map[string]domain.PlanYear),
		plans:       make(map[string]domain.Plan),
		premiums:    make(map[string]domain.PlanPremium),
		enrollments: make(map[string]domain.Enrollment),
		sessions:    make(map[string]domain.AuthSession),
		resetTokens: make(map[string]domain.PasswordResetToken),
		invites:     make(map[string]domain.InviteCode),
	}
}

// WithClock overrides the clock used for session expiry and revocation
// timestamps, primarily for tests.
func (s *Store) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// SeedPlanYear inserts plan-year configuration. Test setup only.
func (s *Store) SeedPlanYear(planYear domain.PlanYear) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planYears[planYear.ID] = planYear
}

// SeedPlan inserts plan configuration. Test setup only.
func (s *Store) SeedPlan(plan domain.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
}

// SeedPremium inserts premium configuration. Test setup only.
func (s *Store) SeedPremium(premium domain.PlanPremium) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.premiums[premiumKey(premium.PlanID, premium.CoverageTier)] = premium
}

// SeedInvite inserts an invite code. Test setup only.
func (s *Store) SeedInvite(invite domain.InviteCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[invite.ID] = invite
}

// Events returns a copy of the appended security events. Test inspection only.
func (s *Store) Events() []domain.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SecurityEvent(nil), s.events...)
}

func premiumKey(planID string, tier domain.CoverageTier) string {
	return planID + "|" + string(tier)
}

func cloneEnrollment(e domain.Enrollment) domain.Enrollment {
	e.Elections = append([]domain.ElectionSnapshot(nil), e.Elections...)
	e.DependentIDs = append([]string(nil), e.DependentIDs...)
	if e.EffectiveDate != nil {
		d := *e.EffectiveDate
		e.EffectiveDate = &d
	}
	if e.SubmittedAt != nil {
		t := *e.SubmittedAt
		e.SubmittedAt = &t
	}
	if e.ConfirmationCode != nil {
		c := *e.ConfirmationCode
		e.ConfirmationCode = &c
	}
	return e
}

func cloneEnrollmentMap(src map[string]domain.Enrollment) map[string]domain.Enrollment {
	out := make(map[string]domain.Enrollment, len(src))
	for id, e := range src {
		out[id] = cloneEnrollment(e)
	}
	return out
}

func cloneSessionMap(src map[string]domain.AuthSession) map[string]domain.AuthSession {
	out := make(map[string]domain.AuthSession, len(src))
	for id, sess := range src {
		out[id] = sess
	}
	return out
}

func cloneUserMap(src map[string]domain.User) map[string]domain.User {
	out := make(map[string]domain.User, len(src))
	for id, u := range src {
		out[id] = u
	}
	return out
}

func cloneInviteMap(src map[string]domain.InviteCode) map[string]domain.InviteCode {
	out := make(map[string]domain.InviteCode, len(src))
	for id, inv := range src {
		out[id] = inv
	}
	return out
}
