package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups the concrete PostgreSQL repository implementations.
type Repositories struct {
	Users          *UserRepository
	Profiles       *ProfileRepository
	Dependents     *DependentRepository
	Plans          *PlanRepository
	Enrollments    *EnrollmentRepository
	Sessions       *SessionRepository
	ResetTokens    *ResetTokenRepository
	Invites        *InviteRepository
	SecurityEvents *SecurityEventRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:          NewUserRepository(pool),
		Profiles:       NewProfileRepository(pool),
		Dependents:     NewDependentRepository(pool),
		Plans:          NewPlanRepository(pool),
		Enrollments:    NewEnrollmentRepository(pool),
		Sessions:       NewSessionRepository(pool),
		ResetTokens:    NewResetTokenRepository(pool),
		Invites:        NewInviteRepository(pool),
		SecurityEvents: NewSecurityEventRepository(pool),
	}
}
