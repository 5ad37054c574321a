package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/infra/security"
	"github.com/benefitsdesk/enrollment-core/internal/infra/telemetry"
	"github.com/benefitsdesk/enrollment-core/internal/repository"
)

// EnrollmentService implements the enrollment draft/submit lifecycle on top
// of the persistence ports. Business rules live here once; both adapters are
// interchangeable behind the ports.
type EnrollmentService struct {
	users       port.UserStore
	profiles    port.ProfileStore
	dependents  port.DependentStore
	plans       port.PlanStore
	enrollments port.EnrollmentStore
	logger      *zap.Logger
	metrics     *telemetry.Metrics
	now         func() time.Time
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(
	users port.UserStore,
	profiles port.ProfileStore,
	dependents port.DependentStore,
	plans port.PlanStore,
	enrollments port.EnrollmentStore,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNopMetrics()
	}
	return &EnrollmentService{
		users:       users,
		profiles:    profiles,
		dependents:  dependents,
		plans:       plans,
		enrollments: enrollments,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// WithClock overrides the clock, primarily for tests.
func (s *EnrollmentService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ElectionInput is one benefit election in a draft request.
type ElectionInput struct {
	PlanType     domain.PlanType
	PlanID       string
	CoverageTier domain.CoverageTier
}

// CreateDraftInput carries a draft create/replace request.
type CreateDraftInput struct {
	TenantID       string
	EmployeeUserID string
	PlanYearID     string
	Elections      []ElectionInput
	DependentIDs   []string
}

// SubmitInput identifies the enrollment to submit.
type SubmitInput struct {
	TenantID       string
	EmployeeUserID string
	EnrollmentID   string
}

// CreateDraft validates a draft request and persists it. When a DRAFT already
// exists for (employee, plan year) its elections and dependents are replaced
// in place under the same id; any stray duplicate drafts are purged.
func (s *EnrollmentService) CreateDraft(ctx context.Context, input CreateDraftInput) (*domain.Enrollment, error) {
	if err := s.assertEmployeeInTenant(ctx, input.EmployeeUserID, input.TenantID); err != nil {
		return nil, err
	}

	if err := domain.AssertUniqueDependentIDs(input.DependentIDs); err != nil {
		return nil, Invalidf("%s", err.Error())
	}

	if _, err := s.plans.GetPlanYear(ctx, input.TenantID, input.PlanYearID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundf("plan year not found for tenant")
		}
		return nil, fmt.Errorf("lookup plan year: %w", err)
	}

	seenPlanTypes := make(map[domain.PlanType]struct{}, len(input.Elections))
	for _, election := range input.Elections {
		if _, ok := seenPlanTypes[election.PlanType]; ok {
			return nil, Invalidf("duplicate election plan type: %s", election.PlanType)
		}
		seenPlanTypes[election.PlanType] = struct{}{}
	}

	snapshots, err := s.buildElectionSnapshots(ctx, input.TenantID, input.PlanYearID, input.Elections)
	if err != nil {
		return nil, err
	}

	selected, err := s.dependents.ListByIDs(ctx, input.TenantID, input.EmployeeUserID, input.DependentIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup dependents: %w", err)
	}
	if len(selected) != len(input.DependentIDs) {
		return nil, RuleViolationf("one or more dependent ids do not belong to employee")
	}

	if err := validateCoverage(electionTiers(snapshots), selected); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var result domain.Enrollment

	err = s.enrollments.WithinTx(ctx, func(tx port.EnrollmentOps) error {
		drafts, err := tx.FindDrafts(ctx, input.TenantID, input.EmployeeUserID, input.PlanYearID)
		if err != nil {
			return fmt.Errorf("find existing drafts: %w", err)
		}

		if len(drafts) > 0 {
			draft := drafts[0]
			if len(drafts) > 1 {
				strayIDs := make([]string, 0, len(drafts)-1)
				for _, stray := range drafts[1:] {
					strayIDs = append(strayIDs, stray.ID)
				}
				if err := tx.Delete(ctx, strayIDs); err != nil {
					return fmt.Errorf("purge stray drafts: %w", err)
				}
				s.logger.Warn("purged stray duplicate drafts",
					zap.String("employee_user_id", input.EmployeeUserID),
					zap.String("plan_year_id", input.PlanYearID),
					zap.Int("count", len(strayIDs)),
				)
			}

			draft.Elections = snapshots
			draft.DependentIDs = append([]string(nil), input.DependentIDs...)
			draft.EffectiveDate = nil
			draft.SubmittedAt = nil
			draft.ConfirmationCode = nil
			draft.UpdatedAt = now

			if err := tx.Update(ctx, draft); err != nil {
				return fmt.Errorf("replace draft: %w", err)
			}
			result = draft
			return nil
		}

		enrollment := domain.Enrollment{
			ID:             uuid.NewString(),
			TenantID:       input.TenantID,
			EmployeeUserID: input.EmployeeUserID,
			PlanYearID:     input.PlanYearID,
			Status:         domain.EnrollmentStatusDraft,
			Elections:      snapshots,
			DependentIDs:   append([]string(nil), input.DependentIDs...),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Insert(ctx, enrollment); err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
		result = enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.EnrollmentDrafts.Inc()
	return &result, nil
}

// Submit transitions a draft to SUBMITTED. The already-submitted check and
// the status flip run in one transaction so concurrent submits for the same
// (employee, plan year) serialize.
func (s *EnrollmentService) Submit(ctx context.Context, input SubmitInput) (*domain.Enrollment, error) {
	if err := s.assertEmployeeInTenant(ctx, input.EmployeeUserID, input.TenantID); err != nil {
		return nil, err
	}

	// Unlocked pre-read for the plan year; the transaction re-reads the row
	// after the key's draft locks are held.
	candidate, err := s.enrollments.FindByID(ctx, input.TenantID, input.EmployeeUserID, input.EnrollmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundf("enrollment not found for employee in tenant")
		}
		return nil, fmt.Errorf("lookup enrollment: %w", err)
	}

	var result domain.Enrollment

	err = s.enrollments.WithinTx(ctx, func(tx port.EnrollmentOps) error {
		// Lock every draft for the (employee, plan year) in creation order.
		// Two submits racing on sibling drafts serialize here instead of
		// each locking only its own row.
		if _, err := tx.FindDrafts(ctx, input.TenantID, input.EmployeeUserID, candidate.PlanYearID); err != nil {
			return fmt.Errorf("lock drafts: %w", err)
		}

		enrollment, err := tx.FindByID(ctx, input.TenantID, input.EmployeeUserID, input.EnrollmentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NotFoundf("enrollment not found for employee in tenant")
			}
			return fmt.Errorf("lookup enrollment: %w", err)
		}

		if enrollment.IsSubmitted() {
			return Conflictf("enrollment already submitted")
		}

		otherSubmitted, err := tx.HasOtherSubmitted(ctx, enrollment.EmployeeUserID, enrollment.PlanYearID, enrollment.ID)
		if err != nil {
			return fmt.Errorf("check submitted enrollments: %w", err)
		}
		if otherSubmitted {
			return Conflictf("employee already has a submitted enrollment for this plan year")
		}

		profile, err := s.profiles.GetByUserID(ctx, input.EmployeeUserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return RuleViolationf("employee profile is required before enrollment submit")
			}
			return fmt.Errorf("lookup employee profile: %w", err)
		}
		if !profile.BenefitsEligible() {
			return RuleViolationf("employee is not benefits-eligible")
		}

		effectiveDate, err := domain.CalculateEffectiveDate(profile.HireDate, s.now())
		if err != nil {
			if errors.Is(err, domain.ErrFutureHireDate) {
				return RuleViolationf("hire date cannot be in the future")
			}
			return fmt.Errorf("calculate effective date: %w", err)
		}

		selected, err := s.dependents.ListByIDs(ctx, input.TenantID, input.EmployeeUserID, enrollment.DependentIDs)
		if err != nil {
			return fmt.Errorf("lookup dependents: %w", err)
		}
		if len(selected) != len(enrollment.DependentIDs) {
			return RuleViolationf("one or more enrollment dependents no longer exist")
		}

		if err := validateCoverage(electionTiers(enrollment.Elections), selected); err != nil {
			return err
		}
		if err := domain.ValidateChildAges(selected, effectiveDate); err != nil {
			return RuleViolationf("%s", err.Error())
		}

		refreshed := make([]domain.ElectionSnapshot, 0, len(enrollment.Elections))
		for _, election := range enrollment.Elections {
			premium, err := s.plans.GetPremium(ctx, election.PlanID, election.CoverageTier)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return RuleViolationf("cannot submit enrollment; missing premium for plan %s tier %s", election.PlanID, election.CoverageTier)
				}
				return fmt.Errorf("lookup premium: %w", err)
			}
			election.EmployeeMonthlyCost = premium.EmployeeMonthlyCost
			election.EmployerMonthlyCost = premium.EmployerMonthlyCost
			refreshed = append(refreshed, election)
		}

		code, err := security.GenerateConfirmationCode()
		if err != nil {
			return fmt.Errorf("generate confirmation code: %w", err)
		}

		now := s.now().UTC()
		enrollment.Status = domain.EnrollmentStatusSubmitted
		enrollment.EffectiveDate = &effectiveDate
		enrollment.SubmittedAt = &now
		enrollment.ConfirmationCode = &code
		enrollment.Elections = refreshed
		enrollment.UpdatedAt = now

		if err := tx.Update(ctx, *enrollment); err != nil {
			return fmt.Errorf("persist submitted enrollment: %w", err)
		}
		result = *enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.EnrollmentSubmitted.Inc()
	s.logger.Info("enrollment submitted",
		zap.String("enrollment_id", result.ID),
		zap.String("employee_user_id", result.EmployeeUserID),
	)
	return &result, nil
}

// UpsertProfileInput carries the HR attributes of one employee.
type UpsertProfileInput struct {
	TenantID         string
	EmployeeUserID   string
	EmployeeID       string
	FirstName        string
	LastName         string
	DateOfBirth      time.Time
	HireDate         time.Time
	SalaryAmount     float64
	BenefitClass     domain.BenefitClass
	EmploymentStatus domain.EmploymentStatus
}

// UpsertProfile creates or replaces the employee's profile. One profile
// exists per employee user; profiles are never deleted.
func (s *EnrollmentService) UpsertProfile(ctx context.Context, input UpsertProfileInput) (*domain.EmployeeProfile, error) {
	if err := s.assertEmployeeInTenant(ctx, input.EmployeeUserID, input.TenantID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	profile := domain.EmployeeProfile{
		UserID:           input.EmployeeUserID,
		TenantID:         input.TenantID,
		EmployeeID:       input.EmployeeID,
		FirstName:        input.FirstName,
		LastName:         input.LastName,
		DateOfBirth:      domain.DateOnly(input.DateOfBirth),
		HireDate:         domain.DateOnly(input.HireDate),
		SalaryAmount:     input.SalaryAmount,
		BenefitClass:     input.BenefitClass,
		EmploymentStatus: input.EmploymentStatus,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	stored, err := s.profiles.Upsert(ctx, profile)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, Conflictf("employee id already exists in tenant")
		}
		return nil, fmt.Errorf("upsert employee profile: %w", err)
	}
	return stored, nil
}

// AddDependentInput carries a new dependent for an employee.
type AddDependentInput struct {
	TenantID       string
	EmployeeUserID string
	Relationship   domain.DependentRelationship
	FirstName      string
	LastName       string
	DateOfBirth    time.Time
}

// AddDependent attaches a dependent to the employee. Dependents are immutable
// once referenced by a submitted enrollment; no update or delete exists.
func (s *EnrollmentService) AddDependent(ctx context.Context, input AddDependentInput) (*domain.Dependent, error) {
	if err := s.assertEmployeeInTenant(ctx, input.EmployeeUserID, input.TenantID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dependent := domain.Dependent{
		ID:             uuid.NewString(),
		TenantID:       input.TenantID,
		EmployeeUserID: input.EmployeeUserID,
		Relationship:   input.Relationship,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		DateOfBirth:    domain.DateOnly(input.DateOfBirth),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.dependents.Create(ctx, dependent); err != nil {
		return nil, fmt.Errorf("create dependent: %w", err)
	}
	return &dependent, nil
}

func (s *EnrollmentService) assertEmployeeInTenant(ctx context.Context, employeeUserID, tenantID string) error {
	user, err := s.users.GetByID(ctx, employeeUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFoundf("employee not found in tenant")
		}
		return fmt.Errorf("lookup employee: %w", err)
	}
	if user.Role != domain.RoleEmployee || user.TenantID == nil || *user.TenantID != tenantID {
		return NotFoundf("employee not found in tenant")
	}
	return nil
}

func (s *EnrollmentService) buildElectionSnapshots(ctx context.Context, tenantID, planYearID string, elections []ElectionInput) ([]domain.ElectionSnapshot, error) {
	snapshots := make([]domain.ElectionSnapshot, 0, len(elections))
	for _, election := range elections {
		plan, err := s.plans.GetPlan(ctx, tenantID, planYearID, election.PlanID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, NotFoundf("plan %s not found in tenant plan year", election.PlanID)
			}
			return nil, fmt.Errorf("lookup plan: %w", err)
		}
		if plan.Type != election.PlanType {
			return nil, Invalidf("election plan type %s does not match plan type %s", election.PlanType, plan.Type)
		}

		premium, err := s.plans.GetPremium(ctx, election.PlanID, election.CoverageTier)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, RuleViolationf("no premium configured for plan %s and tier %s", election.PlanID, election.CoverageTier)
			}
			return nil, fmt.Errorf("lookup premium: %w", err)
		}

		snapshots = append(snapshots, domain.ElectionSnapshot{
			PlanType:            election.PlanType,
			PlanID:              election.PlanID,
			CoverageTier:        election.CoverageTier,
			EmployeeMonthlyCost: premium.EmployeeMonthlyCost,
			EmployerMonthlyCost: premium.EmployerMonthlyCost,
		})
	}
	return snapshots, nil
}

func electionTiers(elections []domain.ElectionSnapshot) []domain.CoverageTier {
	tiers := make([]domain.CoverageTier, 0, len(elections))
	for _, election := range elections {
		tiers = append(tiers, election.CoverageTier)
	}
	return tiers
}

func validateCoverage(tiers []domain.CoverageTier, dependents []domain.Dependent) error {
	selections := make([]domain.DependentSelection, 0, len(dependents))
	for _, dep := range dependents {
		selections = append(selections, domain.DependentSelection{ID: dep.ID, Relationship: dep.Relationship})
	}

	if err := domain.ValidateCoverageSelection(tiers, selections); err != nil {
		if errors.Is(err, domain.ErrUnsupportedCoverageTier) {
			return Invalidf("%s", err.Error())
		}
		return RuleViolationf("%s", err.Error())
	}
	return nil
}
