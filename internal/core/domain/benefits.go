package domain

import "time"

// Role enumerates the platform user roles.
type Role string

const (
	RoleFullAdmin    Role = "FULL_ADMIN"
	RoleCompanyAdmin Role = "COMPANY_ADMIN"
	RoleEmployee     Role = "EMPLOYEE"
)

// BenefitClass classifies an employee's benefits eligibility.
type BenefitClass string

const (
	BenefitClassFullTimeEligible BenefitClass = "FULL_TIME_ELIGIBLE"
	BenefitClassIneligible       BenefitClass = "INELIGIBLE"
)

// EmploymentStatus tracks whether an employee is still on payroll.
type EmploymentStatus string

const (
	EmploymentStatusActive EmploymentStatus = "ACTIVE"
	EmploymentStatusTermed EmploymentStatus = "TERMED"
)

// PlanType identifies the benefit line a plan covers.
type PlanType string

const (
	PlanTypeMedical PlanType = "MEDICAL"
	PlanTypeDental  PlanType = "DENTAL"
	PlanTypeVision  PlanType = "VISION"
)

// CoverageTier is the dependent-inclusion level for a benefit election.
type CoverageTier string

const (
	CoverageTierEmployeeOnly     CoverageTier = "EMPLOYEE_ONLY"
	CoverageTierEmployeeSpouse   CoverageTier = "EMPLOYEE_SPOUSE"
	CoverageTierEmployeeChildren CoverageTier = "EMPLOYEE_CHILDREN"
	CoverageTierFamily           CoverageTier = "FAMILY"
)

// EnrollmentStatus is the lifecycle state of an enrollment. SUBMITTED is terminal.
type EnrollmentStatus string

const (
	EnrollmentStatusDraft     EnrollmentStatus = "DRAFT"
	EnrollmentStatusSubmitted EnrollmentStatus = "SUBMITTED"
)

// DependentRelationship links a dependent to the employee.
type DependentRelationship string

const (
	RelationshipSpouse DependentRelationship = "SPOUSE"
	RelationshipChild  DependentRelationship = "CHILD"
)

// InviteTargetRole restricts which role an invite code may create.
type InviteTargetRole string

const (
	InviteTargetCompanyAdmin InviteTargetRole = "COMPANY_ADMIN"
	InviteTargetEmployee     InviteTargetRole = "EMPLOYEE"
)

// Tenant is an isolated employer scope. All benefits data is partitioned by tenant.
type Tenant struct {
	ID        string
	CompanyID string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User mirrors the persisted representation in the users table.
type User struct {
	ID           string
	TenantID     *string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EmployeeProfile holds the HR attributes enrollment eligibility depends on.
// Exactly zero or one profile exists per employee user.
type EmployeeProfile struct {
	UserID           string
	TenantID         string
	EmployeeID       string
	FirstName        string
	LastName         string
	DateOfBirth      time.Time
	HireDate         time.Time
	SalaryAmount     float64
	BenefitClass     BenefitClass
	EmploymentStatus EmploymentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BenefitsEligible reports whether the profile permits enrollment submission.
func (p EmployeeProfile) BenefitsEligible() bool {
	return p.BenefitClass == BenefitClassFullTimeEligible && p.EmploymentStatus == EmploymentStatusActive
}

// Dependent belongs to exactly one employee user within a tenant.
type Dependent struct {
	ID             string
	TenantID       string
	EmployeeUserID string
	Relationship   DependentRelationship
	FirstName      string
	LastName       string
	DateOfBirth    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlanYear defines one benefits cycle for a tenant.
type PlanYear struct {
	ID              string
	TenantID        string
	Name            string
	StartDate       time.Time
	EndDate         time.Time
	CreatedByUserID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Plan is a benefit plan offered within a plan year.
type Plan struct {
	ID         string
	TenantID   string
	PlanYearID string
	Type       PlanType
	Carrier    string
	PlanName   string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlanPremium is the monthly cost split for one (plan, coverage tier) pair.
// At most one premium row exists per pair.
type PlanPremium struct {
	ID                  string
	PlanID              string
	CoverageTier        CoverageTier
	EmployeeMonthlyCost float64
	EmployerMonthlyCost float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ElectionSnapshot is a point-in-time copy of plan premium costs attached to
// an enrollment. It is decoupled from later premium changes.
type ElectionSnapshot struct {
	PlanType            PlanType
	PlanID              string
	CoverageTier        CoverageTier
	EmployeeMonthlyCost float64
	EmployerMonthlyCost float64
}

// Enrollment is the central aggregate: one employee's elections for a plan year.
type Enrollment struct {
	ID               string
	TenantID         string
	EmployeeUserID   string
	PlanYearID       string
	Status           EnrollmentStatus
	EffectiveDate    *time.Time
	SubmittedAt      *time.Time
	ConfirmationCode *string
	Elections        []ElectionSnapshot
	DependentIDs     []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsSubmitted reports whether the enrollment reached its terminal state.
func (e Enrollment) IsSubmitted() bool {
	return e.Status == EnrollmentStatusSubmitted
}

// InviteCode gates signup into a tenant. Consumption must be atomic so the
// code cannot be used more than MaxUses times under concurrent signups.
type InviteCode struct {
	ID              string
	TenantID        string
	Code            string
	TargetRole      InviteTargetRole
	CreatedByUserID string
	ExpiresAt       *time.Time
	MaxUses         *int
	UsesCount       int
	IsActive        bool
	CreatedAt       time.Time
}

// Usable reports whether the code may still be consumed at the given moment.
func (c InviteCode) Usable(at time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(at) {
		return false
	}
	if c.MaxUses != nil && c.UsesCount >= *c.MaxUses {
		return false
	}
	return true
}
