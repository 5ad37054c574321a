package domain

import (
	"errors"
	"fmt"
	"time"
)

// DependentSelection is the minimal dependent view coverage validation needs.
type DependentSelection struct {
	ID           string
	Relationship DependentRelationship
}

var (
	// ErrUnsupportedCoverageTier indicates a tier value outside the known set.
	ErrUnsupportedCoverageTier = errors.New("unsupported coverage tier")
	// ErrCoverageMismatch indicates the dependent roster does not satisfy the tier.
	ErrCoverageMismatch = errors.New("coverage selection does not match dependents")
	// ErrDuplicateDependentIDs indicates the same dependent appears twice in a request.
	ErrDuplicateDependentIDs = errors.New("duplicate dependent ids are not allowed in an enrollment")
)

// ValidateCoverageSelection checks every distinct coverage tier in the
// election set against the dependent roster. Each tier value is validated
// once even when it appears on multiple elections.
func ValidateCoverageSelection(tiers []CoverageTier, dependents []DependentSelection) error {
	var spouseCount, childCount int
	for _, dep := range dependents {
		switch dep.Relationship {
		case RelationshipSpouse:
			spouseCount++
		case RelationshipChild:
			childCount++
		}
	}

	seen := make(map[CoverageTier]struct{}, len(tiers))
	for _, tier := range tiers {
		if _, ok := seen[tier]; ok {
			continue
		}
		seen[tier] = struct{}{}

		switch tier {
		case CoverageTierEmployeeOnly:
			if spouseCount != 0 || childCount != 0 {
				return fmt.Errorf("%w: EMPLOYEE_ONLY coverage cannot include dependents", ErrCoverageMismatch)
			}
		case CoverageTierEmployeeSpouse:
			if spouseCount != 1 || childCount != 0 {
				return fmt.Errorf("%w: EMPLOYEE_SPOUSE coverage requires exactly one spouse and no children", ErrCoverageMismatch)
			}
		case CoverageTierEmployeeChildren:
			if spouseCount != 0 || childCount < 1 {
				return fmt.Errorf("%w: EMPLOYEE_CHILDREN coverage requires one or more children and no spouse", ErrCoverageMismatch)
			}
		case CoverageTierFamily:
			if spouseCount != 1 || childCount < 1 {
				return fmt.Errorf("%w: FAMILY coverage requires exactly one spouse and one or more children", ErrCoverageMismatch)
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedCoverageTier, tier)
		}
	}

	return nil
}

// AssertUniqueDependentIDs rejects requests that reference a dependent twice.
func AssertUniqueDependentIDs(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return ErrDuplicateDependentIDs
		}
		seen[id] = struct{}{}
	}
	return nil
}

// MaxChildDependentAge is the age at which a child dependent ages out of
// coverage, measured at the enrollment's effective date.
const MaxChildDependentAge = 26

// AgeOnDate returns age in whole years at the given date, decrementing by one
// when the (month, day) of the date precedes the birth (month, day).
func AgeOnDate(dob, on time.Time) int {
	age := on.Year() - dob.Year()
	monthDiff := int(on.Month()) - int(dob.Month())
	dayDiff := on.Day() - dob.Day()
	if monthDiff < 0 || (monthDiff == 0 && dayDiff < 0) {
		age--
	}
	return age
}

// ValidateChildAges fails when any CHILD dependent has aged out at the
// effective date. Invoked only at submit time.
func ValidateChildAges(dependents []Dependent, effectiveDate time.Time) error {
	for _, dep := range dependents {
		if dep.Relationship != RelationshipChild {
			continue
		}
		age := AgeOnDate(dep.DateOfBirth, effectiveDate)
		if age >= MaxChildDependentAge {
			return fmt.Errorf("%w: dependent %s is age %d; child dependents must be under %d",
				ErrCoverageMismatch, dep.ID, age, MaxChildDependentAge)
		}
	}
	return nil
}
