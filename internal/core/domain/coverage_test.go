package domain

import (
	"errors"
	"testing"
	"time"
)

func spouse(id string) DependentSelection {
	return DependentSelection{ID: id, Relationship: RelationshipSpouse}
}

func child(id string) DependentSelection {
	return DependentSelection{ID: id, Relationship: RelationshipChild}
}

func TestValidateCoverageSelection(t *testing.T) {
	cases := []struct {
		name       string
		tiers      []CoverageTier
		dependents []DependentSelection
		wantErr    error
	}{
		{
			name:  "employee only without dependents",
			tiers: []CoverageTier{CoverageTierEmployeeOnly},
		},
		{
			name:       "employee only rejects spouse",
			tiers:      []CoverageTier{CoverageTierEmployeeOnly},
			dependents: []DependentSelection{spouse("s1")},
			wantErr:    ErrCoverageMismatch,
		},
		{
			name:       "employee only rejects child",
			tiers:      []CoverageTier{CoverageTierEmployeeOnly},
			dependents: []DependentSelection{child("c1")},
			wantErr:    ErrCoverageMismatch,
		},
		{
			name:       "employee spouse requires exactly one spouse",
			tiers:      []CoverageTier{CoverageTierEmployeeSpouse},
			dependents: []DependentSelection{spouse("s1")},
		},
		{
			name:    "employee spouse rejects missing spouse",
			tiers:   []CoverageTier{CoverageTierEmployeeSpouse},
			wantErr: ErrCoverageMismatch,
		},
		{
			name:       "employee spouse rejects two spouses",
			tiers:      []CoverageTier{CoverageTierEmployeeSpouse},
			dependents: []DependentSelection{spouse("s1"), spouse("s2")},
			wantErr:    ErrCoverageMismatch,
		},
		{
			name:       "employee spouse rejects children",
			tiers:      []CoverageTier{CoverageTierEmployeeSpouse},
			dependents: []DependentSelection{spouse("s1"), child("c1")},
			wantErr:    ErrCoverageMismatch,
		},
		{
			name:       "employee children accepts one child",
			tiers:      []CoverageTier{CoverageTierEmployeeChildren},
			dependents: []DependentSelection{child("c1")},
		},
		{
			name:       "employee children accepts several children",
			tiers:      []CoverageTier{CoverageTierEmployeeChildren},
			dependents: []DependentSelection{child("c1"), child("c2"), child("c3")},
		},
		{
			name:    "employee children rejects empty roster",
			tiers:   []CoverageTier{CoverageTierEmployeeChildren},
			wantErr: ErrCoverageMismatch,
		},
		{
			name:       "employee children rejects spouse",
			tiers:      []CoverageTier{CoverageTierEmployeeChildren},
			dependents: []DependentSelection{spouse("s1"), child("c1")},
			wantErr:    ErrCoverageMismatch,
		},
		{
			name:       "family requires spouse and child",
			tiers:      []CoverageTier{CoverageTierFamily},
			dependents: []DependentSelection{spouse("s1"), child("c1")},
		},
		{
			name:       "family rejects missing spouse",
			tiers:      []CoverageTier{CoverageTierFamily},
			dependents: []DependentSelection{child("c1")},
			wantErr:    ErrCoverageMismatch,
		},
		{
			name:       "family rejects missing children",
			tiers:      []CoverageTier{CoverageTierFamily},
			dependents: []DependentSelection{spouse("s1")},
			wantErr:    ErrCoverageMismatch,
		},
		{
			name:       "repeated tier validated once",
			tiers:      []CoverageTier{CoverageTierFamily, CoverageTierFamily, CoverageTierFamily},
			dependents: []DependentSelection{spouse("s1"), child("c1")},
		},
		{
			name:       "mixed tiers must each hold",
			tiers:      []CoverageTier{CoverageTierEmployeeOnly, CoverageTierFamily},
			dependents: []DependentSelection{spouse("s1"), child("c1")},
			wantErr:    ErrCoverageMismatch,
		},
		{
			name:    "unknown tier",
			tiers:   []CoverageTier{CoverageTier("EMPLOYEE_PETS")},
			wantErr: ErrUnsupportedCoverageTier,
		},
		{
			name: "no elections is vacuously valid",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCoverageSelection(tc.tiers, tc.dependents)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAssertUniqueDependentIDs(t *testing.T) {
	if err := AssertUniqueDependentIDs([]string{"a", "b", "c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := AssertUniqueDependentIDs(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := AssertUniqueDependentIDs([]string{"a", "b", "a"}); !errors.Is(err, ErrDuplicateDependentIDs) {
		t.Fatalf("expected ErrDuplicateDependentIDs, got %v", err)
	}
}

func TestAgeOnDate(t *testing.T) {
	dob := time.Date(2000, time.June, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		on   time.Time
		want int
	}{
		{"day before birthday", time.Date(2026, time.June, 14, 0, 0, 0, 0, time.UTC), 25},
		{"on birthday", time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC), 26},
		{"day after birthday", time.Date(2026, time.June, 16, 0, 0, 0, 0, time.UTC), 26},
		{"earlier month", time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC), 25},
		{"later month", time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), 26},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AgeOnDate(dob, tc.on); got != tc.want {
				t.Fatalf("AgeOnDate = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestValidateChildAges(t *testing.T) {
	effective := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	under26 := Dependent{
		ID:           "c1",
		Relationship: RelationshipChild,
		DateOfBirth:  time.Date(2000, time.March, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := ValidateChildAges([]Dependent{under26}, effective); err != nil {
		t.Fatalf("unexpected error for 25-year-old child: %v", err)
	}

	exactly26 := Dependent{
		ID:           "c2",
		Relationship: RelationshipChild,
		DateOfBirth:  time.Date(2000, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := ValidateChildAges([]Dependent{exactly26}, effective); !errors.Is(err, ErrCoverageMismatch) {
		t.Fatalf("expected age-out error for child turning 26 on effective date, got %v", err)
	}

	// Spouse age is never checked.
	oldSpouse := Dependent{
		ID:           "s1",
		Relationship: RelationshipSpouse,
		DateOfBirth:  time.Date(1960, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := ValidateChildAges([]Dependent{oldSpouse}, effective); err != nil {
		t.Fatalf("unexpected error for spouse: %v", err)
	}
}
