package domain

import (
	"errors"
	"testing"
	"time"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculateEffectiveDate(t *testing.T) {
	cases := []struct {
		name     string
		hireDate time.Time
		today    time.Time
		want     time.Time
	}{
		{
			name:     "hired in a previous month is effective today",
			hireDate: day(2025, time.November, 3),
			today:    day(2026, time.March, 14),
			want:     day(2026, time.March, 14),
		},
		{
			name:     "hired this month is effective first of next month",
			hireDate: day(2026, time.March, 2),
			today:    day(2026, time.March, 14),
			want:     day(2026, time.April, 1),
		},
		{
			name:     "hired today is effective first of next month",
			hireDate: day(2026, time.March, 14),
			today:    day(2026, time.March, 14),
			want:     day(2026, time.April, 1),
		},
		{
			name:     "december hire rolls into january",
			hireDate: day(2025, time.December, 20),
			today:    day(2025, time.December, 28),
			want:     day(2026, time.January, 1),
		},
		{
			name:     "same month of a previous year is effective today",
			hireDate: day(2025, time.March, 14),
			today:    day(2026, time.March, 14),
			want:     day(2026, time.March, 14),
		},
		{
			name:     "time-of-day on inputs is ignored",
			hireDate: time.Date(2026, time.February, 10, 23, 59, 0, 0, time.UTC),
			today:    time.Date(2026, time.March, 14, 8, 30, 0, 0, time.UTC),
			want:     day(2026, time.March, 14),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CalculateEffectiveDate(tc.hireDate, tc.today)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("CalculateEffectiveDate = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCalculateEffectiveDateFutureHire(t *testing.T) {
	_, err := CalculateEffectiveDate(day(2026, time.March, 15), day(2026, time.March, 14))
	if !errors.Is(err, ErrFutureHireDate) {
		t.Fatalf("expected ErrFutureHireDate, got %v", err)
	}
}
