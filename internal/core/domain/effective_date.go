package domain

import (
	"errors"
	"time"
)

// ErrFutureHireDate indicates the hire date is after today.
var ErrFutureHireDate = errors.New("hire date cannot be in the future")

// DateOnly truncates a timestamp to midnight UTC. All benefits date math is
// date-only.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CalculateEffectiveDate derives the benefits effective date from the hire
// date. Hires in the current calendar month become effective on the first of
// the next month; earlier hires are effective today.
func CalculateEffectiveDate(hireDate, today time.Time) (time.Time, error) {
	hire := DateOnly(hireDate)
	now := DateOnly(today)

	if hire.After(now) {
		return time.Time{}, ErrFutureHireDate
	}

	if hire.Year() == now.Year() && hire.Month() == now.Month() {
		return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC), nil
	}

	return now, nil
}
