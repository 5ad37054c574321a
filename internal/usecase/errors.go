package usecase

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure for the boundary layer; the core never retries.
type Kind int

const (
	// KindNotFound: the referenced entity does not exist or is not visible in
	// the caller's scope.
	KindNotFound Kind = iota + 1
	// KindConflict: state already satisfies a uniqueness or terminality
	// invariant.
	KindConflict
	// KindValidationFailed: structurally invalid input.
	KindValidationFailed
	// KindBusinessRuleViolation: structurally valid but semantically invalid.
	KindBusinessRuleViolation
	// KindUnauthorized: missing, invalid, or expired credential.
	KindUnauthorized
	// KindForbidden: authenticated but not permitted.
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidationFailed:
		return "validation_failed"
	case KindBusinessRuleViolation:
		return "business_rule_violation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error is a categorized failure surfaced to the boundary layer.
type Error struct {
	Kind Kind
	// RetryAfterSeconds is set only for lockout failures.
	RetryAfterSeconds int
	msg               string
}

func (e *Error) Error() string { return e.msg }

// Is lets errors.Is match against a bare &Error{Kind: ...} target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.msg == "" && t.Kind == e.Kind || t.msg == e.msg && t.Kind == e.Kind
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a KindConflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, msg: fmt.Sprintf(format, args...)}
}

// Invalidf builds a KindValidationFailed error.
func Invalidf(format string, args ...any) *Error {
	return &Error{Kind: KindValidationFailed, msg: fmt.Sprintf(format, args...)}
}

// RuleViolationf builds a KindBusinessRuleViolation error.
func RuleViolationf(format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRuleViolation, msg: fmt.Sprintf(format, args...)}
}

// Unauthorizedf builds a KindUnauthorized error.
func Unauthorizedf(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, msg: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds a KindForbidden error.
func Forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the category from an error, or zero when uncategorized.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
