package domain

import "errors"

var (
	// ErrDuplicateIdentity is returned when a handle is already registered.
	ErrDuplicateIdentity = errors.New("handle already registered")
	// ErrIncompleteProfile is returned when an operation needs onboarding data that does not exist yet.
	ErrIncompleteProfile = errors.New("profile incomplete: date of birth required")
	// ErrScoringUnavailable is returned when the scoring authority fails or times out.
	ErrScoringUnavailable = errors.New("scoring authority unavailable")
	// ErrPersistence is returned when the ledger transaction cannot be committed.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidSubmission is returned for malformed test results.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrInvalidProfile is returned for malformed onboarding or profile edits.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrInvalidCredentials is returned when a handle/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a user lookup has no result.
	ErrUserNotFound = errors.New("user not found")
)
