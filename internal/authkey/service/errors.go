package service

import "errors"

// Sentinel errors for the issuance and verification paths. Every expected
// business outcome is a distinct, named error so callers can branch with
// errors.Is and surface a specific message; only ErrStorage is infrastructural.
var (
	// ErrInvalidCount is returned when Generate is asked for fewer than 1 key.
	ErrInvalidCount = errors.New("count must be at least 1")
	// ErrEmployeeIDRequired is returned when Commit is called without an employee ID.
	ErrEmployeeIDRequired = errors.New("employee id is required")
	// ErrOrgNotFound is returned when the key's organization does not exist.
	ErrOrgNotFound = errors.New("organization not found")
	// ErrKeyNotFound is returned when no stored hash matches the presented secret.
	ErrKeyNotFound = errors.New("no auth key matches the presented secret")
	// ErrAlreadyUsed is returned when the matched key has been consumed.
	ErrAlreadyUsed = errors.New("auth key status is USED (must be UNUSED)")
	// ErrRevoked is returned when the matched key was administratively revoked.
	ErrRevoked = errors.New("auth key status is REVOKED (must be UNUSED)")
	// ErrKeyExpired is returned when the matched key's expires_at has passed.
	ErrKeyExpired = errors.New("auth key has expired")
	// ErrOrgNotApproved is returned when the organization's KYC state gates onboarding.
	ErrOrgNotApproved = errors.New("organization KYC status must be APPROVED")
	// ErrSubscriptionInactive is returned when the organization's subscription gates onboarding.
	ErrSubscriptionInactive = errors.New("organization subscription must be ACTIVE")
	// ErrStorage wraps credential store I/O failures. Callers must treat it as
	// fatal and must not retry silently.
	ErrStorage = errors.New("credential storage failure")
)
