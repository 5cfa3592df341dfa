package domain

import "time"

// AuthKey is a one-time onboarding secret issued to an organization. Only the
// bcrypt hash of the secret is stored; the plaintext exists exactly once, in
// the generate response, and is not retrievable afterwards by any code path.
type AuthKey struct {
	ID                 string
	OrgID              string
	KeyHash            string
	Status             Status
	AssignedEmployeeID string
	Metadata           string
	GeneratedAt        time.Time
	UsedAt             *time.Time
	RevokedAt          *time.Time
	ExpiresAt          *time.Time
}

// Status is the stored lifecycle state of an AuthKey. Expiry is deliberately
// not a Status: it is computed live from ExpiresAt at verification time, so
// support tooling always sees exactly unused/used/revoked.
type Status string

const (
	StatusUnused  Status = "unused"
	StatusUsed    Status = "used"
	StatusRevoked Status = "revoked"
)

// Expired reports whether the key's optional expiry has passed as of now.
func (k *AuthKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}
