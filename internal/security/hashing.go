package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies onboarding secrets using bcrypt. Callers must not
// log or persist plaintext secrets; only the hash is ever stored.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for onboarding secrets, which are verified rarely.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a salted bcrypt hash of secret. The hash is one-way: there is
// no code path that recovers the plaintext from it.
func (h *Hasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies secret against the stored hash. Returns nil if they match;
// returns an error (including bcrypt.ErrMismatchedHashAndPassword) if they do
// not or on invalid hash.
func (h *Hasher) Compare(hash string, secret []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), secret)
}
