package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"credential-control-plane/backend/internal/audit"
	"credential-control-plane/backend/internal/authkey/domain"
	authkeyrepo "credential-control-plane/backend/internal/authkey/repository"
	orgdomain "credential-control-plane/backend/internal/organization/domain"
	orgrepo "credential-control-plane/backend/internal/organization/repository"
	"credential-control-plane/backend/internal/security"
)

// Comparator matches a presented secret against a stored one-way hash.
// *security.Hasher satisfies it; tests substitute a counting comparator.
type Comparator interface {
	Compare(hash string, secret []byte) error
}

// Verification is the successful outcome of Verify: the matched key and the
// organization it belongs to.
type Verification struct {
	Key *domain.AuthKey
	Org *orgdomain.Org
}

// Verifier matches presented secrets against stored hashes and applies the
// onboarding gate chain.
//
// Matching is a linear scan: hashes are deliberately not indexable by value,
// so every outstanding key is a candidate until the comparator accepts one.
// Verification cost therefore grows with total key volume. That trade-off is
// the security model; changing it means changing the model.
type Verifier struct {
	keys    authkeyrepo.Repository
	orgs    orgrepo.Repository
	compare Comparator
	auditor audit.Recorder
	nowF    func() time.Time
}

// NewVerifier returns a Verifier. auditor may be nil to disable audit events.
func NewVerifier(keys authkeyrepo.Repository, orgs orgrepo.Repository, compare Comparator, auditor audit.Recorder) *Verifier {
	return &Verifier{
		keys:    keys,
		orgs:    orgs,
		compare: compare,
		auditor: auditor,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Verify matches the presented secret and runs the gate chain in fixed order:
// status, expiry, org KYC, org subscription. Each gate fails with its own
// sentinel error; a secret matching no hash at all fails with ErrKeyNotFound.
// Verify never mutates: committing the key is Commit's job.
func (s *Verifier) Verify(ctx context.Context, presentedSecret string) (*Verification, error) {
	key, err := s.matchSecret(ctx, presentedSecret)
	if err != nil {
		return nil, err
	}

	switch key.Status {
	case domain.StatusUnused:
	case domain.StatusUsed:
		return nil, ErrAlreadyUsed
	case domain.StatusRevoked:
		return nil, ErrRevoked
	default:
		return nil, fmt.Errorf("auth key %s has unknown status %q", key.ID, key.Status)
	}
	if key.Expired(s.nowF()) {
		return nil, fmt.Errorf("auth key expired at %s: %w", key.ExpiresAt.UTC().Format(time.RFC3339), ErrKeyExpired)
	}

	org, err := s.orgs.GetOrganizationByID(ctx, key.OrgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if org == nil {
		return nil, ErrOrgNotFound
	}
	if org.KYCStatus != orgdomain.KYCStatusApproved {
		return nil, fmt.Errorf("organization KYC status is %s (must be APPROVED): %w",
			strings.ToUpper(string(org.KYCStatus)), ErrOrgNotApproved)
	}
	if org.SubscriptionStatus != orgdomain.SubscriptionStatusActive {
		return nil, fmt.Errorf("organization subscription status is %s (must be ACTIVE): %w",
			strings.ToUpper(string(org.SubscriptionStatus)), ErrSubscriptionInactive)
	}

	return &Verification{Key: key, Org: org}, nil
}

// Commit performs the exactly-once unused→used transition for the key matching
// presentedSecret, assigning it to employeeID. Under concurrent commits of the
// same secret exactly one caller succeeds; the rest observe ErrAlreadyUsed.
func (s *Verifier) Commit(ctx context.Context, presentedSecret, employeeID string) (*domain.AuthKey, error) {
	if strings.TrimSpace(employeeID) == "" {
		return nil, ErrEmployeeIDRequired
	}
	v, err := s.Verify(ctx, presentedSecret)
	if err != nil {
		return nil, err
	}

	now := s.nowF()
	won, err := s.keys.MarkUsed(ctx, v.Key.ID, employeeID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !won {
		// A concurrent commit (or revocation) flipped the row between the
		// scan and the conditional update.
		return nil, ErrAlreadyUsed
	}

	committed := *v.Key
	committed.Status = domain.StatusUsed
	committed.AssignedEmployeeID = employeeID
	committed.UsedAt = &now
	if s.auditor != nil {
		s.auditor.Record(ctx, committed.OrgID, employeeID, audit.ActionKeyCommit, "auth_key", "")
	}
	return &committed, nil
}

// Reset is the support/demo override: it matches the secret regardless of
// status, forces the key back to unused, and clears the assignment. Resetting
// an already-unused key is a no-op that still clears any stale assignment.
func (s *Verifier) Reset(ctx context.Context, presentedSecret string) (*domain.AuthKey, error) {
	key, err := s.matchSecret(ctx, presentedSecret)
	if err != nil {
		return nil, err
	}
	if err := s.keys.Reset(ctx, key.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	reset := *key
	reset.Status = domain.StatusUnused
	reset.AssignedEmployeeID = ""
	reset.UsedAt = nil
	reset.RevokedAt = nil
	if s.auditor != nil {
		s.auditor.Record(ctx, reset.OrgID, "", audit.ActionKeyReset, "auth_key", "")
	}
	return &reset, nil
}

// Revoke marks the key revoked by ID. Idempotent: revoking a revoked key
// succeeds without moving revoked_at.
func (s *Verifier) Revoke(ctx context.Context, keyID string) error {
	key, err := s.keys.GetByID(ctx, keyID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if key == nil {
		return ErrKeyNotFound
	}
	if err := s.keys.Revoke(ctx, keyID, s.nowF()); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if s.auditor != nil {
		s.auditor.Record(ctx, key.OrgID, "", audit.ActionKeyRevoke, "auth_key", "")
	}
	return nil
}

// matchSecret normalizes the presented secret and scans every stored hash with
// the one-way comparator until one accepts. O(n) in outstanding keys.
func (s *Verifier) matchSecret(ctx context.Context, presentedSecret string) (*domain.AuthKey, error) {
	normalized, err := security.NormalizeSecret(presentedSecret)
	if err != nil {
		return nil, err
	}
	candidates, err := s.keys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	secret := []byte(normalized)
	for _, k := range candidates {
		if s.compare.Compare(k.KeyHash, secret) == nil {
			return k, nil
		}
	}
	return nil, ErrKeyNotFound
}
