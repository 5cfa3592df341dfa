package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"credential-control-plane/backend/internal/audit"
	"credential-control-plane/backend/internal/authkey/domain"
	authkeyrepo "credential-control-plane/backend/internal/authkey/repository"
	orgrepo "credential-control-plane/backend/internal/organization/repository"
	"credential-control-plane/backend/internal/security"
)

// Issuer mints batches of one-time onboarding secrets for an organization.
// Capacity against the org's employee limit is an external gate: the caller is
// expected to check it, and the issuer deliberately does not.
type Issuer struct {
	keys    authkeyrepo.Repository
	orgs    orgrepo.Repository
	hasher  *security.Hasher
	auditor audit.Recorder
	nowF    func() time.Time
}

// NewIssuer returns an Issuer. auditor may be nil to disable audit events.
func NewIssuer(keys authkeyrepo.Repository, orgs orgrepo.Repository, hasher *security.Hasher, auditor audit.Recorder) *Issuer {
	return &Issuer{
		keys:    keys,
		orgs:    orgs,
		hasher:  hasher,
		auditor: auditor,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Generate mints count secrets for orgID, persists one unused AuthKey per
// secret (hash only) in a single batch, and returns the plaintexts. This is
// the only time the plaintexts exist: they are not retrievable afterwards.
// ttl <= 0 means the keys never expire; label is an opaque operator note
// stored on each key. A storage failure aborts the whole batch.
func (s *Issuer) Generate(ctx context.Context, orgID string, count int, ttl time.Duration, label string) ([]string, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	org, err := s.orgs.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if org == nil {
		return nil, ErrOrgNotFound
	}

	now := s.nowF()
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	plaintexts := make([]string, 0, count)
	records := make([]*domain.AuthKey, 0, count)
	for i := 0; i < count; i++ {
		secret, err := security.GenerateSecret()
		if err != nil {
			return nil, err
		}
		normalized, err := security.NormalizeSecret(secret)
		if err != nil {
			return nil, err
		}
		// The hash covers the normalized form so dash/case variants of the
		// same secret still match at verification time.
		hash, err := s.hasher.Hash([]byte(normalized))
		if err != nil {
			return nil, err
		}
		plaintexts = append(plaintexts, secret)
		records = append(records, &domain.AuthKey{
			ID:          uuid.New().String(),
			OrgID:       orgID,
			KeyHash:     hash,
			Status:      domain.StatusUnused,
			Metadata:    label,
			GeneratedAt: now,
			ExpiresAt:   expiresAt,
		})
	}

	if err := s.keys.CreateBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if s.auditor != nil {
		s.auditor.Record(ctx, orgID, "", audit.ActionKeyGenerate, "auth_key",
			fmt.Sprintf(`{"count":%d}`, count))
	}
	return plaintexts, nil
}
