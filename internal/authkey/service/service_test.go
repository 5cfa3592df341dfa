package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"credential-control-plane/backend/internal/authkey/domain"
	orgdomain "credential-control-plane/backend/internal/organization/domain"
	"credential-control-plane/backend/internal/security"
)

// memKeyRepo is an in-memory authkey repository for tests. All mutations are
// copy-on-write so concurrent readers never observe a torn record.
type memKeyRepo struct {
	mu         sync.Mutex
	m          map[string]*domain.AuthKey
	failCreate bool
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{m: make(map[string]*domain.AuthKey)}
}

func (r *memKeyRepo) CreateBatch(ctx context.Context, keys []*domain.AuthKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.New("simulated storage failure")
	}
	for _, k := range keys {
		k2 := *k
		r.m[k.ID] = &k2
	}
	return nil
}

func (r *memKeyRepo) GetByID(ctx context.Context, id string) (*domain.AuthKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	k2 := *k
	return &k2, nil
}

func (r *memKeyRepo) List(ctx context.Context) ([]*domain.AuthKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.AuthKey, 0, len(r.m))
	for _, k := range r.m {
		k2 := *k
		out = append(out, &k2)
	}
	return out, nil
}

func (r *memKeyRepo) MarkUsed(ctx context.Context, id, employeeID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.m[id]
	if !ok || k.Status != domain.StatusUnused {
		return false, nil
	}
	k.Status = domain.StatusUsed
	k.AssignedEmployeeID = employeeID
	t := at
	k.UsedAt = &t
	return true, nil
}

func (r *memKeyRepo) Reset(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.m[id]; ok {
		k.Status = domain.StatusUnused
		k.AssignedEmployeeID = ""
		k.UsedAt = nil
		k.RevokedAt = nil
	}
	return nil
}

func (r *memKeyRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.m[id]; ok && k.Status != domain.StatusRevoked {
		k.Status = domain.StatusRevoked
		t := at
		k.RevokedAt = &t
	}
	return nil
}

func (r *memKeyRepo) CountByOrg(ctx context.Context, orgID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, k := range r.m {
		if k.OrgID == orgID {
			n++
		}
	}
	return n, nil
}

func (r *memKeyRepo) setStatus(id string, status domain.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[id].Status = status
}

func (r *memKeyRepo) setExpiry(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := at
	r.m[id].ExpiresAt = &t
}

func (r *memKeyRepo) onlyKey() *domain.AuthKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.m {
		k2 := *k
		return &k2
	}
	return nil
}

type memOrgRepo struct {
	mu sync.Mutex
	m  map[string]*orgdomain.Org
}

func newMemOrgRepo() *memOrgRepo {
	return &memOrgRepo{m: make(map[string]*orgdomain.Org)}
}

func (r *memOrgRepo) GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	o2 := *o
	return &o2, nil
}

func (r *memOrgRepo) CreateOrganization(ctx context.Context, o *orgdomain.Org) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o2 := *o
	r.m[o.ID] = &o2
	return nil
}

func (r *memOrgRepo) setKYC(id string, s orgdomain.KYCStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[id].KYCStatus = s
}

func (r *memOrgRepo) setSubscription(id string, s orgdomain.SubscriptionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[id].SubscriptionStatus = s
}

// countingHasher wraps the bcrypt hasher and counts Compare invocations, so
// tests can assert the linear-scan property.
type countingHasher struct {
	inner *security.Hasher
	mu    sync.Mutex
	calls int
}

func newCountingHasher() *countingHasher {
	return &countingHasher{inner: security.NewHasher(bcrypt.MinCost)}
}

func (c *countingHasher) Compare(hash string, secret []byte) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Compare(hash, secret)
}

func (c *countingHasher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// memAuditRecorder captures audit events for assertions.
type memAuditRecorder struct {
	mu      sync.Mutex
	actions []string
}

func (r *memAuditRecorder) Record(ctx context.Context, orgID, actorID, action, resource, metadata string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

func (r *memAuditRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.actions...)
}

// fixture wires an issuer and verifier over shared in-memory repos with one
// onboardable org.
type fixture struct {
	keys     *memKeyRepo
	orgs     *memOrgRepo
	hasher   *countingHasher
	auditor  *memAuditRecorder
	issuer   *Issuer
	verifier *Verifier
}

const testOrgID = "org-1"

func newFixture() *fixture {
	f := &fixture{
		keys:    newMemKeyRepo(),
		orgs:    newMemOrgRepo(),
		hasher:  newCountingHasher(),
		auditor: &memAuditRecorder{},
	}
	_ = f.orgs.CreateOrganization(context.Background(), &orgdomain.Org{
		ID:                 testOrgID,
		Name:               "Acme",
		KYCStatus:          orgdomain.KYCStatusApproved,
		SubscriptionStatus: orgdomain.SubscriptionStatusActive,
		EmployeeLimit:      50,
		CreatedAt:          time.Now().UTC(),
	})
	f.issuer = NewIssuer(f.keys, f.orgs, f.hasher.inner, f.auditor)
	f.verifier = NewVerifier(f.keys, f.orgs, f.hasher, f.auditor)
	return f
}
