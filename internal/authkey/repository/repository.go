package repository

import (
	"context"
	"time"

	"credential-control-plane/backend/internal/authkey/domain"
)

// Repository defines persistence for auth keys. There is intentionally no
// lookup-by-secret: hashes are one-way, so matching is a scan over List by the
// verifier's comparator.
type Repository interface {
	// CreateBatch persists all keys in a single transaction. Either every key
	// in the batch commits or none do.
	CreateBatch(ctx context.Context, keys []*domain.AuthKey) error
	// GetByID returns the key for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.AuthKey, error)
	// List returns every auth key regardless of status, for candidate scans.
	List(ctx context.Context) ([]*domain.AuthKey, error)
	// MarkUsed performs the conditional unused→used transition, setting
	// assigned_employee_id and used_at. Returns false when the key was not in
	// unused state, i.e. a concurrent caller won the transition.
	MarkUsed(ctx context.Context, id, employeeID string, at time.Time) (bool, error)
	// Reset forces the key back to unused and clears assignment and used_at.
	Reset(ctx context.Context, id string) error
	// Revoke sets status revoked and revoked_at. Idempotent: re-revoking keeps
	// the original revoked_at.
	Revoke(ctx context.Context, id string, at time.Time) error
	// CountByOrg returns the number of keys issued for the org, any status.
	CountByOrg(ctx context.Context, orgID string) (int64, error)
}
