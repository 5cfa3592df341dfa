package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"credential-control-plane/backend/internal/authkey/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an auth key repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const authKeyColumns = `id, org_id, key_hash, status, assigned_employee_id, metadata, generated_at, used_at, revoked_at, expires_at`

// CreateBatch inserts all keys inside one transaction so a failed batch leaves
// no orphaned siblings behind.
func (r *PostgresRepository) CreateBatch(ctx context.Context, keys []*domain.AuthKey) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO auth_keys (` + authKeyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, q,
			k.ID, k.OrgID, k.KeyHash, string(k.Status), nullString(k.AssignedEmployeeID),
			k.Metadata, k.GeneratedAt, k.UsedAt, k.RevokedAt, k.ExpiresAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID returns the key for id, or nil if not found. Errors are database
// failures only.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuthKey, error) {
	const q = `SELECT ` + authKeyColumns + ` FROM auth_keys WHERE id = $1`
	k, err := scanAuthKey(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return k, nil
}

// List returns every auth key, newest first. The verifier scans these with a
// one-way comparator; there is no indexed lookup by secret.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.AuthKey, error) {
	const q = `SELECT ` + authKeyColumns + ` FROM auth_keys ORDER BY generated_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuthKey
	for rows.Next() {
		k, err := scanAuthKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// MarkUsed is the compare-and-set half of commit: the WHERE clause guarantees
// at most one concurrent caller flips the row out of unused.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id, employeeID string, at time.Time) (bool, error) {
	const q = `
		UPDATE auth_keys
		SET status = 'used', assigned_employee_id = $2, used_at = $3
		WHERE id = $1 AND status = 'unused'`
	res, err := r.db.ExecContext(ctx, q, id, employeeID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Reset forces the key back to unused regardless of current status and clears
// the assignment fields. Support/demo path only.
func (r *PostgresRepository) Reset(ctx context.Context, id string) error {
	const q = `
		UPDATE auth_keys
		SET status = 'unused', assigned_employee_id = NULL, used_at = NULL, revoked_at = NULL
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// Revoke marks the key revoked. Already-revoked rows are left untouched so
// revoked_at records the first revocation.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE auth_keys
		SET status = 'revoked', revoked_at = $2
		WHERE id = $1 AND status <> 'revoked'`
	_, err := r.db.ExecContext(ctx, q, id, at)
	return err
}

// CountByOrg returns the number of keys issued for the org across all statuses.
func (r *PostgresRepository) CountByOrg(ctx context.Context, orgID string) (int64, error) {
	const q = `SELECT COUNT(*) FROM auth_keys WHERE org_id = $1`
	var n int64
	err := r.db.QueryRowContext(ctx, q, orgID).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthKey(row rowScanner) (*domain.AuthKey, error) {
	var (
		k        domain.AuthKey
		assigned sql.NullString
		usedAt   sql.NullTime
		revoked  sql.NullTime
		expires  sql.NullTime
	)
	if err := row.Scan(
		&k.ID, &k.OrgID, &k.KeyHash, &k.Status, &assigned,
		&k.Metadata, &k.GeneratedAt, &usedAt, &revoked, &expires,
	); err != nil {
		return nil, err
	}
	k.AssignedEmployeeID = assigned.String
	if usedAt.Valid {
		t := usedAt.Time
		k.UsedAt = &t
	}
	if revoked.Valid {
		t := revoked.Time
		k.RevokedAt = &t
	}
	if expires.Valid {
		t := expires.Time
		k.ExpiresAt = &t
	}
	return &k, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
