package repository

import (
	"context"
	"database/sql"
	"errors"

	"credential-control-plane/backend/internal/organization/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrganizationByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error) {
	const q = `
		SELECT id, name, kyc_status, subscription_status, employee_limit, created_at
		FROM organizations WHERE id = $1`
	var o domain.Org
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&o.ID, &o.Name, &o.KYCStatus, &o.SubscriptionStatus, &o.EmployeeLimit, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// CreateOrganization persists the organization to the database. The organization must have ID set.
func (r *PostgresRepository) CreateOrganization(ctx context.Context, o *domain.Org) error {
	const q = `
		INSERT INTO organizations (id, name, kyc_status, subscription_status, employee_limit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, q,
		o.ID, o.Name, string(o.KYCStatus), string(o.SubscriptionStatus), o.EmployeeLimit, o.CreatedAt,
	)
	return err
}
