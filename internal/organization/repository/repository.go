package repository

import (
	"context"

	"credential-control-plane/backend/internal/organization/domain"
)

// Repository defines persistence for organizations. Reads dominate: the
// credential core only creates orgs from the seed path.
type Repository interface {
	GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error)
	CreateOrganization(ctx context.Context, o *domain.Org) error
}
