package org

import "context"

// Repository defines the interface for organization directory access
type Repository interface {
	// GetByID retrieves an organization by ID
	GetByID(ctx context.Context, id string) (*Organization, error)

	// List retrieves all organizations eligible for detection
	List(ctx context.Context) ([]*Organization, error)

	// GetTier retrieves the subscription tier for an organization
	GetTier(ctx context.Context, id string) (Tier, error)
}
