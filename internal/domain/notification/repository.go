package notification

import (
	"context"

	"github.com/minutehq/usagewatch/internal/domain/anomaly"
)

// Repository defines the interface for the persisted policy table
type Repository interface {
	// GetPolicies retrieves all policies in ascending severity order
	GetPolicies(ctx context.Context) ([]*Policy, error)

	// GetPolicy retrieves the policy for one severity
	GetPolicy(ctx context.Context, severity anomaly.Severity) (*Policy, error)

	// UpsertPolicy creates or replaces the policy for a severity
	UpsertPolicy(ctx context.Context, policy *Policy) error
}
