package baseline

import "context"

// Service defines the business logic for baseline computation
type Service interface {
	// ComputePattern derives the rolling usage baseline for a tenant over
	// the lookback window. A tenant with no history yields a zero pattern,
	// not an error.
	ComputePattern(ctx context.Context, organizationID string, lookbackDays int) (*UsagePattern, error)
}
