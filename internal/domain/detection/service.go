package detection

import (
	"context"

	"github.com/minutehq/usagewatch/internal/domain/alert"
)

// Service runs the detection-and-alerting pipeline
type Service interface {
	// RunDetectionCycle runs detection and alerting for the given tenants,
	// or for all eligible tenants when none are given, and returns the
	// newly created alerts. A failing tenant is logged and skipped; the
	// cycle always continues with the remaining tenants.
	RunDetectionCycle(ctx context.Context, organizationIDs []string) ([]*alert.Alert, error)
}
