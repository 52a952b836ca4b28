package alert

import (
	"context"

	"github.com/minutehq/usagewatch/internal/domain/anomaly"
)

// Service defines the interface for alert lifecycle management
type Service interface {
	// CreateAlert opens a new alert unless an unresolved one already exists
	// for the same (organization, type, title); in that case it returns
	// (nil, nil). Suppression is idempotent, not an error.
	CreateAlert(ctx context.Context, params CreateParams) (*Alert, error)

	// GetAlert retrieves an alert by ID
	GetAlert(ctx context.Context, id string) (*Alert, error)

	// GetActiveAlerts retrieves unresolved alerts newest-first, optionally
	// filtered by organization (empty means all)
	GetActiveAlerts(ctx context.Context, organizationID string) ([]*Alert, error)

	// ListAlerts retrieves alerts with filters and pagination
	ListAlerts(ctx context.Context, filter Filter, limit, offset int) ([]*Alert, int64, error)

	// ResolveAlert marks an alert resolved; calling it on an already
	// resolved alert is a no-op
	ResolveAlert(ctx context.Context, id string, resolvedBy string) error

	// MarkNotified appends channel names to the alert's delivery record
	MarkNotified(ctx context.Context, id string, channels []string) error

	// CountActiveBySeverity counts unresolved alerts per severity
	CountActiveBySeverity(ctx context.Context) (map[anomaly.Severity]int, error)
}
