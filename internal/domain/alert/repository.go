package alert

import (
	"context"
	"errors"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/anomaly"
)

// ErrDuplicateOpenAlert is returned by Create when the storage uniqueness
// constraint rejects a second unresolved alert for the same dedup key.
var ErrDuplicateOpenAlert = errors.New("unresolved alert already exists for organization, type and title")

// Repository defines the interface for alert data access.
// The store must enforce uniqueness of (organization_id, type, title) among
// unresolved rows; the service-level existence check is an optimization, not
// the correctness mechanism.
type Repository interface {
	// Create persists a new alert. A concurrent duplicate surfaces as
	// ErrDuplicateOpenAlert from the storage constraint.
	Create(ctx context.Context, alert *Alert) error

	// GetByID retrieves an alert by ID
	GetByID(ctx context.Context, id string) (*Alert, error)

	// FindOpen retrieves the unresolved alert matching the dedup key, or
	// nil when none exists
	FindOpen(ctx context.Context, organizationID string, alertType anomaly.Type, title string) (*Alert, error)

	// ListActive retrieves unresolved alerts newest-first, optionally
	// filtered by organization
	ListActive(ctx context.Context, organizationID string) ([]*Alert, error)

	// List retrieves alerts with filters and pagination, newest-first
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Alert, int64, error)

	// Resolve marks an alert resolved
	Resolve(ctx context.Context, id string, resolvedBy string, resolvedAt time.Time) error

	// AppendNotificationsSent appends channel names to the alert's
	// delivery record, skipping ones already present
	AppendNotificationsSent(ctx context.Context, id string, channels []string) error

	// CountActiveBySeverity counts unresolved alerts per severity
	CountActiveBySeverity(ctx context.Context) (map[anomaly.Severity]int, error)
}
