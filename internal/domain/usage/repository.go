package usage

import (
	"context"
	"time"
)

// Repository defines the interface for usage history data access
type Repository interface {
	// GetHistoricalUsage retrieves per-day, per-mode aggregated minutes since a date
	GetHistoricalUsage(ctx context.Context, organizationID string, since time.Time) ([]DayModeUsage, error)

	// GetHourlyProfile retrieves mean minutes per hour-of-day since a date
	GetHourlyProfile(ctx context.Context, organizationID string, since time.Time) ([24]float64, error)

	// GetCurrentMonthUsage retrieves consumed minutes against limits for the current month
	GetCurrentMonthUsage(ctx context.Context, organizationID string) (map[Mode]MonthUsage, error)

	// GetRecentActivity retrieves sessions started within the window
	GetRecentActivity(ctx context.Context, organizationID string, window time.Duration) ([]Session, error)

	// GetLastHourUsage retrieves minutes consumed per mode in the last hour
	GetLastHourUsage(ctx context.Context, organizationID string) (map[Mode]float64, error)

	// CountActiveSessions counts sessions currently in progress
	CountActiveSessions(ctx context.Context, organizationID string) (int, error)
}
