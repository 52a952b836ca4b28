package baseline

import (
	"time"

	"github.com/minutehq/usagewatch/internal/domain/usage"
)

// DayUsage is one day of total transcription minutes across all modes
type DayUsage struct {
	Day     time.Time `json:"day"`
	Minutes float64   `json:"minutes"`
}

// UsagePattern is the rolling statistical baseline for one tenant.
// HourlyUsage holds mean minutes per hour-of-day, WeeklyAverage is in
// minutes per week and MonthlyTotal covers the trailing 30 days. Patterns
// are recomputed every detection cycle and never persisted as standalone
// entities. A zero WeeklyAverage means no history exists; detectors must
// treat that as insufficient data rather than divide by it.
type UsagePattern struct {
	OrganizationID string                 `json:"organization_id"`
	HourlyUsage    [24]float64            `json:"hourly_usage"`
	DailyUsage     []DayUsage             `json:"daily_usage"`
	WeeklyAverage  float64                `json:"weekly_average"`
	MonthlyTotal   float64                `json:"monthly_total"`
	ModeTotals     map[usage.Mode]float64 `json:"mode_totals"`
	ComputedAt     time.Time              `json:"computed_at"`
}
