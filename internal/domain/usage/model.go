package usage

import "time"

// Mode is a metered transcription tier with its own usage limits
type Mode string

const (
	ModeFast      Mode = "fast"
	ModeBalanced  Mode = "balanced"
	ModePrecision Mode = "precision"
)

// Modes returns all modes in stable rank order
func Modes() []Mode {
	return []Mode{ModeFast, ModeBalanced, ModePrecision}
}

// Rank returns the stable ordering index of a mode
func (m Mode) Rank() int {
	switch m {
	case ModeFast:
		return 0
	case ModeBalanced:
		return 1
	case ModePrecision:
		return 2
	default:
		return 3
	}
}

// IsValid checks if the mode is valid
func (m Mode) IsValid() bool {
	switch m {
	case ModeFast, ModeBalanced, ModePrecision:
		return true
	default:
		return false
	}
}

// DayModeUsage is one day of aggregated transcription minutes for one mode
type DayModeUsage struct {
	Day     time.Time `json:"day"`
	Mode    Mode      `json:"mode"`
	Minutes float64   `json:"minutes"`
}

// MonthUsage is consumed minutes against the plan limit for one mode
type MonthUsage struct {
	Used  float64 `json:"used"`
	Limit float64 `json:"limit"`
}

// Session is a single transcription session
type Session struct {
	Mode            Mode      `json:"mode"`
	DurationSeconds int       `json:"duration_seconds"`
	StartedAt       time.Time `json:"started_at"`
}

// Snapshot is the current per-tenant usage view handed to the detectors.
// TakenAt anchors all time math (month progress, recency) so detection is
// reproducible for a given snapshot.
type Snapshot struct {
	OrganizationID     string
	TakenAt            time.Time
	LastHour           map[Mode]float64
	MonthToDate        map[Mode]MonthUsage
	RecentSessions     []Session
	ConcurrentSessions int
}
