package anomaly

import (
	"time"

	"github.com/minutehq/usagewatch/internal/domain/usage"
)

// Type classifies a usage anomaly
type Type string

const (
	TypeSpike            Type = "spike"
	TypeRapidDepletion   Type = "rapid_depletion"
	TypeModeAbuse        Type = "mode_abuse"
	TypeConcurrentExcess Type = "concurrent_excess"
)

// IsValid checks if the anomaly type is valid
func (t Type) IsValid() bool {
	switch t {
	case TypeSpike, TypeRapidDepletion, TypeModeAbuse, TypeConcurrentExcess:
		return true
	default:
		return false
	}
}

// Severity is the ordinal significance of an anomaly
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal position of the severity (low < medium < high < critical)
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	return s.Rank() >= 0
}

// Severities returns all severities in ascending rank order
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Details carries the arithmetic behind an anomaly so consumers can render
// explanations without re-deriving it
type Details struct {
	CurrentValue  float64 `json:"current_value"`
	ExpectedValue float64 `json:"expected_value"`
	DeviationPct  float64 `json:"deviation_pct"` // signed
	TimeWindow    string  `json:"time_window"`
	Description   string  `json:"description"`
}

// UsageAnomaly is a single detected deviation. Anomalies are produced fresh
// every detection cycle and never persisted directly; qualifying ones become
// alerts.
type UsageAnomaly struct {
	OrganizationID string     `json:"organization_id"`
	Type           Type       `json:"type"`
	Severity       Severity   `json:"severity"`
	Mode           usage.Mode `json:"mode,omitempty"` // empty for tenant-level anomalies
	Details        Details    `json:"details"`
	DetectedAt     time.Time  `json:"detected_at"`
}
