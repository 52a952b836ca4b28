package alert

import (
	"fmt"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/usage"
)

// Alert is a persisted, deduplicated record of a qualifying anomaly.
// At most one unresolved alert may exist per (OrganizationID, Type, Title);
// NotificationsSent only grows until resolution, and besides it only the
// resolution fields may change after creation.
type Alert struct {
	ID                string                 `json:"id"`
	OrganizationID    string                 `json:"organization_id"`
	Type              anomaly.Type           `json:"type"`
	Severity          anomaly.Severity       `json:"severity"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	Resolved          bool                   `json:"resolved"`
	ResolvedAt        *time.Time             `json:"resolved_at,omitempty"`
	ResolvedBy        string                 `json:"resolved_by,omitempty"`
	NotificationsSent []string               `json:"notifications_sent"`
}

// CreateParams contains the fields needed to open a new alert
type CreateParams struct {
	OrganizationID string
	Type           anomaly.Type
	Severity       anomaly.Severity
	Title          string
	Description    string
	Metadata       map[string]interface{}
}

// Filter contains alert filtering options
type Filter struct {
	OrganizationID string
	Type           anomaly.Type
	Severity       anomaly.Severity
	Resolved       *bool
}

// TitleFor derives the deduplication title for an anomaly. Repeated firings
// of the same condition produce the same title and collapse onto the same
// open alert.
func TitleFor(anomalyType anomaly.Type, mode usage.Mode) string {
	switch anomalyType {
	case anomaly.TypeSpike:
		return fmt.Sprintf("Usage spike: %s mode", mode)
	case anomaly.TypeRapidDepletion:
		return fmt.Sprintf("Rapid quota depletion: %s mode", mode)
	case anomaly.TypeModeAbuse:
		return "Suspicious precision mode usage"
	case anomaly.TypeConcurrentExcess:
		return "Concurrent session limit exceeded"
	default:
		return fmt.Sprintf("Usage anomaly: %s", anomalyType)
	}
}
