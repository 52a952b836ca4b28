package dto

import (
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
)

// AlertResponse represents an alert in API responses
type AlertResponse struct {
	ID                string                 `json:"id"`
	OrganizationID    string                 `json:"organization_id"`
	Type              string                 `json:"type"`
	Severity          string                 `json:"severity"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	Resolved          bool                   `json:"resolved"`
	ResolvedAt        *time.Time             `json:"resolved_at,omitempty"`
	ResolvedBy        string                 `json:"resolved_by,omitempty"`
	NotificationsSent []string               `json:"notifications_sent"`
}

// NewAlertResponse maps a domain alert to its API representation
func NewAlertResponse(a *alert.Alert) AlertResponse {
	return AlertResponse{
		ID:                a.ID,
		OrganizationID:    a.OrganizationID,
		Type:              string(a.Type),
		Severity:          string(a.Severity),
		Title:             a.Title,
		Description:       a.Description,
		Metadata:          a.Metadata,
		CreatedAt:         a.CreatedAt,
		Resolved:          a.Resolved,
		ResolvedAt:        a.ResolvedAt,
		ResolvedBy:        a.ResolvedBy,
		NotificationsSent: a.NotificationsSent,
	}
}

// NewAlertResponses maps a slice of domain alerts
func NewAlertResponses(alerts []*alert.Alert) []AlertResponse {
	out := make([]AlertResponse, len(alerts))
	for i, a := range alerts {
		out[i] = NewAlertResponse(a)
	}
	return out
}

// ResolveAlertRequest represents an alert resolution request
type ResolveAlertRequest struct {
	ResolvedBy string `json:"resolved_by,omitempty" validate:"omitempty,max=128"`
}

// AlertCountsResponse represents unresolved alert counts by severity
type AlertCountsResponse struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}
