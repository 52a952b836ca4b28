package client

import "time"

// Alert represents a usage anomaly alert
type Alert struct {
	ID                string                 `json:"id"`
	OrganizationID    string                 `json:"organization_id"`
	Type              string                 `json:"type"`     // spike, rapid_depletion, mode_abuse, concurrent_excess
	Severity          string                 `json:"severity"` // low, medium, high, critical
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	Resolved          bool                   `json:"resolved"`
	ResolvedAt        *time.Time             `json:"resolved_at,omitempty"`
	ResolvedBy        string                 `json:"resolved_by,omitempty"`
	NotificationsSent []string               `json:"notifications_sent"`
}

// AlertPage is one page of an alert listing
type AlertPage struct {
	Items  []Alert `json:"items"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// AlertCounts holds unresolved alert counts by severity
type AlertCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Policy represents one severity's notification routing row
type Policy struct {
	Severity    string    `json:"severity"`
	Channels    []string  `json:"channels"`
	Cadence     string    `json:"cadence"` // immediate, batched, none
	BatchWindow string    `json:"batch_window,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DetectionResult is the outcome of one detection cycle
type DetectionResult struct {
	AlertsCreated int     `json:"alerts_created"`
	Alerts        []Alert `json:"alerts"`
}

// HealthStatus is the liveness / readiness probe response
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
