package notification

import (
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
)

// Channel represents a notification channel
type Channel string

const (
	ChannelEmail          Channel = "email"
	ChannelChatWebhook    Channel = "chat-webhook"
	ChannelGenericWebhook Channel = "generic-webhook"
)

// IsValid checks if the channel is valid
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelChatWebhook, ChannelGenericWebhook:
		return true
	default:
		return false
	}
}

// AllChannels returns every supported channel
func AllChannels() []Channel {
	return []Channel{ChannelEmail, ChannelChatWebhook, ChannelGenericWebhook}
}

// Cadence represents how alerts of a severity are dispatched
type Cadence string

const (
	CadenceImmediate Cadence = "immediate"
	CadenceBatched   Cadence = "batched"
	CadenceNone      Cadence = "none"
)

// IsValid checks if the cadence is valid
func (c Cadence) IsValid() bool {
	switch c {
	case CadenceImmediate, CadenceBatched, CadenceNone:
		return true
	default:
		return false
	}
}

// Policy maps one severity to its channel set and dispatch cadence. The
// table is data, persisted and editable at runtime, never hardcoded switch
// logic.
type Policy struct {
	Severity    anomaly.Severity `json:"severity"`
	Channels    []Channel        `json:"channels"`
	Cadence     Cadence          `json:"cadence"`
	BatchWindow time.Duration    `json:"batch_window"` // zero unless batched
	UpdatedAt   time.Time        `json:"updated_at"`
}

// DefaultPolicies returns the severity routing table seeded on first run:
// critical goes out immediately on every channel, high batches email and
// chat, medium batches email only, and low stays query-only.
func DefaultPolicies(highWindow, mediumWindow time.Duration) []*Policy {
	return []*Policy{
		{
			Severity: anomaly.SeverityCritical,
			Channels: []Channel{ChannelEmail, ChannelChatWebhook, ChannelGenericWebhook},
			Cadence:  CadenceImmediate,
		},
		{
			Severity:    anomaly.SeverityHigh,
			Channels:    []Channel{ChannelEmail, ChannelChatWebhook},
			Cadence:     CadenceBatched,
			BatchWindow: highWindow,
		},
		{
			Severity:    anomaly.SeverityMedium,
			Channels:    []Channel{ChannelEmail},
			Cadence:     CadenceBatched,
			BatchWindow: mediumWindow,
		},
		{
			Severity: anomaly.SeverityLow,
			Channels: nil,
			Cadence:  CadenceNone,
		},
	}
}

// Digest is the composed summary sent once per channel per organization at
// a batch window flush
type Digest struct {
	OrganizationID  string                   `json:"organization_id"`
	Window          time.Duration            `json:"window"`
	TotalAlerts     int                      `json:"total_alerts"`
	CountBySeverity map[anomaly.Severity]int `json:"count_by_severity"`
	TopTitles       []string                 `json:"top_titles"`
	FlushedAt       time.Time                `json:"flushed_at"`
}

// Message is the channel-neutral payload handed to senders. Exactly one of
// Alert or Digest is set.
type Message struct {
	OrganizationID string
	Subject        string
	Body           string
	Severity       anomaly.Severity
	Alert          *alert.Alert
	Digest         *Digest
}
