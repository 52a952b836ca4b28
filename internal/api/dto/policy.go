package dto

import (
	"time"

	"github.com/minutehq/usagewatch/internal/domain/notification"
)

// PolicyResponse represents one severity's routing row in API responses
type PolicyResponse struct {
	Severity    string    `json:"severity"`
	Channels    []string  `json:"channels"`
	Cadence     string    `json:"cadence"`
	BatchWindow string    `json:"batch_window,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewPolicyResponse maps a domain policy to its API representation
func NewPolicyResponse(p *notification.Policy) PolicyResponse {
	channels := make([]string, len(p.Channels))
	for i, ch := range p.Channels {
		channels[i] = string(ch)
	}
	resp := PolicyResponse{
		Severity:  string(p.Severity),
		Channels:  channels,
		Cadence:   string(p.Cadence),
		UpdatedAt: p.UpdatedAt,
	}
	if p.BatchWindow > 0 {
		resp.BatchWindow = p.BatchWindow.String()
	}
	return resp
}

// NewPolicyResponses maps a slice of domain policies
func NewPolicyResponses(policies []*notification.Policy) []PolicyResponse {
	out := make([]PolicyResponse, len(policies))
	for i, p := range policies {
		out[i] = NewPolicyResponse(p)
	}
	return out
}

// UpdatePolicyRequest represents a policy update request. BatchWindow is a
// Go duration string and is required when cadence is batched.
type UpdatePolicyRequest struct {
	Channels    []string `json:"channels" validate:"omitempty,dive,oneof=email chat-webhook generic-webhook"`
	Cadence     string   `json:"cadence" validate:"required,oneof=immediate batched none"`
	BatchWindow string   `json:"batch_window,omitempty"`
}
