package client

import (
	"context"
	"fmt"
	"net/url"
)

// PolicyService handles notification policy API calls
type PolicyService struct {
	client *Client
}

// UpdatePolicyRequest represents a policy update. BatchWindow is a Go
// duration string like "5m" and is required when cadence is batched.
type UpdatePolicyRequest struct {
	Channels    []string `json:"channels"`
	Cadence     string   `json:"cadence"`
	BatchWindow string   `json:"batch_window,omitempty"`
}

// List retrieves the severity routing table in ascending severity order
func (s *PolicyService) List(ctx context.Context) ([]Policy, error) {
	var policies []Policy
	if err := s.client.doRequest(ctx, "GET", "/api/v1/policies", nil, &policies); err != nil {
		return nil, err
	}

	return policies, nil
}

// Update replaces one severity's routing row
func (s *PolicyService) Update(ctx context.Context, severity string, req UpdatePolicyRequest) (*Policy, error) {
	path := fmt.Sprintf("/api/v1/policies/%s", url.PathEscape(severity))

	var policy Policy
	if err := s.client.doRequest(ctx, "PUT", path, req, &policy); err != nil {
		return nil, err
	}

	return &policy, nil
}
