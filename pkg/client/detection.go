package client

import "context"

// DetectionService handles detection cycle API calls
type DetectionService struct {
	client *Client
}

// Run triggers one detection cycle. An empty organization list runs the
// cycle over every tenant.
func (s *DetectionService) Run(ctx context.Context, organizationIDs []string) (*DetectionResult, error) {
	var body interface{}
	if len(organizationIDs) > 0 {
		body = map[string][]string{"organization_ids": organizationIDs}
	}

	var result DetectionResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/detection/run", body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
