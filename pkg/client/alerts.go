package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// AlertService handles alert-related API calls
type AlertService struct {
	client *Client
}

// AlertListOptions contains options for listing alerts
type AlertListOptions struct {
	OrganizationID string
	Type           string
	Severity       string
	Resolved       *bool
	Limit          int
	Offset         int
}

// List retrieves one page of alerts, newest first
func (s *AlertService) List(ctx context.Context, opts *AlertListOptions) (*AlertPage, error) {
	query := url.Values{}

	if opts != nil {
		if opts.OrganizationID != "" {
			query.Set("organization_id", opts.OrganizationID)
		}
		if opts.Type != "" {
			query.Set("type", opts.Type)
		}
		if opts.Severity != "" {
			query.Set("severity", opts.Severity)
		}
		if opts.Resolved != nil {
			query.Set("resolved", strconv.FormatBool(*opts.Resolved))
		}
		if opts.Limit > 0 {
			query.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			query.Set("offset", strconv.Itoa(opts.Offset))
		}
	}

	path := "/api/v1/alerts"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var page AlertPage
	if err := s.client.doRequest(ctx, "GET", path, nil, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// Active retrieves unresolved alerts, optionally scoped to one organization
func (s *AlertService) Active(ctx context.Context, organizationID string) ([]Alert, error) {
	path := "/api/v1/alerts/active"
	if organizationID != "" {
		path += "?organization_id=" + url.QueryEscape(organizationID)
	}

	var alerts []Alert
	if err := s.client.doRequest(ctx, "GET", path, nil, &alerts); err != nil {
		return nil, err
	}

	return alerts, nil
}

// Counts retrieves unresolved alert counts by severity
func (s *AlertService) Counts(ctx context.Context) (*AlertCounts, error) {
	var counts AlertCounts
	if err := s.client.doRequest(ctx, "GET", "/api/v1/alerts/counts", nil, &counts); err != nil {
		return nil, err
	}

	return &counts, nil
}

// Get retrieves a single alert by ID
func (s *AlertService) Get(ctx context.Context, id string) (*Alert, error) {
	path := fmt.Sprintf("/api/v1/alerts/%s", url.PathEscape(id))

	var alert Alert
	if err := s.client.doRequest(ctx, "GET", path, nil, &alert); err != nil {
		return nil, err
	}

	return &alert, nil
}

// Resolve marks an alert resolved. An empty resolvedBy defaults to the
// token's subject on the server side.
func (s *AlertService) Resolve(ctx context.Context, id string, resolvedBy string) error {
	path := fmt.Sprintf("/api/v1/alerts/%s/resolve", url.PathEscape(id))

	var body interface{}
	if resolvedBy != "" {
		body = map[string]string{"resolved_by": resolvedBy}
	}

	return s.client.doRequest(ctx, "POST", path, body, nil)
}
