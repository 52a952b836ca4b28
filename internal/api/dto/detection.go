package dto

// RunDetectionRequest represents a manual detection cycle request. An empty
// organization list runs the cycle over every tenant.
type RunDetectionRequest struct {
	OrganizationIDs []string `json:"organization_ids,omitempty" validate:"omitempty,dive,min=1"`
}

// RunDetectionResponse represents the outcome of a detection cycle
type RunDetectionResponse struct {
	AlertsCreated int             `json:"alerts_created"`
	Alerts        []AlertResponse `json:"alerts"`
}
