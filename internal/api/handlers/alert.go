package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/minutehq/usagewatch/internal/api/dto"
	"github.com/minutehq/usagewatch/internal/api/middleware"
	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/utils"
	"github.com/minutehq/usagewatch/internal/pkg/validator"
)

// AlertHandler handles alert lifecycle requests
type AlertHandler struct {
	service   alert.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(service alert.Service, log *logger.Logger, val *validator.Validator) *AlertHandler {
	return &AlertHandler{service: service, logger: log, validator: val}
}

// List returns alerts with filtering and pagination
// @Summary List alerts
// @Description Get alerts newest-first with optional filtering
// @Tags Alerts
// @Produce json
// @Param organization_id query string false "Filter by organization"
// @Param type query string false "Filter by anomaly type"
// @Param severity query string false "Filter by severity"
// @Param resolved query bool false "Filter by resolution state"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} utils.PagedResponse{items=[]dto.AlertResponse} "Page of alerts"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /alerts [get]
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := alert.Filter{
		OrganizationID: q.Get("organization_id"),
		Type:           anomaly.Type(q.Get("type")),
		Severity:       anomaly.Severity(q.Get("severity")),
	}
	if raw := q.Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			utils.WriteError(w, errors.BadRequest("resolved must be true or false"))
			return
		}
		filter.Resolved = &resolved
	}

	page := utils.ParsePageParams(r)
	alerts, total, err := h.service.ListAlerts(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		writeServiceError(w, err, "Failed to list alerts")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.NewPagedResponse(dto.NewAlertResponses(alerts), total, page))
}

// Active returns unresolved alerts newest-first
// @Summary List active alerts
// @Description Get unresolved alerts, optionally scoped to one organization
// @Tags Alerts
// @Produce json
// @Param organization_id query string false "Filter by organization"
// @Success 200 {object} utils.SuccessResponse{data=[]dto.AlertResponse} "Active alerts"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /alerts/active [get]
func (h *AlertHandler) Active(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.GetActiveAlerts(r.Context(), r.URL.Query().Get("organization_id"))
	if err != nil {
		writeServiceError(w, err, "Failed to list active alerts")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewAlertResponses(alerts))
}

// Counts returns unresolved alert counts grouped by severity
// @Summary Count active alerts
// @Description Get unresolved alert counts per severity
// @Tags Alerts
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=dto.AlertCountsResponse} "Counts by severity"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /alerts/counts [get]
func (h *AlertHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.CountActiveBySeverity(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to count alerts")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.AlertCountsResponse{
		Critical: counts[anomaly.SeverityCritical],
		High:     counts[anomaly.SeverityHigh],
		Medium:   counts[anomaly.SeverityMedium],
		Low:      counts[anomaly.SeverityLow],
	})
}

// Get returns a single alert by ID
// @Summary Get alert by ID
// @Description Get detailed information about a specific alert
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} utils.SuccessResponse{data=dto.AlertResponse} "Alert details"
// @Failure 404 {object} utils.ErrorResponse "Alert not found"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /alerts/{id} [get]
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get alert")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewAlertResponse(a))
}

// Resolve marks an alert resolved
// @Summary Resolve alert
// @Description Mark an alert resolved; resolving twice is a no-op
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param request body dto.ResolveAlertRequest false "Resolution details"
// @Success 200 {object} utils.SuccessResponse "Alert resolved"
// @Failure 404 {object} utils.ErrorResponse "Alert not found"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /alerts/{id}/resolve [post]
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveAlertRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteError(w, errors.BadRequest("Invalid request body"))
			return
		}
		if errs := h.validator.Validate(req); len(errs) > 0 {
			utils.WriteError(w, errors.ValidationError("Validation failed", errs))
			return
		}
	}

	resolvedBy := req.ResolvedBy
	if resolvedBy == "" {
		if caller, ok := middleware.GetCaller(r); ok {
			resolvedBy = caller
		}
	}

	if err := h.service.ResolveAlert(r.Context(), chi.URLParam(r, "id"), resolvedBy); err != nil {
		writeServiceError(w, err, "Failed to resolve alert")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Alert resolved", nil)
}
