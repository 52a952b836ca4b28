package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minutehq/usagewatch/internal/api/dto"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/utils"
	"github.com/minutehq/usagewatch/internal/pkg/validator"
)

// PolicyHandler handles severity routing policy requests
type PolicyHandler struct {
	service   notification.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(service notification.Service, log *logger.Logger, val *validator.Validator) *PolicyHandler {
	return &PolicyHandler{service: service, logger: log, validator: val}
}

// List returns the severity routing table
// @Summary List notification policies
// @Description Get the per-severity routing table in ascending severity order
// @Tags Policies
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=[]dto.PolicyResponse} "Routing table"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /policies [get]
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.service.GetPolicies(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list policies")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewPolicyResponses(policies))
}

// Update replaces one severity's routing row
// @Summary Update notification policy
// @Description Replace the channel set, cadence and batch window for one severity
// @Tags Policies
// @Accept json
// @Produce json
// @Param severity path string true "Severity (low, medium, high, critical)"
// @Param request body dto.UpdatePolicyRequest true "Routing details"
// @Success 200 {object} utils.SuccessResponse{data=dto.PolicyResponse} "Updated policy"
// @Failure 400 {object} utils.ErrorResponse "Invalid request or validation error"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /policies/{severity} [put]
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return
	}
	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	var window time.Duration
	if req.BatchWindow != "" {
		parsed, err := time.ParseDuration(req.BatchWindow)
		if err != nil {
			utils.WriteError(w, errors.BadRequest("batch_window must be a duration like 5m or 1h"))
			return
		}
		window = parsed
	}

	channels := make([]notification.Channel, len(req.Channels))
	for i, ch := range req.Channels {
		channels[i] = notification.Channel(ch)
	}

	policy := &notification.Policy{
		Severity:    anomaly.Severity(chi.URLParam(r, "severity")),
		Channels:    channels,
		Cadence:     notification.Cadence(req.Cadence),
		BatchWindow: window,
	}

	if err := h.service.UpdatePolicy(r.Context(), policy); err != nil {
		writeServiceError(w, err, "Failed to update policy")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewPolicyResponse(policy))
}
