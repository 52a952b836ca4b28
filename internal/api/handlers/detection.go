package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/minutehq/usagewatch/internal/api/dto"
	"github.com/minutehq/usagewatch/internal/domain/detection"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/utils"
	"github.com/minutehq/usagewatch/internal/pkg/validator"
)

// DetectionHandler handles manual detection cycle requests
type DetectionHandler struct {
	engine    detection.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewDetectionHandler creates a new detection handler
func NewDetectionHandler(engine detection.Service, log *logger.Logger, val *validator.Validator) *DetectionHandler {
	return &DetectionHandler{engine: engine, logger: log, validator: val}
}

// Run triggers one detection cycle
// @Summary Run detection cycle
// @Description Run anomaly detection over the given organizations, or all of them when none are given
// @Tags Detection
// @Accept json
// @Produce json
// @Param request body dto.RunDetectionRequest false "Organizations to scan"
// @Success 200 {object} utils.SuccessResponse{data=dto.RunDetectionResponse} "Cycle outcome"
// @Failure 400 {object} utils.ErrorResponse "Invalid request"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /detection/run [post]
func (h *DetectionHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req dto.RunDetectionRequest
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

	created, err := h.engine.RunDetectionCycle(r.Context(), req.OrganizationIDs)
	if err != nil {
		writeServiceError(w, err, "Detection cycle failed")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.RunDetectionResponse{
		AlertsCreated: len(created),
		Alerts:        dto.NewAlertResponses(created),
	})
}
