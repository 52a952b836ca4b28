package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/minutehq/usagewatch/internal/api/dto"
	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/validator"
)

type stubEngine struct {
	gotIDs []string
	calls  int
	alerts []*alert.Alert
	err    error
}

func (s *stubEngine) RunDetectionCycle(ctx context.Context, organizationIDs []string) ([]*alert.Alert, error) {
	s.calls++
	s.gotIDs = organizationIDs
	if s.err != nil {
		return nil, s.err
	}
	return s.alerts, nil
}

func newDetectionHandler(engine *stubEngine) *DetectionHandler {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return NewDetectionHandler(engine, log, validator.New())
}

func TestDetectionHandler_Run(t *testing.T) {
	created := []*alert.Alert{
		{
			ID:             "a-1",
			OrganizationID: "org-1",
			Type:           anomaly.TypeSpike,
			Severity:       anomaly.SeverityHigh,
			Title:          "Usage spike: meeting mode",
			CreatedAt:      time.Now().UTC(),
		},
	}

	tests := []struct {
		name           string
		body           string
		engineAlerts   []*alert.Alert
		engineErr      error
		expectedStatus int
		expectedIDs    []string
		expectedCount  int
	}{
		{
			name:           "run over all organizations",
			body:           "",
			engineAlerts:   created,
			expectedStatus: http.StatusOK,
			expectedIDs:    nil,
			expectedCount:  1,
		},
		{
			name:           "run over selected organizations",
			body:           `{"organization_ids":["org-1","org-2"]}`,
			engineAlerts:   nil,
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"org-1", "org-2"},
			expectedCount:  0,
		},
		{
			name:           "empty organization id rejected",
			body:           `{"organization_ids":[""]}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed body",
			body:           `{"organization_ids":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "engine failure",
			body:           "",
			engineErr:      errors.DatabaseError("query failed", context.DeadlineExceeded),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &stubEngine{alerts: tt.engineAlerts, err: tt.engineErr}
			handler := newDetectionHandler(engine)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/detection/run", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			handler.Run(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v, body: %s", status, tt.expectedStatus, rr.Body.String())
			}
			if rr.Code == http.StatusBadRequest && engine.calls != 0 {
				t.Errorf("expected engine not to run, got %d calls", engine.calls)
			}
			if rr.Code != http.StatusOK {
				return
			}

			if len(engine.gotIDs) != len(tt.expectedIDs) {
				t.Fatalf("expected engine to receive %v, got %v", tt.expectedIDs, engine.gotIDs)
			}
			for i, id := range tt.expectedIDs {
				if engine.gotIDs[i] != id {
					t.Errorf("organization %d: expected %s, got %s", i, id, engine.gotIDs[i])
				}
			}

			var response struct {
				Success bool                     `json:"success"`
				Data    dto.RunDetectionResponse `json:"data"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Data.AlertsCreated != tt.expectedCount {
				t.Errorf("expected %d alerts created, got %d", tt.expectedCount, response.Data.AlertsCreated)
			}
			if len(response.Data.Alerts) != tt.expectedCount {
				t.Errorf("expected %d alerts in response, got %d", tt.expectedCount, len(response.Data.Alerts))
			}
		})
	}
}
