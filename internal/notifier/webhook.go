package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/minutehq/usagewatch/internal/config"
	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
)

// Webhook event types
const (
	EventAlertCreated = "alert.created"
	EventAlertDigest  = "alert.digest"
)

// WebhookSender delivers signed JSON events to a subscriber endpoint,
// retrying transient failures with backoff and jitter
type WebhookSender struct {
	url        string
	secret     string
	retry      retrypolicy.RetryPolicy[int]
	httpClient *http.Client
	logger     *logger.Logger
}

// NewWebhookSender creates a generic webhook sender
func NewWebhookSender(cfg config.GenericWebhookConfig, log *logger.Logger) *WebhookSender {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseWait := cfg.RetryBaseWait
	if baseWait <= 0 {
		baseWait = 500 * time.Millisecond
	}
	maxWait := cfg.RetryMaxWait
	if maxWait < baseWait {
		maxWait = 10 * time.Second
	}

	retry := retrypolicy.NewBuilder[int]().
		HandleIf(func(status int, err error) bool {
			if err != nil {
				return true
			}
			return status == http.StatusTooManyRequests || status >= 500
		}).
		WithMaxRetries(maxRetries).
		WithBackoff(baseWait, maxWait).
		WithJitter(baseWait / 2).
		Build()

	return &WebhookSender{
		url:        cfg.URL,
		secret:     cfg.SigningSecret,
		retry:      retry,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

// Channel identifies this sender
func (s *WebhookSender) Channel() notification.Channel {
	return notification.ChannelGenericWebhook
}

// Send delivers the message as a signed webhook event. A missing URL
// degrades to a logged no-op.
func (s *WebhookSender) Send(ctx context.Context, msg *notification.Message) error {
	if s.url == "" {
		s.logger.WithFields(map[string]interface{}{
			"organization_id": msg.OrganizationID,
		}).Warn("Webhook URL not configured, dropping notification")
		return nil
	}

	eventType := EventAlertCreated
	var data interface{} = msg.Alert
	if msg.Digest != nil {
		eventType = EventAlertDigest
		data = msg.Digest
	}

	payloadJSON, err := json.Marshal(map[string]interface{}{
		"event":           eventType,
		"timestamp":       time.Now().Unix(),
		"organization_id": msg.OrganizationID,
		"severity":        msg.Severity,
		"subject":         msg.Subject,
		"data":            data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	status, err := failsafe.With(s.retry).WithContext(ctx).Get(func() (int, error) {
		return s.post(ctx, eventType, payloadJSON)
	})
	if err != nil {
		return errors.ChannelDeliveryError("generic-webhook", err)
	}
	if status >= 400 {
		return errors.ChannelDeliveryError("generic-webhook", fmt.Errorf("webhook returned status %d", status))
	}

	s.logger.WithFields(map[string]interface{}{
		"organization_id": msg.OrganizationID,
		"event":           eventType,
		"status":          status,
	}).Info("Webhook delivered")
	return nil
}

// post performs a single delivery attempt. Only transport failures return
// an error; status handling belongs to the retry policy and caller.
func (s *WebhookSender) post(ctx context.Context, eventType string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", eventType)
	req.Header.Set("X-Webhook-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	if s.secret != "" {
		req.Header.Set("X-Webhook-Signature", signPayload(payload, s.secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// signPayload signs the payload with HMAC-SHA256
func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
