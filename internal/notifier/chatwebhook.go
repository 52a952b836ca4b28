package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minutehq/usagewatch/internal/config"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
)

// ChatWebhookSender posts messages to a Slack-compatible incoming webhook
type ChatWebhookSender struct {
	webhookURL string
	channel    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewChatWebhookSender creates a chat webhook sender
func NewChatWebhookSender(cfg config.ChatWebhookConfig, log *logger.Logger) *ChatWebhookSender {
	return &ChatWebhookSender{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

// Channel identifies this sender
func (s *ChatWebhookSender) Channel() notification.Channel {
	return notification.ChannelChatWebhook
}

// Send posts the message as a color-coded attachment. A missing webhook URL
// degrades to a logged no-op.
func (s *ChatWebhookSender) Send(ctx context.Context, msg *notification.Message) error {
	if s.webhookURL == "" {
		s.logger.WithFields(map[string]interface{}{
			"organization_id": msg.OrganizationID,
		}).Warn("Chat webhook URL not configured, dropping notification")
		return nil
	}

	payload, err := json.Marshal(s.buildChatMessage(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.ChannelDeliveryError("chat-webhook", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.ChannelDeliveryError("chat-webhook", fmt.Errorf("chat API error: %s", string(body)))
	}

	s.logger.WithFields(map[string]interface{}{
		"organization_id": msg.OrganizationID,
		"severity":        msg.Severity,
	}).Info("Chat notification sent")
	return nil
}

// buildChatMessage builds the attachment payload
func (s *ChatWebhookSender) buildChatMessage(msg *notification.Message) map[string]interface{} {
	color := "#36a64f" // default green
	switch msg.Severity {
	case anomaly.SeverityCritical:
		color = "#ff0000" // red
	case anomaly.SeverityHigh:
		color = "#ff8c00" // orange
	case anomaly.SeverityMedium:
		color = "#ffcc00" // yellow
	case anomaly.SeverityLow:
		color = "#36a64f" // green
	}

	emoji := ":bell:"
	switch {
	case msg.Digest != nil:
		emoji = ":chart_with_upwards_trend:"
	case msg.Alert != nil:
		switch msg.Alert.Type {
		case anomaly.TypeSpike:
			emoji = ":warning:"
		case anomaly.TypeRapidDepletion:
			emoji = ":hourglass_flowing_sand:"
		case anomaly.TypeModeAbuse:
			emoji = ":mag:"
		case anomaly.TypeConcurrentExcess:
			emoji = ":rotating_light:"
		}
	}

	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color":  color,
				"title":  fmt.Sprintf("%s %s", emoji, msg.Subject),
				"text":   msg.Body,
				"footer": "UsageWatch",
				"ts":     time.Now().Unix(),
			},
		},
	}
	if s.channel != "" {
		payload["channel"] = s.channel
	}
	return payload
}
