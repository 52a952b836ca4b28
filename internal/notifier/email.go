package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/minutehq/usagewatch/internal/config"
	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
)

// EmailSender delivers messages to a fixed recipient list over SMTP
type EmailSender struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients []string
	logger     *logger.Logger
}

// NewEmailSender creates an email sender
func NewEmailSender(cfg config.EmailConfig, log *logger.Logger) *EmailSender {
	return &EmailSender{
		host:       cfg.SMTPHost,
		port:       cfg.SMTPPort,
		username:   cfg.Username,
		password:   cfg.Password,
		from:       cfg.From,
		recipients: cfg.Recipients,
		logger:     log,
	}
}

// Channel identifies this sender
func (s *EmailSender) Channel() notification.Channel {
	return notification.ChannelEmail
}

// Send delivers the message to the configured recipients. Missing
// configuration (no SMTP host, no recipients) degrades to a logged no-op.
// The whole SMTP conversation honors ctx: the dial is context-aware and the
// ctx deadline becomes the connection deadline, so a hung server cannot
// outlive the caller's per-channel timeout.
func (s *EmailSender) Send(ctx context.Context, msg *notification.Message) error {
	if s.host == "" {
		s.logger.WithFields(map[string]interface{}{
			"organization_id": msg.OrganizationID,
		}).Warn("SMTP host not configured, dropping notification")
		return nil
	}
	if len(s.recipients) == 0 {
		s.logger.WithFields(map[string]interface{}{
			"organization_id": msg.OrganizationID,
		}).Warn("Email recipients not configured, dropping notification")
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.ChannelDeliveryError("email", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	// Unblock reads on cancellation too, not just on deadline expiry
	watcherStop := make(chan struct{})
	defer close(watcherStop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watcherStop:
		}
	}()

	if err := s.deliver(conn, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.ChannelDeliveryError("email", ctxErr)
		}
		return errors.ChannelDeliveryError("email", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"organization_id": msg.OrganizationID,
		"recipients":      len(s.recipients),
	}).Info("Email notification sent")
	return nil
}

// deliver runs the SMTP conversation over an established connection
func (s *EmailSender) deliver(conn net.Conn, msg *notification.Message) error {
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return err
		}
	}
	if s.username != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(s.from); err != nil {
		return err
	}
	for _, rcpt := range s.recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(s.buildMessage(msg))); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// buildMessage renders the RFC 5322 message body
func (s *EmailSender) buildMessage(msg *notification.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return b.String()
}
