package notifier

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minutehq/usagewatch/internal/config"
)

func emailConfigFor(t *testing.T, addr string) config.EmailConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split listener address: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse listener port: %v", err)
	}
	return config.EmailConfig{
		SMTPHost:   host,
		SMTPPort:   port,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com"},
	}
}

// smtpScript answers one minimal SMTP session and records the DATA body
type smtpScript struct {
	mu    sync.Mutex
	lines []string
}

func (s *smtpScript) serve(ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	fmt.Fprintf(conn, "220 mail.test ESMTP\r\n")
	br := bufio.NewReader(conn)
	inData := false
	for {
		raw, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line := strings.TrimRight(raw, "\r\n")

		if inData {
			if line == "." {
				inData = false
				fmt.Fprintf(conn, "250 OK\r\n")
				continue
			}
			s.mu.Lock()
			s.lines = append(s.lines, line)
			s.mu.Unlock()
			continue
		}

		switch {
		case strings.HasPrefix(line, "EHLO"):
			fmt.Fprintf(conn, "250-mail.test\r\n250 OK\r\n")
		case strings.HasPrefix(line, "HELO"):
			fmt.Fprintf(conn, "250 mail.test\r\n")
		case strings.HasPrefix(line, "MAIL FROM"):
			fmt.Fprintf(conn, "250 OK\r\n")
		case strings.HasPrefix(line, "RCPT TO"):
			fmt.Fprintf(conn, "250 OK\r\n")
		case line == "DATA":
			fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
			inData = true
		case line == "QUIT":
			fmt.Fprintf(conn, "221 Bye\r\n")
			return
		default:
			fmt.Fprintf(conn, "250 OK\r\n")
		}
	}
}

func (s *smtpScript) body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.lines, "\n")
}

func TestEmailSender_MissingHostIsNoop(t *testing.T) {
	sender := NewEmailSender(config.EmailConfig{}, testLogger())
	if err := sender.Send(context.Background(), alertMessage()); err != nil {
		t.Fatalf("Send() error = %v, want no-op without SMTP host", err)
	}
}

func TestEmailSender_MissingRecipientsIsNoop(t *testing.T) {
	sender := NewEmailSender(config.EmailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		From:     "alerts@example.com",
	}, testLogger())

	if err := sender.Send(context.Background(), alertMessage()); err != nil {
		t.Fatalf("Send() error = %v, want no-op without recipients", err)
	}
}

func TestEmailSender_CancelledContext(t *testing.T) {
	sender := NewEmailSender(config.EmailConfig{
		SMTPHost:   "smtp.example.com",
		SMTPPort:   587,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com"},
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sender.Send(ctx, alertMessage()); err != context.Canceled {
		t.Fatalf("Send() error = %v, want context.Canceled", err)
	}
}

func TestEmailSender_Delivers(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	script := &smtpScript{}
	go script.serve(ln)

	sender := NewEmailSender(emailConfigFor(t, ln.Addr().String()), testLogger())
	msg := alertMessage()

	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	body := script.body()
	if !strings.Contains(body, "Subject: "+msg.Subject) {
		t.Errorf("message body %q missing subject %q", body, msg.Subject)
	}
	if !strings.Contains(body, "To: ops@example.com") {
		t.Errorf("message body %q missing recipient header", body)
	}
	if !strings.Contains(body, msg.Body) {
		t.Errorf("message body %q missing alert text", body)
	}
}

// A server that accepts the connection but never speaks SMTP must not hold
// the send past the channel timeout.
func TestEmailSender_SilentServerHonorsTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	var held []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range held {
			c.Close()
		}
	})

	sender := NewEmailSender(emailConfigFor(t, ln.Addr().String()), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sender.Send(ctx, alertMessage()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Send() error = nil, want delivery failure from a silent server")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send() still blocked long after the channel timeout expired")
	}
}
