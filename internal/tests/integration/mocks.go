package integration

import (
	"context"
	"sync"

	"github.com/minutehq/usagewatch/internal/domain/notification"
)

// CaptureSender implements notification.Sender and records every message it
// is handed, standing in for a real channel adapter.
type CaptureSender struct {
	mu       sync.Mutex
	channel  notification.Channel
	Messages []*notification.Message
	Err      error
}

func NewCaptureSender(ch notification.Channel) *CaptureSender {
	return &CaptureSender{channel: ch}
}

func (s *CaptureSender) Send(_ context.Context, msg *notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

func (s *CaptureSender) Channel() notification.Channel {
	return s.channel
}

func (s *CaptureSender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages)
}

func (s *CaptureSender) Last() *notification.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}
