package worker

import (
	"context"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
)

// drainTimeout bounds the final flush on shutdown
const drainTimeout = 30 * time.Second

// Batcher periodically flushes due notification batch windows
type Batcher struct {
	notifier notification.Service
	interval time.Duration
	logger   *logger.Logger
}

// NewBatcher creates a notification batch flusher
func NewBatcher(notifier notification.Service, interval time.Duration, log *logger.Logger) *Batcher {
	return &Batcher{
		notifier: notifier,
		interval: interval,
		logger:   log,
	}
}

// Start runs the flush loop until ctx is cancelled. On shutdown every queued
// window is drained, due or not, so batched alerts are not lost.
func (b *Batcher) Start(ctx context.Context) {
	b.logger.WithFields(map[string]interface{}{
		"interval": b.interval.String(),
	}).Info("Starting notification batcher")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if err := b.notifier.FlushDue(ctx, now); err != nil {
				b.logger.ErrorWithErr(err, "Failed to flush due notification batches")
			}
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			if err := b.notifier.FlushAll(drainCtx); err != nil {
				b.logger.ErrorWithErr(err, "Failed to drain notification batches on shutdown")
			}
			cancel()
			b.logger.Info("Notification batcher stopped")
			return
		}
	}
}
