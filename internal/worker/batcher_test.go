package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/notification"
)

type fakeNotifier struct {
	mu       sync.Mutex
	dueCalls int
	allCalls int
	dueErr   error
	flushed  chan struct{}
	drained  chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		flushed: make(chan struct{}, 16),
		drained: make(chan struct{}, 1),
	}
}

func (f *fakeNotifier) FlushDue(ctx context.Context, now time.Time) error {
	f.mu.Lock()
	f.dueCalls++
	f.mu.Unlock()
	select {
	case f.flushed <- struct{}{}:
	default:
	}
	return f.dueErr
}

func (f *fakeNotifier) FlushAll(ctx context.Context) error {
	f.mu.Lock()
	f.allCalls++
	f.mu.Unlock()
	select {
	case f.drained <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeNotifier) Dispatch(ctx context.Context, a *alert.Alert) error { return nil }
func (f *fakeNotifier) FlushWindow(ctx context.Context, window time.Duration) error {
	return nil
}
func (f *fakeNotifier) PendingCount(window time.Duration) int { return 0 }
func (f *fakeNotifier) GetPolicies(ctx context.Context) ([]*notification.Policy, error) {
	return nil, nil
}
func (f *fakeNotifier) UpdatePolicy(ctx context.Context, policy *notification.Policy) error {
	return nil
}
func (f *fakeNotifier) EnsurePolicies(ctx context.Context, defaults []*notification.Policy) error {
	return nil
}

func (f *fakeNotifier) counts() (due, all int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dueCalls, f.allCalls
}

func TestBatcher_FlushesDueOnTick(t *testing.T) {
	notifier := newFakeNotifier()
	b := NewBatcher(notifier, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	waitSignal(t, notifier.flushed, "batcher never flushed on tick")

	cancel()
	waitSignal(t, done, "batcher did not stop after cancel")

	due, all := notifier.counts()
	if due < 1 {
		t.Errorf("FlushDue called %d times, want at least 1", due)
	}
	if all != 1 {
		t.Errorf("FlushAll called %d times on shutdown, want 1", all)
	}
}

func TestBatcher_DrainsOnShutdown(t *testing.T) {
	notifier := newFakeNotifier()
	b := NewBatcher(notifier, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	cancel()
	waitSignal(t, done, "batcher did not stop after cancel")

	due, all := notifier.counts()
	if due != 0 {
		t.Errorf("FlushDue called %d times without a tick, want 0", due)
	}
	if all != 1 {
		t.Errorf("FlushAll called %d times on shutdown, want 1", all)
	}
}

func TestBatcher_ContinuesAfterFlushError(t *testing.T) {
	notifier := newFakeNotifier()
	notifier.dueErr = context.DeadlineExceeded
	b := NewBatcher(notifier, 15*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	waitSignal(t, notifier.flushed, "batcher never flushed")
	waitSignal(t, notifier.flushed, "batcher stopped ticking after a flush error")

	cancel()
	waitSignal(t, done, "batcher did not stop after cancel")
}
