package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
)

type fakeEngine struct {
	mu     sync.Mutex
	calls  int
	gotIDs [][]string
	alerts []*alert.Alert
	err    error
	ran    chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{ran: make(chan struct{}, 16)}
}

func (f *fakeEngine) RunDetectionCycle(ctx context.Context, organizationIDs []string) ([]*alert.Alert, error) {
	f.mu.Lock()
	f.calls++
	f.gotIDs = append(f.gotIDs, organizationIDs)
	f.mu.Unlock()
	select {
	case f.ran <- struct{}{}:
	default:
	}
	return f.alerts, f.err
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func waitSignal(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

func TestScheduler_Trigger(t *testing.T) {
	engine := newFakeEngine()
	engine.alerts = []*alert.Alert{{ID: "a-1"}, {ID: "a-2"}}
	s := NewScheduler(engine, "@hourly", false, testLogger())

	if err := s.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	if got := engine.callCount(); got != 1 {
		t.Errorf("engine ran %d cycles, want 1", got)
	}
	if engine.gotIDs[0] != nil {
		t.Errorf("Trigger() passed organization IDs %v, want nil for all tenants", engine.gotIDs[0])
	}
}

func TestScheduler_Trigger_EngineError(t *testing.T) {
	engine := newFakeEngine()
	engine.err = errors.New("list organizations: connection refused")
	s := NewScheduler(engine, "@hourly", false, testLogger())

	if err := s.Trigger(context.Background()); err == nil {
		t.Fatal("Trigger() error = nil, want engine error")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	s := NewScheduler(newFakeEngine(), "every full moon", false, testLogger())

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want invalid schedule error")
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after failed Start")
	}
}

func TestScheduler_Start_AlreadyRunning(t *testing.T) {
	s := NewScheduler(newFakeEngine(), "@hourly", false, testLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("second Start() error = nil, want already running error")
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler(newFakeEngine(), "@hourly", false, testLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	s.Stop()
}

func TestScheduler_RunOnStart(t *testing.T) {
	engine := newFakeEngine()
	s := NewScheduler(engine, "@hourly", true, testLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitSignal(t, engine.ran, "startup cycle never ran")
}

func TestScheduler_CronFires(t *testing.T) {
	engine := newFakeEngine()
	s := NewScheduler(engine, "@every 25ms", false, testLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitSignal(t, engine.ran, "cron never triggered a cycle")
}
