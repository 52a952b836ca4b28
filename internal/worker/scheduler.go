package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/minutehq/usagewatch/internal/domain/detection"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
)

// Scheduler triggers detection cycles on a cron schedule. The engine stays
// directly callable; the scheduler is only a trigger around it.
type Scheduler struct {
	engine     detection.Service
	schedule   string
	runOnStart bool
	logger     *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler creates a detection scheduler
func NewScheduler(engine detection.Service, schedule string, runOnStart bool, log *logger.Logger) *Scheduler {
	return &Scheduler{
		engine:     engine,
		schedule:   schedule,
		runOnStart: runOnStart,
		logger:     log,
	}
}

// Start begins the cron loop. The schedule is validated before the loop is
// created, so a bad expression fails loudly at startup instead of silently
// never firing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("detection scheduler is already running")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid detection schedule %q: %w", s.schedule, err)
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Trigger(context.Background()); err != nil {
			s.logger.ErrorWithErr(err, "Scheduled detection cycle failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule detection cycle: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.WithFields(map[string]interface{}{
		"schedule":     s.schedule,
		"run_on_start": s.runOnStart,
	}).Info("Detection scheduler started")

	if s.runOnStart {
		go func() {
			if err := s.Trigger(ctx); err != nil {
				s.logger.ErrorWithErr(err, "Startup detection cycle failed")
			}
		}()
	}

	return nil
}

// Stop halts the cron loop and waits for an in-flight cycle to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false

	s.logger.Info("Detection scheduler stopped")
}

// IsRunning returns whether the cron loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger runs one detection cycle over every eligible tenant. It works
// whether or not the cron loop is running, so operators can force a cycle
// through the API at any time.
func (s *Scheduler) Trigger(ctx context.Context) error {
	start := time.Now()

	created, err := s.engine.RunDetectionCycle(ctx, nil)
	if err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"alerts_created": len(created),
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Info("Triggered detection cycle finished")

	return nil
}
