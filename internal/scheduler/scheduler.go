package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/i474232898/weather-recorder/internal/metrics"
)

// Task is one periodic duty: Run is called immediately and then every Interval.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs tasks until the context is cancelled or a task fails.
type Scheduler struct {
	scheduler *gocron.Scheduler
	tasks     []Task
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(logger *slog.Logger, tasks ...Task) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	// A slow cycle delays that task's next run instead of overlapping it.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		tasks:     tasks,
		logger:    logger,
	}
}

// Run schedules every task and blocks. It returns nil once ctx is cancelled,
// or the first task error; no new cycles start after either.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.tasks) == 0 {
		return errors.New("scheduler: no tasks configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	for _, t := range s.tasks {
		if t.Interval <= 0 {
			return fmt.Errorf("scheduler: task %q has non-positive interval %s", t.Name, t.Interval)
		}
		if t.Run == nil {
			return fmt.Errorf("scheduler: task %q has no run function", t.Name)
		}

		t := t
		_, err := s.scheduler.Every(t.Interval).Tag(t.Name).Do(func() {
			if ctx.Err() != nil {
				return
			}
			if err := s.runOnce(ctx, t); err != nil && ctx.Err() == nil {
				select {
				case errCh <- fmt.Errorf("%s: %w", t.Name, err):
				default:
				}
				cancel()
			}
		})
		if err != nil {
			return fmt.Errorf("scheduler: schedule %q: %w", t.Name, err)
		}
		s.logger.Info("task scheduled", "task", t.Name, "interval", t.Interval)
	}

	s.scheduler.StartAsync()
	<-ctx.Done()
	s.scheduler.Stop()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) error {
	runID := uuid.NewString()
	logger := s.logger.With("task", t.Name, "run_id", runID)

	start := time.Now()
	logger.Debug("task cycle started")

	err := t.Run(ctx)
	elapsed := time.Since(start)
	metrics.ObserveCycle(t.Name, elapsed)

	if err != nil {
		logger.Error("task cycle failed", "elapsed", elapsed, "error", err)
		return err
	}
	logger.Debug("task cycle completed", "elapsed", elapsed)
	return nil
}
