package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the export sweep every 15 minutes.
const DefaultSweepSchedule = "*/15 * * * *"

// Sweeper runs ProcessPending on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	worker  *ExportWorker
	timeout time.Duration
}

// NewSweeper schedules the sweep. An unknown timezone falls back to UTC.
func NewSweeper(w *ExportWorker, schedule, timezone string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	s := &Sweeper{
		worker:  w,
		timeout: 5 * time.Minute,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("schedule export sweep %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.worker.ProcessPending(ctx, 0); err != nil {
		slog.ErrorContext(ctx, "Export sweep failed", "component", "worker", "error", err)
	}
}

func (s *Sweeper) Start() {
	s.cron.Start()
	slog.Info("Export sweep scheduled", "component", "worker", "next", s.Next())
}

// Next is the next scheduled run.
func (s *Sweeper) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
