// Package sweep runs periodic maintenance that keeps stored statuses in
// step with the calendar: expired reagents and overdue invoices.
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Task refreshes one kind of record and reports how many it changed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

type Sweeper struct {
	tasks    []Task
	interval time.Duration
	logger   zerolog.Logger
}

func New(interval time.Duration, logger zerolog.Logger, tasks ...Task) *Sweeper {
	return &Sweeper{tasks: tasks, interval: interval, logger: logger}
}

// RunOnce runs every task. A failing task does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) {
	for _, t := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		n, err := t.Run(ctx)
		if err != nil {
			s.logger.Error().Err(err).Str("task", t.Name).Msg("sweep failed")
			continue
		}
		if n > 0 {
			s.logger.Info().Str("task", t.Name).Int("updated", n).Msg("sweep updated records")
		}
	}
}

// Run sweeps once at start and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.RunOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
