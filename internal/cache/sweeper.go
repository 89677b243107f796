package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
)

// Sweeper periodically expires entries for long-lived idle sessions that
// lazy on-access expiry would never touch. Purely a memory bound: the
// engine's contract is identical with or without it.
type Sweeper struct {
	engine *Engine
	expr   *cronexpr.Expression
	logger *log.Logger
}

// NewSweeper parses a cron schedule (e.g. "*/5 * * * *").
func NewSweeper(engine *Engine, schedule string, logger *log.Logger) (*Sweeper, error) {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SWEEP] ", log.LstdFlags)
	}
	return &Sweeper{engine: engine, expr: expr, logger: logger}, nil
}

// Run blocks, sweeping on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		next := s.expr.Next(time.Now())
		if next.IsZero() {
			s.logger.Printf("schedule has no future occurrence, stopping")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		n, err := s.engine.Sweep(ctx)
		if err != nil {
			s.logger.Printf("sweep: %v", err)
			continue
		}
		if n > 0 {
			s.logger.Printf("expired %d entries", n)
		}
	}
}
