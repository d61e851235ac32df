// Package poll implements the wait-with-deadline loop shared by every
// blocking step: action completion, server reachability and power-state
// transitions.
package poll

import (
	"context"
	"fmt"
	"time"
)

// Outcome is what a single check reports.
type Outcome int

const (
	// Pending means the condition is not met yet; try again.
	Pending Outcome = iota
	// Done means the condition is met.
	Done
	// Abort means the condition can never be met; stop immediately.
	Abort
)

// Status tags the result of Until.
type Status int

const (
	Completed Status = iota + 1
	Failed
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the tagged outcome of a poll loop.
type Result struct {
	Status   Status
	Attempts int
	Elapsed  time.Duration
	// Err is the error reported by the final check, if any. For Failed
	// results it explains why; for TimedOut results it is the last
	// transient error seen.
	Err error
}

// Check is invoked once per attempt.
type Check func(ctx context.Context, attempt int) (Outcome, error)

// Config bounds a poll loop.
type Config struct {
	// Interval is the delay between attempts.
	Interval time.Duration
	// Timeout is the overall budget. An attempt is only started while the
	// elapsed time is below Timeout.
	Timeout time.Duration
	// Clock defaults to the wall clock.
	Clock Clock
}

// Until runs check immediately and then every Interval until it reports
// Done or Abort, or until Timeout has elapsed. Context cancellation ends
// the loop with a Failed result carrying ctx.Err().
func Until(ctx context.Context, cfg Config, check Check) Result {
	clock := cfg.Clock
	if clock == nil {
		clock = WallClock{}
	}

	start := clock.Now()
	var res Result
	for {
		res.Elapsed = clock.Now().Sub(start)
		if res.Elapsed >= cfg.Timeout {
			res.Status = TimedOut
			return res
		}
		if err := ctx.Err(); err != nil {
			res.Status = Failed
			res.Err = err
			return res
		}

		res.Attempts++
		outcome, err := check(ctx, res.Attempts)
		res.Err = err
		switch outcome {
		case Done:
			res.Status = Completed
			res.Elapsed = clock.Now().Sub(start)
			return res
		case Abort:
			res.Status = Failed
			res.Elapsed = clock.Now().Sub(start)
			return res
		}

		if err := clock.Sleep(ctx, cfg.Interval); err != nil {
			res.Status = Failed
			res.Err = err
			return res
		}
	}
}
