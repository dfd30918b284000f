// Package supervisor wraps a collection attempt in a bounded retry loop.
//
// Pure retry-forever masks a permanently broken upstream; pure retry-N-times
// abandons runs that are grinding forward through a long theater list between
// transient failures. The supervisor retries while attempts make progress
// and abandons only after a ceiling of consecutive attempts without a single
// successful write.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// State is the supervisor's position in its run state machine.
type State int

// Supervisor states.
const (
	Idle State = iota
	Running
	Retrying
	Succeeded
	Abandoned
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Retrying:
		return "retrying"
	case Succeeded:
		return "succeeded"
	case Abandoned:
		return "abandoned"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Attempt executes one end-to-end collection attempt and reports the number
// of successful writes it made, even when it returns an error.
type Attempt func(ctx context.Context) (progress int, err error)

// Supervisor runs attempts until one succeeds or the no-progress ceiling is
// exceeded. An attempt is never cancelled midway; only the loop between
// attempts terminates.
type Supervisor struct {
	cooldown time.Duration
	ceiling  int
	log      *slog.Logger
	sleep    func(time.Duration)
	state    State
}

// New creates a Supervisor with the given inter-attempt cooldown and
// no-progress ceiling.
func New(cooldown time.Duration, ceiling int, log *slog.Logger) *Supervisor {
	return &Supervisor{
		cooldown: cooldown,
		ceiling:  ceiling,
		log:      log,
		sleep:    time.Sleep,
		state:    Idle,
	}
}

// SetSleep overrides the cooldown sleep function (for testing).
func (s *Supervisor) SetSleep(sleep func(time.Duration)) {
	s.sleep = sleep
}

// State returns the supervisor's current state.
func (s *Supervisor) State() State {
	return s.state
}

// Run drives attempts to a terminal state. It returns nil once an attempt
// completes without error, or the last attempt error once the run is
// abandoned.
func (s *Supervisor) Run(ctx context.Context, attempt Attempt) error {
	noProgress := 0
	for n := 1; ; n++ {
		s.state = Running
		s.log.Info("starting attempt", "attempt", n)

		progress, err := attempt(ctx)
		if err == nil {
			s.state = Succeeded
			s.log.Info("attempt succeeded", "attempt", n, "progress", progress)
			return nil
		}
		s.log.Error("attempt failed", "attempt", n, "progress", progress, "error", err)

		if progress > 0 {
			noProgress = 0
		} else {
			noProgress++
			s.log.Warn("no progress made", "attempt", n, "consecutive", noProgress)
			if noProgress > s.ceiling {
				s.state = Abandoned
				return fmt.Errorf("abandoned after %d consecutive attempts without progress: %w", noProgress, err)
			}
		}

		s.state = Retrying
		s.log.Info("cooling down before next attempt", "cooldown", s.cooldown)
		s.sleep(s.cooldown)
	}
}
