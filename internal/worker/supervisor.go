package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Runner is a long-lived loop that returns only when ctx is cancelled or it
// fails in a way its own cycle isolation could not absorb.
type Runner interface {
	Run(ctx context.Context) error
}

type namedRunner struct {
	name   string
	runner Runner
}

// Supervisor runs every registered loop concurrently and restarts any that
// returns an error or panics while the supervisor is still running.
type Supervisor struct {
	runners      []namedRunner
	clock        clockwork.Clock
	restartDelay time.Duration
}

func NewSupervisor(opts ...Option) *Supervisor {
	o := buildOptions(opts)
	return &Supervisor{clock: o.clock, restartDelay: time.Second}
}

func (s *Supervisor) Add(name string, r Runner) {
	s.runners = append(s.runners, namedRunner{name: name, runner: r})
}

func (s *Supervisor) Len() int {
	return len(s.runners)
}

// Run blocks until ctx is cancelled and every loop has returned.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, nr := range s.runners {
		g.Go(func() error {
			s.supervise(gctx, nr)
			return nil
		})
	}
	slog.InfoContext(ctx, "supervisor started", "loops", len(s.runners))
	return g.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, nr namedRunner) {
	for {
		err := runSafe(ctx, nr.runner)
		if ctx.Err() != nil || err == nil {
			return
		}

		slog.ErrorContext(ctx, "loop exited, restarting", "loop", nr.name, "error", err, "restart_in", s.restartDelay)
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.restartDelay):
		}
	}
}

func runSafe(ctx context.Context, r Runner) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Run(ctx)
}
