package winsvc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/axondata/go-winsvc/internal/cmdline"
)

// Supervisor owns the lifecycle of exactly one child process for one
// service instance: spawn, monitor, restart, kill. It implements a single
// restart policy: a child exit (success or failure) is followed by a fixed
// cool-down and a respawn; a spawn failure is retried with bounded
// exponential backoff and becomes fatal after MaxAttempts consecutive
// failures.
type Supervisor struct {
	// Config is the launch configuration of the supervised service
	Config *ServiceConfig

	// PollInterval is the cadence at which the stop flag is re-checked
	// while the child runs
	PollInterval time.Duration

	// CoolDown is the fixed pause between a child exit and the respawn
	CoolDown time.Duration

	// InitialDelay is the base delay for spawn-failure backoff
	InitialDelay time.Duration

	// MaxAttempts is the number of consecutive spawn failures tolerated
	// before Run returns ErrSpawnFailed
	MaxAttempts int

	// KillWait bounds how long a stop waits for the signaled child
	KillWait time.Duration

	logger zerolog.Logger

	// waitFn sleeps for the given duration, waking early when the stop
	// flag is raised or the context ends. Replaced in tests.
	waitFn func(context.Context, *StopFlag, time.Duration)

	// mu guards the live child handle so that read/replace is atomic with
	// respect to a concurrently arriving stop request
	mu       sync.Mutex
	proc     *os.Process
	attempts int
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithPollInterval sets the stop flag / exit status poll cadence
func WithPollInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.PollInterval = d
	}
}

// WithCoolDown sets the pause between a child exit and the respawn
func WithCoolDown(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.CoolDown = d
	}
}

// WithInitialDelay sets the base delay for spawn-failure backoff
func WithInitialDelay(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.InitialDelay = d
	}
}

// WithMaxAttempts sets the spawn failure budget
func WithMaxAttempts(n int) SupervisorOption {
	return func(s *Supervisor) {
		s.MaxAttempts = n
	}
}

// WithKillWait bounds the wait for a signaled child to exit
func WithKillWait(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.KillWait = d
	}
}

// WithSupervisorLogger sets the supervisor's logger
func WithSupervisorLogger(l zerolog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// NewSupervisor creates a Supervisor for the given launch configuration
func NewSupervisor(cfg *ServiceConfig, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		Config:       cfg,
		PollInterval: DefaultPollInterval,
		CoolDown:     DefaultCoolDown,
		InitialDelay: DefaultInitialDelay,
		MaxAttempts:  DefaultMaxAttempts,
		KillWait:     DefaultKillWait,
		logger:       zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.waitFn == nil {
		s.waitFn = s.pollWait
	}

	return s
}

// Pid returns the PID of the live child, or 0 when none is running
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return 0
	}
	return s.proc.Pid
}

// Attempts returns the current consecutive spawn failure count
func (s *Supervisor) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Run drives the supervision loop until the stop flag is raised, the
// context ends, or the spawn failure budget is exhausted. The stop flag is
// observed within one poll interval; once it is seen set, no further spawn
// attempt is made.
func (s *Supervisor) Run(ctx context.Context, stop *StopFlag) error {
	for {
		if stop.IsSet() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd, closers, err := s.spawn()
		if err != nil {
			s.mu.Lock()
			s.attempts++
			attempts := s.attempts
			s.mu.Unlock()

			s.logger.Error().Err(err).Int("attempt", attempts).Int("max", s.MaxAttempts).
				Str("service", s.Config.Name).Msg("spawning child failed")

			if attempts >= s.MaxAttempts {
				return &OpError{
					Op:      OpSpawn,
					Service: s.Config.Name,
					Err:     fmt.Errorf("%w: giving up after %d attempts: %v", ErrSpawnFailed, attempts, err),
				}
			}

			delay := s.InitialDelay << uint(min(attempts-1, BackoffExponentCap))
			s.logger.Info().Dur("delay", delay).Msg("retrying spawn after backoff")
			s.waitFn(ctx, stop, delay)
			continue
		}

		s.mu.Lock()
		s.attempts = 0
		s.proc = cmd.Process
		s.mu.Unlock()

		s.logger.Info().Int("pid", cmd.Process.Pid).Str("service", s.Config.Name).
			Str("cmd", cmdline.Join(s.Config.Argv())).Msg("child started")

		stopped := s.monitor(ctx, cmd, stop)

		s.mu.Lock()
		s.proc = nil
		s.mu.Unlock()

		for _, c := range closers {
			_ = c.Close()
		}

		if stopped || stop.IsSet() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.Info().Dur("cooldown", s.CoolDown).Msg("respawning after cool-down")
		s.waitFn(ctx, stop, s.CoolDown)
	}
}

// spawn builds and starts the child: configured argv and working
// directory, stdin closed, stdout/stderr appended to the configured
// redirect targets or discarded. A redirect target that cannot be opened
// degrades to a discarded stream instead of failing the spawn.
func (s *Supervisor) spawn() (*exec.Cmd, []*os.File, error) {
	cmd := exec.Command(s.Config.Executable, s.Config.Args...)
	cmd.Dir = s.Config.WorkingDir
	setProcAttrs(cmd)

	var closers []*os.File
	cmd.Stdout, closers = s.openRedirect(s.Config.StdoutPath, "stdout", closers)
	cmd.Stderr, closers = s.openRedirect(s.Config.StderrPath, "stderr", closers)

	if err := cmd.Start(); err != nil {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, nil, err
	}

	return cmd, closers, nil
}

// openRedirect opens path in append mode, returning nil (discard) when no
// path is configured or the open fails.
func (s *Supervisor) openRedirect(path, stream string, closers []*os.File) (*os.File, []*os.File) {
	if path == "" {
		return nil, closers
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFileMode)
	if err != nil {
		s.logger.Warn().Err(err).Str("stream", stream).Str("path", path).
			Msg("opening redirect target failed, discarding stream")
		return nil, closers
	}
	return f, append(closers, f)
}

// monitor waits for the child to exit, re-checking the stop flag every
// poll interval. It returns true when the child was taken down by a stop
// request and false when it exited on its own.
func (s *Supervisor) monitor(ctx context.Context, cmd *exec.Cmd, stop *StopFlag) bool {
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			s.logExit(cmd, err)
			return false

		case <-ticker.C:
			if stop.IsSet() || ctx.Err() != nil {
				s.terminate(cmd, done)
				return true
			}

		case <-ctx.Done():
			s.terminate(cmd, done)
			return true
		}
	}
}

// terminate signals the child and waits, bounded by KillWait, for it to
// exit. A child that already exited counts as success.
func (s *Supervisor) terminate(cmd *exec.Cmd, done <-chan error) {
	s.logger.Info().Int("pid", cmd.Process.Pid).Msg("stopping child")

	if err := cmd.Process.Kill(); err != nil && !isProcessGone(err) {
		s.logger.Error().Err(err).Msg("killing child failed")
	}

	select {
	case err := <-done:
		s.logExit(cmd, err)
	case <-time.After(s.KillWait):
		s.logger.Warn().Dur("wait", s.KillWait).Msg("timeout waiting for child to exit")
	}
}

func (s *Supervisor) logExit(cmd *exec.Cmd, err error) {
	ev := s.logger.Info().Str("service", s.Config.Name)
	if state := cmd.ProcessState; state != nil {
		ev = ev.Int("exit_code", state.ExitCode())
	}
	if err != nil {
		ev = ev.AnErr("wait_err", err)
	}
	ev.Msg("child exited")
}

// pollWait sleeps for d in poll-interval slices so a stop request or
// context cancellation is honored promptly even during long backoff.
func (s *Supervisor) pollWait(ctx context.Context, stop *StopFlag, d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		if stop.IsSet() || ctx.Err() != nil {
			return
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		step := s.PollInterval
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(step):
		}
	}
}

// isProcessGone reports whether the error means the child had already
// exited when it was signaled.
func isProcessGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
