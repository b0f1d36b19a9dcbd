package winsvc

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Host runs the service host for one named service: it loads the
// persisted launch configuration, selects the execution mode, and drives
// the supervision and control-wait loops until stopped. A Host is good
// for exactly one run; its stop flag, once raised, stays raised.
type Host struct {
	// Name is the service being hosted
	Name string

	// ControlPoll is the stop flag poll cadence of the control-wait loop
	ControlPoll time.Duration

	store   Store
	logger  zerolog.Logger
	supOpts []SupervisorOption
	stop    StopFlag
}

// HostOption configures a Host
type HostOption func(*Host)

// WithHostStore overrides the platform default config store
func WithHostStore(s Store) HostOption {
	return func(h *Host) {
		h.store = s
	}
}

// WithHostLogger sets the host's logger
func WithHostLogger(l zerolog.Logger) HostOption {
	return func(h *Host) {
		h.logger = l
	}
}

// WithControlPoll sets the control-wait loop poll cadence
func WithControlPoll(d time.Duration) HostOption {
	return func(h *Host) {
		h.ControlPoll = d
	}
}

// WithHostSupervisorOptions passes options through to the Supervisor
func WithHostSupervisorOptions(opts ...SupervisorOption) HostOption {
	return func(h *Host) {
		h.supOpts = append(h.supOpts, opts...)
	}
}

// NewHost creates a Host for the named service
func NewHost(name string, opts ...HostOption) *Host {
	h := &Host{
		Name:        name,
		ControlPoll: DefaultControlPoll,
		logger:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Stop raises the host's stop flag. It is safe to call from any
// goroutine and more than once.
func (h *Host) Stop() {
	h.stop.Set()
}

// Run loads the configuration and serves the instance until stopped. With
// WINSVC_DEBUG=1 it runs standalone, driven by the interrupt signal;
// otherwise it attaches to the platform service dispatcher. A missing or
// corrupt configuration, a dead executable path, and an exhausted spawn
// budget are all fatal.
func (h *Host) Run(ctx context.Context) error {
	if h.store == nil {
		store, err := DefaultStore(h.logger)
		if err != nil {
			return &OpError{Op: OpLoad, Service: h.Name, Err: err}
		}
		h.store = store
	}

	cfg, err := h.store.Load(h.Name)
	if err != nil {
		return err
	}

	h.logger.Info().Str("service", h.Name).Str("executable", cfg.Executable).
		Strs("args", cfg.Args).Msg("hosting service")

	if debugMode() {
		return h.runDebug(ctx, cfg)
	}
	return h.runService(ctx, cfg)
}

// debugMode reports whether the environment toggle selects standalone
// execution
func debugMode() bool {
	return os.Getenv(DebugModeEnv) == "1"
}

// runDebug runs the identical supervision and control-wait loops inline,
// with the user interrupt raising the same stop flag the dispatcher path
// uses.
func (h *Host) runDebug(ctx context.Context, cfg *ServiceConfig) error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-sigc:
			h.logger.Info().Msg("interrupt received, stopping")
			h.Stop()
		case <-stopped:
		}
	}()

	h.logger.Info().Str("service", h.Name).Msg("running in debug mode, press Ctrl+C to stop")
	return h.serve(ctx, cfg, logReporter{h.logger}, nil)
}

// serve runs the two loops of a service instance under one group: the
// supervision loop and the control-wait loop, communicating only through
// the shared stop flag.
func (h *Host) serve(ctx context.Context, cfg *ServiceConfig, rep StatusReporter, requests <-chan ControlRequest) error {
	sup := NewSupervisor(cfg, append([]SupervisorOption{WithSupervisorLogger(h.logger)}, h.supOpts...)...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sup.Run(gctx, &h.stop)
	})
	g.Go(func() error {
		return runControlLoop(gctx, rep, requests, &h.stop, h.ControlPoll, h.logger)
	})

	return g.Wait()
}

// logReporter reports phase transitions to the log; it stands in for the
// platform status handle in debug mode.
type logReporter struct {
	logger zerolog.Logger
}

func (r logReporter) Report(p Phase) {
	r.logger.Info().Stringer("status", p).Msg("status reported")
}
