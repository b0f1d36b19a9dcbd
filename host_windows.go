//go:build windows

package winsvc

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
)

// DefaultStore on Windows is the registry-backed store under the SCM
// service key.
func DefaultStore(logger zerolog.Logger) (Store, error) {
	return NewRegistryStore(WithRegistryLogger(logger)), nil
}

// runService attaches to the service control dispatcher. When invoked
// from a console rather than by the SCM it falls back to debug mode so
// that a bare "run" stays diagnosable.
func (h *Host) runService(ctx context.Context, cfg *ServiceConfig) error {
	isSvc, err := svc.IsWindowsService()
	if err != nil {
		return &OpError{Op: OpDispatch, Service: h.Name, Err: err}
	}
	if !isSvc {
		h.logger.Warn().Msg("not launched by the service control manager, falling back to debug mode")
		return h.runDebug(ctx, cfg)
	}

	// The event log source is registered at install time; a host whose
	// source is missing still runs, it just logs to its file only.
	if elog, eerr := eventlog.Open(h.Name); eerr == nil {
		defer elog.Close()
		_ = elog.Info(1, fmt.Sprintf("service %s starting", h.Name))
		defer func() {
			_ = elog.Info(1, fmt.Sprintf("service %s stopped", h.Name))
		}()
	}

	hd := &scmHandler{host: h, cfg: cfg, ctx: ctx}
	if err := svc.Run(h.Name, hd); err != nil {
		return &OpError{Op: OpDispatch, Service: h.Name, Err: err}
	}
	return hd.err
}

// scmHandler adapts the host's serve loop to the dispatcher's Execute
// contract.
type scmHandler struct {
	host *Host
	cfg  *ServiceConfig
	ctx  context.Context
	err  error
}

func (hd *scmHandler) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	const accepts = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	// Translate SCM change requests into control requests for the
	// control-wait loop. The pump exits with Execute.
	requests := make(chan ControlRequest, 4)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case c := <-r:
				switch c.Cmd {
				case svc.Interrogate:
					requests <- ControlRequest{Code: ControlInterrogate}
				case svc.Stop:
					requests <- ControlRequest{Code: ControlStop}
				case svc.Shutdown:
					requests <- ControlRequest{Code: ControlShutdown}
				default:
					hd.host.logger.Warn().Uint32("cmd", uint32(c.Cmd)).Msg("unexpected control request")
				}
			case <-done:
				return
			}
		}
	}()

	rep := &scmReporter{changes: changes, accepts: accepts}
	if err := hd.host.serve(hd.ctx, hd.cfg, rep, requests); err != nil {
		hd.host.logger.Error().Err(err).Msg("service host failed")
		hd.err = err
		return true, 1
	}
	return false, 0
}

// scmReporter forwards phase transitions to the SCM status channel.
type scmReporter struct {
	changes chan<- svc.Status
	accepts svc.Accepted
}

func (r *scmReporter) Report(p Phase) {
	switch p {
	case PhaseStarting:
		r.changes <- svc.Status{State: svc.StartPending}
	case PhaseRunning:
		r.changes <- svc.Status{State: svc.Running, Accepts: r.accepts}
	case PhaseStopPending:
		r.changes <- svc.Status{State: svc.StopPending}
	case PhaseStopped:
		r.changes <- svc.Status{State: svc.Stopped}
	}
}
