package winsvc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// runControlLoop is the control-wait loop shared by both execution modes.
// It adapts asynchronous platform control requests into the stop flag and
// reports lifecycle status back through rep.
//
// Running is reported exactly once, on entry, before any request is
// served: readiness is announced to the platform independent of whether
// the child has actually finished starting. The loop then polls the stop
// flag on the poll cadence; upon observing it set it reports Stopped and
// returns. The Stopped report is not conditioned on the child having
// exited - child teardown runs on the supervision loop.
//
// Stop and Shutdown raise the stop flag and are acknowledged immediately.
// Interrogate re-reports the current phase without advancing it. Anything
// else is logged and ignored; the platform adapter answers "not
// supported" for codes it did not subscribe to.
func runControlLoop(ctx context.Context, rep StatusReporter, requests <-chan ControlRequest, stop *StopFlag, poll time.Duration, logger zerolog.Logger) error {
	current := PhaseRunning
	rep.Report(current)
	logger.Info().Msg("control loop running")

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case req := <-requests:
			switch req.Code {
			case ControlStop, ControlShutdown:
				logger.Info().Stringer("control", req.Code).Msg("stop requested")
				// Flag first, so the acknowledgment never announces a stop
				// the supervision loop cannot yet observe.
				stop.Set()
				if current != PhaseStopPending {
					current = PhaseStopPending
					rep.Report(current)
				}

			case ControlInterrogate:
				rep.Report(current)

			default:
				logger.Warn().Stringer("control", req.Code).Msg("unsupported control request")
			}

		case <-ticker.C:
			if stop.IsSet() {
				rep.Report(PhaseStopped)
				logger.Info().Msg("control loop stopped")
				return nil
			}

		case <-ctx.Done():
			stop.Set()
			rep.Report(PhaseStopped)
			logger.Info().Msg("control loop canceled")
			return nil
		}
	}
}
