package winsvc

import (
	"io/fs"
	"sync/atomic"
	"time"
)

// Supervision defaults
const (
	// DefaultPollInterval is the cadence at which the supervisor checks
	// the child's exit status and the stop flag
	DefaultPollInterval = 1 * time.Second

	// DefaultControlPoll is the cadence at which the control-wait loop
	// polls the stop flag
	DefaultControlPoll = 500 * time.Millisecond

	// DefaultCoolDown is the fixed pause between a child exit and the
	// next respawn
	DefaultCoolDown = 5 * time.Second

	// DefaultInitialDelay is the base delay for spawn-failure backoff
	DefaultInitialDelay = 2 * time.Second

	// DefaultMaxAttempts is the number of consecutive spawn failures
	// tolerated before the supervisor gives up
	DefaultMaxAttempts = 5

	// BackoffExponentCap bounds the backoff multiplier at 2^8, so the
	// longest delay is DefaultInitialDelay * 256
	BackoffExponentCap = 8

	// DefaultKillWait bounds how long a stop waits for a signaled child
	// to actually exit
	DefaultKillWait = 10 * time.Second

	// DefaultWatchDebounce is the default debounce time for config store
	// watching
	DefaultWatchDebounce = 25 * time.Millisecond

	// DefaultRestartPause is the fixed pause between stop and start in a
	// restart
	DefaultRestartPause = 2 * time.Second

	// DefaultStopWait bounds how long a registry Stop waits for the
	// service to reach the stopped state
	DefaultStopWait = 30 * time.Second
)

// DebugModeEnv is the environment variable selecting standalone debug
// execution for the service host. Any value other than "1" selects the
// platform dispatcher.
const DebugModeEnv = "WINSVC_DEBUG"

// File modes for the file-backed store
const (
	// DirMode is the default mode for created directories
	DirMode fs.FileMode = 0o755

	// FileMode is the default mode for created config records
	FileMode fs.FileMode = 0o644

	// LogFileMode is the mode for redirect targets opened in append mode
	LogFileMode fs.FileMode = 0o644
)

// Phase is the lifecycle status a hosted service reports to the platform.
// It advances only forward within a run; Running is reported exactly once,
// right after control registration.
type Phase int

const (
	// PhaseStarting is reported while control registration is in progress
	PhaseStarting Phase = iota
	// PhaseRunning is reported once the control loop is serving requests
	PhaseRunning
	// PhaseStopPending is reported when a stop or shutdown request arrives
	PhaseStopPending
	// PhaseStopped is reported when the control loop exits
	PhaseStopped
)

// String returns the SCM-style name of the phase
func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "START_PENDING"
	case PhaseRunning:
		return "RUNNING"
	case PhaseStopPending:
		return "STOP_PENDING"
	case PhaseStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ControlCode identifies a platform control request delivered to a running
// service.
type ControlCode int

const (
	// ControlInterrogate asks the service to re-report its current status
	ControlInterrogate ControlCode = iota
	// ControlStop requests an orderly stop
	ControlStop
	// ControlShutdown is delivered when the system is going down
	ControlShutdown
)

// String returns the control code name
func (c ControlCode) String() string {
	switch c {
	case ControlInterrogate:
		return "interrogate"
	case ControlStop:
		return "stop"
	case ControlShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ControlRequest is one control delivery from the platform's control
// primitive, adapted onto the portable control loop.
type ControlRequest struct {
	// Code is the requested control operation
	Code ControlCode
}

// StopFlag is the single cancellation signal shared by the control-wait
// loop and the supervision loop. It is write-once per run: once set it
// stays set, and no spawn attempt is made after it is observed.
type StopFlag struct {
	v atomic.Bool
}

// Set raises the flag. Setting an already-set flag is a no-op.
func (f *StopFlag) Set() {
	f.v.Store(true)
}

// IsSet reports whether the flag has been raised
func (f *StopFlag) IsSet() bool {
	return f.v.Load()
}

// StatusReporter receives phase transitions destined for the platform
// service controller. The SCM-attached host adapts this onto the service
// status handle; debug mode logs the transitions.
type StatusReporter interface {
	Report(Phase)
}
