package winsvc

import (
	"context"

	"github.com/rs/zerolog"
)

// SvcState is a service state as reported by the service control
// manager. The numeric values match the SCM's own SERVICE_* state
// constants.
type SvcState uint32

const (
	// StateUnknown means the state could not be determined
	StateUnknown SvcState = 0
	// StateStopped means the service is not running
	StateStopped SvcState = 1
	// StateStartPending means the service is starting
	StateStartPending SvcState = 2
	// StateStopPending means the service is stopping
	StateStopPending SvcState = 3
	// StateRunning means the service is running
	StateRunning SvcState = 4
	// StateContinuePending means a continue is in progress
	StateContinuePending SvcState = 5
	// StatePausePending means a pause is in progress
	StatePausePending SvcState = 6
	// StatePaused means the service is paused
	StatePaused SvcState = 7
)

// String returns the conventional name for the state
func (s SvcState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStartPending:
		return "START_PENDING"
	case StateStopPending:
		return "STOP_PENDING"
	case StateRunning:
		return "RUNNING"
	case StateContinuePending:
		return "CONTINUE_PENDING"
	case StatePausePending:
		return "PAUSE_PENDING"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// ServiceInfo describes one registered service
type ServiceInfo struct {
	// Name is the service's registered name
	Name string
	// DisplayName is the human-facing name shown by management tools
	DisplayName string
	// State is the last observed service state
	State SvcState
}

// ServiceRegistry is the management surface of the platform service
// controller: registering, removing, and controlling service entries.
// Implementations own a controller connection and must be released with
// Close.
//
// Create returns ErrServiceExists wrapped in an *OpError when the name is
// taken; Start, Stop, Status and Delete return ErrServiceNotFound when it
// is not registered. On platforms without a service controller
// ConnectServiceRegistry fails with ErrUnsupported.
type ServiceRegistry interface {
	// Create registers a service entry that launches the current binary
	// in host mode for cfg.Name
	Create(ctx context.Context, cfg *ServiceConfig, displayName, description string) error
	// Delete removes the service entry, stopping it first if running
	Delete(ctx context.Context, name string) error
	// Start asks the controller to start the service
	Start(ctx context.Context, name string) error
	// Stop asks the service to stop and waits briefly for it to settle
	Stop(ctx context.Context, name string) error
	// Status returns the service's current state
	Status(ctx context.Context, name string) (SvcState, error)
	// List enumerates all registered services
	List(ctx context.Context) ([]ServiceInfo, error)
	// Close releases the controller connection
	Close() error
}

type registryConnOptions struct {
	logger zerolog.Logger
}

// ServiceRegistryOption configures a ServiceRegistry connection
type ServiceRegistryOption func(*registryConnOptions)

// WithServiceRegistryLogger sets the connection's logger
func WithServiceRegistryLogger(l zerolog.Logger) ServiceRegistryOption {
	return func(o *registryConnOptions) {
		o.logger = l
	}
}
