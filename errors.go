package winsvc

import (
	"errors"
	"fmt"
)

// Common errors returned by winsvc operations
var (
	// ErrConfigMissing indicates a required persisted value is absent for
	// the service
	ErrConfigMissing = errors.New("winsvc: config missing")

	// ErrConfigCorrupt indicates a persisted value could not be decoded
	ErrConfigCorrupt = errors.New("winsvc: config corrupt")

	// ErrExecutableMissing indicates the configured target executable does
	// not exist on disk
	ErrExecutableMissing = errors.New("winsvc: target executable missing")

	// ErrSpawnFailed indicates the supervisor exhausted its spawn attempts
	ErrSpawnFailed = errors.New("winsvc: spawn failed")

	// ErrServiceExists indicates a service with that name is already
	// registered with the SCM
	ErrServiceExists = errors.New("winsvc: service already exists")

	// ErrServiceNotFound indicates the named service is not registered
	ErrServiceNotFound = errors.New("winsvc: service not found")

	// ErrUnsupported indicates the operation requires the Windows SCM and
	// this build does not have it
	ErrUnsupported = errors.New("winsvc: not supported on this platform")
)

// Op identifies the operation an OpError originated from
type Op string

// Operations recorded in errors
const (
	OpSave      Op = "save"
	OpLoad      Op = "load"
	OpDelete    Op = "delete"
	OpWatch     Op = "watch"
	OpSpawn     Op = "spawn"
	OpStop      Op = "stop"
	OpCreate    Op = "create"
	OpStart     Op = "start"
	OpQuery     Op = "query"
	OpEnumerate Op = "enumerate"
	OpDispatch  Op = "dispatch"
)

// OpError represents an error from a winsvc operation against one service
type OpError struct {
	// Op is the operation that failed
	Op Op
	// Service is the service name involved
	Service string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("winsvc %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("winsvc %s %q: %v", e.Op, e.Service, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple errors from bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Unwrap exposes the accumulated errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError
// itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
