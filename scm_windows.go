//go:build windows

package winsvc

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
)

// scmRegistry is the Windows service control manager implementation of
// ServiceRegistry.
type scmRegistry struct {
	m      *mgr.Mgr
	logger zerolog.Logger
}

// ConnectServiceRegistry connects to the service control manager. The
// connection requires administrative rights for Create and Delete.
func ConnectServiceRegistry(opts ...ServiceRegistryOption) (ServiceRegistry, error) {
	o := registryConnOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := mgr.Connect()
	if err != nil {
		return nil, &OpError{Op: OpCreate, Err: err}
	}
	return &scmRegistry{m: m, logger: o.logger}, nil
}

func (s *scmRegistry) Close() error {
	return s.m.Disconnect()
}

// Create registers a service entry whose launch command re-invokes the
// current binary in host mode for cfg.Name. The launch configuration
// itself is persisted separately through a Store.
func (s *scmRegistry) Create(ctx context.Context, cfg *ServiceConfig, displayName, description string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if displayName == "" {
		displayName = cfg.Name
	}

	exe, err := os.Executable()
	if err != nil {
		return &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
	}

	handle, err := s.m.CreateService(cfg.Name, exe, mgr.Config{
		DisplayName: displayName,
		Description: description,
		StartType:   mgr.StartAutomatic,
	}, "run", "--name", cfg.Name)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_EXISTS) {
			err = ErrServiceExists
		}
		return &OpError{Op: OpCreate, Service: cfg.Name, Err: err}
	}
	defer handle.Close()

	if err := eventlog.InstallAsEventCreate(cfg.Name, eventlog.Error|eventlog.Warning|eventlog.Info); err != nil {
		s.logger.Warn().Err(err).Str("service", cfg.Name).
			Msg("registering event log source failed")
	}

	s.logger.Info().Str("service", cfg.Name).Str("display_name", displayName).
		Msg("service registered")
	return nil
}

// Delete stops the service if it is running, then removes its entry. The
// stop is best-effort; a service that will not settle is deleted anyway
// and the SCM finishes the removal once it exits.
func (s *scmRegistry) Delete(ctx context.Context, name string) error {
	handle, err := s.open(name, OpDelete)
	if err != nil {
		return err
	}
	defer handle.Close()

	if st, qerr := handle.Query(); qerr == nil && st.State != svc.Stopped {
		if _, cerr := handle.Control(svc.Stop); cerr == nil {
			if werr := s.waitForState(ctx, handle, svc.Stopped); werr != nil {
				s.logger.Warn().Err(werr).Str("service", name).
					Msg("service did not stop before removal")
			}
		}
	}

	if err := handle.Delete(); err != nil {
		return &OpError{Op: OpDelete, Service: name, Err: err}
	}

	if err := eventlog.Remove(name); err != nil {
		s.logger.Warn().Err(err).Str("service", name).
			Msg("removing event log source failed")
	}

	s.logger.Info().Str("service", name).Msg("service removed")
	return nil
}

func (s *scmRegistry) Start(ctx context.Context, name string) error {
	handle, err := s.open(name, OpStart)
	if err != nil {
		return err
	}
	defer handle.Close()

	if err := handle.Start(); err != nil {
		return &OpError{Op: OpStart, Service: name, Err: err}
	}
	return nil
}

// Stop asks the service to stop and waits, bounded by DefaultStopWait and
// the context, for it to reach the stopped state. Stopping an already
// stopped service is not an error.
func (s *scmRegistry) Stop(ctx context.Context, name string) error {
	handle, err := s.open(name, OpStop)
	if err != nil {
		return err
	}
	defer handle.Close()

	st, err := handle.Query()
	if err != nil {
		return &OpError{Op: OpStop, Service: name, Err: err}
	}
	if st.State == svc.Stopped {
		return nil
	}

	if _, err := handle.Control(svc.Stop); err != nil {
		return &OpError{Op: OpStop, Service: name, Err: err}
	}
	if err := s.waitForState(ctx, handle, svc.Stopped); err != nil {
		return &OpError{Op: OpStop, Service: name, Err: err}
	}
	return nil
}

func (s *scmRegistry) Status(ctx context.Context, name string) (SvcState, error) {
	handle, err := s.open(name, OpQuery)
	if err != nil {
		return StateUnknown, err
	}
	defer handle.Close()

	st, err := handle.Query()
	if err != nil {
		return StateUnknown, &OpError{Op: OpQuery, Service: name, Err: err}
	}
	return SvcState(st.State), nil
}

// List enumerates all registered services with their display names and
// last observed states. Entries that cannot be opened, typically due to
// access rights, are reported with StateUnknown rather than dropped.
func (s *scmRegistry) List(ctx context.Context) ([]ServiceInfo, error) {
	names, err := s.m.ListServices()
	if err != nil {
		return nil, &OpError{Op: OpEnumerate, Err: err}
	}
	sort.Strings(names)

	infos := make([]ServiceInfo, 0, len(names))
	for _, name := range names {
		info := ServiceInfo{Name: name, DisplayName: name, State: StateUnknown}
		if handle, oerr := s.m.OpenService(name); oerr == nil {
			if cfg, cerr := handle.Config(); cerr == nil && cfg.DisplayName != "" {
				info.DisplayName = cfg.DisplayName
			}
			if st, qerr := handle.Query(); qerr == nil {
				info.State = SvcState(st.State)
			}
			handle.Close()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// open wraps OpenService, translating the SCM's not-found error into
// ErrServiceNotFound.
func (s *scmRegistry) open(name string, op Op) (*mgr.Service, error) {
	handle, err := s.m.OpenService(name)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
			err = ErrServiceNotFound
		}
		return nil, &OpError{Op: op, Service: name, Err: err}
	}
	return handle, nil
}

// waitForState polls the service until it reaches want, the context is
// canceled, or DefaultStopWait elapses.
func (s *scmRegistry) waitForState(ctx context.Context, handle *mgr.Service, want svc.State) error {
	deadline := time.Now().Add(DefaultStopWait)
	for {
		st, err := handle.Query()
		if err != nil {
			return err
		}
		if st.State == want {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("timed out waiting for service state change")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(300 * time.Millisecond):
		}
	}
}
