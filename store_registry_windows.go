//go:build windows

package winsvc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows/registry"
)

// regParamsFormat is the per-service key-value namespace holding the
// launch configuration. It lives next to the SCM's own record for the
// service and is removed at uninstall.
const regParamsFormat = `SYSTEM\CurrentControlSet\Services\%s\Parameters`

// RegistryStore persists launch configuration under the service's
// Parameters registry key.
type RegistryStore struct {
	logger zerolog.Logger
}

// RegistryStoreOption configures a RegistryStore
type RegistryStoreOption func(*RegistryStore)

// WithRegistryLogger sets the logger used for non-fatal save failures
func WithRegistryLogger(l zerolog.Logger) RegistryStoreOption {
	return func(s *RegistryStore) {
		s.logger = l
	}
}

// NewRegistryStore creates a registry-backed Store
func NewRegistryStore(opts ...RegistryStoreOption) *RegistryStore {
	s := &RegistryStore{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func paramsPath(name string) string {
	return fmt.Sprintf(regParamsFormat, name)
}

// Save writes the record under the Parameters key. The required values
// (executable and encoded arguments) fail the save; the secondary values
// are logged and skipped on failure.
func (s *RegistryStore) Save(cfg *ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return &OpError{Op: OpSave, Service: cfg.Name, Err: err}
	}

	key, _, err := registry.CreateKey(registry.LOCAL_MACHINE, paramsPath(cfg.Name), registry.SET_VALUE)
	if err != nil {
		return &OpError{Op: OpSave, Service: cfg.Name, Err: err}
	}
	defer key.Close()

	if err := key.SetStringValue(ValueTargetExecutable, cfg.Executable); err != nil {
		return &OpError{Op: OpSave, Service: cfg.Name, Err: err}
	}

	if len(cfg.Args) > 0 {
		encoded, err := json.Marshal(cfg.Args)
		if err != nil {
			return &OpError{Op: OpSave, Service: cfg.Name, Err: err}
		}
		if err := key.SetStringValue(ValueArguments, string(encoded)); err != nil {
			return &OpError{Op: OpSave, Service: cfg.Name, Err: err}
		}
	} else if err := key.DeleteValue(ValueArguments); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return &OpError{Op: OpSave, Service: cfg.Name, Err: err}
	}

	// Secondary metadata: degrade instead of failing the install.
	secondary := map[string]string{
		ValueWorkingDirectory: cfg.WorkingDir,
		ValueStdoutPath:       cfg.StdoutPath,
		ValueStderrPath:       cfg.StderrPath,
	}
	for valueName, v := range secondary {
		if v == "" {
			if err := key.DeleteValue(valueName); err != nil && !errors.Is(err, registry.ErrNotExist) {
				s.logger.Warn().Err(err).Str("value", valueName).Str("service", cfg.Name).
					Msg("clearing registry value failed")
			}
			continue
		}
		if err := key.SetStringValue(valueName, v); err != nil {
			s.logger.Warn().Err(err).Str("value", valueName).Str("service", cfg.Name).
				Msg("saving registry value failed")
		}
	}

	return nil
}

// Load reads the record for the named service
func (s *RegistryStore) Load(name string) (*ServiceConfig, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, paramsPath(name), registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil, &OpError{Op: OpLoad, Service: name, Err: ErrConfigMissing}
		}
		return nil, &OpError{Op: OpLoad, Service: name, Err: err}
	}
	defer key.Close()

	cfg := &ServiceConfig{Name: name, Args: []string{}}

	cfg.Executable, _, err = key.GetStringValue(ValueTargetExecutable)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil, &OpError{Op: OpLoad, Service: name, Err: fmt.Errorf("%w: %s", ErrConfigMissing, ValueTargetExecutable)}
		}
		return nil, &OpError{Op: OpLoad, Service: name, Err: err}
	}

	if encoded, _, err := key.GetStringValue(ValueArguments); err == nil {
		if err := json.Unmarshal([]byte(encoded), &cfg.Args); err != nil {
			return nil, &OpError{Op: OpLoad, Service: name, Err: fmt.Errorf("%w: %s: %v", ErrConfigCorrupt, ValueArguments, err)}
		}
	} else if !errors.Is(err, registry.ErrNotExist) {
		return nil, &OpError{Op: OpLoad, Service: name, Err: err}
	}

	// Optional values stay absent when unset.
	for valueName, dst := range map[string]*string{
		ValueWorkingDirectory: &cfg.WorkingDir,
		ValueStdoutPath:       &cfg.StdoutPath,
		ValueStderrPath:       &cfg.StderrPath,
	} {
		v, _, err := key.GetStringValue(valueName)
		if err != nil {
			if errors.Is(err, registry.ErrNotExist) {
				continue
			}
			return nil, &OpError{Op: OpLoad, Service: name, Err: fmt.Errorf("%s: %w", valueName, err)}
		}
		*dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, &OpError{Op: OpLoad, Service: name, Err: err}
	}
	if err := cfg.checkExecutable(); err != nil {
		return nil, &OpError{Op: OpLoad, Service: name, Err: err}
	}

	return cfg, nil
}

// Delete removes the Parameters key, tolerating an already-absent one
func (s *RegistryStore) Delete(name string) error {
	err := registry.DeleteKey(registry.LOCAL_MACHINE, paramsPath(name))
	if err != nil && !errors.Is(err, registry.ErrNotExist) {
		return &OpError{Op: OpDelete, Service: name, Err: err}
	}
	return nil
}
