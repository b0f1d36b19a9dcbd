package winsvc

import (
	"fmt"
	"os"
)

// ServiceConfig is the persisted launch configuration for one service.
// Name is the unique, immutable key; Executable and Args are required for
// the service to run. The remaining fields are optional: an empty string
// means the field is absent and must round-trip as absent.
type ServiceConfig struct {
	// Name is the service name the config is keyed by
	Name string
	// Executable is the target program the host spawns and supervises
	Executable string
	// Args are the arguments passed to the target, in order
	Args []string
	// WorkingDir is the child's working directory, if set
	WorkingDir string
	// StdoutPath is an append-mode redirect target for the child's stdout
	StdoutPath string
	// StderrPath is an append-mode redirect target for the child's stderr
	StderrPath string
}

// Validate checks the required fields are present
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: service name required", ErrConfigMissing)
	}
	if c.Executable == "" {
		return fmt.Errorf("%w: target executable required", ErrConfigMissing)
	}
	return nil
}

// checkExecutable verifies the configured target exists on disk. The
// service cannot run without it, so Load fails loudly on this.
func (c *ServiceConfig) checkExecutable() error {
	if _, err := os.Stat(c.Executable); err != nil {
		return fmt.Errorf("%w: %s", ErrExecutableMissing, c.Executable)
	}
	return nil
}

// Argv returns the full child argv: the executable followed by the
// configured arguments.
func (c *ServiceConfig) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Executable)
	argv = append(argv, c.Args...)
	return argv
}
