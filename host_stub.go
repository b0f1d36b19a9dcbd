//go:build !windows

package winsvc

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// DefaultStore off Windows is a file store under the user config
// directory, which keeps debug-mode runs usable everywhere.
func DefaultStore(logger zerolog.Logger) (Store, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return NewFileStore(filepath.Join(base, "winsvc"), WithStoreLogger(logger))
}

// runService requires the Windows service control dispatcher; elsewhere
// only debug mode is available.
func (h *Host) runService(ctx context.Context, cfg *ServiceConfig) error {
	return &OpError{Op: OpDispatch, Service: h.Name, Err: ErrUnsupported}
}
