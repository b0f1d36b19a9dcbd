package winsvc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// recordExt is the extension of per-service config records
const recordExt = ".toml"

// fileRecord is the on-disk shape of one service record. Optional fields
// carry omitempty so an absent value stays absent in the record instead of
// round-tripping as an empty string.
type fileRecord struct {
	Executable string   `toml:"executable"`
	Args       []string `toml:"args,omitempty"`
	WorkingDir string   `toml:"working_directory,omitempty"`
	StdoutPath string   `toml:"stdout_path,omitempty"`
	StderrPath string   `toml:"stderr_path,omitempty"`
}

// FileStore persists one TOML record per service under a base directory.
// Records are written atomically. It backs standalone debug setups and
// tests; production Windows hosts use RegistryStore.
type FileStore struct {
	// Dir is the base directory holding the records
	Dir string

	// WatchDebounce is the debounce duration for Watch events
	WatchDebounce time.Duration

	logger zerolog.Logger
}

// FileStoreOption configures a FileStore
type FileStoreOption func(*FileStore)

// WithStoreLogger sets the logger used for non-fatal store failures
func WithStoreLogger(l zerolog.Logger) FileStoreOption {
	return func(s *FileStore) {
		s.logger = l
	}
}

// WithStoreWatchDebounce sets the debounce duration for Watch events
func WithStoreWatchDebounce(d time.Duration) FileStoreOption {
	return func(s *FileStore) {
		s.WatchDebounce = d
	}
}

// NewFileStore creates a FileStore rooted at dir, creating the directory
// if needed.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving store dir: %w", err)
	}

	s := &FileStore{
		Dir:           absDir,
		WatchDebounce: DefaultWatchDebounce,
		logger:        zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.Dir, DirMode); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	return s, nil
}

func (s *FileStore) recordPath(name string) string {
	return filepath.Join(s.Dir, name+recordExt)
}

// Save writes the record atomically
func (s *FileStore) Save(cfg *ServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return &OpError{Op: OpSave, Service: cfg.Name, Err: err}
	}

	rec := fileRecord{
		Executable: cfg.Executable,
		Args:       cfg.Args,
		WorkingDir: cfg.WorkingDir,
		StdoutPath: cfg.StdoutPath,
		StderrPath: cfg.StderrPath,
	}

	data, err := toml.Marshal(rec)
	if err != nil {
		return &OpError{Op: OpSave, Service: cfg.Name, Err: err}
	}

	if err := renameio.WriteFile(s.recordPath(cfg.Name), data, FileMode); err != nil {
		return &OpError{Op: OpSave, Service: cfg.Name, Err: err}
	}

	return nil
}

// Load reads and validates the record for the named service
func (s *FileStore) Load(name string) (*ServiceConfig, error) {
	data, err := os.ReadFile(s.recordPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &OpError{Op: OpLoad, Service: name, Err: ErrConfigMissing}
		}
		return nil, &OpError{Op: OpLoad, Service: name, Err: err}
	}

	var rec fileRecord
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, &OpError{Op: OpLoad, Service: name, Err: fmt.Errorf("%w: %v", ErrConfigCorrupt, err)}
	}

	cfg := &ServiceConfig{
		Name:       name,
		Executable: rec.Executable,
		Args:       rec.Args,
		WorkingDir: rec.WorkingDir,
		StdoutPath: rec.StdoutPath,
		StderrPath: rec.StderrPath,
	}
	if cfg.Args == nil {
		cfg.Args = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &OpError{Op: OpLoad, Service: name, Err: err}
	}
	if err := cfg.checkExecutable(); err != nil {
		return nil, &OpError{Op: OpLoad, Service: name, Err: err}
	}

	return cfg, nil
}

// Delete removes the record, tolerating an already-absent one
func (s *FileStore) Delete(name string) error {
	if err := os.Remove(s.recordPath(name)); err != nil && !os.IsNotExist(err) {
		return &OpError{Op: OpDelete, Service: name, Err: err}
	}
	return nil
}

// List returns the names of all stored services, sorted
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, &OpError{Op: OpEnumerate, Service: "", Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), recordExt))
	}
	sort.Strings(names)

	return names, nil
}
