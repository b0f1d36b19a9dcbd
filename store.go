package winsvc

// Store persists launch configuration per service, keyed by service name.
//
// Two implementations exist: RegistryStore keeps records under the
// service's Parameters registry key (Windows only), FileStore keeps one
// TOML record per service in a directory and works everywhere.
type Store interface {
	// Save persists the config. Failures on secondary fields (working
	// directory, redirect targets) are logged and non-fatal; failures on
	// the executable or the argument list are returned.
	Save(cfg *ServiceConfig) error

	// Load retrieves the config for the named service. It returns
	// ErrConfigMissing when no record exists or the executable value is
	// absent, ErrConfigCorrupt when the argument list cannot be decoded,
	// and ErrExecutableMissing when the target is not on disk.
	Load(name string) (*ServiceConfig, error)

	// Delete removes the record. Deleting an absent record is not an
	// error.
	Delete(name string) error
}

// Registry value names of a persisted record, written under the
// service's Parameters key.
const (
	// ValueTargetExecutable is the required target program path
	ValueTargetExecutable = "TargetExecutable"
	// ValueArguments is the encoded array-of-strings argument list
	ValueArguments = "Arguments"
	// ValueWorkingDirectory is the optional child working directory
	ValueWorkingDirectory = "WorkingDirectory"
	// ValueStdoutPath is the optional stdout redirect target
	ValueStdoutPath = "StdoutPath"
	// ValueStderrPath is the optional stderr redirect target
	ValueStderrPath = "StderrPath"
)
