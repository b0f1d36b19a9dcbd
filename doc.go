// Package winsvc provides a native Go service supervisor for the Windows
// Service Control Manager, in the spirit of NSSM: it registers an arbitrary
// executable as a Windows service, hosts it as a supervised child process,
// and keeps it alive across crashes with bounded retry.
//
// The core functionality centers around the Host type, which loads the
// persisted launch configuration for a named service and runs the
// supervision and control loops:
//
//	host := winsvc.NewHost("myapp")
//	if err := host.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// Host selects between two execution modes: attached to the SCM dispatcher
// (the normal path when the process is started by the service controller)
// and a standalone debug mode driven by Ctrl+C, selected with the
// WINSVC_DEBUG environment variable. Both converge on the same Supervisor.
//
// # Configuration Store
//
// Launch configuration is persisted per service. On Windows the RegistryStore
// keeps it under the service's Parameters registry key, which survives as
// long as the service itself. The FileStore keeps one TOML record per
// service and backs debug setups and tests:
//
//	store, _ := winsvc.NewFileStore("/var/lib/winsvc")
//	err := store.Save(&winsvc.ServiceConfig{
//	    Name:       "myapp",
//	    Executable: `C:\app\myapp.exe`,
//	    Args:       []string{"--port", "8080"},
//	})
//
// # Service Registry Facade
//
// The ServiceRegistry interface wraps the thin create/delete/start/stop/query
// calls against the SCM. On non-Windows builds the facade and the dispatcher
// report ErrUnsupported; the supervisor, the stores, and the control loop are
// portable and fully testable everywhere.
//
// # Design Philosophy
//
// This library prioritizes:
//
//   - Exactly one supervised child process per service instance
//   - A single, write-once stop signal observed cooperatively by every loop
//   - Bounded exponential backoff for spawn failures, flat cool-down for exits
//   - Context-aware operations with proper timeouts
//   - No shelling out to sc.exe or PowerShell
package winsvc
