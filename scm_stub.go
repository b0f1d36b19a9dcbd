//go:build !windows

package winsvc

// ConnectServiceRegistry requires the Windows service control manager
// and fails with ErrUnsupported elsewhere.
func ConnectServiceRegistry(opts ...ServiceRegistryOption) (ServiceRegistry, error) {
	return nil, &OpError{Op: OpCreate, Err: ErrUnsupported}
}
