package winsvc

// Version is the current version of the go-winsvc library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Platform is the service controller this build targets
	Platform string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:  Version,
		Platform: "windows/scm",
	}
}
