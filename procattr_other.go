//go:build !windows

package winsvc

import "os/exec"

// setProcAttrs is a no-op outside Windows; debug mode relies on the
// default process group semantics.
func setProcAttrs(_ *exec.Cmd) {}
