//go:build windows

package winsvc

import (
	"os/exec"
	"syscall"
)

// createNoWindow keeps console children of the host from flashing a window
// when the service runs in a desktop session.
const createNoWindow = 0x08000000

// setProcAttrs detaches the child from the host's console and process
// group so SCM-initiated teardown of the host does not tear the child down
// behind the supervisor's back.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | createNoWindow,
	}
}
