//go:build windows

package procctl

import (
	"os/exec"
	"strconv"
)

func setSysProcAttr(cmd *exec.Cmd) {
	// No process groups to set up; taskkill /T handles the tree.
}

// Windows has no SIGTERM; both paths use an OS-level process-tree kill,
// the forceful one adding /F.
func signalTerm(pid int) error {
	return exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid)).Run()
}

func signalKill(pid int) error {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}
