//go:build !windows

package procctl

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the child in its own process group so signals reach
// the whole tree (the dev fallback spawns grandchildren).
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalTerm(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

func signalKill(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
