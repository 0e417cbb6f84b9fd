package procctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vigil-labs/vigilctl/internal/logger"
)

// ErrSpawn is returned when the agent binary is missing and no development
// fallback command is configured.
var ErrSpawn = errors.New("agent binary not found")

// ErrForcedKillTimeout is returned when the process survived even the
// forceful kill window. Termination past that point is best-effort.
var ErrForcedKillTimeout = errors.New("process still running after forced kill")

// LaunchSpec describes how to launch the supervised agent process.
type LaunchSpec struct {
	Name       string   // used for captured log file names
	BinaryPath string   // agent executable path
	Args       []string // e.g. ["--config", "/etc/vigil/config.yaml"]
	// DevCommand is a development fallback invoked with the same Args when
	// BinaryPath does not exist (e.g. "cargo run --" or "go run .").
	DevCommand string
	WorkDir    string
	Env        []string
	Capture    logger.CaptureConfig
}

// Handle owns one spawned agent process. A single waiter goroutine reaps the
// child; every other method only observes it. All methods are safe for
// concurrent use and are no-ops once the process has exited.
type Handle struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	pid       int
	done      chan struct{} // closed by the waiter when Wait returns
	exitErr   error
	exited    bool
	callbacks []func(error)
	closers   []io.Closer
}

// Spawn launches the agent detached from the supervisor's own stdio.
// Stdout/stderr go to the configured capture files, or devnull.
func Spawn(spec LaunchSpec) (*Handle, error) {
	cmd, err := buildCommand(spec)
	if err != nil {
		return nil, err
	}
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	setSysProcAttr(cmd)

	h := &Handle{done: make(chan struct{})}

	name := spec.Name
	if name == "" {
		name = "vigil-agent"
	}
	if spec.Capture.Dir != "" || spec.Capture.StdoutPath != "" || spec.Capture.StderrPath != "" {
		if spec.Capture.Dir != "" {
			_ = os.MkdirAll(spec.Capture.Dir, 0o750)
		}
		outW, errW, _ := spec.Capture.Writers(name)
		if outW != nil {
			cmd.Stdout = outW
			h.closers = append(h.closers, outW)
		}
		if errW != nil {
			cmd.Stderr = errW
			h.closers = append(h.closers, errW)
		}
	}
	if cmd.Stdout == nil {
		cmd.Stdout, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	if cmd.Stderr == nil {
		cmd.Stderr, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}

	if err := cmd.Start(); err != nil {
		h.closeWriters()
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}
	h.cmd = cmd
	h.pid = cmd.Process.Pid

	go h.waitLoop()
	return h, nil
}

// buildCommand resolves the binary or the development fallback.
func buildCommand(spec LaunchSpec) (*exec.Cmd, error) {
	bin := strings.TrimSpace(spec.BinaryPath)
	if bin != "" {
		if _, err := os.Stat(bin); err == nil {
			// ok: operator-supplied executable path
			// #nosec G204
			return exec.Command(bin, spec.Args...), nil
		}
		if p, err := exec.LookPath(bin); err == nil {
			// #nosec G204
			return exec.Command(p, spec.Args...), nil
		}
	}
	if fb := strings.TrimSpace(spec.DevCommand); fb != "" {
		parts := strings.Fields(fb)
		args := append(parts[1:], spec.Args...)
		// #nosec G204
		return exec.Command(parts[0], args...), nil
	}
	return nil, fmt.Errorf("%w: %q (no dev fallback configured)", ErrSpawn, bin)
}

// waitLoop is the single reaper for this handle. It closes the done channel,
// releases log writers and fires exit callbacks exactly once, whatever the
// cause of exit (normal, crash, external kill).
func (h *Handle) waitLoop() {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.exited = true
	h.exitErr = err
	cbs := h.callbacks
	h.callbacks = nil
	h.mu.Unlock()

	h.closeWriters()
	close(h.done)
	for _, cb := range cbs {
		cb(err)
	}
}

func (h *Handle) closeWriters() {
	h.mu.Lock()
	closers := h.closers
	h.closers = nil
	h.mu.Unlock()
	for _, c := range closers {
		_ = c.Close()
	}
}

// PID returns the child's process id. It keeps returning the last pid after
// exit; callers gate on Exited.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

// Exited reports whether the exit notification has fired.
func (h *Handle) Exited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

// ExitErr returns the error from Wait after exit, nil before.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.exited {
		return nil
	}
	return h.exitErr
}

// Done is closed once the process has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// OnExit registers a one-shot callback fired when the process exits. If the
// process is already gone the callback fires immediately on a new goroutine.
func (h *Handle) OnExit(fn func(error)) {
	h.mu.Lock()
	if h.exited {
		err := h.exitErr
		h.mu.Unlock()
		go fn(err)
		return
	}
	h.callbacks = append(h.callbacks, fn)
	h.mu.Unlock()
}

// Terminate requests graceful shutdown and waits up to grace for exit,
// escalating to a forceful kill with a second bound. Calling it on an
// already-exited handle is a no-op success.
func (h *Handle) Terminate(grace, force time.Duration) error {
	if h.Exited() {
		return nil
	}
	pid := h.PID()
	_ = signalTerm(pid)
	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
	}
	_ = signalKill(pid)
	select {
	case <-h.done:
		return nil
	case <-time.After(force):
		return ErrForcedKillTimeout
	}
}
