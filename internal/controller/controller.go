// Package controller owns the agent lifecycle state machine. All mutations
// of the shared agent state happen inside a single command goroutine that
// executes one operation at a time; Status reads a snapshot without touching
// the queue.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigil-labs/vigilctl/internal/agentcfg"
	"github.com/vigil-labs/vigilctl/internal/health"
	"github.com/vigil-labs/vigilctl/internal/history"
	"github.com/vigil-labs/vigilctl/internal/logger"
	"github.com/vigil-labs/vigilctl/internal/metrics"
	"github.com/vigil-labs/vigilctl/internal/procctl"
)

// State is the agent's lifecycle position as tracked by the supervisor.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Outcome distinguishes the terminal results of a telegram toggle.
type Outcome string

const (
	// OutcomeApplied means the requested configuration is running.
	OutcomeApplied Outcome = "applied"
	// OutcomeUnchanged means the flag was already at the target value.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeRolledBack means the new configuration failed to come up but the
	// previous one was restored; the agent is running as before the toggle.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeFailed means both the toggle and the rollback failed; the agent
	// is stopped and needs a manual start.
	OutcomeFailed Outcome = "failed"
)

// Result is the value every lifecycle operation resolves to. Nothing escapes
// the controller as a panic or uncaught error.
type Result struct {
	OK      bool    `json:"ok"`
	Outcome Outcome `json:"outcome,omitempty"` // set for toggle operations
	Message string  `json:"message,omitempty"`
}

// Snapshot is the observable agent state returned by Status.
type Snapshot struct {
	State           State  `json:"state"`
	Running         bool   `json:"running"`
	PID             int    `json:"pid,omitempty"`
	TelegramEnabled bool   `json:"telegram_enabled"`
	BaseAddress     string `json:"base_address"`
	Transitioning   bool   `json:"transitioning"`
	LastError       string `json:"last_error,omitempty"`
}

// StartOptions selects what to launch. Zero-value fields fall back to the
// controller's configured defaults.
type StartOptions struct {
	BinaryPath      string `json:"binary_path,omitempty"`
	ConfigPath      string `json:"config_path,omitempty"`
	TelegramEnabled bool   `json:"telegram_enabled"`
}

// ProcessHandle is the view of a spawned agent the controller needs. The real
// implementation is *procctl.Handle; tests substitute fakes.
type ProcessHandle interface {
	PID() int
	Exited() bool
	OnExit(fn func(error))
	Terminate(grace, force time.Duration) error
}

// Spawner launches agent processes.
type Spawner interface {
	Spawn(spec procctl.LaunchSpec) (ProcessHandle, error)
}

// Prober gates a freshly spawned agent on its liveness endpoint.
type Prober interface {
	WaitHealthy(ctx context.Context, baseURL string, proc health.Process, timeout time.Duration) bool
}

// ConfigStore is the slice of the agent config layer the controller uses.
type ConfigStore interface {
	LoadOrDefault() agentcfg.Document
	SetTelegramEnabled(target bool) (bool, error)
}

// execSpawner adapts procctl.Spawn to the Spawner interface.
type execSpawner struct{}

func (execSpawner) Spawn(spec procctl.LaunchSpec) (ProcessHandle, error) {
	return procctl.Spawn(spec)
}

// Config configures a Controller. BinaryPath and ConfigPath are required for
// real use; Spawner/Prober/Store default to the production implementations.
type Config struct {
	BinaryPath string
	ConfigPath string
	// DevCommand is the development fallback launch command used when
	// BinaryPath is missing (e.g. "cargo run --").
	DevCommand string
	WorkDir    string
	Capture    logger.CaptureConfig

	HealthTimeout time.Duration // default 30s
	GraceTimeout  time.Duration // default 7s before escalating to kill
	ForceTimeout  time.Duration // default 2s after kill

	Spawner Spawner
	Prober  Prober
	Store   ConfigStore
	Sink    history.Sink // optional lifecycle event sink
	Logger  *slog.Logger
}

const (
	defaultGraceTimeout = 7 * time.Second
	defaultForceTimeout = 2 * time.Second
)

// agentState is the mutable state shared between the command goroutine
// (writes) and Status (reads).
type agentState struct {
	status          State
	handle          ProcessHandle
	gen             uint64 // identity of the tracked handle, bumped per spawn
	pid             int
	telegramEnabled bool
	baseAddress     string
	lastError       string
}

type command struct {
	run      func() Result
	reply    chan Result
	external bool // counts toward the transitioning flag
}

// Controller serializes start/stop/toggle operations over a single agent
// process. Create with New, release with Shutdown.
type Controller struct {
	cfg     Config
	cmds    chan command
	pending atomic.Int64 // queued plus executing external operations
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu sync.RWMutex
	st agentState
}

// New creates a Controller and starts its command goroutine.
func New(cfg Config) *Controller {
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = health.DefaultTimeout
	}
	if cfg.GraceTimeout <= 0 {
		cfg.GraceTimeout = defaultGraceTimeout
	}
	if cfg.ForceTimeout <= 0 {
		cfg.ForceTimeout = defaultForceTimeout
	}
	if cfg.Spawner == nil {
		cfg.Spawner = execSpawner{}
	}
	if cfg.Prober == nil {
		cfg.Prober = &health.Probe{}
	}
	if cfg.Store == nil {
		cfg.Store = agentcfg.NewStore(cfg.ConfigPath)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Controller{
		cfg:     cfg,
		cmds:    make(chan command, 16),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	c.st.status = StateStopped
	c.st.baseAddress = agentcfg.BaseAddress(cfg.Store.LoadOrDefault())
	go c.loop()
	return c
}

// loop executes queued operations strictly one at a time.
func (c *Controller) loop() {
	defer close(c.stopped)
	for {
		select {
		case cmd := <-c.cmds:
			res := cmd.run()
			if cmd.external {
				c.pending.Add(-1)
			}
			if cmd.reply != nil {
				cmd.reply <- res
			}
		case <-c.quit:
			return
		}
	}
}

// submit enqueues an operation and blocks until it resolves. After Shutdown
// every submission resolves immediately with a shutdown message.
func (c *Controller) submit(fn func() Result) Result {
	reply := make(chan Result, 1)
	c.pending.Add(1)
	select {
	case c.cmds <- command{run: fn, reply: reply, external: true}:
	case <-c.quit:
		c.pending.Add(-1)
		return Result{Message: "supervisor is shut down"}
	}
	select {
	case r := <-reply:
		return r
	case <-c.stopped:
		return Result{Message: "supervisor is shut down"}
	}
}

// Start launches the agent and waits for it to become healthy. A no-op when
// the agent is already running.
func (c *Controller) Start(opts StartOptions) Result {
	return c.submit(func() Result { return c.doStart(opts) })
}

// Stop terminates the agent. Idempotent; the state always ends Stopped.
func (c *Controller) Stop() Result {
	return c.submit(func() Result { return c.doStop() })
}

// SetTelegramEnabled flips the telegram alerting flag. When the agent is
// running this restarts it with the new configuration and rolls back to the
// previous one if the restart fails health.
func (c *Controller) SetTelegramEnabled(target bool) Result {
	return c.submit(func() Result { return c.doToggle(target) })
}

// Status returns the current snapshot immediately. It never enters the
// operation queue and never blocks on an in-flight transition.
func (c *Controller) Status() Snapshot {
	c.mu.RLock()
	st := c.st
	c.mu.RUnlock()

	snap := Snapshot{
		State:           st.status,
		TelegramEnabled: st.telegramEnabled,
		BaseAddress:     st.baseAddress,
		Transitioning:   c.pending.Load() > 0,
		LastError:       st.lastError,
	}
	// Never report a pid for a handle whose exit already fired.
	if st.handle != nil && !st.handle.Exited() {
		snap.PID = st.pid
		snap.Running = st.status == StateRunning
	}
	return snap
}

// Shutdown force-stops the agent and tears down the command goroutine.
// Further operations resolve with a shutdown message.
func (c *Controller) Shutdown() {
	c.once.Do(func() {
		_ = c.submit(func() Result { return c.doStop() })
		close(c.quit)
		<-c.stopped
	})
}

// --- operations, executed on the command goroutine only ---

func (c *Controller) doStart(opts StartOptions) Result {
	if c.liveHandle() != nil {
		metrics.IncOperation("start", "noop")
		return Result{OK: false, Message: "agent is already running"}
	}
	res := c.startAgent(opts)
	if res.OK {
		metrics.IncOperation("start", "ok")
	} else {
		metrics.IncOperation("start", "error")
	}
	return res
}

func (c *Controller) doStop() Result {
	if c.liveHandle() == nil {
		c.resetStopped("")
		metrics.IncOperation("stop", "noop")
		return Result{OK: true, Message: "agent is not running"}
	}
	err := c.stopAgent()
	if err != nil {
		metrics.IncOperation("stop", "error")
		return Result{OK: false, Message: fmt.Sprintf("stop: %v", err)}
	}
	metrics.IncOperation("stop", "ok")
	return Result{OK: true}
}

func (c *Controller) doToggle(target bool) Result {
	c.mu.RLock()
	current := c.st.telegramEnabled
	c.mu.RUnlock()
	live := c.liveHandle() != nil

	if !live {
		// Config write only; nothing to restart.
		changed, err := c.cfg.Store.SetTelegramEnabled(target)
		if err != nil {
			metrics.IncOperation("toggle", string(OutcomeFailed))
			return Result{OK: false, Outcome: OutcomeFailed, Message: fmt.Sprintf("persist telegram flag: %v", err)}
		}
		c.mu.Lock()
		c.st.telegramEnabled = target
		c.mu.Unlock()
		outcome := OutcomeApplied
		if !changed {
			outcome = OutcomeUnchanged
		}
		c.recordEvent(history.EventToggle, string(outcome))
		metrics.IncOperation("toggle", string(outcome))
		return Result{OK: true, Outcome: outcome}
	}

	if current == target {
		metrics.IncOperation("toggle", string(OutcomeUnchanged))
		return Result{OK: true, Outcome: OutcomeUnchanged}
	}

	previous := current
	if err := c.stopAgent(); err != nil {
		c.cfg.Logger.Warn("stop before toggle", "error", err)
	}
	res := c.startAgent(StartOptions{TelegramEnabled: target})
	if res.OK {
		c.recordEvent(history.EventToggle, string(OutcomeApplied))
		metrics.IncOperation("toggle", string(OutcomeApplied))
		return Result{OK: true, Outcome: OutcomeApplied}
	}

	failMsg := res.Message
	rollback := c.startAgent(StartOptions{TelegramEnabled: previous})
	if rollback.OK {
		// Converge the persisted flag back to what is actually running.
		_, _ = c.cfg.Store.SetTelegramEnabled(previous)
		c.recordEvent(history.EventToggle, string(OutcomeRolledBack))
		metrics.IncOperation("toggle", string(OutcomeRolledBack))
		return Result{
			OK:      false,
			Outcome: OutcomeRolledBack,
			Message: fmt.Sprintf("new configuration failed (%s); previous configuration restored", failMsg),
		}
	}

	c.recordEvent(history.EventToggle, string(OutcomeFailed))
	metrics.IncOperation("toggle", string(OutcomeFailed))
	return Result{
		OK:      false,
		Outcome: OutcomeFailed,
		Message: fmt.Sprintf("new configuration failed (%s) and rollback failed (%s); agent is stopped", failMsg, rollback.Message),
	}
}

// startAgent performs the full spawn-and-health-gate sequence. Callers hold
// no locks; it runs on the command goroutine.
func (c *Controller) startAgent(opts StartOptions) Result {
	bin := opts.BinaryPath
	if bin == "" {
		bin = c.cfg.BinaryPath
	}
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = c.cfg.ConfigPath
	}

	// Persist the desired flag before launch so the agent reads it on boot.
	// Best-effort: a write failure degrades to whatever is on disk and is
	// caught by the health gate if the agent cannot start at all.
	if _, err := c.cfg.Store.SetTelegramEnabled(opts.TelegramEnabled); err != nil {
		c.cfg.Logger.Warn("persist telegram flag", "error", err)
	}
	doc := c.cfg.Store.LoadOrDefault()
	base := agentcfg.BaseAddress(doc)

	c.setStatus(StateStarting)
	h, err := c.cfg.Spawner.Spawn(procctl.LaunchSpec{
		Name:       "vigil-agent",
		BinaryPath: bin,
		Args:       []string{"--config", cfgPath},
		DevCommand: c.cfg.DevCommand,
		WorkDir:    c.cfg.WorkDir,
		Capture:    c.cfg.Capture,
	})
	if err != nil {
		msg := fmt.Sprintf("spawn agent: %v", err)
		c.resetStopped(msg)
		c.recordEvent(history.EventStart, msg)
		return Result{OK: false, Message: msg}
	}

	c.mu.Lock()
	c.st.gen++
	gen := c.st.gen
	c.st.handle = h
	c.st.pid = h.PID()
	c.st.telegramEnabled = opts.TelegramEnabled
	c.st.baseAddress = base
	c.mu.Unlock()
	h.OnExit(func(err error) { c.notifyExit(gen, err) })

	probeStart := time.Now()
	healthy := c.cfg.Prober.WaitHealthy(context.Background(), base, h, c.cfg.HealthTimeout)
	metrics.ObserveProbeDuration(time.Since(probeStart).Seconds())
	if !healthy {
		msg := fmt.Sprintf("agent did not become healthy within %s", c.cfg.HealthTimeout)
		if h.Exited() {
			msg = "agent exited during startup"
		}
		// Do not leave an orphan behind a failed start.
		_ = h.Terminate(c.cfg.GraceTimeout, c.cfg.ForceTimeout)
		c.resetStopped(msg)
		c.recordEvent(history.EventStart, msg)
		return Result{OK: false, Message: msg}
	}

	c.setStatus(StateRunning)
	c.mu.Lock()
	c.st.lastError = ""
	c.mu.Unlock()
	c.recordEvent(history.EventStart, "")
	return Result{OK: true}
}

// stopAgent terminates the tracked handle and always leaves the state
// Stopped with pid and handle cleared. Only a forced-kill timeout surfaces.
func (c *Controller) stopAgent() error {
	h := c.liveHandle()
	if h == nil {
		c.resetStopped("")
		return nil
	}
	c.setStatus(StateStopping)
	err := h.Terminate(c.cfg.GraceTimeout, c.cfg.ForceTimeout)
	pid := h.PID()
	c.resetStopped("")
	c.recordEventPID(history.EventStop, "", pid)
	return err
}

// notifyExit posts an out-of-band exit into the operation queue. The reset
// only applies if the exiting handle is still the tracked one; deliberate
// stops clear the handle first, so their exits are ignored here.
func (c *Controller) notifyExit(gen uint64, exitErr error) {
	cmd := command{run: func() Result {
		c.mu.Lock()
		if c.st.gen != gen || c.st.handle == nil {
			c.mu.Unlock()
			return Result{OK: true}
		}
		pid := c.st.pid
		c.st.handle = nil
		c.st.pid = 0
		from := c.st.status
		c.st.status = StateStopped
		c.mu.Unlock()

		transitioned(from, StateStopped)
		detail := "agent exited"
		if exitErr != nil {
			detail = fmt.Sprintf("agent exited: %v", exitErr)
		}
		metrics.IncCrash()
		c.recordEventPID(history.EventCrash, detail, pid)
		c.cfg.Logger.Warn("agent exited out of band", "pid", pid, "error", exitErr)
		return Result{OK: true}
	}}
	// Post from a fresh goroutine: the callback may fire while the command
	// goroutine is mid-operation and the queue is full.
	go func() {
		select {
		case c.cmds <- cmd:
		case <-c.quit:
		}
	}()
}

// liveHandle returns the tracked handle if its exit has not fired.
func (c *Controller) liveHandle() ProcessHandle {
	c.mu.RLock()
	h := c.st.handle
	c.mu.RUnlock()
	if h == nil || h.Exited() {
		return nil
	}
	return h
}

func (c *Controller) setStatus(s State) {
	c.mu.Lock()
	from := c.st.status
	c.st.status = s
	c.mu.Unlock()
	transitioned(from, s)
}

// resetStopped clears handle and pid. A non-empty lastError overwrites the
// retained message; an empty one leaves it in place.
func (c *Controller) resetStopped(lastError string) {
	c.mu.Lock()
	from := c.st.status
	c.st.status = StateStopped
	c.st.handle = nil
	c.st.pid = 0
	if lastError != "" {
		c.st.lastError = lastError
	}
	c.mu.Unlock()
	if from != StateStopped {
		transitioned(from, StateStopped)
	}
}

func transitioned(from, to State) {
	if from == to {
		return
	}
	metrics.RecordStateTransition(string(from), string(to))
	for _, s := range []State{StateStopped, StateStarting, StateRunning, StateStopping} {
		metrics.SetCurrentState(string(s), s == to)
	}
}

func (c *Controller) recordEvent(t history.EventType, detail string) {
	c.mu.RLock()
	pid := c.st.pid
	c.mu.RUnlock()
	c.recordEventPID(t, detail, pid)
}

func (c *Controller) recordEventPID(t history.EventType, detail string, pid int) {
	if c.cfg.Sink == nil {
		return
	}
	c.mu.RLock()
	enabled := c.st.telegramEnabled
	c.mu.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.cfg.Sink.Send(ctx, history.Event{
		Type:            t,
		OccurredAt:      time.Now(),
		PID:             pid,
		TelegramEnabled: enabled,
		Detail:          detail,
	})
	if err != nil {
		c.cfg.Logger.Warn("record lifecycle event", "type", string(t), "error", err)
	}
}
