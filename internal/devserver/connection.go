package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultStartTimeout = 30 * time.Second

	timeoutMessage = "Server did not start within 30 seconds"
)

// Machine drives one project's dev server connection through
// disconnected, connecting, connected, restarting and error. All
// transitions happen under the mutex; the reconcile/spawn/poll pipeline
// runs on its own goroutine and is torn down through the context.
// ProcessController is the supervisor surface the state machine drives.
// *Supervisor satisfies it; tests substitute fakes.
type ProcessController interface {
	Start(repoPath string, cfg LaunchConfig) error
	Stop(repoPath string)
	KillPort(port int) error
	CleanupLocks(repoPath string) []string
	State(repoPath string, port int) DevServerState
	CloseAll()
}

type Machine struct {
	repoPath   string
	supervisor ProcessController
	reconciler *Reconciler
	logger     logging.Logger
	notify     func(Snapshot)

	pollInterval time.Duration
	startTimeout time.Duration

	mu       sync.Mutex
	status   Status
	port     int
	errMsg   string
	cancel   context.CancelFunc
	inflight bool
}

func NewMachine(repoPath string, sup ProcessController, rec *Reconciler, logger logging.Logger, notify func(Snapshot)) *Machine {
	if logger == nil {
		logger = logging.Nop()
	}
	if notify == nil {
		notify = func(Snapshot) {}
	}
	return &Machine{
		repoPath:     repoPath,
		supervisor:   sup,
		reconciler:   rec,
		logger:       logger,
		notify:       notify,
		pollInterval: defaultPollInterval,
		startTimeout: defaultStartTimeout,
		status:       StatusDisconnected,
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		RepoPath:     m.repoPath,
		Status:       m.status,
		Port:         m.port,
		ErrorMessage: m.errMsg,
	}
}

// Connect starts the reconcile/spawn/poll pipeline. Valid only from
// disconnected or error; calling it while already connecting is a no-op.
func (m *Machine) Connect() {
	m.mu.Lock()
	if m.inflight || (m.status != StatusDisconnected && m.status != StatusError) {
		m.mu.Unlock()
		return
	}
	ctx := m.beginLocked(StatusConnecting)
	m.mu.Unlock()
	m.publish()

	go m.run(ctx, 0, StatusDisconnected)
}

// Restart re-resolves the port, stops the running server and respawns.
// Valid only from connected. Port resolution happens strictly before the
// stop so a cancelled prompt leaves the running server untouched.
func (m *Machine) Restart() {
	m.mu.Lock()
	if m.inflight || m.status != StatusConnected {
		m.mu.Unlock()
		return
	}
	activePort := m.port
	ctx := m.beginLocked(StatusRestarting)
	m.mu.Unlock()
	m.publish()

	go m.run(ctx, activePort, StatusConnected)
}

// Disconnect stops the tracked process and moves to disconnected. It
// always succeeds from the caller's perspective.
func (m *Machine) Disconnect() {
	m.mu.Lock()
	if m.status == StatusDisconnected || m.status == StatusError {
		m.mu.Unlock()
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.inflight = false
	port := m.port
	m.setLocked(StatusDisconnected, 0, "")
	m.mu.Unlock()

	m.supervisor.Stop(m.repoPath)
	if port > 0 {
		m.supervisor.KillPort(port)
	}
	m.publish()
}

// Halt cancels any in-flight pipeline without stopping the server. Used
// when the observed project changes; a pending conflict prompt resolves
// as cancelled through the context.
func (m *Machine) Halt() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.inflight = false
	switch m.status {
	case StatusConnecting:
		m.setLocked(StatusDisconnected, 0, "")
	case StatusRestarting:
		m.status = StatusConnected
	}
	m.mu.Unlock()
}

func (m *Machine) beginLocked(status Status) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.inflight = true
	m.status = status
	m.errMsg = ""
	return ctx
}

func (m *Machine) setLocked(status Status, port int, errMsg string) {
	m.status = status
	m.port = port
	m.errMsg = errMsg
}

// finish records the terminal transition of a pipeline run unless the
// context was cancelled, in which case whoever cancelled owns the state.
func (m *Machine) finish(ctx context.Context, status Status, port int, errMsg string) {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.inflight = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.setLocked(status, port, errMsg)
	m.mu.Unlock()
	m.publish()
}

func (m *Machine) publish() {
	m.notify(m.Snapshot())
}

// run executes reconcile, stale-port cleanup, spawn and the poll loop.
// revert is the state to return to when the user cancels reconciliation.
func (m *Machine) run(ctx context.Context, activePort int, revert Status) {
	res, err := m.reconciler.Resolve(ctx, m.repoPath, activePort)
	if err != nil {
		m.logger.Error("port reconciliation failed", "path", m.repoPath, "error", err)
		m.finish(ctx, StatusError, 0, err.Error())
		return
	}
	if res.Cancelled {
		m.finish(ctx, revert, activePort, "")
		return
	}

	// Stop only after the port decision is settled.
	if activePort > 0 {
		m.supervisor.Stop(m.repoPath)
	}
	for _, stale := range res.StalePorts {
		if err := m.supervisor.KillPort(stale); err != nil {
			m.logger.Warn("stale port not freed", "port", stale, "error", err)
		}
	}
	m.supervisor.CleanupLocks(m.repoPath)

	if err := m.supervisor.Start(m.repoPath, LaunchConfig{
		Command: res.Command,
		Args:    res.Args,
		Port:    res.Port,
	}); err != nil {
		m.finish(ctx, StatusError, 0, err.Error())
		return
	}

	m.poll(ctx, res.Port)
}

// poll probes once per interval until the server answers or the timeout
// elapses. Context cancellation ends polling without touching state.
func (m *Machine) poll(ctx context.Context, port int) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(m.startTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			m.logger.Warn("dev server start timed out", "path", m.repoPath, "port", port)
			m.finish(ctx, StatusError, 0, timeoutMessage)
			return
		case <-ticker.C:
			state := m.supervisor.State(m.repoPath, port)
			if state.Running {
				m.finish(ctx, StatusConnected, port, "")
				return
			}
		}
	}
}

// Manager owns one Machine per project path and tracks which project the
// UI is observing. Switching projects cancels the previous project's
// in-flight pipeline so nothing leaks across.
type Manager struct {
	supervisor ProcessController
	reconciler *Reconciler
	logger     logging.Logger
	notify     func(Snapshot)

	mu       sync.Mutex
	machines map[string]*Machine
	active   string
}

func NewManager(sup ProcessController, rec *Reconciler, logger logging.Logger, notify func(Snapshot)) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		supervisor: sup,
		reconciler: rec,
		logger:     logger,
		notify:     notify,
		machines:   make(map[string]*Machine),
	}
}

// SetActiveProject switches the observed project, halting the previous
// project's polling, timeout and any pending prompt.
func (m *Manager) SetActiveProject(repoPath string) Snapshot {
	m.mu.Lock()
	if m.active != "" && m.active != repoPath {
		if prev, ok := m.machines[m.active]; ok {
			prev.Halt()
		}
	}
	m.active = repoPath
	machine := m.machineLocked(repoPath)
	m.mu.Unlock()
	return machine.Snapshot()
}

func (m *Manager) machineLocked(repoPath string) *Machine {
	machine, ok := m.machines[repoPath]
	if !ok {
		machine = NewMachine(repoPath, m.supervisor, m.reconciler, m.logger, m.notify)
		m.machines[repoPath] = machine
	}
	return machine
}

func (m *Manager) Machine(repoPath string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machineLocked(repoPath)
}

func (m *Manager) Connect(repoPath string) { m.Machine(repoPath).Connect() }
func (m *Manager) Restart(repoPath string) { m.Machine(repoPath).Restart() }
func (m *Manager) Disconnect(repoPath string) { m.Machine(repoPath).Disconnect() }

func (m *Manager) Snapshot(repoPath string) Snapshot {
	return m.Machine(repoPath).Snapshot()
}

// CloseAll halts every machine and stops every managed process.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	for _, machine := range m.machines {
		machine.Halt()
	}
	m.mu.Unlock()
	m.supervisor.CloseAll()
}
