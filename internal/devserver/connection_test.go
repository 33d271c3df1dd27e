package devserver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeController struct {
	mu         sync.Mutex
	startCalls int
	stopCalls  int
	killed     []int
	running    bool
	stayDown   bool
	startErr   error
}

func (f *fakeController) Start(repoPath string, cfg LaunchConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	if !f.stayDown {
		f.running = true
	}
	return nil
}

func (f *fakeController) Stop(repoPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.running = false
}

func (f *fakeController) KillPort(port int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, port)
	return nil
}

func (f *fakeController) CleanupLocks(repoPath string) []string { return nil }

func (f *fakeController) State(repoPath string, port int) DevServerState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return DevServerState{Running: f.running, Port: port}
}

func (f *fakeController) CloseAll() {}

func (f *fakeController) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

func (f *fakeController) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

func (f *fakeController) setRunning(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = v
	f.startErr = nil
}

// blockingPrompter holds every prompt open until a decision is fed in.
type blockingPrompter struct {
	answers chan Decision
}

func newBlockingPrompter() *blockingPrompter {
	return &blockingPrompter{answers: make(chan Decision)}
}

func (b *blockingPrompter) ResolveConflict(ctx context.Context, prompt ConflictPrompt) (Decision, error) {
	select {
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	case d := <-b.answers:
		return d, nil
	}
}

func (b *blockingPrompter) RequestPort(ctx context.Context, prompt PortPrompt) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case d := <-b.answers:
		return d.Port, nil
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestMachine(t *testing.T, dir string, ctrl ProcessController, prompter Prompter) *Machine {
	t.Helper()
	rec := NewReconciler(NewConfigReader(), prompter, nil)
	m := NewMachine(dir, ctrl, rec, nil, nil)
	m.pollInterval = 5 * time.Millisecond
	m.startTimeout = 250 * time.Millisecond
	return m
}

func simpleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)
	return dir
}

func conflictedProject(t *testing.T) string {
	t.Helper()
	dir := simpleProject(t)
	writeFile(t, dir, "AGENTS.md", "- Dev server port: 3000\n")
	return dir
}

func TestConnectReachesConnected(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestMachine(t, simpleProject(t), ctrl, &scriptedPrompter{})

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnected }, "connected state")

	snap := m.Snapshot()
	if snap.Port != 4100 {
		t.Fatalf("port = %d, want 4100", snap.Port)
	}
	if ctrl.starts() != 1 {
		t.Fatalf("start calls = %d, want 1", ctrl.starts())
	}
}

func TestConnectCancelledDecisionSpawnsNothing(t *testing.T) {
	ctrl := &fakeController{}
	prompter := &scriptedPrompter{decisions: []Decision{{Action: ActionCancel}}}
	m := newTestMachine(t, conflictedProject(t), ctrl, prompter)

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusDisconnected }, "return to disconnected")

	if ctrl.starts() != 0 {
		t.Fatalf("start calls = %d, want 0 after cancel", ctrl.starts())
	}
}

func TestConnectIdempotentWhileConnecting(t *testing.T) {
	ctrl := &fakeController{}
	prompter := newBlockingPrompter()
	m := newTestMachine(t, conflictedProject(t), ctrl, prompter)

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnecting }, "connecting state")
	m.Connect() // second call while the prompt is open must be a no-op

	prompter.answers <- Decision{Action: ActionSkip}
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnected }, "connected state")

	if ctrl.starts() != 1 {
		t.Fatalf("start calls = %d, want exactly 1", ctrl.starts())
	}
}

func TestConnectTimesOutAndStopsPolling(t *testing.T) {
	// The controller accepts the spawn but never reports running.
	ctrl := &fakeController{stayDown: true}
	m := newTestMachine(t, simpleProject(t), ctrl, &scriptedPrompter{})
	m.startTimeout = 40 * time.Millisecond

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusError }, "error state")

	snap := m.Snapshot()
	if snap.ErrorMessage != timeoutMessage {
		t.Fatalf("error = %q, want %q", snap.ErrorMessage, timeoutMessage)
	}

	// Flipping the controller to running after the timeout must not
	// resurrect the connection; polling has stopped.
	ctrl.setRunning(true)
	time.Sleep(30 * time.Millisecond)
	if got := m.Snapshot().Status; got != StatusError {
		t.Fatalf("status = %q, polling leaked past the timeout", got)
	}
}

func TestConnectSpawnFailure(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("exec: \"bun\": executable file not found in $PATH")}
	m := newTestMachine(t, simpleProject(t), ctrl, &scriptedPrompter{})

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusError }, "error state")

	if snap := m.Snapshot(); snap.ErrorMessage != ctrl.startErr.Error() {
		t.Fatalf("error = %q, want the underlying spawn message", snap.ErrorMessage)
	}
}

func TestRetryAfterError(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("boom")}
	m := newTestMachine(t, simpleProject(t), ctrl, &scriptedPrompter{})

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusError }, "error state")

	ctrl.setRunning(false)
	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnected }, "connected after retry")
}

func TestRestartCancelledKeepsServerRunning(t *testing.T) {
	ctrl := &fakeController{}
	prompter := &scriptedPrompter{
		decisions: []Decision{
			{Action: ActionSkip},   // connect resolves the conflict
			{Action: ActionCancel}, // restart aborts the port decision
		},
	}
	m := newTestMachine(t, conflictedProject(t), ctrl, prompter)

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnected }, "connected state")

	m.Restart()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnected }, "return to connected")

	if ctrl.stops() != 0 {
		t.Fatalf("stop calls = %d, cancelled restart must not stop the server", ctrl.stops())
	}
	if ctrl.starts() != 1 {
		t.Fatalf("start calls = %d, want 1", ctrl.starts())
	}
	if m.Snapshot().Port != 4100 {
		t.Fatalf("port = %d, want the original 4100", m.Snapshot().Port)
	}
}

func TestRestartRespawns(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestMachine(t, simpleProject(t), ctrl, &scriptedPrompter{})

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnected }, "connected state")

	m.Restart()
	waitFor(t, func() bool { return ctrl.starts() == 2 && m.Snapshot().Status == StatusConnected }, "respawn")

	if ctrl.stops() != 1 {
		t.Fatalf("stop calls = %d, want 1", ctrl.stops())
	}
}

func TestDisconnect(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestMachine(t, simpleProject(t), ctrl, &scriptedPrompter{})

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnected }, "connected state")

	m.Disconnect()
	if got := m.Snapshot().Status; got != StatusDisconnected {
		t.Fatalf("status = %q, want disconnected", got)
	}
	if ctrl.stops() == 0 {
		t.Fatalf("disconnect must stop the process")
	}
}

func TestDisconnectDuringConnectingAllowsReconnect(t *testing.T) {
	ctrl := &fakeController{}
	prompter := newBlockingPrompter()
	m := newTestMachine(t, conflictedProject(t), ctrl, prompter)

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnecting }, "connecting state")

	// Disconnect while the conflict prompt is still open cancels the
	// pipeline and must leave the machine ready for another attempt.
	m.Disconnect()
	if got := m.Snapshot().Status; got != StatusDisconnected {
		t.Fatalf("status = %q, want disconnected", got)
	}

	m.Connect()
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnecting }, "second connecting state")
	prompter.answers <- Decision{Action: ActionSkip}
	waitFor(t, func() bool { return m.Snapshot().Status == StatusConnected }, "connected after reconnect")

	if ctrl.starts() != 1 {
		t.Fatalf("start calls = %d, want 1 (only the second attempt spawns)", ctrl.starts())
	}
}

func TestProjectSwitchCancelsInFlightWork(t *testing.T) {
	ctrl := &fakeController{}
	rec := NewReconciler(NewConfigReader(), newBlockingPrompter(), nil)
	mgr := NewManager(ctrl, rec, nil, nil)

	pathA := conflictedProject(t)
	pathB := simpleProject(t)

	mgr.SetActiveProject(pathA)
	machineA := mgr.Machine(pathA)
	machineA.pollInterval = 5 * time.Millisecond
	machineA.startTimeout = 40 * time.Millisecond

	mgr.Connect(pathA)
	waitFor(t, func() bool { return mgr.Snapshot(pathA).Status == StatusConnecting }, "pathA connecting")

	mgr.SetActiveProject(pathB)

	// Past pathA's timeout, no error transition may fire; the switch
	// cancelled its timer and pending prompt.
	time.Sleep(80 * time.Millisecond)
	if got := mgr.Snapshot(pathA).Status; got != StatusDisconnected {
		t.Fatalf("pathA status = %q, want disconnected after switch", got)
	}
	if ctrl.starts() != 0 {
		t.Fatalf("start calls = %d, cancelled prompt must not spawn", ctrl.starts())
	}
}
