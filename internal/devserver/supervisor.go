package devserver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

const maxLogLines = 200

// logRing keeps the most recent dev server output lines, each stamped with
// the local time it arrived.
type logRing struct {
	mu    sync.Mutex
	lines []string
}

func (r *logRing) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamped := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), line)
	r.lines = append(r.lines, stamped)
	if len(r.lines) > maxLogLines {
		r.lines = r.lines[len(r.lines)-maxLogLines:]
	}
}

func (r *logRing) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

type process struct {
	cmd  *exec.Cmd
	pid  int
	port int
	logs *logRing
	done chan struct{}
}

// Supervisor starts and stops dev server processes, one per repository
// path, and exposes their captured output.
type Supervisor struct {
	mu     sync.Mutex
	procs  map[string]*process
	logger logging.Logger
}

func NewSupervisor(logger logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Supervisor{
		procs:  make(map[string]*process),
		logger: logger,
	}
}

// Start launches the dev server for the repository. If a process is
// already running for the path it is stopped first. The port is injected
// through the PORT environment variable.
func (s *Supervisor) Start(repoPath string, cfg LaunchConfig) error {
	s.Stop(repoPath)

	cmd, err := s.spawn(repoPath, cfg.Command, cfg.Args, cfg.Port)
	if err != nil {
		// Bun projects on machines without bun fall back to npm, and
		// the other way around.
		fallback := fallbackCommand(cfg.Command)
		if fallback == "" {
			return fmt.Errorf("start dev server: %w", err)
		}
		s.logger.Warn("dev server command failed, retrying with fallback",
			"command", cfg.Command, "fallback", fallback, "error", err)
		cmd, err = s.spawn(repoPath, fallback, []string{"run", "dev"}, cfg.Port)
		if err != nil {
			return fmt.Errorf("start dev server: %w", err)
		}
	}

	ring := &logRing{}
	ring.append(fmt.Sprintf("Starting dev server on port %d...", cfg.Port))

	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start dev server: %w", err)
	}

	p := &process{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		port: cfg.Port,
		logs: ring,
		done: make(chan struct{}),
	}

	var wg sync.WaitGroup
	for _, pipe := range []io.ReadCloser{stdout, stderr} {
		if pipe == nil {
			continue
		}
		wg.Add(1)
		go func(r io.ReadCloser) {
			defer wg.Done()
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 64*1024), 256*1024)
			for scanner.Scan() {
				ring.append(scanner.Text())
			}
		}(pipe)
	}
	go func() {
		wg.Wait()
		cmd.Wait()
		close(p.done)
	}()

	s.mu.Lock()
	s.procs[repoPath] = p
	s.mu.Unlock()

	s.logger.Info("dev server started",
		"path", repoPath, "command", cfg.Command, "port", cfg.Port, "pid", p.pid)
	return nil
}

func (s *Supervisor) spawn(repoPath, command string, args []string, port int) (*exec.Cmd, error) {
	bin, err := exec.LookPath(command)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(bin, args...)
	cmd.Dir = repoPath
	cmd.Env = append(os.Environ(), "PORT="+strconv.Itoa(port))
	if runtime.GOOS == "darwin" {
		cmd.Env = mergeDarwinPath(cmd.Env)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd, nil
}

func fallbackCommand(command string) string {
	switch command {
	case "bun":
		return "npm"
	case "npm":
		return "bun"
	}
	return ""
}

// mergeDarwinPath appends the Homebrew and default bun install locations,
// which GUI apps launched from Finder do not inherit.
func mergeDarwinPath(env []string) []string {
	extra := "/opt/homebrew/bin:/usr/local/bin:" + os.Getenv("HOME") + "/.bun/bin"
	for i, kv := range env {
		if len(kv) > 5 && kv[:5] == "PATH=" {
			env[i] = kv + ":" + extra
			return env
		}
	}
	return append(env, "PATH="+extra)
}

// Stop terminates the dev server for the path if one is running. Stopping
// when nothing runs is a no-op.
func (s *Supervisor) Stop(repoPath string) {
	s.mu.Lock()
	p, ok := s.procs[repoPath]
	if ok {
		delete(s.procs, repoPath)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	// Negative pid signals the whole process group.
	syscall.Kill(-p.pid, syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(3 * time.Second):
		syscall.Kill(-p.pid, syscall.SIGKILL)
		<-p.done
	}
	p.logs.append("Server stopped")
	s.logger.Info("dev server stopped", "path", repoPath, "pid", p.pid)
}

// State reports whether the managed process for the path is alive and its
// port accepts connections, along with the captured log lines.
func (s *Supervisor) State(repoPath string, port int) DevServerState {
	s.mu.Lock()
	p, ok := s.procs[repoPath]
	s.mu.Unlock()

	state := DevServerState{Port: port}
	if ok {
		state.Logs = p.logs.snapshot()
		if port == 0 {
			state.Port = p.port
		}
		state.Running = processAlive(p.pid) && IsPortListening(state.Port)
		return state
	}
	// No managed process; an externally started server still counts as
	// running when the port answers.
	state.Running = port > 0 && IsPortListening(port)
	return state
}

// ManagedPID returns the pid of the managed process for the path, or zero.
func (s *Supervisor) ManagedPID(repoPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.procs[repoPath]; ok {
		return p.pid
	}
	return 0
}

// Logs returns the captured output for the path, oldest first.
func (s *Supervisor) Logs(repoPath string) []string {
	s.mu.Lock()
	p, ok := s.procs[repoPath]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return p.logs.snapshot()
}

// KillPort force-kills every process listening on the port. Killing a free
// port succeeds. A short settle delay lets the OS release the socket.
func (s *Supervisor) KillPort(port int) error {
	pids, err := pidsOnPort(port)
	if err != nil {
		return err
	}
	for _, pid := range pids {
		syscall.Kill(pid, syscall.SIGKILL)
		s.logger.Info("killed process on port", "port", port, "pid", pid)
	}
	if len(pids) > 0 {
		time.Sleep(500 * time.Millisecond)
	}
	return nil
}

// CleanupLocks removes stale dev server lock files left behind by crashed
// tooling. Missing files are fine.
func (s *Supervisor) CleanupLocks(repoPath string) []string {
	candidates := []string{
		filepath.Join(repoPath, ".next", "dev", "lock"),
		filepath.Join(repoPath, "node_modules", ".vite", ".lock"),
	}
	var removed []string
	for _, path := range candidates {
		if err := os.Remove(path); err == nil {
			removed = append(removed, path)
			s.logger.Info("removed stale lock", "path", path)
		}
	}
	return removed
}

// CloseAll stops every managed process. Called on application shutdown.
func (s *Supervisor) CloseAll() {
	s.mu.Lock()
	paths := make([]string, 0, len(s.procs))
	for path := range s.procs {
		paths = append(paths, path)
	}
	s.mu.Unlock()
	for _, path := range paths {
		s.Stop(path)
	}
}
