package terminal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

// Topic returns the event channel for a project's terminal stream.
func Topic(projectPath string) string {
	return "terminal:" + projectPath
}

// Manager runs one interactive shell per project directory behind a pty
// and streams its output to the frontend.
type Manager struct {
	ctxFn  func() context.Context
	logger logging.Logger
	shell  string

	mu    sync.Mutex
	terms map[string]*session
}

type session struct {
	projectPath string
	cmd         *exec.Cmd
	pty         *os.File
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewManager(ctxProvider func() context.Context, shellPath string, logger logging.Logger) *Manager {
	if strings.TrimSpace(shellPath) == "" {
		shellPath = detectShell()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		ctxFn:  ctxProvider,
		logger: logger,
		shell:  shellPath,
		terms:  make(map[string]*session),
	}
}

// Start opens a shell in the project directory. If a live session already
// exists it is reused; a dead one is replaced.
func (m *Manager) Start(projectPath string) error {
	info, err := os.Stat(projectPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("project directory %s not accessible", projectPath)
	}

	m.mu.Lock()
	if existing, ok := m.terms[projectPath]; ok {
		m.mu.Unlock()
		if existing.cmd.ProcessState != nil && existing.cmd.ProcessState.Exited() {
			_ = m.Stop(projectPath)
		} else {
			m.emitReady(projectPath)
			return nil
		}
	} else {
		m.mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	shell := m.shell
	cmd := exec.CommandContext(ctx, shell, shellArgs(shell)...)
	cmd.Dir = projectPath
	cmd.Env = os.Environ()
	if !envHasKey(cmd.Env, "TERM") {
		cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		cancel()
		return fmt.Errorf("start terminal: %w", err)
	}

	s := &session{
		projectPath: projectPath,
		cmd:         cmd,
		pty:         ptmx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	m.mu.Lock()
	m.terms[projectPath] = s
	m.mu.Unlock()

	go m.forward(s)
	m.emitReady(projectPath)
	return nil
}

func (m *Manager) Write(projectPath, data string) error {
	s, ok := m.get(projectPath)
	if !ok {
		return fmt.Errorf("terminal for %s not started", projectPath)
	}
	if _, err := s.pty.Write([]byte(data)); err != nil {
		return fmt.Errorf("write terminal: %w", err)
	}
	return nil
}

func (m *Manager) Resize(projectPath string, cols, rows int) error {
	s, ok := m.get(projectPath)
	if !ok {
		return fmt.Errorf("terminal for %s not started", projectPath)
	}
	if err := pty.Setsize(s.pty, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return fmt.Errorf("resize terminal: %w", err)
	}
	return nil
}

// Stop ends the session for the path. Stopping an unknown path is a no-op.
func (m *Manager) Stop(projectPath string) error {
	s, ok := m.get(projectPath)
	if !ok {
		return nil
	}
	s.cancel()
	_ = s.pty.Close()
	<-s.done
	return nil
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	list := make([]*session, 0, len(m.terms))
	for _, s := range m.terms {
		list = append(list, s)
	}
	m.terms = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range list {
		s.cancel()
		_ = s.pty.Close()
		<-s.done
	}
}

func (m *Manager) get(projectPath string) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.terms[projectPath]
	return s, ok && s != nil
}

func (m *Manager) forward(s *session) {
	defer func() {
		_ = s.pty.Close()
		_ = s.cmd.Wait()
		close(s.done)
		m.mu.Lock()
		if cur, ok := m.terms[s.projectPath]; ok && cur == s {
			delete(m.terms, s.projectPath)
		}
		m.mu.Unlock()
		status := "exited"
		if s.cmd.ProcessState != nil && !s.cmd.ProcessState.Success() {
			status = fmt.Sprintf("exit:%d", s.cmd.ProcessState.ExitCode())
		}
		m.emitExit(s.projectPath, status)
	}()

	buf := make([]byte, 4096)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			m.emitOutput(s.projectPath, chunk)
		}
		if err != nil {
			if !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.EOF) && !isPtyEIO(err) {
				m.logger.Warn("terminal read failed", "path", s.projectPath, "error", err)
			}
			return
		}
	}
}

// isPtyEIO reports the EIO a pty returns when its child exits.
func isPtyEIO(err error) bool {
	var errno syscall.Errno
	return runtime.GOOS != "windows" && errors.As(err, &errno) && errno == syscall.EIO
}

type event struct {
	ProjectPath string `json:"projectPath"`
	Type        string `json:"type"`
	Data        string `json:"data,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (m *Manager) emitReady(projectPath string) { m.emit(projectPath, "ready", "", "") }

func (m *Manager) emitExit(projectPath, status string) {
	m.emit(projectPath, "exit", "", status)
}

func (m *Manager) emitOutput(projectPath string, data []byte) {
	if len(data) == 0 {
		return
	}
	m.emit(projectPath, "output", base64.StdEncoding.EncodeToString(data), "")
}

func (m *Manager) emit(projectPath, typ, data, status string) {
	if m.ctxFn == nil {
		return
	}
	ctx := m.ctxFn()
	if ctx == nil {
		return
	}
	wailsruntime.EventsEmit(ctx, Topic(projectPath), event{
		ProjectPath: projectPath,
		Type:        typ,
		Data:        data,
		Status:      status,
	})
}

func shellArgs(shell string) []string {
	switch filepath.Base(shell) {
	case "bash", "zsh", "fish":
		return []string{"-l"}
	case "pwsh", "powershell.exe":
		return []string{"-NoLogo"}
	default:
		return nil
	}
}

func envHasKey(env []string, key string) bool {
	for _, p := range env {
		if strings.HasPrefix(p, key+"=") {
			return true
		}
	}
	return false
}

func detectShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	if runtime.GOOS == "windows" {
		if c := os.Getenv("COMSPEC"); c != "" {
			return c
		}
		return "powershell.exe"
	}
	return "/bin/sh"
}
