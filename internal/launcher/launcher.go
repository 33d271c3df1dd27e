package launcher

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
	"github.com/simonbloom/vibogit-sub001/internal/settings"
)

// Service opens projects and URLs in external tools. Editor and terminal
// choices come from user settings.
type Service struct {
	store  *settings.Store
	logger logging.Logger

	// run is swapped out in tests.
	run func(name string, args ...string) error
}

func NewService(store *settings.Store, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		store:  store,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// OpenURL opens the URL in the default browser.
func (s *Service) OpenURL(url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("refusing to open non-http url %q", url)
	}
	switch runtime.GOOS {
	case "darwin":
		return s.run("open", url)
	case "windows":
		return s.run("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return s.run("xdg-open", url)
	}
}

// OpenInFileManager reveals the path in Finder, Explorer or the desktop
// file manager.
func (s *Service) OpenInFileManager(path string) error {
	switch runtime.GOOS {
	case "darwin":
		return s.run("open", path)
	case "windows":
		return s.run("explorer", path)
	default:
		return s.run("xdg-open", path)
	}
}

var editorCommands = map[string][]string{
	"cursor":   {"cursor"},
	"vscode":   {"code"},
	"windsurf": {"windsurf"},
	"zed":      {"zed"},
	"sublime":  {"subl"},
}

// OpenInEditor launches the configured editor on the project directory.
func (s *Service) OpenInEditor(path string) error {
	cfg := s.store.Get()
	if cfg.Editor == "custom" && cfg.CustomEditorCommand != "" {
		parts := strings.Fields(cfg.CustomEditorCommand)
		return s.run(parts[0], append(parts[1:], path)...)
	}
	cmd, ok := editorCommands[cfg.Editor]
	if !ok {
		cmd = editorCommands["cursor"]
	}
	if err := s.run(cmd[0], append(cmd[1:], path)...); err != nil {
		return fmt.Errorf("open editor %s: %w", cfg.Editor, err)
	}
	return nil
}

// OpenInTerminal opens a terminal window at the project directory.
func (s *Service) OpenInTerminal(path string) error {
	cfg := s.store.Get()
	switch runtime.GOOS {
	case "darwin":
		app := "Terminal"
		switch cfg.Terminal {
		case "iterm":
			app = "iTerm"
		case "warp":
			app = "Warp"
		case "ghostty":
			app = "Ghostty"
		}
		return s.run("open", "-a", app, path)
	case "windows":
		return s.run("cmd", "/c", "start", "cmd", "/k", "cd /d "+path)
	default:
		return s.run("x-terminal-emulator", "--working-directory="+path)
	}
}
