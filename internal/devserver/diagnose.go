package devserver

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Diagnosis codes, roughly ordered from configuration problems to
// runtime failures.
const (
	DiagNoPackageJSON   = "no_package_json"
	DiagNoDevScript     = "no_dev_script"
	DiagNoNodeModules   = "no_node_modules"
	DiagCommandNotFound = "command_not_found"
	DiagPortInUse       = "port_in_use"
	DiagMissingDeps     = "missing_deps"
	DiagScriptError     = "script_error"
	DiagWrongPort       = "wrong_port"
	DiagProcessCrashed  = "process_crashed"
	DiagUnknown         = "unknown"
)

type Diagnosis struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Logs       []string `json:"logs,omitempty"`
}

var localhostPortRe = regexp.MustCompile(`(?i)(?:localhost|127\.0\.0\.1):(\d{2,5})`)

// Diagnose inspects the project and the supervisor's captured output to
// explain why the dev server is not reachable on the expected port.
func Diagnose(sup *Supervisor, reader *ConfigReader, repoPath string, expectedPort int) Diagnosis {
	manifest := filepath.Join(repoPath, "package.json")
	raw, err := os.ReadFile(manifest)
	if err != nil {
		return Diagnosis{
			Code:       DiagNoPackageJSON,
			Message:    "No package.json found in the project.",
			Suggestion: "This does not look like a Node.js project.",
		}
	}

	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil || pkg.Scripts["dev"] == "" {
		return Diagnosis{
			Code:       DiagNoDevScript,
			Message:    "package.json has no \"dev\" script.",
			Suggestion: "Add a dev script, for example \"dev\": \"vite\".",
		}
	}

	if _, err := os.Stat(filepath.Join(repoPath, "node_modules")); err != nil {
		return Diagnosis{
			Code:       DiagNoNodeModules,
			Message:    "Dependencies are not installed.",
			Suggestion: "Run your package manager's install command first.",
		}
	}

	cfg, _ := reader.DetectDevServerConfig(repoPath)
	if cfg != nil {
		if _, err := exec.LookPath(cfg.Command); err != nil {
			if fallbackCommand(cfg.Command) == "" {
				return Diagnosis{
					Code:    DiagCommandNotFound,
					Message: "Command " + strconv.Quote(cfg.Command) + " was not found on PATH.",
				}
			}
			if _, err := exec.LookPath(fallbackCommand(cfg.Command)); err != nil {
				return Diagnosis{
					Code:    DiagCommandNotFound,
					Message: "Neither " + cfg.Command + " nor " + fallbackCommand(cfg.Command) + " was found on PATH.",
				}
			}
		}
	}

	logs := sup.Logs(repoPath)
	if d, ok := diagnoseFromLogs(logs, expectedPort); ok {
		d.Logs = tailLines(logs, 20)
		return d
	}

	pid := sup.ManagedPID(repoPath)
	if pid > 0 && !processAlive(pid) {
		return Diagnosis{
			Code:    DiagProcessCrashed,
			Message: "The dev server process exited unexpectedly.",
			Logs:    tailLines(logs, 20),
		}
	}

	if expectedPort > 0 && IsPortListening(expectedPort) && pid == 0 {
		return Diagnosis{
			Code:       DiagPortInUse,
			Message:    "Port " + strconv.Itoa(expectedPort) + " is held by another process.",
			Suggestion: "Kill the process on that port or choose a different port.",
		}
	}

	return Diagnosis{
		Code:    DiagUnknown,
		Message: "Could not determine why the dev server is unreachable.",
		Logs:    tailLines(logs, 20),
	}
}

func diagnoseFromLogs(logs []string, expectedPort int) (Diagnosis, bool) {
	joined := strings.Join(logs, "\n")
	lower := strings.ToLower(joined)

	if strings.Contains(lower, "eaddrinuse") || strings.Contains(lower, "address already in use") {
		return Diagnosis{
			Code:       DiagPortInUse,
			Message:    "The dev server reported its port as already in use.",
			Suggestion: "Free the port and reconnect.",
		}, true
	}
	if strings.Contains(joined, "MODULE_NOT_FOUND") || strings.Contains(lower, "cannot find module") || strings.Contains(lower, "cannot find package") {
		return Diagnosis{
			Code:       DiagMissingDeps,
			Message:    "The dev server is missing installed dependencies.",
			Suggestion: "Re-run your package manager's install command.",
		}, true
	}

	// A server announcing a URL on a different port than expected.
	if expectedPort > 0 {
		for _, match := range localhostPortRe.FindAllStringSubmatch(joined, -1) {
			if p, err := strconv.Atoi(match[1]); err == nil && p != expectedPort && IsPortListening(p) {
				return Diagnosis{
					Code:       DiagWrongPort,
					Message:    "The dev server started on port " + match[1] + " instead of " + strconv.Itoa(expectedPort) + ".",
					Suggestion: "Sync the configured port or update the dev script.",
				}, true
			}
		}
	}

	if strings.Contains(lower, "error") && len(logs) > 0 {
		return Diagnosis{
			Code:    DiagScriptError,
			Message: "The dev script reported errors during startup.",
		}, true
	}
	return Diagnosis{}, false
}

func tailLines(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
