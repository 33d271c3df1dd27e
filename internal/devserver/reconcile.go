package devserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

// Decision is the user's answer to a port conflict prompt.
type Decision struct {
	Action string `json:"action"` // "sync", "skip" or "cancel"
	Port   int    `json:"port,omitempty"`
	Source string `json:"source,omitempty"` // "script", "agents" or "custom"
}

const (
	ActionSync   = "sync"
	ActionSkip   = "skip"
	ActionCancel = "cancel"
)

// ConflictPrompt describes a disagreement between the marker file port and
// the dev script port. ValidationError carries the inline message from a
// rejected custom value so the prompt can stay open.
type ConflictPrompt struct {
	RepoPath        string `json:"repoPath"`
	AgentsPort      int    `json:"agentsPort"`
	ScriptPort      int    `json:"scriptPort"`
	ValidationError string `json:"validationError,omitempty"`
}

// PortPrompt asks the user for a port when none could be discovered.
type PortPrompt struct {
	RepoPath        string `json:"repoPath"`
	ValidationError string `json:"validationError,omitempty"`
}

// Prompter suspends on a human decision. Implementations block until the
// user answers or ctx is cancelled; cancellation must surface as an error
// or a cancel decision, never a hang.
type Prompter interface {
	ResolveConflict(ctx context.Context, prompt ConflictPrompt) (Decision, error)
	RequestPort(ctx context.Context, prompt PortPrompt) (int, error)
}

// Resolution is the outcome of port reconciliation. Cancelled means the
// caller must abort without spawning. StalePorts are candidate ports other
// than the chosen target, to be freed before binding.
type Resolution struct {
	Port       int
	Command    string
	Args       []string
	StalePorts []int
	Cancelled  bool
	Persisted  bool
}

var ErrNoDevCommand = errors.New("no dev command found for project")

// ValidatePort rejects values outside [1, 65535] and privileged ports
// other than 80 and 443.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if port < 1024 && port != 80 && port != 443 {
		return fmt.Errorf("port %d requires elevated privileges", port)
	}
	return nil
}

// Reconciler resolves which port a dev server should bind before anything
// is spawned, mediating marker/script disagreements through the prompter.
type Reconciler struct {
	reader   *ConfigReader
	prompter Prompter
	logger   logging.Logger

	// OnPortChosen is invoked after a sync decision persists a port, so
	// the project catalog can refresh its cached detected port.
	OnPortChosen func(repoPath string, port int)
}

func NewReconciler(reader *ConfigReader, prompter Prompter, logger logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Reconciler{reader: reader, prompter: prompter, logger: logger}
}

// Resolve produces the target port and launch parameters for the project.
// activePort is the currently bound port during a restart, zero otherwise.
func (r *Reconciler) Resolve(ctx context.Context, repoPath string, activePort int) (Resolution, error) {
	agents, err := r.reader.ReadAgentsConfig(repoPath)
	if err != nil {
		return Resolution{}, err
	}
	script, err := r.reader.DetectDevServerConfig(repoPath)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{}
	scriptPort := 0
	switch {
	case script != nil:
		res.Command = script.Command
		res.Args = script.Args
		scriptPort = script.ExplicitPort
	case agents.DevCommand != "":
		res.Command = agents.DevCommand
		res.Args = agents.DevArgs
	default:
		return Resolution{}, ErrNoDevCommand
	}

	target, persisted, cancelled, err := r.choosePort(ctx, repoPath, agents.Port, scriptPort, script)
	if err != nil {
		return Resolution{}, err
	}
	if cancelled {
		res.Cancelled = true
		return res, nil
	}
	res.Port = target
	res.Persisted = persisted
	res.StalePorts = stalePorts(target, agents.Port, scriptPort, activePort)
	if persisted && r.OnPortChosen != nil {
		r.OnPortChosen(repoPath, target)
	}
	return res, nil
}

func (r *Reconciler) choosePort(ctx context.Context, repoPath string, agentsPort, scriptPort int, script *DevServerConfig) (port int, persisted, cancelled bool, err error) {
	if agentsPort > 0 && scriptPort > 0 && agentsPort != scriptPort {
		return r.resolveConflict(ctx, repoPath, agentsPort, scriptPort)
	}
	switch {
	case scriptPort > 0:
		return scriptPort, false, false, nil
	case agentsPort > 0:
		return agentsPort, false, false, nil
	case script != nil && script.Port > 0:
		// Conventional default inferred from the dev script.
		return script.Port, false, false, nil
	}
	return r.requestManualPort(ctx, repoPath)
}

// resolveConflict suspends on the prompter until the user picks a side,
// re-prompting with an inline error when a custom value fails validation.
func (r *Reconciler) resolveConflict(ctx context.Context, repoPath string, agentsPort, scriptPort int) (port int, persisted, cancelled bool, err error) {
	prompt := ConflictPrompt{RepoPath: repoPath, AgentsPort: agentsPort, ScriptPort: scriptPort}
	for {
		decision, err := r.prompter.ResolveConflict(ctx, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return 0, false, true, nil
			}
			return 0, false, false, err
		}
		switch decision.Action {
		case ActionCancel:
			return 0, false, true, nil
		case ActionSkip:
			r.logger.Info("port conflict skipped", "path", repoPath, "port", scriptPort)
			return scriptPort, false, false, nil
		case ActionSync:
			chosen := decision.Port
			switch decision.Source {
			case "script":
				chosen = scriptPort
			case "agents":
				chosen = agentsPort
			}
			if verr := ValidatePort(chosen); verr != nil {
				prompt.ValidationError = verr.Error()
				continue
			}
			if err := r.persistPort(repoPath, chosen); err != nil {
				return 0, false, false, err
			}
			return chosen, true, false, nil
		default:
			return 0, false, false, fmt.Errorf("unknown conflict decision %q", decision.Action)
		}
	}
}

func (r *Reconciler) requestManualPort(ctx context.Context, repoPath string) (port int, persisted, cancelled bool, err error) {
	prompt := PortPrompt{RepoPath: repoPath}
	for {
		chosen, err := r.prompter.RequestPort(ctx, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return 0, false, true, nil
			}
			return 0, false, false, err
		}
		if chosen == 0 {
			return 0, false, true, nil
		}
		if verr := ValidatePort(chosen); verr != nil {
			prompt.ValidationError = verr.Error()
			continue
		}
		if err := r.persistPort(repoPath, chosen); err != nil {
			return 0, false, false, err
		}
		return chosen, true, false, nil
	}
}

// persistPort writes the chosen port to both sources. The dev script write
// is best effort; a script without a port token is left alone.
func (r *Reconciler) persistPort(repoPath string, port int) error {
	if err := r.reader.WriteAgentsPort(repoPath, port); err != nil {
		return fmt.Errorf("write marker port: %w", err)
	}
	if err := r.reader.WriteDevScriptPort(repoPath, port); err != nil {
		r.logger.Warn("dev script port not updated", "path", repoPath, "error", err)
	}
	r.logger.Info("port synced", "path", repoPath, "port", port)
	return nil
}

func stalePorts(target int, candidates ...int) []int {
	seen := map[int]bool{}
	var stale []int
	for _, p := range candidates {
		if p > 0 && p != target && !seen[p] {
			seen[p] = true
			stale = append(stale, p)
		}
	}
	return stale
}
