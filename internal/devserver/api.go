package devserver

import (
	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

// API exposes dev server actions to the frontend via Wails binding.
type API struct {
	manager    *Manager
	supervisor *Supervisor
	reader     *ConfigReader
	prompter   *EventPrompter
	log        logging.Logger
}

func NewAPI(manager *Manager, sup *Supervisor, reader *ConfigReader, prompter *EventPrompter, logger logging.Logger) *API {
	if logger == nil {
		logger = logging.Nop()
	}
	return &API{manager: manager, supervisor: sup, reader: reader, prompter: prompter, log: logger}
}

// Detection bundles both configuration sources for the frontend.
type Detection struct {
	Agents AgentsConfig     `json:"agents"`
	Script *DevServerConfig `json:"script"`
}

func (a *API) DevServerDetect(repoPath string) (Detection, error) {
	agents, err := a.reader.ReadAgentsConfig(repoPath)
	if err != nil {
		return Detection{}, err
	}
	script, err := a.reader.DetectDevServerConfig(repoPath)
	if err != nil {
		return Detection{}, err
	}
	return Detection{Agents: agents, Script: script}, nil
}

func (a *API) DevServerSetActiveProject(repoPath string) Snapshot {
	return a.manager.SetActiveProject(repoPath)
}

func (a *API) DevServerConnect(repoPath string) { a.manager.Connect(repoPath) }
func (a *API) DevServerRestart(repoPath string) { a.manager.Restart(repoPath) }
func (a *API) DevServerDisconnect(repoPath string) { a.manager.Disconnect(repoPath) }

func (a *API) DevServerSnapshot(repoPath string) Snapshot {
	return a.manager.Snapshot(repoPath)
}

func (a *API) DevServerPresentation(repoPath string) Presentation {
	return Present(a.manager.Snapshot(repoPath))
}

func (a *API) DevServerState(repoPath string) DevServerState {
	snap := a.manager.Snapshot(repoPath)
	return a.supervisor.State(repoPath, snap.Port)
}

func (a *API) DevServerLogs(repoPath string) []string {
	return a.supervisor.Logs(repoPath)
}

// DevServerRespond delivers the user's answer to a pending port prompt.
func (a *API) DevServerRespond(requestID string, decision Decision) {
	a.prompter.Submit(requestID, decision)
}

func (a *API) DevServerKillPort(port int) error {
	return a.supervisor.KillPort(port)
}

func (a *API) DevServerCleanupLocks(repoPath string) []string {
	return a.supervisor.CleanupLocks(repoPath)
}

func (a *API) DevServerDiagnose(repoPath string) Diagnosis {
	snap := a.manager.Snapshot(repoPath)
	return Diagnose(a.supervisor, a.reader, repoPath, snap.Port)
}

func (a *API) DevServerWritePort(repoPath string, port int) error {
	if err := ValidatePort(port); err != nil {
		return err
	}
	if err := a.reader.WriteAgentsPort(repoPath, port); err != nil {
		return err
	}
	if err := a.reader.WriteDevScriptPort(repoPath, port); err != nil {
		a.log.Warn("dev script port not updated", "path", repoPath, "error", err)
	}
	return nil
}
