package terminal

// API exposes terminal sessions to the frontend via Wails binding.
type API struct {
	mgr *Manager
}

func NewAPI(mgr *Manager) *API { return &API{mgr: mgr} }

func (a *API) TerminalStart(projectPath string) error { return a.mgr.Start(projectPath) }
func (a *API) TerminalStop(projectPath string) error  { return a.mgr.Stop(projectPath) }
func (a *API) TerminalWrite(projectPath, data string) error {
	return a.mgr.Write(projectPath, data)
}
func (a *API) TerminalResize(projectPath string, cols, rows int) error {
	return a.mgr.Resize(projectPath, cols, rows)
}
