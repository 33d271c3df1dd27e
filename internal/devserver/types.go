package devserver

// AgentsConfig is the normalized view of a project's marker file
// (AGENTS.md and variants). A port of 0 means "not declared".
type AgentsConfig struct {
	Found      bool     `json:"found"`
	Port       int      `json:"port,omitempty"`
	DevCommand string   `json:"devCommand,omitempty"`
	DevArgs    []string `json:"devArgs,omitempty"`
	FilePath   string   `json:"filePath,omitempty"`
	IsMonorepo bool     `json:"isMonorepo"`
}

// DevServerConfig is the launch recipe derived from the project's dev script.
// ExplicitPort is non-zero only when the script text hardcodes a port;
// Port always carries a usable value (explicit or inferred default).
type DevServerConfig struct {
	Command      string   `json:"command"`
	Args         []string `json:"args"`
	Port         int      `json:"port"`
	ExplicitPort int      `json:"explicitPort,omitempty"`
}

// DevServerState is a read-only snapshot of the tracked child process.
type DevServerState struct {
	Running bool     `json:"running"`
	Port    int      `json:"port,omitempty"`
	Logs    []string `json:"logs"`
}

// LaunchConfig is what the supervisor needs to spawn a dev server.
type LaunchConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Port    int      `json:"port"`
}

// Status is the connection state machine's visible state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusRestarting   Status = "restarting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Snapshot is the UI-facing projection of the state machine.
// Port is non-zero only when connected (or transiently while restarting);
// ErrorMessage is non-empty only in the error state.
type Snapshot struct {
	RepoPath     string `json:"repoPath"`
	Status       Status `json:"status"`
	Port         int    `json:"port,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}
