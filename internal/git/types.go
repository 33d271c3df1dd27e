package git

import "errors"

// Sentinel errors surfaced to the UI with stable meanings.
var (
	ErrNotARepository  = errors.New("not a git repository")
	ErrNothingToCommit = errors.New("nothing to commit")
	ErrNoRemote        = errors.New("no remote configured")
	ErrNoCommits       = errors.New("no commits yet")
	ErrMergeConflict   = errors.New("merge conflict detected")
)

// ProjectState is the working-tree snapshot rendered by the status views.
type ProjectState struct {
	Branch         string       `json:"branch"`
	IsDetached     bool         `json:"isDetached"`
	ChangedFiles   []FileStatus `json:"changedFiles"`
	StagedFiles    []FileStatus `json:"stagedFiles"`
	UntrackedFiles []string     `json:"untrackedFiles"`
	Ahead          int          `json:"ahead"`
	Behind         int          `json:"behind"`
	HasRemote      bool         `json:"hasRemote"`
}

type FileStatus struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "modified", "added", "deleted", "renamed"
}

type SaveResult struct {
	SHA            string `json:"sha"`
	Message        string `json:"message"`
	FilesCommitted int    `json:"filesCommitted"`
}

type ShipResult struct {
	Pushed        bool   `json:"pushed"`
	CommitsPushed int    `json:"commitsPushed"`
	Remote        string `json:"remote"`
	Branch        string `json:"branch"`
}

type SyncResult struct {
	Pulled    int  `json:"pulled"`
	Pushed    int  `json:"pushed"`
	Conflicts bool `json:"conflicts"`
}

type Commit struct {
	SHA        string   `json:"sha"`
	ShortSHA   string   `json:"shortSha"`
	Message    string   `json:"message"`
	Author     string   `json:"author"`
	Email      string   `json:"email"`
	Timestamp  int64    `json:"timestamp"`
	ParentSHAs []string `json:"parentShas"`
}

type FileDiff struct {
	Path      string     `json:"path"`
	Status    string     `json:"status"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	IsBinary  bool       `json:"isBinary"`
	Hunks     []DiffHunk `json:"hunks"`
}

type DiffHunk struct {
	Header string     `json:"header"`
	Lines  []DiffLine `json:"lines"`
}

type DiffLine struct {
	Content  string `json:"content"`
	LineType string `json:"lineType"` // "add", "delete", "context"
	OldLine  *int   `json:"oldLine,omitempty"`
	NewLine  *int   `json:"newLine,omitempty"`
}

type Branch struct {
	Name      string `json:"name"`
	IsCurrent bool   `json:"isCurrent"`
	IsRemote  bool   `json:"isRemote"`
	Ahead     int    `json:"ahead"`
	Behind    int    `json:"behind"`
}

type Remote struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
