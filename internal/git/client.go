package git

import "context"

// Client exposes the git operations the app consumes.
// Implementations may use the git binary or a pure-Go library.
type Client interface {
	Status(ctx context.Context, repoPath string) (ProjectState, error)
	Save(ctx context.Context, repoPath, message string) (SaveResult, error)
	Ship(ctx context.Context, repoPath string) (ShipResult, error)
	Sync(ctx context.Context, repoPath string) (SyncResult, error)
	Log(ctx context.Context, repoPath string, limit int) ([]Commit, error)
	Diff(ctx context.Context, repoPath string) ([]FileDiff, error)
	FileDiff(ctx context.Context, repoPath, file string, staged bool) (FileDiff, error)
	Stage(ctx context.Context, repoPath string, files []string) error
	Unstage(ctx context.Context, repoPath string, files []string) error
	Checkout(ctx context.Context, repoPath, ref string) error
	CreateBranch(ctx context.Context, repoPath, name string, checkoutAfter bool) error
	Branches(ctx context.Context, repoPath string) ([]Branch, error)
	Remotes(ctx context.Context, repoPath string) ([]Remote, error)
	StashSave(ctx context.Context, repoPath, message string) error
	StashPop(ctx context.Context, repoPath string) error
	Init(ctx context.Context, path string) error
	IsRepoPath(ctx context.Context, path string) (bool, error)
	RepoRoot(ctx context.Context, path string) (string, error)
}
