package git

import "context"

// API exposes git operations to the frontend via Wails bindings.
type API struct {
	svc *Service
}

func NewAPI(svc *Service) *API { return &API{svc: svc} }

func (a *API) GitStatus(repoPath string) (ProjectState, error) {
	return a.svc.Status(context.Background(), repoPath)
}

func (a *API) GitSave(repoPath, message string) (SaveResult, error) {
	return a.svc.Save(context.Background(), repoPath, message)
}

func (a *API) GitShip(repoPath string) (ShipResult, error) {
	return a.svc.Ship(context.Background(), repoPath)
}

func (a *API) GitSync(repoPath string) (SyncResult, error) {
	return a.svc.Sync(context.Background(), repoPath)
}

func (a *API) GitLog(repoPath string, limit int) ([]Commit, error) {
	return a.svc.Log(context.Background(), repoPath, limit)
}

func (a *API) GitDiff(repoPath string) ([]FileDiff, error) {
	return a.svc.Diff(context.Background(), repoPath)
}

func (a *API) GitFileDiff(repoPath, file string, staged bool) (FileDiff, error) {
	return a.svc.FileDiff(context.Background(), repoPath, file, staged)
}

func (a *API) GitStage(repoPath string, files []string) error {
	return a.svc.Stage(context.Background(), repoPath, files)
}

func (a *API) GitUnstage(repoPath string, files []string) error {
	return a.svc.Unstage(context.Background(), repoPath, files)
}

func (a *API) GitCheckout(repoPath, ref string) error {
	return a.svc.Checkout(context.Background(), repoPath, ref)
}

func (a *API) GitCreateBranch(repoPath, name string, checkoutAfter bool) error {
	return a.svc.CreateBranch(context.Background(), repoPath, name, checkoutAfter)
}

func (a *API) GitBranches(repoPath string) ([]Branch, error) {
	return a.svc.Branches(context.Background(), repoPath)
}

func (a *API) GitRemotes(repoPath string) ([]Remote, error) {
	return a.svc.Remotes(context.Background(), repoPath)
}

func (a *API) GitStashSave(repoPath, message string) error {
	return a.svc.StashSave(context.Background(), repoPath, message)
}

func (a *API) GitStashPop(repoPath string) error {
	return a.svc.StashPop(context.Background(), repoPath)
}

func (a *API) GitInit(path string) error {
	return a.svc.Init(context.Background(), path)
}

func (a *API) IsGitRepo(path string) (bool, error) {
	return a.svc.IsRepoPath(context.Background(), path)
}
