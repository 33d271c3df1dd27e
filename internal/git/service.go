package git

import (
	"context"
	"sync"
	"time"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

// Service wraps the git client with a short-lived status cache so the UI can
// poll without hammering the repository on every re-render.
type Service struct {
	client Client
	logger logging.Logger

	cacheMu  sync.Mutex
	cache    map[string]cachedStatus
	cacheTTL time.Duration
}

type cachedStatus struct {
	state    ProjectState
	fetched  time.Time
}

func NewService(client Client, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		client:   client,
		logger:   logger,
		cache:    map[string]cachedStatus{},
		cacheTTL: 2 * time.Second,
	}
}

// Status returns the working-tree snapshot, served from cache within the TTL.
func (s *Service) Status(ctx context.Context, repoPath string) (ProjectState, error) {
	s.cacheMu.Lock()
	if entry, ok := s.cache[repoPath]; ok && time.Since(entry.fetched) < s.cacheTTL {
		s.cacheMu.Unlock()
		return entry.state, nil
	}
	s.cacheMu.Unlock()

	state, err := s.client.Status(ctx, repoPath)
	if err != nil {
		return ProjectState{}, err
	}
	s.cacheMu.Lock()
	s.cache[repoPath] = cachedStatus{state: state, fetched: time.Now()}
	s.cacheMu.Unlock()
	return state, nil
}

// Invalidate drops the cached status for a repository, forcing the next
// Status call to hit the working tree. Mutating operations call this.
func (s *Service) Invalidate(repoPath string) {
	s.cacheMu.Lock()
	delete(s.cache, repoPath)
	s.cacheMu.Unlock()
}

// InvalidateAll drops every cached status snapshot.
func (s *Service) InvalidateAll() {
	s.cacheMu.Lock()
	s.cache = map[string]cachedStatus{}
	s.cacheMu.Unlock()
}

func (s *Service) Save(ctx context.Context, repoPath, message string) (SaveResult, error) {
	defer s.Invalidate(repoPath)
	result, err := s.client.Save(ctx, repoPath, message)
	if err != nil {
		return SaveResult{}, err
	}
	s.logger.Info("committed changes", "repo", repoPath, "sha", result.SHA, "files", result.FilesCommitted)
	return result, nil
}

func (s *Service) Ship(ctx context.Context, repoPath string) (ShipResult, error) {
	defer s.Invalidate(repoPath)
	result, err := s.client.Ship(ctx, repoPath)
	if err != nil {
		return ShipResult{}, err
	}
	s.logger.Info("pushed branch", "repo", repoPath, "branch", result.Branch, "commits", result.CommitsPushed)
	return result, nil
}

func (s *Service) Sync(ctx context.Context, repoPath string) (SyncResult, error) {
	defer s.Invalidate(repoPath)
	return s.client.Sync(ctx, repoPath)
}

func (s *Service) Log(ctx context.Context, repoPath string, limit int) ([]Commit, error) {
	return s.client.Log(ctx, repoPath, limit)
}

func (s *Service) Diff(ctx context.Context, repoPath string) ([]FileDiff, error) {
	return s.client.Diff(ctx, repoPath)
}

func (s *Service) FileDiff(ctx context.Context, repoPath, file string, staged bool) (FileDiff, error) {
	return s.client.FileDiff(ctx, repoPath, file, staged)
}

func (s *Service) Stage(ctx context.Context, repoPath string, files []string) error {
	defer s.Invalidate(repoPath)
	return s.client.Stage(ctx, repoPath, files)
}

func (s *Service) Unstage(ctx context.Context, repoPath string, files []string) error {
	defer s.Invalidate(repoPath)
	return s.client.Unstage(ctx, repoPath, files)
}

func (s *Service) Checkout(ctx context.Context, repoPath, ref string) error {
	defer s.Invalidate(repoPath)
	return s.client.Checkout(ctx, repoPath, ref)
}

func (s *Service) CreateBranch(ctx context.Context, repoPath, name string, checkoutAfter bool) error {
	defer s.Invalidate(repoPath)
	return s.client.CreateBranch(ctx, repoPath, name, checkoutAfter)
}

func (s *Service) Branches(ctx context.Context, repoPath string) ([]Branch, error) {
	return s.client.Branches(ctx, repoPath)
}

func (s *Service) Remotes(ctx context.Context, repoPath string) ([]Remote, error) {
	return s.client.Remotes(ctx, repoPath)
}

func (s *Service) StashSave(ctx context.Context, repoPath, message string) error {
	defer s.Invalidate(repoPath)
	return s.client.StashSave(ctx, repoPath, message)
}

func (s *Service) StashPop(ctx context.Context, repoPath string) error {
	defer s.Invalidate(repoPath)
	return s.client.StashPop(ctx, repoPath)
}

func (s *Service) Init(ctx context.Context, path string) error {
	defer s.Invalidate(path)
	return s.client.Init(ctx, path)
}

func (s *Service) IsRepoPath(ctx context.Context, path string) (bool, error) {
	return s.client.IsRepoPath(ctx, path)
}
