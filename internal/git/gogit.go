package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
)

// Read-only repository helpers backed by go-git, so status views never shell
// out just to answer "is this a repo" style questions.

func (c *ExecClient) RepoRoot(ctx context.Context, path string) (string, error) {
	start, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(start); err == nil && !fi.IsDir() {
		start = filepath.Dir(start)
	}
	cur := start
	for {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return "", fmt.Errorf("%w: %s", ErrNotARepository, path)
}

func (c *ExecClient) IsRepoPath(ctx context.Context, path string) (bool, error) {
	root, err := c.RepoRoot(ctx, path)
	if err != nil {
		return false, nil
	}
	if _, err := gogit.PlainOpen(root); err != nil {
		return false, nil
	}
	return true, nil
}

// CurrentRef returns the branch name for HEAD, or the commit hash when detached.
func (c *ExecClient) CurrentRef(ctx context.Context, path string) (string, error) {
	root, err := c.RepoRoot(ctx, path)
	if err != nil {
		return "", err
	}
	repo, err := gogit.PlainOpen(root)
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String(), nil
}
