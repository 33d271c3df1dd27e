package git

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/simonbloom/vibogit-sub001/internal/git/runner"
)

// The well-known empty tree hash, used to diff repos without commits.
const emptyTreeHash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// ExecClient implements Client using the git binary.
type ExecClient struct {
	r runner.Runner
}

func NewExecClient(gitBin string) *ExecClient {
	return &ExecClient{r: runner.NewExecRunner(gitBin)}
}

// NewClientWithRunner is used by tests to substitute a scripted runner.
func NewClientWithRunner(r runner.Runner) *ExecClient {
	return &ExecClient{r: r}
}

func (c *ExecClient) Status(ctx context.Context, repoPath string) (ProjectState, error) {
	if ok, err := c.IsRepoPath(ctx, repoPath); err != nil || !ok {
		return ProjectState{}, fmt.Errorf("%w: %s", ErrNotARepository, repoPath)
	}

	out, err := c.r.Run(ctx, repoPath, "status", "--porcelain=v1", "-b")
	if err != nil {
		return ProjectState{}, err
	}

	state := ProjectState{
		ChangedFiles:   []FileStatus{},
		StagedFiles:    []FileStatus{},
		UntrackedFiles: []string{},
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "## ") {
			parseBranchHeader(line[3:], &state)
			continue
		}
		if len(line) < 3 {
			continue
		}
		index, worktree := line[0], line[1]
		path := cleanStatusPath(line[3:])
		if path == "" {
			continue
		}

		if index == '?' && worktree == '?' {
			state.UntrackedFiles = append(state.UntrackedFiles, path)
			continue
		}
		if status := indexStatusWord(index); status != "" {
			state.StagedFiles = append(state.StagedFiles, FileStatus{Path: path, Status: status})
		}
		if status := worktreeStatusWord(worktree); status != "" {
			state.ChangedFiles = append(state.ChangedFiles, FileStatus{Path: path, Status: status})
		}
	}
	if err := scanner.Err(); err != nil {
		return ProjectState{}, fmt.Errorf("scan git status: %w", err)
	}

	if state.IsDetached {
		if sha, err := c.r.Run(ctx, repoPath, "rev-parse", "--short", "HEAD"); err == nil {
			state.Branch = strings.TrimSpace(sha)
		}
	}
	return state, nil
}

// parseBranchHeader handles porcelain branch lines such as
// "main...origin/main [ahead 1, behind 2]" and "HEAD (no branch)".
func parseBranchHeader(header string, state *ProjectState) {
	if strings.HasPrefix(header, "HEAD (no branch)") {
		state.IsDetached = true
		return
	}
	if strings.HasPrefix(header, "No commits yet on ") {
		state.Branch = strings.TrimSpace(header[len("No commits yet on "):])
		return
	}

	name := header
	if idx := strings.Index(header, "..."); idx >= 0 {
		name = header[:idx]
		state.HasRemote = true
		rest := header[idx+3:]
		if open := strings.Index(rest, "["); open >= 0 {
			track := strings.TrimSuffix(rest[open+1:], "]")
			for _, part := range strings.Split(track, ",") {
				part = strings.TrimSpace(part)
				if n, ok := strings.CutPrefix(part, "ahead "); ok {
					state.Ahead, _ = strconv.Atoi(n)
				}
				if n, ok := strings.CutPrefix(part, "behind "); ok {
					state.Behind, _ = strconv.Atoi(n)
				}
			}
		}
	} else if idx := strings.Index(header, " "); idx >= 0 {
		name = header[:idx]
	}
	state.Branch = strings.TrimSpace(name)
}

func indexStatusWord(code byte) string {
	switch code {
	case 'A':
		return "added"
	case 'D':
		return "deleted"
	case 'R':
		return "renamed"
	case 'M', 'T':
		return "modified"
	default:
		return ""
	}
}

func worktreeStatusWord(code byte) string {
	switch code {
	case 'D':
		return "deleted"
	case 'M', 'T':
		return "modified"
	default:
		return ""
	}
}

func cleanStatusPath(raw string) string {
	path := strings.TrimSpace(raw)
	if strings.Contains(path, " -> ") {
		parts := strings.Split(path, " -> ")
		path = parts[len(parts)-1]
	}
	if strings.HasPrefix(path, "\"") {
		if decoded, err := strconv.Unquote(path); err == nil {
			path = decoded
		}
	}
	return path
}

func (c *ExecClient) Save(ctx context.Context, repoPath, message string) (SaveResult, error) {
	if _, err := c.r.Run(ctx, repoPath, "add", "-A"); err != nil {
		return SaveResult{}, err
	}

	stagedOut, err := c.r.Run(ctx, repoPath, "diff", "--cached", "--name-only")
	if err != nil {
		// No HEAD yet: diff against the empty tree.
		stagedOut, err = c.r.Run(ctx, repoPath, "diff", "--cached", "--name-only", emptyTreeHash)
		if err != nil {
			return SaveResult{}, err
		}
	}
	staged := nonEmptyLines(stagedOut)
	if len(staged) == 0 {
		return SaveResult{}, ErrNothingToCommit
	}

	if strings.TrimSpace(message) == "" {
		plural := "s"
		if len(staged) == 1 {
			plural = ""
		}
		message = fmt.Sprintf("Update %d file%s", len(staged), plural)
	}

	if _, err := c.r.Run(ctx, repoPath, "commit", "-m", message); err != nil {
		return SaveResult{}, err
	}
	sha, err := c.r.Run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{
		SHA:            strings.TrimSpace(sha),
		Message:        message,
		FilesCommitted: len(staged),
	}, nil
}

func (c *ExecClient) Ship(ctx context.Context, repoPath string) (ShipResult, error) {
	remotes, err := c.Remotes(ctx, repoPath)
	if err != nil {
		return ShipResult{}, err
	}
	if len(remotes) == 0 {
		return ShipResult{}, ErrNoRemote
	}

	branchOut, err := c.r.Run(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ShipResult{}, err
	}
	branch := strings.TrimSpace(branchOut)

	pending := 0
	if countOut, err := c.r.Run(ctx, repoPath, "rev-list", "--count", "@{upstream}..HEAD"); err == nil {
		pending, _ = strconv.Atoi(strings.TrimSpace(countOut))
	} else if countOut, err := c.r.Run(ctx, repoPath, "rev-list", "--count", "HEAD"); err == nil {
		// No upstream yet: everything on the branch is unpushed.
		pending, _ = strconv.Atoi(strings.TrimSpace(countOut))
	}

	if _, err := c.r.Run(ctx, repoPath, "push", "-u", remotes[0].Name, branch); err != nil {
		return ShipResult{}, err
	}
	return ShipResult{
		Pushed:        true,
		CommitsPushed: pending,
		Remote:        remotes[0].Name,
		Branch:        branch,
	}, nil
}

func (c *ExecClient) Sync(ctx context.Context, repoPath string) (SyncResult, error) {
	remotes, err := c.Remotes(ctx, repoPath)
	if err != nil {
		return SyncResult{}, err
	}
	if len(remotes) == 0 {
		return SyncResult{}, ErrNoRemote
	}

	before, _ := c.r.Run(ctx, repoPath, "rev-parse", "HEAD")

	if _, err := c.r.Run(ctx, repoPath, "pull", "--ff-only", remotes[0].Name); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "CONFLICT") || strings.Contains(msg, "Not possible to fast-forward") || strings.Contains(msg, "divergent") {
			return SyncResult{Conflicts: true}, ErrMergeConflict
		}
		return SyncResult{}, err
	}

	pulled := 0
	if after, err := c.r.Run(ctx, repoPath, "rev-parse", "HEAD"); err == nil {
		if strings.TrimSpace(before) != strings.TrimSpace(after) {
			if countOut, err := c.r.Run(ctx, repoPath, "rev-list", "--count", strings.TrimSpace(before)+".."+strings.TrimSpace(after)); err == nil {
				pulled, _ = strconv.Atoi(strings.TrimSpace(countOut))
			}
		}
	}

	ship, err := c.Ship(ctx, repoPath)
	if err != nil {
		return SyncResult{Pulled: pulled}, err
	}
	return SyncResult{Pulled: pulled, Pushed: ship.CommitsPushed, Conflicts: false}, nil
}

func (c *ExecClient) Log(ctx context.Context, repoPath string, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = 50
	}
	// Unit separator between fields, record separator between commits.
	format := "%H%x1f%h%x1f%an%x1f%ae%x1f%at%x1f%P%x1f%s%x1e"
	out, err := c.r.Run(ctx, repoPath, "log", "-n", strconv.Itoa(limit), "--pretty=format:"+format)
	if err != nil {
		if strings.Contains(err.Error(), "does not have any commits") {
			return nil, ErrNoCommits
		}
		return nil, err
	}

	var commits []Commit
	for _, record := range strings.Split(out, "\x1e") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.Split(record, "\x1f")
		if len(fields) < 7 {
			continue
		}
		ts, _ := strconv.ParseInt(fields[4], 10, 64)
		var parents []string
		if p := strings.TrimSpace(fields[5]); p != "" {
			parents = strings.Fields(p)
		}
		commits = append(commits, Commit{
			SHA:        fields[0],
			ShortSHA:   fields[1],
			Author:     fields[2],
			Email:      fields[3],
			Timestamp:  ts,
			ParentSHAs: parents,
			Message:    fields[6],
		})
	}
	return commits, nil
}

func (c *ExecClient) Diff(ctx context.Context, repoPath string) ([]FileDiff, error) {
	out, err := c.r.Run(ctx, repoPath, "diff", "HEAD")
	if err != nil {
		out, err = c.r.Run(ctx, repoPath, "diff", emptyTreeHash)
		if err != nil {
			return nil, err
		}
	}
	return ParseUnifiedDiff(out), nil
}

func (c *ExecClient) FileDiff(ctx context.Context, repoPath, file string, staged bool) (FileDiff, error) {
	args := []string{"diff"}
	if staged {
		args = append(args, "--cached")
	}
	args = append(args, "--", file)
	out, err := c.r.Run(ctx, repoPath, args...)
	if err != nil {
		return FileDiff{}, err
	}
	diffs := ParseUnifiedDiff(out)
	if len(diffs) == 0 {
		return FileDiff{Path: file, Status: "unchanged"}, nil
	}
	return diffs[0], nil
}

func (c *ExecClient) Stage(ctx context.Context, repoPath string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to stage")
	}
	args := append([]string{"add", "--"}, files...)
	_, err := c.r.Run(ctx, repoPath, args...)
	return err
}

func (c *ExecClient) Unstage(ctx context.Context, repoPath string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to unstage")
	}
	args := append([]string{"restore", "--staged", "--"}, files...)
	_, err := c.r.Run(ctx, repoPath, args...)
	return err
}

func (c *ExecClient) Checkout(ctx context.Context, repoPath, ref string) error {
	_, err := c.r.Run(ctx, repoPath, "checkout", ref)
	return err
}

func (c *ExecClient) CreateBranch(ctx context.Context, repoPath, name string, checkoutAfter bool) error {
	if checkoutAfter {
		_, err := c.r.Run(ctx, repoPath, "checkout", "-b", name)
		return err
	}
	_, err := c.r.Run(ctx, repoPath, "branch", name)
	return err
}

func (c *ExecClient) Branches(ctx context.Context, repoPath string) ([]Branch, error) {
	format := "%(HEAD)%09%(refname:short)%09%(upstream:track,nobracket)"
	out, err := c.r.Run(ctx, repoPath, "for-each-ref", "refs/heads", "refs/remotes", "--format="+format)
	if err != nil {
		return nil, err
	}

	var branches []Branch
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 {
			continue
		}
		b := Branch{
			IsCurrent: fields[0] == "*",
			Name:      fields[1],
			IsRemote:  strings.Contains(fields[1], "/"),
		}
		if len(fields) >= 3 {
			for _, part := range strings.Split(fields[2], ",") {
				part = strings.TrimSpace(part)
				if n, ok := strings.CutPrefix(part, "ahead "); ok {
					b.Ahead, _ = strconv.Atoi(n)
				}
				if n, ok := strings.CutPrefix(part, "behind "); ok {
					b.Behind, _ = strconv.Atoi(n)
				}
			}
		}
		branches = append(branches, b)
	}
	return branches, scanner.Err()
}

func (c *ExecClient) Remotes(ctx context.Context, repoPath string) ([]Remote, error) {
	out, err := c.r.Run(ctx, repoPath, "remote", "-v")
	if err != nil {
		return nil, err
	}
	var remotes []Remote
	seen := map[string]bool{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || seen[fields[0]] {
			continue
		}
		seen[fields[0]] = true
		remotes = append(remotes, Remote{Name: fields[0], URL: fields[1]})
	}
	return remotes, scanner.Err()
}

func (c *ExecClient) StashSave(ctx context.Context, repoPath, message string) error {
	args := []string{"stash", "push"}
	if strings.TrimSpace(message) != "" {
		args = append(args, "-m", message)
	}
	_, err := c.r.Run(ctx, repoPath, args...)
	return err
}

func (c *ExecClient) StashPop(ctx context.Context, repoPath string) error {
	_, err := c.r.Run(ctx, repoPath, "stash", "pop")
	return err
}

func (c *ExecClient) Init(ctx context.Context, path string) error {
	_, err := c.r.Run(ctx, path, "init")
	return err
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
