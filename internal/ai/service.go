package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
	"github.com/simonbloom/vibogit-sub001/internal/settings"
)

const (
	commitDiffLimit = 10000
	prDiffLimit     = 5000
)

// Service generates commit messages, PR descriptions and fix-it commands
// using the provider configured in user settings.
type Service struct {
	store  *settings.Store
	logger logging.Logger

	// newProvider is swapped out in tests.
	newProvider func(cfg Config) (Provider, error)
}

func NewService(store *settings.Store, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{store: store, logger: logger, newProvider: New}
}

func (s *Service) provider() (Provider, error) {
	cfg := s.store.Get()
	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("no api key configured for provider %q", cfg.AIProvider)
	}
	return s.newProvider(Config{
		Provider: cfg.AIProvider,
		Model:    cfg.AIModel,
		APIKey:   cfg.AIAPIKey,
	})
}

// GenerateCommitMessage produces a conventional commit message for a diff.
func (s *Service) GenerateCommitMessage(ctx context.Context, diff string) (string, error) {
	p, err := s.provider()
	if err != nil {
		return "", err
	}
	prompt := commitPrompt(diff)
	text, err := p.Generate(ctx, prompt, 500)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripCodeFences(text)), nil
}

type PRDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GeneratePRDescription drafts a pull request title and body from the
// branch's commits and diff.
func (s *Service) GeneratePRDescription(ctx context.Context, commits []string, diff, baseBranch, headBranch string) (PRDraft, error) {
	p, err := s.provider()
	if err != nil {
		return PRDraft{}, err
	}
	text, err := p.Generate(ctx, prPrompt(commits, diff, baseBranch, headBranch), 1000)
	if err != nil {
		return PRDraft{}, err
	}
	var draft PRDraft
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &draft); err != nil {
		return PRDraft{}, fmt.Errorf("model did not return valid JSON: %w", err)
	}
	if draft.Title == "" {
		return PRDraft{}, fmt.Errorf("model returned an empty title")
	}
	return draft, nil
}

// DiagnoseRequest carries the dev server failure context for the model.
type DiagnoseRequest struct {
	Path          string   `json:"path"`
	Command       string   `json:"command"`
	CommandArgs   []string `json:"commandArgs"`
	Port          int      `json:"port"`
	DiagnosisCode string   `json:"diagnosisCode"`
	Problem       string   `json:"problem"`
	LastLogs      []string `json:"lastLogs"`
}

// SuggestFixCommands asks the model for terminal commands that would fix a
// failed dev server start, one command per line.
func (s *Service) SuggestFixCommands(ctx context.Context, req DiagnoseRequest) ([]string, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	text, err := p.Generate(ctx, diagnosePrompt(req), 300)
	if err != nil {
		return nil, err
	}
	return parseCommandList(text), nil
}

func commitPrompt(diff string) string {
	var b strings.Builder
	b.WriteString("Write a git commit message for this diff.\n")
	b.WriteString("Use conventional commit format (type: description).\n")
	b.WriteString("Output ONLY the commit message - no markdown, no code blocks, no backticks, no quotes.\n")
	b.WriteString("First line should be under 72 characters.\n")
	b.WriteString("If the diff is summarized, rely on the stats and file list.\n\n")
	b.WriteString(truncate(diff, commitDiffLimit))
	return b.String()
}

func prPrompt(commits []string, diff, baseBranch, headBranch string) string {
	commitsText := "- No recent commits available"
	if len(commits) > 0 {
		commitsText = strings.Join(commits, "\n")
	}
	var b strings.Builder
	b.WriteString("Generate a pull request title and description for the following changes.\n\n")
	fmt.Fprintf(&b, "Branch: %s -> %s\n\n", headBranch, baseBranch)
	fmt.Fprintf(&b, "Commits:\n%s\n\n", commitsText)
	fmt.Fprintf(&b, "Diff summary (truncated):\n%s\n\n", truncate(diff, prDiffLimit))
	b.WriteString("Output format (JSON):\n{\n  \"title\": \"Short descriptive title (max 72 chars)\",\n  \"description\": \"Markdown description with ## Summary and ## Changes sections\"\n}\n\n")
	b.WriteString("Output ONLY valid JSON, no markdown code blocks.")
	return b.String()
}

func diagnosePrompt(req DiagnoseRequest) string {
	var b strings.Builder
	b.WriteString("My dev server failed to start. Here's the context:\n")
	fmt.Fprintf(&b, "- Project path: %s\n", req.Path)
	fmt.Fprintf(&b, "- Command: %s %s\n", req.Command, strings.Join(req.CommandArgs, " "))
	fmt.Fprintf(&b, "- Port: %d\n", req.Port)
	fmt.Fprintf(&b, "- Diagnosis: %s - %s\n", req.DiagnosisCode, req.Problem)
	fmt.Fprintf(&b, "- Last logs:\n%s\n\n", strings.Join(req.LastLogs, "\n"))
	b.WriteString("What terminal command(s) should I run to fix this? Reply with ONLY the command(s), one per line, no explanation.")
	return b.String()
}

// stripCodeFences removes a surrounding markdown code block, including an
// optional language tag on the opening fence.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// drop the language tag line
		if lang := strings.TrimSpace(trimmed[:idx]); lang == "" || isWordOnly(lang) {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isWordOnly(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// parseCommandList splits a model reply into runnable commands, dropping
// blanks and comment lines.
func parseCommandList(text string) []string {
	var commands []string
	for _, line := range strings.Split(stripCodeFences(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		commands = append(commands, line)
	}
	return commands
}
