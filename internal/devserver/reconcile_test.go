package devserver

import (
	"context"
	"strings"
	"testing"
)

type scriptedPrompter struct {
	decisions   []Decision
	ports       []int
	conflicts   []ConflictPrompt
	portPrompts []PortPrompt
}

func (p *scriptedPrompter) ResolveConflict(ctx context.Context, prompt ConflictPrompt) (Decision, error) {
	if ctx.Err() != nil {
		return Decision{}, ctx.Err()
	}
	p.conflicts = append(p.conflicts, prompt)
	if len(p.decisions) == 0 {
		return Decision{Action: ActionCancel}, nil
	}
	d := p.decisions[0]
	p.decisions = p.decisions[1:]
	return d, nil
}

func (p *scriptedPrompter) RequestPort(ctx context.Context, prompt PortPrompt) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	p.portPrompts = append(p.portPrompts, prompt)
	if len(p.ports) == 0 {
		return 0, nil
	}
	port := p.ports[0]
	p.ports = p.ports[1:]
	return port, nil
}

func newTestReconciler(prompter Prompter) *Reconciler {
	return NewReconciler(NewConfigReader(), prompter, nil)
}

func TestValidatePort(t *testing.T) {
	cases := []struct {
		port int
		ok   bool
	}{
		{0, false},
		{-1, false},
		{70000, false},
		{65536, false},
		{65535, true},
		{3000, true},
		{1024, true},
		{1023, false},
		{500, false},
		{80, true},
		{443, true},
	}
	for _, tc := range cases {
		err := ValidatePort(tc.port)
		if tc.ok && err != nil {
			t.Errorf("ValidatePort(%d) = %v, want nil", tc.port, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidatePort(%d) = nil, want error", tc.port)
		}
	}
}

func TestResolveScriptPortWinsWithoutConflict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)

	prompter := &scriptedPrompter{}
	res, err := newTestReconciler(prompter).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Cancelled {
		t.Fatalf("unexpected cancellation")
	}
	if res.Port != 4100 {
		t.Fatalf("port = %d, want 4100", res.Port)
	}
	if len(prompter.conflicts)+len(prompter.portPrompts) != 0 {
		t.Fatalf("no prompt expected")
	}
}

func TestResolveAgentsPortWhenScriptHasNone(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "- Dev server port: 6001\n")
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"node server.js"}}`)

	res, err := newTestReconciler(&scriptedPrompter{}).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Port != 6001 {
		t.Fatalf("port = %d, want 6001", res.Port)
	}
}

func TestResolveFallsBackToDefaultPort(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"vite"}}`)

	res, err := newTestReconciler(&scriptedPrompter{}).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Port != 5173 {
		t.Fatalf("port = %d, want 5173", res.Port)
	}
}

func TestResolveEqualPortsNoPrompt(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "- Dev server port: 4100\n")
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)

	prompter := &scriptedPrompter{}
	res, err := newTestReconciler(prompter).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Port != 4100 {
		t.Fatalf("port = %d, want 4100", res.Port)
	}
	if len(prompter.conflicts) != 0 {
		t.Fatalf("equal ports must not prompt")
	}
}

func TestResolveConflictCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "- Dev server port: 3000\n")
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)

	prompter := &scriptedPrompter{decisions: []Decision{{Action: ActionCancel}}}
	res, err := newTestReconciler(prompter).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("expected cancellation")
	}
	if len(prompter.conflicts) != 1 {
		t.Fatalf("prompt count = %d, want 1", len(prompter.conflicts))
	}
	if got := prompter.conflicts[0]; got.AgentsPort != 3000 || got.ScriptPort != 4100 {
		t.Fatalf("prompt = %+v", got)
	}
}

func TestResolveConflictSkipUsesScriptPort(t *testing.T) {
	dir := t.TempDir()
	markerPath := writeFile(t, dir, "AGENTS.md", "- Dev server port: 3000\n")
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)

	prompter := &scriptedPrompter{decisions: []Decision{{Action: ActionSkip}}}
	res, err := newTestReconciler(prompter).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Port != 4100 {
		t.Fatalf("port = %d, want 4100", res.Port)
	}
	if res.Persisted {
		t.Fatalf("skip must not persist")
	}
	if content := readFile(t, markerPath); !strings.Contains(content, "3000") {
		t.Fatalf("skip must leave the marker file untouched:\n%s", content)
	}
}

func TestResolveConflictSyncPersistsBothSources(t *testing.T) {
	dir := t.TempDir()
	markerPath := writeFile(t, dir, "AGENTS.md", "- Dev server port: 3000\n")
	pkgPath := writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)

	var chosenPath string
	var chosenPort int
	prompter := &scriptedPrompter{decisions: []Decision{{Action: ActionSync, Port: 5000, Source: "custom"}}}
	rec := newTestReconciler(prompter)
	rec.OnPortChosen = func(repoPath string, port int) {
		chosenPath, chosenPort = repoPath, port
	}

	res, err := rec.Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Port != 5000 || !res.Persisted {
		t.Fatalf("res = %+v", res)
	}
	if !strings.Contains(readFile(t, markerPath), "Dev server port: 5000") {
		t.Fatalf("marker file not updated")
	}
	if !strings.Contains(readFile(t, pkgPath), "--port 5000") {
		t.Fatalf("dev script not updated")
	}
	if chosenPath != dir || chosenPort != 5000 {
		t.Fatalf("OnPortChosen = (%q, %d)", chosenPath, chosenPort)
	}
}

func TestResolveConflictSyncSourceSelectsSide(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "- Dev server port: 3000\n")
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)

	prompter := &scriptedPrompter{decisions: []Decision{{Action: ActionSync, Source: "agents"}}}
	res, err := newTestReconciler(prompter).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Port != 3000 {
		t.Fatalf("port = %d, want marker side 3000", res.Port)
	}
}

func TestResolveConflictInvalidCustomReprompts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "- Dev server port: 3000\n")
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)

	prompter := &scriptedPrompter{decisions: []Decision{
		{Action: ActionSync, Port: 99999, Source: "custom"},
		{Action: ActionSync, Port: 443, Source: "custom"},
	}}
	res, err := newTestReconciler(prompter).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Port != 443 {
		t.Fatalf("port = %d, want 443", res.Port)
	}
	if len(prompter.conflicts) != 2 {
		t.Fatalf("prompt count = %d, want 2", len(prompter.conflicts))
	}
	if prompter.conflicts[1].ValidationError == "" {
		t.Fatalf("second prompt must carry the validation error")
	}
}

func TestResolveStalePorts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "- Dev server port: 3000\n")
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)

	prompter := &scriptedPrompter{decisions: []Decision{{Action: ActionSync, Port: 5000, Source: "custom"}}}
	res, err := newTestReconciler(prompter).Resolve(context.Background(), dir, 3000)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := map[int]bool{3000: true, 4100: true}
	if len(res.StalePorts) != len(want) {
		t.Fatalf("stale = %v, want 3000 and 4100", res.StalePorts)
	}
	for _, p := range res.StalePorts {
		if !want[p] {
			t.Fatalf("unexpected stale port %d", p)
		}
	}
}

func TestResolveManualPortFlow(t *testing.T) {
	dir := t.TempDir()
	markerPath := writeFile(t, dir, "AGENTS.md", "Run dev: `bun run dev`\n")

	prompter := &scriptedPrompter{ports: []int{500, 8080}}
	res, err := newTestReconciler(prompter).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Port != 8080 {
		t.Fatalf("port = %d, want 8080", res.Port)
	}
	if res.Command != "bun" {
		t.Fatalf("command = %q, want bun", res.Command)
	}
	if len(prompter.portPrompts) != 2 {
		t.Fatalf("prompt count = %d, want 2 (invalid value re-prompts)", len(prompter.portPrompts))
	}
	if prompter.portPrompts[1].ValidationError == "" {
		t.Fatalf("second prompt must carry the validation error")
	}
	if !strings.Contains(readFile(t, markerPath), "Dev server port: 8080") {
		t.Fatalf("manual port not persisted to marker file")
	}
}

func TestResolveManualPortCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "Run dev: `bun run dev`\n")

	res, err := newTestReconciler(&scriptedPrompter{}).Resolve(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("expected cancellation when no port supplied")
	}
}

func TestResolveNoDevCommand(t *testing.T) {
	_, err := newTestReconciler(&scriptedPrompter{}).Resolve(context.Background(), t.TempDir(), 0)
	if err != ErrNoDevCommand {
		t.Fatalf("err = %v, want ErrNoDevCommand", err)
	}
}

func TestResolveContextCancelledDuringPrompt(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "- Dev server port: 3000\n")
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newTestReconciler(&scriptedPrompter{}).Resolve(ctx, dir, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("cancelled context must resolve as cancellation")
	}
}
