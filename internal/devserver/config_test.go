package devserver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestReadAgentsConfigMissingFile(t *testing.T) {
	reader := NewConfigReader()
	cfg, err := reader.ReadAgentsConfig(t.TempDir())
	if err != nil {
		t.Fatalf("ReadAgentsConfig: %v", err)
	}
	if cfg.Found {
		t.Fatalf("expected found=false for missing marker file")
	}
	if cfg.Port != 0 {
		t.Fatalf("expected no port, got %d", cfg.Port)
	}
}

func TestReadAgentsConfigPortPriority(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    int
	}{
		{
			name:    "dev server label wins over later generic port",
			content: "# Project\n\n- Dev server port: 3000\n\nNotes\n- Port: 8080\n",
			want:    3000,
		},
		{
			name:    "last dev server line wins",
			content: "- Dev server port: 3000\n- Dev server port: 4000\n",
			want:    4000,
		},
		{
			name:    "generic port when no dev server label",
			content: "## Development\n- Port: 8080\n",
			want:    8080,
		},
		{
			name:    "env style fallback",
			content: "PORT=9000\n",
			want:    9000,
		},
		{
			name:    "env assignment mid sentence is ignored",
			content: "Use PORT=9000 when running locally\n",
			want:    0,
		},
		{
			name:    "no port at all",
			content: "# Just docs\n",
			want:    0,
		},
	}
	reader := NewConfigReader()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "AGENTS.md", tc.content)
			cfg, err := reader.ReadAgentsConfig(dir)
			if err != nil {
				t.Fatalf("ReadAgentsConfig: %v", err)
			}
			if !cfg.Found {
				t.Fatalf("expected found=true")
			}
			if cfg.Port != tc.want {
				t.Fatalf("port = %d, want %d", cfg.Port, tc.want)
			}
		})
	}
}

func TestReadAgentsConfigLowercaseVariant(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "agents.md", "- Dev server port: 4321\n")
	cfg, err := NewConfigReader().ReadAgentsConfig(dir)
	if err != nil {
		t.Fatalf("ReadAgentsConfig: %v", err)
	}
	if !cfg.Found || cfg.Port != 4321 {
		t.Fatalf("got found=%v port=%d", cfg.Found, cfg.Port)
	}
}

func TestReadAgentsConfigDevCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "## Development\nRun dev: `bun run dev`\n")
	cfg, err := NewConfigReader().ReadAgentsConfig(dir)
	if err != nil {
		t.Fatalf("ReadAgentsConfig: %v", err)
	}
	if cfg.DevCommand != "bun" {
		t.Fatalf("command = %q, want bun", cfg.DevCommand)
	}
	if len(cfg.DevArgs) != 2 || cfg.DevArgs[0] != "run" || cfg.DevArgs[1] != "dev" {
		t.Fatalf("args = %v", cfg.DevArgs)
	}
}

func TestDetectDevServerConfig(t *testing.T) {
	reader := NewConfigReader()

	t.Run("explicit port flag", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", `{"scripts":{"dev":"next dev --port 4100"}}`)
		cfg, err := reader.DetectDevServerConfig(dir)
		if err != nil {
			t.Fatalf("DetectDevServerConfig: %v", err)
		}
		if cfg == nil {
			t.Fatalf("expected config, got nil")
		}
		if cfg.ExplicitPort != 4100 || cfg.Port != 4100 {
			t.Fatalf("explicit=%d port=%d, want 4100", cfg.ExplicitPort, cfg.Port)
		}
	})

	t.Run("vite default port", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", `{"scripts":{"dev":"vite"}}`)
		cfg, err := reader.DetectDevServerConfig(dir)
		if err != nil {
			t.Fatalf("DetectDevServerConfig: %v", err)
		}
		if cfg.ExplicitPort != 0 {
			t.Fatalf("explicit = %d, want 0", cfg.ExplicitPort)
		}
		if cfg.Port != 5173 {
			t.Fatalf("port = %d, want 5173", cfg.Port)
		}
	})

	t.Run("no dev script", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", `{"scripts":{"build":"vite build"}}`)
		cfg, err := reader.DetectDevServerConfig(dir)
		if err != nil {
			t.Fatalf("DetectDevServerConfig: %v", err)
		}
		if cfg != nil {
			t.Fatalf("expected nil, got %+v", cfg)
		}
	})

	t.Run("yarn invocation", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", `{"packageManager":"yarn@4.1.0","scripts":{"dev":"next dev"}}`)
		cfg, err := reader.DetectDevServerConfig(dir)
		if err != nil {
			t.Fatalf("DetectDevServerConfig: %v", err)
		}
		if cfg.Command != "yarn" {
			t.Fatalf("command = %q, want yarn", cfg.Command)
		}
		if len(cfg.Args) != 1 || cfg.Args[0] != "dev" {
			t.Fatalf("args = %v, want [dev]", cfg.Args)
		}
		if cfg.Port != 3000 {
			t.Fatalf("port = %d, want 3000", cfg.Port)
		}
	})
}

func TestParseExplicitPortFromDevScript(t *testing.T) {
	cases := []struct {
		script string
		want   int
	}{
		{"next dev --port 4100", 4100},
		{"next dev -p 4100", 4100},
		{"vite --port=5200", 5200},
		{"next dev -p3010", 3010},
		{"PORT=8080 node server.js", 8080},
		{"vite", 0},
		{"next dev --port", 0},
	}
	for _, tc := range cases {
		if got := parseExplicitPortFromDevScript(tc.script); got != tc.want {
			t.Errorf("parseExplicitPortFromDevScript(%q) = %d, want %d", tc.script, got, tc.want)
		}
	}
}

func TestWriteAgentsPortCreatesFile(t *testing.T) {
	dir := t.TempDir()
	reader := NewConfigReader()
	if err := reader.WriteAgentsPort(dir, 4000); err != nil {
		t.Fatalf("WriteAgentsPort: %v", err)
	}
	content := readFile(t, filepath.Join(dir, "AGENTS.md"))
	if !strings.Contains(content, "## Development") {
		t.Fatalf("missing section:\n%s", content)
	}
	if !strings.Contains(content, "- Dev server port: 4000") {
		t.Fatalf("missing port line:\n%s", content)
	}
}

func TestWriteAgentsPortAppendsSection(t *testing.T) {
	dir := t.TempDir()
	original := "# My Project\n\nSome docs about the project.\n\n## Testing\nRun the suite with care.\n"
	path := writeFile(t, dir, "AGENTS.md", original)

	if err := NewConfigReader().WriteAgentsPort(dir, 4000); err != nil {
		t.Fatalf("WriteAgentsPort: %v", err)
	}
	content := readFile(t, path)
	if !strings.HasPrefix(content, strings.TrimRight(original, "\n")) {
		t.Fatalf("prior content not preserved:\n%s", content)
	}
	if !strings.HasSuffix(content, "## Development\n- Dev server port: 4000\n") {
		t.Fatalf("section not appended:\n%s", content)
	}
}

func TestWriteAgentsPortInsertsAfterHeading(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "AGENTS.md", "# Project\n\n## Development\nUse bun.\n\n## Other\n")

	if err := NewConfigReader().WriteAgentsPort(dir, 5100); err != nil {
		t.Fatalf("WriteAgentsPort: %v", err)
	}
	content := readFile(t, path)
	want := "# Project\n\n## Development\n- Dev server port: 5100\nUse bun.\n\n## Other\n"
	if content != want {
		t.Fatalf("content:\n%q\nwant:\n%q", content, want)
	}
}

func TestWriteAgentsPortReplacesInPlace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "AGENTS.md", "# Project\n\n## Development\n- Dev server port: 3000\n\nTrailing notes.\n")

	reader := NewConfigReader()
	if err := reader.WriteAgentsPort(dir, 4100); err != nil {
		t.Fatalf("WriteAgentsPort: %v", err)
	}
	content := readFile(t, path)
	want := "# Project\n\n## Development\n- Dev server port: 4100\n\nTrailing notes.\n"
	if content != want {
		t.Fatalf("content:\n%q\nwant:\n%q", content, want)
	}

	// Writing the same port again must leave the file byte-identical.
	if err := reader.WriteAgentsPort(dir, 4100); err != nil {
		t.Fatalf("second WriteAgentsPort: %v", err)
	}
	if again := readFile(t, path); again != content {
		t.Fatalf("idempotent write changed content:\n%q", again)
	}
}

func TestWriteAgentsPortLeavesOtherDigitsAlone(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "AGENTS.md", "# Project\n\n- Dev server port: 3000 (the proxy listens on 8080)\n")

	if err := NewConfigReader().WriteAgentsPort(dir, 4000); err != nil {
		t.Fatalf("WriteAgentsPort: %v", err)
	}
	content := readFile(t, path)
	want := "# Project\n\n- Dev server port: 4000 (the proxy listens on 8080)\n"
	if content != want {
		t.Fatalf("content:\n%q\nwant:\n%q", content, want)
	}
}

func TestWriteDevScriptPortPreservesFormatting(t *testing.T) {
	dir := t.TempDir()
	original := "{\n  \"name\": \"demo\",\n  \"scripts\": {\n    \"build\": \"next build\",\n    \"dev\": \"next dev --port 4100\"\n  }\n}\n"
	path := writeFile(t, dir, "package.json", original)

	if err := NewConfigReader().WriteDevScriptPort(dir, 4200); err != nil {
		t.Fatalf("WriteDevScriptPort: %v", err)
	}
	content := readFile(t, path)
	want := strings.Replace(original, "--port 4100", "--port 4200", 1)
	if content != want {
		t.Fatalf("content:\n%q\nwant:\n%q", content, want)
	}
}

func TestWriteDevScriptPortNoExplicitPort(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"scripts":{"dev":"vite"}}`)
	if err := NewConfigReader().WriteDevScriptPort(dir, 4200); err == nil {
		t.Fatalf("expected error for script without a port flag")
	}
}

func TestDetectMonorepo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AGENTS.md", "- Dev server port: 3000\n")
	writeFile(t, dir, "turbo.json", `{}`)
	cfg, err := NewConfigReader().ReadAgentsConfig(dir)
	if err != nil {
		t.Fatalf("ReadAgentsConfig: %v", err)
	}
	if !cfg.IsMonorepo {
		t.Fatalf("expected monorepo detection via turbo.json")
	}
}
