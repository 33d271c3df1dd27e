package devserver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ConfigReader reads and writes the two port-of-truth sources for a project:
// the marker file (AGENTS.md) and the package manifest's dev script.
type ConfigReader struct{}

func NewConfigReader() *ConfigReader { return &ConfigReader{} }

var markerFileNames = []string{"AGENTS.md", "agents.md", ".agents.md"}

var (
	devServerPortRe = regexp.MustCompile(`(?i)^-?\s*dev server port:\s*(\d+)`)
	genericPortRe   = regexp.MustCompile(`(?i)^-?\s*port:\s*(\d+)`)
	envPortRe       = regexp.MustCompile(`^\s*PORT=(\d+)`)
)

// resolveMarkerPath returns the existing marker file, or the default name for
// creation when none of the variants exist.
func resolveMarkerPath(repoPath string) (string, bool) {
	for _, name := range markerFileNames {
		full := filepath.Join(repoPath, name)
		if _, err := os.Stat(full); err == nil {
			return full, true
		}
	}
	return filepath.Join(repoPath, markerFileNames[0]), false
}

// ReadAgentsConfig parses the marker file for a declared dev server port and
// command. Missing or unreadable files yield found=false, never an error.
func (c *ConfigReader) ReadAgentsConfig(repoPath string) (AgentsConfig, error) {
	cfg := AgentsConfig{IsMonorepo: detectMonorepo(repoPath)}

	path, exists := resolveMarkerPath(repoPath)
	if !exists {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, nil
	}

	cfg.Found = true
	cfg.FilePath = path
	cfg.Port = parseMarkerPort(string(data))
	cfg.DevCommand, cfg.DevArgs = parseMarkerCommand(string(data))
	return cfg, nil
}

// parseMarkerPort extracts the declared port. Patterns in priority order:
// "dev server port: N" (last match wins), then "port: N", then "PORT=N".
// The dev-server-port label wins outright regardless of line position.
func parseMarkerPort(content string) int {
	var devServerPort, genericPort, envPort int
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := devServerPortRe.FindStringSubmatch(trimmed); m != nil {
			if p := parsePortValue(m[1]); p > 0 {
				devServerPort = p
			}
			continue
		}
		if m := genericPortRe.FindStringSubmatch(trimmed); m != nil {
			if p := parsePortValue(m[1]); p > 0 {
				genericPort = p
			}
			continue
		}
		if m := envPortRe.FindStringSubmatch(trimmed); m != nil {
			if p := parsePortValue(m[1]); p > 0 {
				envPort = p
			}
		}
	}
	switch {
	case devServerPort > 0:
		return devServerPort
	case genericPort > 0:
		return genericPort
	default:
		return envPort
	}
}

// parseMarkerCommand extracts a backtick-quoted dev command, e.g.
// "Run dev: `bun run dev`".
func parseMarkerCommand(content string) (string, []string) {
	for _, line := range strings.Split(content, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "run dev") && !strings.Contains(lower, "command") {
			continue
		}
		start := strings.Index(line, "`")
		end := strings.LastIndex(line, "`")
		if start < 0 || end <= start+1 {
			continue
		}
		parts := strings.Fields(line[start+1 : end])
		if len(parts) == 0 {
			continue
		}
		return parts[0], parts[1:]
	}
	return "", nil
}

func parsePortValue(s string) int {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0
	}
	return p
}

// detectMonorepo reports whether multi-package build orchestrator markers are
// present in the project root.
func detectMonorepo(repoPath string) bool {
	for _, name := range []string{"turbo.json", "nx.json", "lerna.json"} {
		if _, err := os.Stat(filepath.Join(repoPath, name)); err == nil {
			return true
		}
	}
	if _, err := os.Stat(filepath.Join(repoPath, "pnpm-workspace.yaml")); err == nil {
		if _, err := os.Stat(filepath.Join(repoPath, "packages")); err == nil {
			return true
		}
	}
	return false
}

type packageManifest struct {
	PackageManager string            `json:"packageManager"`
	Scripts        map[string]string `json:"scripts"`
}

// DetectDevServerConfig inspects package.json for a dev script and derives the
// launch recipe. Returns nil when no dev script exists.
func (c *ConfigReader) DetectDevServerConfig(repoPath string) (*DevServerConfig, error) {
	data, err := os.ReadFile(filepath.Join(repoPath, "package.json"))
	if err != nil {
		return nil, nil
	}
	var manifest packageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, nil
	}
	devScript, ok := manifest.Scripts["dev"]
	if !ok || strings.TrimSpace(devScript) == "" {
		return nil, nil
	}

	explicit := parseExplicitPortFromDevScript(devScript)
	port := explicit
	if port == 0 {
		port = inferDefaultDevPort(devScript)
	}

	command := packageManagerCommand(manifest.PackageManager)
	args := []string{"run", "dev"}
	if command == "yarn" {
		args = []string{"dev"}
	}

	return &DevServerConfig{
		Command:      command,
		Args:         args,
		Port:         port,
		ExplicitPort: explicit,
	}, nil
}

func packageManagerCommand(declared string) string {
	lower := strings.ToLower(declared)
	switch {
	case strings.HasPrefix(lower, "pnpm"):
		return "pnpm"
	case strings.HasPrefix(lower, "npm"):
		return "npm"
	case strings.HasPrefix(lower, "yarn"):
		return "yarn"
	default:
		return "bun"
	}
}

// parseExplicitPortFromDevScript recognizes "-p N", "--port N", "--port=N",
// "-pN" and "PORT=N" tokens.
func parseExplicitPortFromDevScript(devScript string) int {
	parts := strings.Fields(devScript)
	for i, part := range parts {
		if part == "-p" || part == "--port" {
			if i+1 < len(parts) {
				if p := parsePortValue(parts[i+1]); p > 0 {
					return p
				}
			}
			continue
		}
		if value, ok := strings.CutPrefix(part, "--port="); ok {
			if p := parsePortValue(value); p > 0 {
				return p
			}
			continue
		}
		if value, ok := strings.CutPrefix(part, "PORT="); ok {
			if p := parsePortValue(value); p > 0 {
				return p
			}
			continue
		}
		if value, ok := strings.CutPrefix(part, "-p"); ok && value != "" {
			if p := parsePortValue(value); p > 0 {
				return p
			}
		}
	}
	return 0
}

func inferDefaultDevPort(devScript string) int {
	if strings.Contains(devScript, "vite") {
		return 5173
	}
	// next, remix, and everything else conventionally bind 3000
	return 3000
}

// WriteAgentsPort persists the port into the marker file. Existing content is
// edited with targeted substitution or insertion, never regenerated.
func (c *ConfigReader) WriteAgentsPort(repoPath string, port int) error {
	path, exists := resolveMarkerPath(repoPath)
	if !exists {
		content := fmt.Sprintf("# Agent Configuration\n\n## Development\n- Dev server port: %d\n", port)
		return os.WriteFile(path, []byte(content), 0o644)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read marker file: %w", err)
	}
	updated := upsertMarkerPort(string(data), port)
	if updated == string(data) {
		return nil
	}
	return os.WriteFile(path, []byte(updated), 0o644)
}

// upsertMarkerPort replaces the digits on the authoritative port line, or
// inserts a port line after the "## Development" heading, or appends a new
// section at end-of-file. All unrelated content is preserved byte-for-byte.
func upsertMarkerPort(content string, port int) string {
	lines := strings.Split(content, "\n")

	replaceAt := -1 // best matching port line, dev-server-port label preferred
	var replaceRe *regexp.Regexp
	genericAt := -1
	var genericRe *regexp.Regexp
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if devServerPortRe.MatchString(trimmed) {
			replaceAt, replaceRe = i, devServerPortRe // last dev-server-port line wins, mirror read priority
		} else if genericAt < 0 {
			if genericPortRe.MatchString(trimmed) {
				genericAt, genericRe = i, genericPortRe
			} else if envPortRe.MatchString(trimmed) {
				genericAt, genericRe = i, envPortRe
			}
		}
	}
	if replaceAt < 0 {
		replaceAt, replaceRe = genericAt, genericRe
	}
	if replaceAt >= 0 {
		lines[replaceAt] = replaceLinePort(lines[replaceAt], replaceRe, port)
		return strings.Join(lines, "\n")
	}

	portLine := fmt.Sprintf("- Dev server port: %d", port)
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "## development") {
			inserted := append([]string{}, lines[:i+1]...)
			inserted = append(inserted, portLine)
			inserted = append(inserted, lines[i+1:]...)
			return strings.Join(inserted, "\n")
		}
	}

	trimmed := strings.TrimRight(content, "\n")
	return trimmed + "\n\n## Development\n" + portLine + "\n"
}

// replaceLinePort swaps only the digits captured by the label regex,
// leaving every other character of the line untouched.
func replaceLinePort(line string, re *regexp.Regexp, port int) string {
	lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	rest := line[len(lead):]
	loc := re.FindStringSubmatchIndex(rest)
	if loc == nil || len(loc) < 4 {
		return line
	}
	return lead + rest[:loc[2]] + strconv.Itoa(port) + rest[loc[3]:]
}

// WriteDevScriptPort updates the numeric port embedded in package.json's dev
// script. The file is edited by substituting the script string in the raw
// text so formatting and key order survive.
func (c *ConfigReader) WriteDevScriptPort(repoPath string, port int) error {
	path := filepath.Join(repoPath, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("package.json not found: %w", err)
	}
	var manifest packageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parse package.json: %w", err)
	}
	devScript, ok := manifest.Scripts["dev"]
	if !ok {
		return fmt.Errorf("package.json is missing scripts.dev")
	}

	updatedScript, err := updateExplicitPortInDevScript(devScript, port)
	if err != nil {
		return err
	}
	if updatedScript == devScript {
		return nil
	}

	oldLiteral, err := json.Marshal(devScript)
	if err != nil {
		return err
	}
	newLiteral, err := json.Marshal(updatedScript)
	if err != nil {
		return err
	}
	raw := string(data)
	if !strings.Contains(raw, string(oldLiteral)) {
		return fmt.Errorf("dev script not found verbatim in package.json")
	}
	raw = strings.Replace(raw, string(oldLiteral), string(newLiteral), 1)
	return os.WriteFile(path, []byte(raw), 0o644)
}

// updateExplicitPortInDevScript rewrites the port token in the script text.
// It fails when the script declares no explicit port flag.
func updateExplicitPortInDevScript(devScript string, port int) (string, error) {
	parts := strings.Fields(devScript)
	if len(parts) == 0 {
		return "", fmt.Errorf("dev script is empty")
	}
	for i := range parts {
		if parts[i] == "-p" || parts[i] == "--port" {
			if i+1 >= len(parts) {
				return "", fmt.Errorf("dev script has a port flag without a value")
			}
			parts[i+1] = strconv.Itoa(port)
			return strings.Join(parts, " "), nil
		}
		if strings.HasPrefix(parts[i], "--port=") {
			parts[i] = "--port=" + strconv.Itoa(port)
			return strings.Join(parts, " "), nil
		}
		if strings.HasPrefix(parts[i], "PORT=") && parsePortValue(strings.TrimPrefix(parts[i], "PORT=")) > 0 {
			parts[i] = "PORT=" + strconv.Itoa(port)
			return strings.Join(parts, " "), nil
		}
		if value, ok := strings.CutPrefix(parts[i], "-p"); ok && value != "" && allDigits(value) {
			parts[i] = "-p" + strconv.Itoa(port)
			return strings.Join(parts, " "), nil
		}
	}
	return "", fmt.Errorf("dev script does not define an explicit port flag")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
