package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings holds user preferences. It is loaded once at startup and passed
// explicitly to the services that need it; mutations go through the Store so
// every change is persisted immediately.
type Settings struct {
	ComputerName        string      `yaml:"computerName" json:"computerName"`
	AIProvider          string      `yaml:"aiProvider" json:"aiProvider"`
	AIModel             string      `yaml:"aiModel" json:"aiModel"`
	AIAPIKey            string      `yaml:"aiApiKey" json:"aiApiKey"`
	Editor              string      `yaml:"editor" json:"editor"`
	CustomEditorCommand string      `yaml:"customEditorCommand" json:"customEditorCommand"`
	Terminal            string      `yaml:"terminal" json:"terminal"`
	Theme               string      `yaml:"theme" json:"theme"`
	ImageBasePath       string      `yaml:"imageBasePath" json:"imageBasePath"`
	ShowHiddenFiles     bool        `yaml:"showHiddenFiles" json:"showHiddenFiles"`
	AutoExecutePrompt   bool        `yaml:"autoExecutePrompt" json:"autoExecutePrompt"`
	RecentTabs          []RecentTab `yaml:"recentTabs" json:"recentTabs"`
	ActiveTabID         string      `yaml:"activeTabId,omitempty" json:"activeTabId,omitempty"`
}

type RecentTab struct {
	ID       string `yaml:"id" json:"id"`
	RepoPath string `yaml:"repoPath" json:"repoPath"`
	Name     string `yaml:"name" json:"name"`
}

// Defaults returns the settings used before the user has saved anything.
func Defaults() Settings {
	return Settings{
		AIProvider: "anthropic",
		Editor:     "cursor",
		Terminal:   "Terminal",
		Theme:      "dark",
	}
}

// Store owns the on-disk settings file.
type Store struct {
	mu      sync.Mutex
	path    string
	current Settings
}

// Load reads settings.yaml from dir, falling back to defaults when the file is
// missing or malformed. A malformed file never fails startup.
func Load(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("settings directory is required")
	}
	s := &Store{path: filepath.Join(dir, "settings.yaml"), current: Defaults()}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	loaded := Defaults()
	if err := yaml.Unmarshal(data, &loaded); err == nil {
		s.current = loaded
	}
	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set replaces the settings and persists them.
func (s *Store) Set(next Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(next)
	if err != nil {
		return s.current, fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return s.current, fmt.Errorf("ensure settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return s.current, fmt.Errorf("write settings: %w", err)
	}
	s.current = next
	return s.current, nil
}

// Update applies fn to a copy of the current settings and persists the result.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	next := s.current
	s.mu.Unlock()
	fn(&next)
	return s.Set(next)
}
