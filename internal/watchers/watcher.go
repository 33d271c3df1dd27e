package watchers

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

// ignoredDirs are never watched; they churn constantly and carry no
// information the UI cares about.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".next":        true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"target":       true,
	".turbo":       true,
	".cache":       true,
	"coverage":     true,
}

const debounceWindow = 300 * time.Millisecond

// Service watches project directories and delivers debounced change
// notifications, one watcher per project path.
type Service struct {
	logger logging.Logger
	onDirt func(projectPath string)

	mu       sync.Mutex
	watchers map[string]*projectWatcher
}

type projectWatcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

func NewService(onChange func(projectPath string), logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	if onChange == nil {
		onChange = func(string) {}
	}
	return &Service{
		logger:   logger,
		onDirt:   onChange,
		watchers: make(map[string]*projectWatcher),
	}
}

// Watch starts watching the project tree. Watching an already watched
// path restarts its watcher.
func (s *Service) Watch(projectPath string) error {
	s.Unwatch(projectPath)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addRecursive(fw, projectPath); err != nil {
		fw.Close()
		return err
	}

	pw := &projectWatcher{fs: fw, done: make(chan struct{})}
	s.mu.Lock()
	s.watchers[projectPath] = pw
	s.mu.Unlock()

	go s.loop(projectPath, pw)
	s.logger.Debug("watching project", "path", projectPath)
	return nil
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (ignoredDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && d.Name() != ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// loop coalesces bursts of events into a single notification per debounce
// window. New directories are added to the watch set as they appear.
func (s *Service) loop(projectPath string, pw *projectWatcher) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-pw.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-pw.fs.Events:
			if !ok {
				return
			}
			if ignoredDirs[filepath.Base(filepath.Dir(event.Name))] || ignoredDirs[filepath.Base(event.Name)] {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !ignoredDirs[filepath.Base(event.Name)] {
					pw.fs.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			s.onDirt(projectPath)
		case err, ok := <-pw.fs.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "path", projectPath, "error", err)
		}
	}
}

// Unwatch stops the watcher for the path if one exists.
func (s *Service) Unwatch(projectPath string) {
	s.mu.Lock()
	pw, ok := s.watchers[projectPath]
	if ok {
		delete(s.watchers, projectPath)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	close(pw.done)
	pw.fs.Close()
}

// Close stops every watcher.
func (s *Service) Close() {
	s.mu.Lock()
	paths := make([]string, 0, len(s.watchers))
	for path := range s.watchers {
		paths = append(paths, path)
	}
	s.mu.Unlock()
	for _, path := range paths {
		s.Unwatch(path)
	}
}
