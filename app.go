package main

import (
	"context"
	"database/sql"
	"sync"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/simonbloom/vibogit-sub001/internal/devserver"
	"github.com/simonbloom/vibogit-sub001/internal/git"
	"github.com/simonbloom/vibogit-sub001/internal/logging"
	"github.com/simonbloom/vibogit-sub001/internal/projects"
	"github.com/simonbloom/vibogit-sub001/internal/settings"
	"github.com/simonbloom/vibogit-sub001/internal/terminal"
	"github.com/simonbloom/vibogit-sub001/internal/watchers"
)

// App holds the runtime context and the long-lived services that need
// teardown at shutdown.
type App struct {
	mu  sync.RWMutex
	ctx context.Context

	db         *sql.DB
	logger     logging.Logger
	settings   *settings.Store
	gitService *git.Service
	projects   *projects.Service
	devManager *devserver.Manager
	watcherSvc *watchers.Service
	termMgr    *terminal.Manager
}

func NewApp() *App {
	return &App{}
}

// runtimeContext returns the Wails runtime context, nil before startup.
func (a *App) runtimeContext() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ctx
}

func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()
	a.logger.Info("application started")
}

func (a *App) shutdown(ctx context.Context) {
	if a.devManager != nil {
		a.devManager.CloseAll()
	}
	if a.watcherSvc != nil {
		a.watcherSvc.Close()
	}
	if a.termMgr != nil {
		a.termMgr.CloseAll()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	a.logger.Info("application stopped")
}

// emit forwards an event to the frontend once the runtime is up.
func (a *App) emit(event string, payload any) {
	ctx := a.runtimeContext()
	if ctx == nil {
		return
	}
	wailsruntime.EventsEmit(ctx, event, payload)
}

// OpenProject switches the active project: records the open, starts the
// file watcher, and points the dev server manager at the new path.
func (a *App) OpenProject(projectPath string) (devserver.Snapshot, error) {
	if a.projects != nil {
		if err := a.projects.MarkOpened(context.Background(), projectPath); err != nil {
			a.logger.Warn("mark opened failed", "path", projectPath, "error", err)
		}
	}
	if err := a.watcherSvc.Watch(projectPath); err != nil {
		return devserver.Snapshot{}, err
	}
	return a.devManager.SetActiveProject(projectPath), nil
}

// CloseProject stops watching a project without touching its dev server.
func (a *App) CloseProject(projectPath string) {
	a.watcherSvc.Unwatch(projectPath)
}

// onProjectChanged is the watcher callback: invalidate the cached git
// status and tell the UI to refresh.
func (a *App) onProjectChanged(projectPath string) {
	if a.gitService != nil {
		a.gitService.Invalidate(projectPath)
	}
	a.emit("project:changed", projectPath)
}
