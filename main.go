package main

import (
	"context"
	"embed"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"

	"github.com/simonbloom/vibogit-sub001/internal/ai"
	"github.com/simonbloom/vibogit-sub001/internal/attachments"
	"github.com/simonbloom/vibogit-sub001/internal/devserver"
	"github.com/simonbloom/vibogit-sub001/internal/git"
	"github.com/simonbloom/vibogit-sub001/internal/launcher"
	"github.com/simonbloom/vibogit-sub001/internal/logging"
	"github.com/simonbloom/vibogit-sub001/internal/projects"
	"github.com/simonbloom/vibogit-sub001/internal/settings"
	"github.com/simonbloom/vibogit-sub001/internal/storage"
	"github.com/simonbloom/vibogit-sub001/internal/storage/catalog"
	"github.com/simonbloom/vibogit-sub001/internal/storage/migrate"
	"github.com/simonbloom/vibogit-sub001/internal/storage/sqlite"
	term "github.com/simonbloom/vibogit-sub001/internal/terminal"
	"github.com/simonbloom/vibogit-sub001/internal/ui"
	"github.com/simonbloom/vibogit-sub001/internal/watchers"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("VIBOGIT_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := logging.NewText(os.Stderr, level)

	app := NewApp()
	app.logger = logger

	dataDir, err := storage.DataDir()
	if err != nil {
		log.Fatalf("data dir: %v", err)
	}
	db, err := sqlite.Open(filepath.Join(dataDir, "catalog.db"))
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	if err := migrate.Up(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	app.db = db

	store, err := settings.Load(dataDir)
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}
	app.settings = store

	repo := catalog.NewRepository(db)
	projectService := projects.NewService(repo, logger)
	app.projects = projectService

	gitClient := git.NewExecClient("git")
	gitService := git.NewService(gitClient, logger)
	app.gitService = gitService

	// Dev server stack: supervisor spawns, reconciler decides ports,
	// manager runs the per-project state machines.
	supervisor := devserver.NewSupervisor(logger)
	reader := devserver.NewConfigReader()
	prompter := devserver.NewEventPrompter(app.emit)
	reconciler := devserver.NewReconciler(reader, prompter, logger)
	reconciler.OnPortChosen = func(repoPath string, port int) {
		if err := projectService.RememberPort(context.Background(), repoPath, port); err != nil {
			logger.Warn("detected port not cached", "path", repoPath, "error", err)
		}
	}
	devManager := devserver.NewManager(supervisor, reconciler, logger, func(snap devserver.Snapshot) {
		app.emit(devserver.EventStatus, snap)
	})
	app.devManager = devManager

	watcherSvc := watchers.NewService(app.onProjectChanged, logger)
	app.watcherSvc = watcherSvc

	termMgr := term.NewManager(app.runtimeContext, "", logger)
	app.termMgr = termMgr

	launcherSvc := launcher.NewService(store, logger)
	aiSvc := ai.NewService(store, logger)

	binds := []interface{}{
		app,
		projects.NewAPI(projectService, logger),
		git.NewAPI(gitService),
		devserver.NewAPI(devManager, supervisor, reader, prompter, logger),
		launcher.NewAPI(launcherSvc),
		ai.NewAPI(aiSvc),
		term.NewAPI(termMgr),
		attachments.NewAPI(store),
		settings.NewAPI(store),
		ui.NewAPI(app.runtimeContext, logger),
	}

	err = wails.Run(&options.App{
		Title:  "vibogit",
		Width:  1440,
		Height: 900,
		Linux: &linux.Options{
			WebviewGpuPolicy: linux.WebviewGpuPolicyAlways,
		},
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 24, G: 24, B: 27, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind:             binds,
	})
	if err != nil {
		logger.Error("wails run failed", "error", err)
	}
}
