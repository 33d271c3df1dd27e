package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
	"github.com/simonbloom/vibogit-sub001/internal/storage/catalog"
)

type Service struct {
	repo   *catalog.Repository
	logger logging.Logger
}

func NewService(repo *catalog.Repository, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{repo: repo, logger: logger}
}

type ProjectDTO struct {
	ID           int64     `json:"id"`
	Path         string    `json:"path"`
	DisplayName  string    `json:"displayName,omitempty"`
	SortOrder    int       `json:"sortOrder"`
	DetectedPort int       `json:"detectedPort,omitempty"`
	LastOpenedAt time.Time `json:"lastOpenedAt,omitempty" ts_type:"string"`
	CreatedAt    time.Time `json:"createdAt" ts_type:"string"`
	UpdatedAt    time.Time `json:"updatedAt" ts_type:"string"`
}

type AddProjectRequest struct {
	Path        string `json:"path"`
	DisplayName string `json:"displayName,omitempty"`
}

func (s *Service) List(ctx context.Context) ([]ProjectDTO, error) {
	records, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]ProjectDTO, 0, len(records))
	for _, record := range records {
		list = append(list, mapProject(record))
	}
	return list, nil
}

func (s *Service) Add(ctx context.Context, req AddProjectRequest) (ProjectDTO, error) {
	if req.Path == "" {
		return ProjectDTO{}, errors.New("project path is required")
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return ProjectDTO{}, fmt.Errorf("resolve project path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return ProjectDTO{}, fmt.Errorf("project path not accessible: %w", err)
	}
	if !info.IsDir() {
		return ProjectDTO{}, fmt.Errorf("project path %s is not a directory", abs)
	}

	name := req.DisplayName
	if name == "" {
		name = filepath.Base(abs)
	}
	project, err := s.repo.UpsertProject(ctx, catalog.UpsertProjectParams{
		Path:        abs,
		DisplayName: name,
	})
	if err != nil {
		return ProjectDTO{}, fmt.Errorf("register project: %w", err)
	}
	s.logger.Info("project added", "path", abs)
	return mapProject(project), nil
}

func (s *Service) Remove(ctx context.Context, path string) error {
	err := s.repo.DeleteProject(ctx, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func (s *Service) MarkOpened(ctx context.Context, path string) error {
	return s.repo.MarkProjectOpened(ctx, path, time.Now().UTC())
}

func (s *Service) Reorder(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("reorder requires at least one path")
	}
	return s.repo.ReorderProjects(ctx, paths)
}

// RememberPort records the project's resolved dev server port so the list
// view can show it without re-reading config files.
func (s *Service) RememberPort(ctx context.Context, path string, port int) error {
	return s.repo.SetDetectedPort(ctx, path, port)
}

func (s *Service) Get(ctx context.Context, path string) (ProjectDTO, error) {
	project, err := s.repo.GetProjectByPath(ctx, path)
	if err != nil {
		return ProjectDTO{}, err
	}
	return mapProject(project), nil
}

func mapProject(p catalog.Project) ProjectDTO {
	return ProjectDTO{
		ID:           p.ID,
		Path:         p.Path,
		DisplayName:  p.DisplayName,
		SortOrder:    p.SortOrder,
		DetectedPort: p.DetectedPort,
		LastOpenedAt: p.LastOpenedAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
