package projects

import (
	"context"

	"github.com/simonbloom/vibogit-sub001/internal/logging"
)

// API exposes project catalog actions to the frontend via Wails binding.
type API struct {
	svc *Service
	log logging.Logger
}

func NewAPI(svc *Service, logger logging.Logger) *API {
	if logger == nil {
		logger = logging.Nop()
	}
	return &API{svc: svc, log: logger}
}

func (a *API) ListProjects() ([]ProjectDTO, error) {
	return a.svc.List(context.Background())
}

func (a *API) AddProject(req AddProjectRequest) (ProjectDTO, error) {
	return a.svc.Add(context.Background(), req)
}

func (a *API) RemoveProject(path string) error {
	return a.svc.Remove(context.Background(), path)
}

func (a *API) MarkProjectOpened(path string) error {
	return a.svc.MarkOpened(context.Background(), path)
}

func (a *API) ReorderProjects(paths []string) error {
	return a.svc.Reorder(context.Background(), paths)
}
