package project

import (
	"context"
	"log/slog"

	projectDatamodel "github.com/frahmantamala/timetrack-payroll/internal/core/datamodel/project"
)

type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*projectDatamodel.Project, error)
	// GetByID returns nil, nil when the project does not exist.
	GetByID(ctx context.Context, id int64) (*projectDatamodel.Project, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// GetActiveProjects lists the projects a project-based rate may point at.
func (s *Service) GetActiveProjects(ctx context.Context) ([]ProjectResponse, error) {
	dataProjects, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to get projects from repository", "error", err)
		return nil, err
	}

	responses := make([]ProjectResponse, 0, len(dataProjects))
	for _, dataProject := range dataProjects {
		p := FromDataModel(dataProject)
		if p.IsActive {
			responses = append(responses, p.ToResponse())
		}
	}

	s.logger.Debug("retrieved projects", "count", len(responses))
	return responses, nil
}

// Exists reports whether id names an active project.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("error checking project", "project_id", id, "error", err)
		return false, err
	}
	return p != nil && p.IsActive, nil
}
