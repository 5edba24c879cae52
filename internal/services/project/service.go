package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// maxNameLength bounds project names.
const maxNameLength = 100

// Service defines all project-related business operations
type Service interface {
	// Read operations
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id types.ProjectID) (*models.Project, error)

	// Write operations
	CreateProject(ctx context.Context, actor models.Actor, req CreateProjectRequest) (*models.Project, error)
}

// CreateProjectRequest encapsulates data for creating a project
type CreateProjectRequest struct {
	Name       string
	PointScale string // empty selects the default scale
}

// repository defines the data access methods needed by the project service
// This interface is private to the service layer
type repository interface {
	CreateProject(ctx context.Context, name string, scale models.PointScale) (*models.Project, error)
	GetProject(ctx context.Context, id types.ProjectID) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
}

// service implements Service interface with private repository
type service struct {
	repo repository
}

// NewService creates a new project service with private repository
func NewService(repo repository) Service {
	return &service{repo: repo}
}

// ListProjects retrieves all projects
func (s *service) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.repo.ListProjects(ctx)
}

// GetProject retrieves a specific project
func (s *service) GetProject(ctx context.Context, id types.ProjectID) (*models.Project, error) {
	if id <= 0 {
		return nil, ErrInvalidProjectID
	}
	return s.repo.GetProject(ctx, id)
}

// CreateProject creates a new project with validation. The project's event log
// starts empty.
func (s *service) CreateProject(ctx context.Context, actor models.Actor, req CreateProjectRequest) (*models.Project, error) {
	if err := actor.RequireWrite(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	scale, err := models.ParsePointScale(req.PointScale)
	if err != nil {
		return nil, err
	}

	project, err := s.repo.CreateProject(ctx, name, scale)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	slog.Info("project created", "project_id", project.ID, "point_scale", project.PointScale)
	return project, nil
}

// validateName validates a project name
func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}
