package storage

import (
	"context"

	"github.com/appdraft/appdraft/internal/model"
)

// Repository is the interface for project persistence.
type Repository interface {
	CreateProject(ctx context.Context, p model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerID string) ([]model.Project, error)
	UpdateProject(ctx context.Context, p model.Project) error
	DeleteProject(ctx context.Context, id string) error
}
