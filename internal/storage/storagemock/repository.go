package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/appdraft/appdraft/internal/model"
)

// MockRepository is a mock implementation of storage.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateProject(ctx context.Context, p model.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) GetProject(ctx context.Context, id string) (*model.Project, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*model.Project)
	return p, args.Error(1)
}

func (m *MockRepository) ListProjects(ctx context.Context) ([]model.Project, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]model.Project)
	return ps, args.Error(1)
}

func (m *MockRepository) ListProjectsByOwner(ctx context.Context, ownerID string) ([]model.Project, error) {
	args := m.Called(ctx, ownerID)
	ps, _ := args.Get(0).([]model.Project)
	return ps, args.Error(1)
}

func (m *MockRepository) UpdateProject(ctx context.Context, p model.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) DeleteProject(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
