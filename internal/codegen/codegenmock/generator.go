package codegenmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/appdraft/appdraft/internal/codegen"
)

// MockGenerator is a mock implementation of codegen.Generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req codegen.Request) (*codegen.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*codegen.Result)
	return res, args.Error(1)
}
