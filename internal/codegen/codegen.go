package codegen

import (
	"context"
	"fmt"

	"github.com/appdraft/appdraft/internal/model"
)

// Request carries everything the generator needs to produce app code.
type Request struct {
	Prompt  string
	AppName string
	// BaseFiles are the scaffold files already present in the project. The
	// generator may reference them but only returns files it adds or changes.
	BaseFiles map[string]string
}

// Result is the generated file set.
type Result struct {
	// Files maps project-relative paths to full file contents.
	Files map[string]string
	// Summary is a one-line description of what was generated.
	Summary string
}

// Generator produces application source files from a natural language prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ValidateResult checks the generated file set before it touches disk: every
// path must stay inside the project root and every file must be non-empty.
func ValidateResult(res *Result) error {
	if res == nil || len(res.Files) == 0 {
		return fmt.Errorf("generator returned no files: %w", model.ErrNotValid)
	}
	for path, content := range res.Files {
		if _, err := model.SafeJoin("/", path); err != nil {
			return fmt.Errorf("generated file path %q: %w", path, err)
		}
		if content == "" {
			return fmt.Errorf("generated file %q is empty: %w", path, model.ErrNotValid)
		}
	}
	return nil
}
