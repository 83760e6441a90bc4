package commands

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/appdraft/appdraft/internal/app/files"
)

// FilesCommand is the parent command for project file subcommands.
type FilesCommand struct {
	Cmd *kingpin.CmdClause
}

// NewFilesCommand returns the files parent command.
func NewFilesCommand(app *kingpin.Application) *FilesCommand {
	c := &FilesCommand{}

	c.Cmd = app.Command("files", "Inspect and edit a project's source files.")

	return c
}

// newFilesService creates the files service over the shared environment.
func newFilesService(env *environment, rootCmd *RootCommand) (*files.Service, error) {
	svc, err := files.NewService(files.ServiceConfig{
		Repository: env.repo,
		Registry:   env.registry,
		Logger:     rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create files service: %w", err)
	}
	return svc, nil
}
