package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/appdraft/appdraft/internal/app/files"
	"github.com/appdraft/appdraft/internal/printer"
)

type FilesRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
	path      string
}

// NewFilesRmCommand returns the files rm command.
func NewFilesRmCommand(rootCmd *RootCommand, filesCmd *FilesCommand) *FilesRmCommand {
	c := &FilesRmCommand{rootCmd: rootCmd}

	c.Cmd = filesCmd.Cmd.Command("rm", "Delete one project file.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)
	c.Cmd.Arg("path", "File path inside the project.").Required().StringVar(&c.path)

	return c
}

func (c FilesRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c FilesRmCommand) Run(ctx context.Context) error {
	env, err := newEnvironment(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer env.Close()

	svc, err := newFilesService(env, c.rootCmd)
	if err != nil {
		return err
	}

	err = svc.Delete(ctx, files.DeleteRequest{
		ID:   c.projectID,
		Path: c.path,
	})
	if err != nil {
		return fmt.Errorf("could not delete file: %w", err)
	}

	// Print success message.
	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Deleted %s", c.path)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
