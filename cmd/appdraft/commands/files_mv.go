package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/appdraft/appdraft/internal/app/files"
	"github.com/appdraft/appdraft/internal/printer"
)

type FilesMvCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
	oldPath   string
	newPath   string
}

// NewFilesMvCommand returns the files mv command.
func NewFilesMvCommand(rootCmd *RootCommand, filesCmd *FilesCommand) *FilesMvCommand {
	c := &FilesMvCommand{rootCmd: rootCmd}

	c.Cmd = filesCmd.Cmd.Command("mv", "Rename one project file.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)
	c.Cmd.Arg("old-path", "Current file path inside the project.").Required().StringVar(&c.oldPath)
	c.Cmd.Arg("new-path", "New file path inside the project.").Required().StringVar(&c.newPath)

	return c
}

func (c FilesMvCommand) Name() string { return c.Cmd.FullCommand() }

func (c FilesMvCommand) Run(ctx context.Context) error {
	env, err := newEnvironment(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer env.Close()

	svc, err := newFilesService(env, c.rootCmd)
	if err != nil {
		return err
	}

	err = svc.Rename(ctx, files.RenameRequest{
		ID:      c.projectID,
		OldPath: c.oldPath,
		NewPath: c.newPath,
	})
	if err != nil {
		return fmt.Errorf("could not rename file: %w", err)
	}

	// Print success message.
	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Renamed %s to %s", c.oldPath, c.newPath)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
