package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/appdraft/appdraft/internal/app/files"
)

type FilesCatCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
	path      string
}

// NewFilesCatCommand returns the files cat command.
func NewFilesCatCommand(rootCmd *RootCommand, filesCmd *FilesCommand) *FilesCatCommand {
	c := &FilesCatCommand{rootCmd: rootCmd}

	c.Cmd = filesCmd.Cmd.Command("cat", "Print one project file's contents.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)
	c.Cmd.Arg("path", "File path inside the project.").Required().StringVar(&c.path)

	return c
}

func (c FilesCatCommand) Name() string { return c.Cmd.FullCommand() }

func (c FilesCatCommand) Run(ctx context.Context) error {
	env, err := newEnvironment(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer env.Close()

	svc, err := newFilesService(env, c.rootCmd)
	if err != nil {
		return err
	}

	data, err := svc.Read(ctx, files.ReadRequest{
		ID:   c.projectID,
		Path: c.path,
	})
	if err != nil {
		return fmt.Errorf("could not read file: %w", err)
	}

	// Raw bytes to stdout, no formatting.
	if _, err := c.rootCmd.Stdout.Write(data); err != nil {
		return fmt.Errorf("could not write file contents: %w", err)
	}

	return nil
}
