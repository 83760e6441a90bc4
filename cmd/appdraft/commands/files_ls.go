package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/appdraft/appdraft/internal/app/files"
	"github.com/appdraft/appdraft/internal/printer"
)

type FilesLsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
	format    string
}

// NewFilesLsCommand returns the files ls command.
func NewFilesLsCommand(rootCmd *RootCommand, filesCmd *FilesCommand) *FilesLsCommand {
	c := &FilesLsCommand{rootCmd: rootCmd}

	c.Cmd = filesCmd.Cmd.Command("ls", "List a project's source files.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c FilesLsCommand) Name() string { return c.Cmd.FullCommand() }

func (c FilesLsCommand) Run(ctx context.Context) error {
	env, err := newEnvironment(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer env.Close()

	svc, err := newFilesService(env, c.rootCmd)
	if err != nil {
		return err
	}

	paths, err := svc.List(ctx, files.ListRequest{
		ID: c.projectID,
	})
	if err != nil {
		return fmt.Errorf("could not list files: %w", err)
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintFileList(paths); err != nil {
		return fmt.Errorf("could not print files: %w", err)
	}

	return nil
}
