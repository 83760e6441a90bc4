package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/appdraft/appdraft/internal/app/files"
	"github.com/appdraft/appdraft/internal/printer"
)

type FilesWriteCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
	path      string
	fromFile  string
}

// NewFilesWriteCommand returns the files write command.
func NewFilesWriteCommand(rootCmd *RootCommand, filesCmd *FilesCommand) *FilesWriteCommand {
	c := &FilesWriteCommand{rootCmd: rootCmd}

	c.Cmd = filesCmd.Cmd.Command("write", "Create or overwrite one project file (content from stdin or --from).")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)
	c.Cmd.Arg("path", "File path inside the project.").Required().StringVar(&c.path)
	c.Cmd.Flag("from", "Local file to read the content from (stdin when omitted).").StringVar(&c.fromFile)

	return c
}

func (c FilesWriteCommand) Name() string { return c.Cmd.FullCommand() }

func (c FilesWriteCommand) Run(ctx context.Context) error {
	env, err := newEnvironment(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer env.Close()

	svc, err := newFilesService(env, c.rootCmd)
	if err != nil {
		return err
	}

	var content []byte
	if c.fromFile != "" {
		content, err = os.ReadFile(c.fromFile)
		if err != nil {
			return fmt.Errorf("could not read %s: %w", c.fromFile, err)
		}
	} else {
		content, err = io.ReadAll(c.rootCmd.Stdin)
		if err != nil {
			return fmt.Errorf("could not read stdin: %w", err)
		}
	}

	err = svc.Write(ctx, files.WriteRequest{
		ID:      c.projectID,
		Path:    c.path,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("could not write file: %w", err)
	}

	// Print success message.
	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Wrote %s (%s)", c.path, printer.FormatBytes(int64(len(content))))); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
