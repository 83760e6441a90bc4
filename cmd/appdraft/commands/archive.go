package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/appdraft/appdraft/internal/app/archiveproject"
	"github.com/appdraft/appdraft/internal/printer"
)

type ArchiveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
}

// NewArchiveCommand returns the archive command.
func NewArchiveCommand(rootCmd *RootCommand, app *kingpin.Application) *ArchiveCommand {
	c := &ArchiveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("archive", "Archive a ready project to the blob store and evict its local tree.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)

	return c
}

func (c ArchiveCommand) Name() string { return c.Cmd.FullCommand() }

func (c ArchiveCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	env, err := newEnvironment(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer env.Close()

	// Create archive service.
	svc, err := archiveproject.NewService(archiveproject.ServiceConfig{
		Repository: env.repo,
		Registry:   env.registry,
		Archiver:   env.archiver,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute archive.
	project, err := svc.Run(ctx, archiveproject.Request{
		ID: c.projectID,
	})
	if err != nil {
		return fmt.Errorf("could not archive project: %w", err)
	}

	// Print success message.
	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	msg := fmt.Sprintf("Archived project: %s (%s, %s)", project.ID, project.Archive.Key, printer.FormatBytes(project.Archive.SizeBytes))
	if err := p.PrintMessage(msg); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
