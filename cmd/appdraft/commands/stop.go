package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/appdraft/appdraft/internal/app/stopproject"
	"github.com/appdraft/appdraft/internal/printer"
)

type StopCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	projectID string
}

// NewStopCommand returns the stop command.
func NewStopCommand(rootCmd *RootCommand, app *kingpin.Application) *StopCommand {
	c := &StopCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("stop", "Stop a running project's server and tunnel.")
	c.Cmd.Arg("project-id", "Project ID.").Required().StringVar(&c.projectID)

	return c
}

func (c StopCommand) Name() string { return c.Cmd.FullCommand() }

func (c StopCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	env, err := newEnvironment(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer env.Close()

	// Create stop service.
	svc, err := stopproject.NewService(stopproject.ServiceConfig{
		Repository: env.repo,
		Registry:   env.registry,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute stop.
	project, err := svc.Run(ctx, stopproject.Request{
		ID: c.projectID,
	})
	if err != nil {
		return fmt.Errorf("could not stop project: %w", err)
	}

	// Print success message.
	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintMessage(fmt.Sprintf("Stopped project: %s (%s)", project.ID, project.Status)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
