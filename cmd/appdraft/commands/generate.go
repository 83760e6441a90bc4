package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/ulid/v2"

	"github.com/appdraft/appdraft/internal/app/generate"
	"github.com/appdraft/appdraft/internal/app/stopproject"
	"github.com/appdraft/appdraft/internal/blueprint"
	"github.com/appdraft/appdraft/internal/broadcast"
	"github.com/appdraft/appdraft/internal/codegen"
	"github.com/appdraft/appdraft/internal/command"
	"github.com/appdraft/appdraft/internal/depcache"
	"github.com/appdraft/appdraft/internal/governor"
	"github.com/appdraft/appdraft/internal/netport"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/tunnel"
)

type GenerateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	prompt      string
	owner       string
	idleTimeout time.Duration
}

// NewGenerateCommand returns the generate command.
func NewGenerateCommand(rootCmd *RootCommand, app *kingpin.Application) *GenerateCommand {
	c := &GenerateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("generate", "Generate a running app from a prompt and keep its preview up.")
	c.Cmd.Arg("prompt", "Natural language description of the app.").Required().StringVar(&c.prompt)
	c.Cmd.Flag("owner", "Owner identifier attached to the project.").StringVar(&c.owner)
	c.Cmd.Flag("idle-timeout", "Stop the preview after this long without activity (0 disables).").Default("30m").DurationVar(&c.idleTimeout)

	return c
}

func (c GenerateCommand) Name() string { return c.Cmd.FullCommand() }

func (c GenerateCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	if c.rootCmd.AIAPIKey == "" {
		return fmt.Errorf("--ai-api-key is required")
	}

	env, err := newEnvironment(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer env.Close()

	runner, err := command.NewRunner(command.RunnerConfig{
		AllowedBinaries: []string{"npm", "npx", "node", c.rootCmd.TunnelBinary},
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not create runner: %w", err)
	}

	broker, err := broadcast.NewBroker(broadcast.BrokerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create broker: %w", err)
	}

	gov, err := governor.NewGovernor(governor.GovernorConfig{
		MaxProjects: c.rootCmd.MaxProjects,
		DataPath:    c.rootCmd.DataDir,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create governor: %w", err)
	}

	alloc, err := netport.NewAllocator(netport.AllocatorConfig{
		StartPort: c.rootCmd.StartPort,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create port allocator: %w", err)
	}

	tunneler, err := tunnel.NewManager(tunnel.ManagerConfig{
		Runner: runner,
		Binary: c.rootCmd.TunnelBinary,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create tunnel manager: %w", err)
	}

	cache, err := depcache.NewCache(depcache.CacheConfig{
		Dir:    env.depCacheDir,
		Runner: runner,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create dependency cache: %w", err)
	}

	generator, err := codegen.NewOpenAIGenerator(codegen.OpenAIGeneratorConfig{
		APIKey:  c.rootCmd.AIAPIKey,
		BaseURL: c.rootCmd.AIBaseURL,
		Model:   c.rootCmd.AIModel,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create generator: %w", err)
	}

	bp, err := blueprint.Load(c.rootCmd.BlueprintPath)
	if err != nil {
		return fmt.Errorf("could not load blueprint: %w", err)
	}

	svc, err := generate.NewService(generate.ServiceConfig{
		Repository:  env.repo,
		Broker:      broker,
		Governor:    gov,
		Allocator:   alloc,
		Tunneler:    tunneler,
		DepCache:    cache,
		Generator:   generator,
		Blueprint:   bp,
		Runner:      runner,
		Registry:    env.registry,
		Archiver:    env.archiver,
		ProjectsDir: env.projectsDir,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create generate service: %w", err)
	}

	// Subscribe before the build starts so no progress event is missed.
	projectID := ulid.Make().String()
	events, cancelSub := broker.Subscribe(projectID)
	defer cancelSub()

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for ev := range events {
			switch ev.Type {
			case "error":
				fmt.Fprintf(out, "[%3d%%] %s failed: %s\n", ev.Percent, ev.Stage, ev.Error)
			case "complete":
				fmt.Fprintf(out, "[100%%] %s\n", ev.Message)
			default:
				fmt.Fprintf(out, "[%3d%%] %s\n", ev.Percent, ev.Message)
			}
		}
	}()

	p, err := svc.Run(ctx, generate.Request{ID: projectID, Prompt: c.prompt, OwnerID: c.owner})
	cancelSub()
	<-progressDone
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nProject: %s\nPreview: %s\n", p.ID, p.PreviewURL)
	fmt.Fprintf(out, "Press Ctrl+C to stop the preview.\n")

	c.wait(ctx, env.registry, p.ID)

	// Tear the preview down before exiting.
	stopSvc, err := stopproject.NewService(stopproject.ServiceConfig{
		Repository: env.repo,
		Registry:   env.registry,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create stop service: %w", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := stopSvc.Run(stopCtx, stopproject.Request{ID: p.ID}); err != nil {
		return fmt.Errorf("could not stop project: %w", err)
	}

	return nil
}

// wait blocks until the command is interrupted or the preview sits idle past
// the configured timeout.
func (c GenerateCommand) wait(ctx context.Context, reg *registry.Registry, projectID string) {
	if c.idleTimeout == 0 {
		<-ctx.Done()
		return
	}

	tick := time.NewTicker(time.Minute)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			for _, id := range reg.IdleSince(time.Now().Add(-c.idleTimeout)) {
				if id == projectID {
					c.rootCmd.Logger.Infof("Preview idle for %s, stopping", c.idleTimeout)
					return
				}
			}
		}
	}
}
