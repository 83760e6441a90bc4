package lib

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/appdraft/appdraft/internal/app/archiveproject"
	"github.com/appdraft/appdraft/internal/app/generate"
	"github.com/appdraft/appdraft/internal/app/status"
	"github.com/appdraft/appdraft/internal/app/stopproject"
	"github.com/appdraft/appdraft/internal/blueprint"
	"github.com/appdraft/appdraft/internal/broadcast"
	"github.com/appdraft/appdraft/internal/codegen"
	"github.com/appdraft/appdraft/internal/command"
	"github.com/appdraft/appdraft/internal/depcache"
	"github.com/appdraft/appdraft/internal/governor"
	"github.com/appdraft/appdraft/internal/netport"
	"github.com/appdraft/appdraft/internal/tunnel"
)

// GenerateOpts configures one generation run.
type GenerateOpts struct {
	// Prompt is the natural language description of the app to build.
	Prompt string

	// OwnerID optionally attributes the project to a caller.
	OwnerID string

	// APIKey authenticates against the AI code generation provider. Required.
	APIKey string

	// BaseURL overrides the provider endpoint for OpenAI-compatible APIs.
	BaseURL string

	// Model selects the generation model. Empty uses the provider default.
	Model string

	// OnProgress, when set, is invoked for every progress event the pipeline
	// publishes, in order. It runs on the SDK's goroutine and must not block.
	OnProgress func(ev ProgressEvent)
}

// Generate builds a running app from a prompt: scaffold, AI code generation,
// dependency linking, dev server and public tunnel. It blocks until the
// preview is live or the build fails.
//
// The returned project holds runtime resources (port, server process, tunnel)
// until [Client.StopProject] or [Client.ArchiveProject] is called.
func (c *Client) Generate(ctx context.Context, opts GenerateOpts) (*Project, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required: %w", ErrNotValid)
	}

	runner, err := command.NewRunner(command.RunnerConfig{
		AllowedBinaries: []string{"npm", "npx", "node", c.tunnelBinary},
		Logger:          c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create runner: %w", err)
	}

	broker, err := broadcast.NewBroker(broadcast.BrokerConfig{Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create broker: %w", err)
	}

	gov, err := governor.NewGovernor(governor.GovernorConfig{
		MaxProjects: c.maxProjects,
		DataPath:    c.dataDir,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create governor: %w", err)
	}

	alloc, err := netport.NewAllocator(netport.AllocatorConfig{
		StartPort: c.startPort,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create port allocator: %w", err)
	}

	tunneler, err := tunnel.NewManager(tunnel.ManagerConfig{
		Runner: runner,
		Binary: c.tunnelBinary,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create tunnel manager: %w", err)
	}

	cache, err := depcache.NewCache(depcache.CacheConfig{
		Dir:    c.depCacheDir,
		Runner: runner,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create dependency cache: %w", err)
	}

	generator, err := codegen.NewOpenAIGenerator(codegen.OpenAIGeneratorConfig{
		APIKey:  opts.APIKey,
		BaseURL: opts.BaseURL,
		Model:   opts.Model,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create generator: %w", err)
	}

	bp, err := blueprint.Load(c.blueprintPath)
	if err != nil {
		return nil, fmt.Errorf("could not load blueprint: %w", err)
	}

	svc, err := generate.NewService(generate.ServiceConfig{
		Repository:  c.repo,
		Broker:      broker,
		Governor:    gov,
		Allocator:   alloc,
		Tunneler:    tunneler,
		DepCache:    cache,
		Generator:   generator,
		Blueprint:   bp,
		Runner:      runner,
		Registry:    c.registry,
		Archiver:    c.archiver,
		ProjectsDir: c.projectsDir,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create generate service: %w", err)
	}

	// Subscribe before the build starts so no progress event is missed.
	projectID := ulid.Make().String()
	done := make(chan struct{})
	cancelSub := func() {}
	if opts.OnProgress != nil {
		events, cancel := broker.Subscribe(projectID)
		cancelSub = cancel
		go func() {
			defer close(done)
			for ev := range events {
				opts.OnProgress(fromInternalEnvelope(ev))
			}
		}()
	} else {
		close(done)
	}
	defer cancelSub()

	p, err := svc.Run(ctx, generate.Request{
		ID:      projectID,
		Prompt:  opts.Prompt,
		OwnerID: opts.OwnerID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	// Closing the subscription flushes the buffered events through the
	// callback before the project is returned.
	cancelSub()
	<-done

	result := fromInternalProject(*p)
	return &result, nil
}

// GetProject returns the current state of a project.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	svc, err := c.newStatusService()
	if err != nil {
		return nil, err
	}

	p, err := svc.Run(ctx, status.Request{ID: projectID})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalProject(*p)
	return &result, nil
}

// ListProjects returns all projects, newest first. Pass an empty ownerID for
// every owner.
func (c *Client) ListProjects(ctx context.Context, ownerID string) ([]Project, error) {
	svc, err := c.newStatusService()
	if err != nil {
		return nil, err
	}

	projects, err := svc.List(ctx, status.ListRequest{OwnerID: ownerID})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalProjectList(projects), nil
}

// StopProject stops a running project's dev server and tunnel and releases
// its port. A project that already has a blob archive is evicted to the
// archived state.
func (c *Client) StopProject(ctx context.Context, projectID string) (*Project, error) {
	svc, err := stopproject.NewService(stopproject.ServiceConfig{
		Repository: c.repo,
		Registry:   c.registry,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create stop service: %w", err)
	}

	p, err := svc.Run(ctx, stopproject.Request{ID: projectID})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalProject(*p)
	return &result, nil
}

// ArchiveProject uploads a ready project's tree to the blob store and evicts
// the local copy. The project can later be read again transparently through
// rehydration.
func (c *Client) ArchiveProject(ctx context.Context, projectID string) (*Project, error) {
	svc, err := archiveproject.NewService(archiveproject.ServiceConfig{
		Repository: c.repo,
		Registry:   c.registry,
		Archiver:   c.archiver,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create archive service: %w", err)
	}

	p, err := svc.Run(ctx, archiveproject.Request{ID: projectID})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalProject(*p)
	return &result, nil
}

// ListArchives returns the project IDs that have a bundle in the blob store,
// sorted. Useful to reconcile store contents against the project repository.
func (c *Client) ListArchives(ctx context.Context) ([]string, error) {
	ids, err := c.archiver.List(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}

func (c *Client) newStatusService() (*status.Service, error) {
	svc, err := status.NewService(status.ServiceConfig{
		Repository: c.repo,
		Registry:   c.registry,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create status service: %w", err)
	}
	return svc, nil
}
