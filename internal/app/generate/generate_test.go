package generate_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/app/generate"
	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/archive/local"
	"github.com/appdraft/appdraft/internal/blueprint"
	"github.com/appdraft/appdraft/internal/broadcast"
	"github.com/appdraft/appdraft/internal/codegen"
	"github.com/appdraft/appdraft/internal/codegen/codegenmock"
	"github.com/appdraft/appdraft/internal/command"
	"github.com/appdraft/appdraft/internal/depcache"
	"github.com/appdraft/appdraft/internal/governor"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/netport"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/storage/memory"
	"github.com/appdraft/appdraft/internal/tunnel"
)

const testBlueprint = `
name: test
dependencies:
  react: "18.2.0"
server:
  binary: sh
  args: ["-c", "sleep 30"]
files:
  App.tsx: "// __APP_NAME__ placeholder"
`

type fixture struct {
	svc   *generate.Service
	repo  *memory.Repository
	reg   *registry.Registry
	gen   *codegenmock.MockGenerator
	alloc *netport.Allocator
}

// stubNpm puts a fake npm on PATH so the dependency cache can install.
func stubNpm(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\nmkdir -p node_modules/react\nexit 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "npm"), []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func newFixture(t *testing.T, mutate func(cfg *generate.ServiceConfig)) *fixture {
	t.Helper()
	stubNpm(t)

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	broker, err := broadcast.NewBroker(broadcast.BrokerConfig{})
	require.NoError(t, err)

	gov, err := governor.NewGovernor(governor.GovernorConfig{
		MemoryUsage: func(context.Context) (float64, error) { return 10, nil },
		DiskUsage:   func(context.Context, string) (float64, error) { return 10, nil },
		CPUUsage:    func(context.Context) (float64, error) { return 10, nil },
	})
	require.NoError(t, err)

	alloc, err := netport.NewAllocator(netport.AllocatorConfig{Probe: func(int) bool { return true }})
	require.NoError(t, err)

	runner, err := command.NewRunner(command.RunnerConfig{AllowedBinaries: []string{"sh", "npm"}})
	require.NoError(t, err)

	tunneler, err := tunnel.NewManager(tunnel.ManagerConfig{
		Runner: runner,
		Binary: "sh",
		Args: func(port int) []string {
			return []string{"-c", fmt.Sprintf("echo https://test-%d.trycloudflare.com; sleep 30", port)}
		},
		MaxAttempts:  1,
		OpenTimeout:  2 * time.Second,
		PollInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	cache, err := depcache.NewCache(depcache.CacheConfig{Dir: t.TempDir(), Runner: runner})
	require.NoError(t, err)

	bpPath := filepath.Join(t.TempDir(), "blueprint.yaml")
	require.NoError(t, os.WriteFile(bpPath, []byte(testBlueprint), 0o644))
	bp, err := blueprint.Load(bpPath)
	require.NoError(t, err)

	store, err := local.NewStore(local.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	archiver, err := archive.NewArchiver(archive.ArchiverConfig{Store: store})
	require.NoError(t, err)

	projectsDir := t.TempDir()
	reg, err := registry.NewRegistry(registry.RegistryConfig{Archiver: archiver, ProjectsDir: projectsDir})
	require.NoError(t, err)

	gen := &codegenmock.MockGenerator{}

	cfg := generate.ServiceConfig{
		Repository:         repo,
		Broker:             broker,
		Governor:           gov,
		Allocator:          alloc,
		Tunneler:           tunneler,
		DepCache:           cache,
		Generator:          gen,
		Blueprint:          bp,
		Runner:             runner,
		Registry:           reg,
		ProjectsDir:        projectsDir,
		ServerReadyTimeout: 2 * time.Second,
		ServerProbe:        func(int) bool { return true },
	}
	if mutate != nil {
		mutate(&cfg)
	}

	svc, err := generate.NewService(cfg)
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, reg: reg, gen: gen, alloc: alloc}
}

func goodGeneration() *codegen.Result {
	return &codegen.Result{
		Summary: "a todo app",
		Files: map[string]string{
			"App.tsx":             "export default function App() { return null }",
			"components/List.tsx": "export const List = () => null",
		},
	}
}

func TestServiceRun(t *testing.T) {
	f := newFixture(t, nil)
	f.gen.On("Generate", mock.Anything, mock.Anything).Once().Return(goodGeneration(), nil)

	p, err := f.svc.Run(context.Background(), generate.Request{Prompt: "build a todo app with streaks"})
	require.NoError(t, err)

	assert.Equal(t, model.ProjectStatusReady, p.Status)
	assert.Equal(t, "build", p.AppName)
	assert.NotZero(t, p.Port)
	assert.Contains(t, p.PreviewURL, "trycloudflare.com")

	// Generated files are on disk next to the scaffold.
	assert.FileExists(t, filepath.Join(p.Dir, "App.tsx"))
	assert.FileExists(t, filepath.Join(p.Dir, "components", "List.tsx"))
	assert.FileExists(t, filepath.Join(p.Dir, "package.json"))

	// Every stage ran in order and completed.
	stages := []string{}
	for _, step := range p.BuildSteps {
		assert.Equal(t, model.BuildStepCompleted, step.Status)
		stages = append(stages, step.Name)
	}
	assert.Equal(t, []string{
		"analyzing", "project_created", "code_generated",
		"dependencies_installed", "server_started", "tunnel_created",
	}, stages)

	// The project is persisted and live.
	stored, err := f.repo.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusReady, stored.Status)
	_, live := f.reg.Lookup(p.ID)
	assert.True(t, live)

	f.reg.Evict(p.ID)
	f.gen.AssertExpectations(t)
}

func TestServiceRunInvalidPrompt(t *testing.T) {
	tests := map[string]string{
		"An empty prompt should be rejected.":         "   ",
		"A prompt with shell metacharacters too.":     "todo app; rm -rf /",
		"A prompt with a path traversal attempt too.": "show me ../../etc/passwd",
		"A prompt with an injected script tag too.":   "make a page with <script>alert(1)</script>",
	}

	for name, prompt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)

			_, err := f.svc.Run(context.Background(), generate.Request{Prompt: prompt})
			assert.True(t, errors.Is(err, model.ErrNotValid))
		})
	}
}

func TestServiceRunSkipsUnwritableFile(t *testing.T) {
	f := newFixture(t, nil)

	// "helpers" lands on disk as a plain file, so "helpers/date.ts" can never
	// be written. A non-entry file like that is skipped, not fatal.
	f.gen.On("Generate", mock.Anything, mock.Anything).Once().Return(&codegen.Result{
		Summary: "a todo app",
		Files: map[string]string{
			"App.tsx":         "export default function App() { return null }",
			"helpers":         "not a directory",
			"helpers/date.ts": "export const today = () => new Date()",
		},
	}, nil)

	p, err := f.svc.Run(context.Background(), generate.Request{Prompt: "build a todo app"})
	require.NoError(t, err)
	defer f.reg.Evict(p.ID)

	assert.Equal(t, model.ProjectStatusReady, p.Status)
	assert.FileExists(t, filepath.Join(p.Dir, "App.tsx"))
	assert.NoFileExists(t, filepath.Join(p.Dir, "helpers", "date.ts"))

	var codegenStep *model.BuildStep
	for i := range p.BuildSteps {
		if p.BuildSteps[i].Name == string(model.ProjectStatusCodeGenerated) {
			codegenStep = &p.BuildSteps[i]
		}
	}
	require.NotNil(t, codegenStep)
	assert.Equal(t, model.BuildStepCompleted, codegenStep.Status)
	assert.Contains(t, codegenStep.Message, "skipped: helpers/date.ts")
}

func TestServiceRunGenerationFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.gen.On("Generate", mock.Anything, mock.Anything).Once().Return(nil, fmt.Errorf("model unavailable"))

	_, err := f.svc.Run(context.Background(), generate.Request{Prompt: "build a notes app"})
	require.Error(t, err)

	projects, err := f.repo.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)

	p := projects[0]
	assert.Equal(t, model.ProjectStatusError, p.Status)
	assert.Contains(t, p.Error, "model unavailable")

	// The failed tree is cleaned up and nothing stays live.
	assert.NoDirExists(t, p.Dir)
	_, live := f.reg.Lookup(p.ID)
	assert.False(t, live)
}

func TestServiceRunTunnelFailure(t *testing.T) {
	f := newFixture(t, func(cfg *generate.ServiceConfig) {
		// A tunnel client that never prints a URL: every open attempt times
		// out until the retry budget is spent.
		tunneler, err := tunnel.NewManager(tunnel.ManagerConfig{
			Runner:       cfg.Runner,
			Binary:       "sh",
			Args:         func(int) []string { return []string{"-c", "sleep 30"} },
			MaxAttempts:  2,
			OpenTimeout:  100 * time.Millisecond,
			PollInterval: 20 * time.Millisecond,
		})
		require.NoError(t, err)
		cfg.Tunneler = tunneler
	})
	f.gen.On("Generate", mock.Anything, mock.Anything).Once().Return(goodGeneration(), nil)

	_, err := f.svc.Run(context.Background(), generate.Request{Prompt: "build a notes app"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrTunnel))

	projects, lerr := f.repo.ListProjects(context.Background())
	require.NoError(t, lerr)
	require.Len(t, projects, 1)
	p := projects[0]
	assert.Equal(t, model.ProjectStatusError, p.Status)
	assert.NotEmpty(t, p.Error)
	assert.Empty(t, p.PreviewURL)

	// The failed build released its port, so the dev server is gone too.
	assert.Equal(t, 0, f.alloc.Allocated())
}

func TestServiceRunProgress(t *testing.T) {
	f := newFixture(t, nil)
	f.gen.On("Generate", mock.Anything, mock.Anything).Once().Return(goodGeneration(), nil)

	p, err := f.svc.Run(context.Background(), generate.Request{Prompt: "build a notes app"})
	require.NoError(t, err)
	defer f.reg.Evict(p.ID)

	// Percent marks on the recorded steps never decrease.
	last := 0
	for _, step := range p.BuildSteps {
		assert.GreaterOrEqual(t, step.Progress, last)
		last = step.Progress
	}
}

func TestServiceRunCancelled(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.gen.On("Generate", mock.Anything, mock.Anything).Maybe().Return(goodGeneration(), nil)

	_, err := f.svc.Run(ctx, generate.Request{Prompt: "build a notes app"})
	assert.Error(t, err)
}
