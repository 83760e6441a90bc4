package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/blueprint"
	"github.com/appdraft/appdraft/internal/broadcast"
	"github.com/appdraft/appdraft/internal/codegen"
	"github.com/appdraft/appdraft/internal/command"
	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/depcache"
	"github.com/appdraft/appdraft/internal/governor"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/netport"
	"github.com/appdraft/appdraft/internal/registry"
	"github.com/appdraft/appdraft/internal/retry"
	"github.com/appdraft/appdraft/internal/storage"
	"github.com/appdraft/appdraft/internal/tunnel"
)

// Pipeline stage progress marks. The jump from tunnel to ready is the final
// verification and bookkeeping.
const (
	percentAnalyzing      = 5
	percentProjectCreated = 15
	percentCodeGenerated  = 25
	percentDepsInstalled  = 35
	percentServerStarted  = 45
	percentTunnelCreated  = 55
	percentReady          = 100
)

// ServiceConfig is the configuration for the generate service.
type ServiceConfig struct {
	Repository storage.Repository
	Broker     *broadcast.Broker
	Governor   *governor.Governor
	Allocator  *netport.Allocator
	Tunneler   *tunnel.Manager
	DepCache   *depcache.Cache
	Generator  codegen.Generator
	Blueprint  *blueprint.Blueprint
	Runner     *command.Runner
	Registry   *registry.Registry
	// Archiver is optional: when set, finished projects are uploaded to the
	// blob store in the background. Upload failures never fail a build.
	Archiver *archive.Archiver
	// ProjectsDir is the root directory for project trees.
	ProjectsDir string
	// ServerReadyTimeout bounds how long the dev server may take to listen.
	ServerReadyTimeout time.Duration
	// ServerProbe overrides the dev server readiness check. Test hook.
	ServerProbe func(port int) bool
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Broker == nil {
		return fmt.Errorf("broker is required")
	}
	if c.Governor == nil {
		return fmt.Errorf("governor is required")
	}
	if c.Allocator == nil {
		return fmt.Errorf("allocator is required")
	}
	if c.Tunneler == nil {
		return fmt.Errorf("tunneler is required")
	}
	if c.DepCache == nil {
		return fmt.Errorf("dependency cache is required")
	}
	if c.Generator == nil {
		return fmt.Errorf("generator is required")
	}
	if c.Blueprint == nil {
		return fmt.Errorf("blueprint is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.ProjectsDir == "" {
		return fmt.Errorf("projects directory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service runs the whole prompt-to-preview pipeline: admission, scaffold,
// code generation, dependency linking, dev server, tunnel.
type Service struct {
	cfg    ServiceConfig
	logger log.Logger
}

// NewService creates a new generate service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// Request represents the generate request parameters.
type Request struct {
	// Prompt is the natural language app description.
	Prompt string
	// OwnerID optionally attributes the project to a caller.
	OwnerID string
	// ID optionally fixes the project ID so callers can subscribe to its
	// progress before the build starts. Generated when empty.
	ID string
}

// Run builds an app from a prompt and returns the ready project. Progress is
// published to the broker under the project ID as it happens; on failure the
// project is left in the error state with every held resource released.
func (s *Service) Run(ctx context.Context, req Request) (*model.Project, error) {
	if err := model.ValidatePrompt(req.Prompt); err != nil {
		return nil, err
	}

	if err := s.cfg.Governor.TryAdmit(ctx); err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = ulid.Make().String()
	}

	now := time.Now().UTC()
	p := &model.Project{
		ID:           id,
		OwnerID:      req.OwnerID,
		Prompt:       req.Prompt,
		AppName:      model.DeriveAppName(req.Prompt),
		Status:       model.ProjectStatusQueued,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	lease := model.NewLease(p.ID)
	lease.Add(func() { s.cfg.Governor.Release() })

	if err := s.cfg.Repository.CreateProject(ctx, *p); err != nil {
		lease.Release()
		return nil, fmt.Errorf("could not create project: %w", err)
	}

	logger := s.logger.WithValues(log.Kv{"project": p.ID})
	logger.Infof("Starting build for app %q", p.AppName)

	if err := s.pipeline(ctx, p, lease, logger); err != nil {
		s.fail(p, lease, logger, err)
		return nil, err
	}

	return p, nil
}

func (s *Service) pipeline(ctx context.Context, p *model.Project, lease *model.Lease, logger log.Logger) error {
	// Analyzing.
	err := s.step(ctx, p, model.ProjectStatusAnalyzing, percentAnalyzing, "Analyzing prompt", func() (string, []string, error) {
		return fmt.Sprintf("Building %q", p.AppName), nil, nil
	})
	if err != nil {
		return err
	}

	// Scaffold.
	var dir string
	err = s.step(ctx, p, model.ProjectStatusProjectCreated, percentProjectCreated, "Creating project", func() (string, []string, error) {
		dir = s.projectDir(p.ID)
		created, err := s.cfg.Blueprint.Scaffold(dir, p.AppName)
		if err != nil {
			return "", nil, err
		}
		p.Dir = dir
		return "Project created", created, nil
	})
	if err != nil {
		return err
	}
	lease.Add(func() {
		// The tree only survives a successful build.
		if p.Status != model.ProjectStatusReady && p.Status != model.ProjectStatusArchived {
			if err := os.RemoveAll(dir); err != nil {
				logger.Warningf("Could not remove project directory: %s", err)
			}
		}
	})

	// Code generation.
	err = s.step(ctx, p, model.ProjectStatusCodeGenerated, percentCodeGenerated, "Generating code", func() (string, []string, error) {
		base, err := readFiles(dir, s.cfg.Blueprint)
		if err != nil {
			return "", nil, err
		}
		res, err := s.cfg.Generator.Generate(ctx, codegen.Request{Prompt: p.Prompt, AppName: p.AppName, BaseFiles: base})
		if err != nil {
			return "", nil, err
		}
		if err := codegen.ValidateResult(res); err != nil {
			return "", nil, err
		}
		added, skipped, err := writeGenerated(dir, res.Files)
		if err != nil {
			return "", nil, err
		}
		msg := fmt.Sprintf("Generated %d files", len(added))
		if len(skipped) > 0 {
			logger.Warningf("Skipped %d generated files: %s", len(skipped), strings.Join(skipped, ", "))
			msg = fmt.Sprintf("%s (skipped: %s)", msg, strings.Join(skipped, ", "))
		}
		return msg, added, nil
	})
	if err != nil {
		return err
	}

	// Dependencies.
	err = s.step(ctx, p, model.ProjectStatusDepsInstalled, percentDepsInstalled, "Installing dependencies", func() (string, []string, error) {
		hit, err := s.cfg.DepCache.Link(ctx, dir, s.cfg.Blueprint.Manifest())
		if err != nil {
			return "", nil, err
		}
		if hit {
			return "Dependencies linked from cache", nil, nil
		}
		return "Dependencies installed", nil, nil
	})
	if err != nil {
		return err
	}

	// Dev server. Bind races with a crashed previous process are expected, so
	// failed attempts give their port back and try again with a fresh one.
	err = s.step(ctx, p, model.ProjectStatusServerStarted, percentServerStarted, "Starting dev server", func() (string, []string, error) {
		var port int
		var proc *command.Proc
		rerr := retry.Do(ctx, retry.Config{MaxAttempts: 3, Logger: logger}, "server start", func() error {
			var err error
			port, err = s.cfg.Allocator.Acquire()
			if err != nil {
				return err
			}
			proc, err = s.startServer(ctx, dir, port)
			if err != nil {
				s.cfg.Allocator.Release(port)
				return err
			}
			return nil
		}, func(err error) bool {
			var cmdErr *model.CommandError
			if errors.As(err, &cmdErr) {
				return cmdErr.Retryable()
			}
			return errors.Is(err, model.ErrPortExhausted)
		})
		if rerr != nil {
			return "", nil, rerr
		}

		lease.Add(func() { s.cfg.Allocator.Release(port) })
		lease.Add(proc.Stop)
		p.Port = port
		return fmt.Sprintf("Dev server on port %d", port), nil, nil
	})
	if err != nil {
		return err
	}

	// Tunnel.
	err = s.step(ctx, p, model.ProjectStatusTunnelCreated, percentTunnelCreated, "Creating tunnel", func() (string, []string, error) {
		tun, err := s.cfg.Tunneler.Open(ctx, p.Port)
		if err != nil {
			return "", nil, err
		}
		lease.Add(tun.Close)
		p.PreviewURL = tun.URL
		return "Tunnel created", nil, nil
	})
	if err != nil {
		return err
	}

	// Ready.
	p.Status = model.ProjectStatusReady
	p.LastActiveAt = time.Now().UTC()
	if err := s.cfg.Repository.UpdateProject(ctx, *p); err != nil {
		return fmt.Errorf("could not update project: %w", err)
	}
	s.cfg.Registry.Register(p.ID, lease)
	s.cfg.Broker.Publish(p.ID, model.PreviewReady{Stage: string(model.ProjectStatusReady), Message: "Preview is live", Percent: percentReady, PreviewURL: p.PreviewURL})
	s.cfg.Broker.Publish(p.ID, model.Completed{PreviewURL: p.PreviewURL, Message: fmt.Sprintf("App %q is ready", p.AppName)})
	logger.Infof("Build finished, preview at %s", p.PreviewURL)

	if s.cfg.Archiver != nil {
		s.uploadArchive(p, logger)
	}

	return nil
}

// step advances the project one stage: it records the build step, runs fn and
// persists plus publishes the outcome. A cancelled context aborts before the
// stage starts.
func (s *Service) step(ctx context.Context, p *model.Project, status model.ProjectStatus, percent int, message string, fn func() (string, []string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := p.BeginStep(string(status), percent); err != nil {
		return err
	}
	p.Status = status
	if err := s.cfg.Repository.UpdateProject(ctx, *p); err != nil {
		return fmt.Errorf("could not update project: %w", err)
	}
	s.cfg.Broker.Publish(p.ID, model.StepStarted{Stage: string(status), Message: message, Percent: percent})

	doneMsg, files, err := fn()
	if err != nil {
		return fmt.Errorf("%s failed: %w", status, err)
	}

	p.CompleteStep(percent, doneMsg)
	if err := s.cfg.Repository.UpdateProject(ctx, *p); err != nil {
		return fmt.Errorf("could not update project: %w", err)
	}
	s.cfg.Broker.Publish(p.ID, model.StepCompleted{Stage: string(status), Message: doneMsg, Percent: percent, FilesAdded: files})

	return nil
}

// fail moves the project to the terminal error state and releases everything
// the build acquired so far.
func (s *Service) fail(p *model.Project, lease *model.Lease, logger log.Logger, cause error) {
	msg := model.SanitizeErrorMessage(cause.Error())
	p.FailStep(msg)
	p.Status = model.ProjectStatusError
	p.Error = msg

	lease.Release()

	// Persist with a fresh context: the pipeline context may be the reason
	// the build failed.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.cfg.Repository.UpdateProject(ctx, *p); err != nil {
		logger.Errorf("Could not persist failed project: %s", err)
	}

	stage := ""
	if step := p.CurrentStep(); step != nil {
		stage = step.Name
	}
	s.cfg.Broker.Publish(p.ID, model.Failed{Stage: stage, Message: msg})
	logger.Errorf("Build failed at %s: %s", stage, msg)
}

func (s *Service) startServer(ctx context.Context, dir string, port int) (*command.Proc, error) {
	srv := s.cfg.Blueprint.Server

	env := map[string]string{}
	for k, v := range srv.Env {
		env[k] = v
	}
	env["PORT"] = fmt.Sprintf("%d", port)

	return s.cfg.Runner.StartServer(ctx, command.ServerSpec{
		Spec: command.Spec{
			Binary: srv.Binary,
			Args:   append(append([]string{}, srv.Args...), "--port", fmt.Sprintf("%d", port)),
			Dir:    dir,
			Env:    env,
		},
		Port:         port,
		ReadyTimeout: s.cfg.ServerReadyTimeout,
		Probe:        s.cfg.ServerProbe,
	})
}

// uploadArchive pushes the finished tree to the blob store in the background.
// Best effort only.
func (s *Service) uploadArchive(p *model.Project, logger log.Logger) {
	id, dir := p.ID, p.Dir
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		rec, err := s.cfg.Archiver.Archive(ctx, id, dir)
		if err != nil {
			logger.Warningf("Could not archive project: %s", err)
			return
		}

		stored, err := s.cfg.Repository.GetProject(ctx, id)
		if err != nil {
			logger.Warningf("Could not load project for archive record: %s", err)
			return
		}
		stored.Archive = rec
		if err := s.cfg.Repository.UpdateProject(ctx, *stored); err != nil {
			logger.Warningf("Could not persist archive record: %s", err)
		}
	}()
}

func (s *Service) projectDir(id string) string {
	return filepath.Join(s.cfg.ProjectsDir, id)
}

func readFiles(dir string, b *blueprint.Blueprint) (map[string]string, error) {
	files := make(map[string]string, len(b.Files))
	for path := range b.Files {
		full, err := model.SafeJoin(dir, path)
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", path, err)
		}
		files[path] = string(content)
	}
	return files, nil
}

// writeGenerated puts the generated file set on disk. The entry file must be
// written; any other file gets one retry and is then skipped so a single bad
// path never sinks an otherwise good generation.
func writeGenerated(dir string, files map[string]string) (written, skipped []string, err error) {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	// The entry file goes first: if it cannot be written nothing else matters.
	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i] == conventions.EntryFile && paths[j] != conventions.EntryFile
	})

	for _, path := range paths {
		werr := writeFile(dir, path, files[path])
		if werr != nil {
			werr = writeFile(dir, path, files[path])
		}
		if werr == nil {
			written = append(written, path)
			continue
		}
		if path == conventions.EntryFile {
			return nil, nil, fmt.Errorf("could not write entry file: %w", werr)
		}
		skipped = append(skipped, path)
	}

	return written, skipped, nil
}

func writeFile(dir, path, content string) error {
	full, err := model.SafeJoin(dir, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("could not create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	return nil
}
