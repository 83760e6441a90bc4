package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// Pinger checks reachability of a remote archive store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DoctorConfig is the configuration for Doctor.
type DoctorConfig struct {
	// Binaries are the host tools the pipeline shells out to.
	Binaries []string
	// DataDir is the directory where projects, archives and caches live.
	DataDir string
	// ArchiveStore, when set, gets a reachability check. Leave nil for the
	// local filesystem store.
	ArchiveStore Pinger

	Logger log.Logger
}

func (c *DoctorConfig) defaults() error {
	if len(c.Binaries) == 0 {
		c.Binaries = []string{"node", "npm", "npx", "cloudflared"}
	}

	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "doctor.Doctor"})

	return nil
}

// Doctor runs preflight checks for the generation pipeline host.
type Doctor struct {
	binaries []string
	dataDir  string
	store    Pinger
	logger   log.Logger
}

// NewDoctor returns a new Doctor.
func NewDoctor(config DoctorConfig) (*Doctor, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Doctor{
		binaries: config.Binaries,
		dataDir:  config.DataDir,
		store:    config.ArchiveStore,
		logger:   config.Logger,
	}, nil
}

// Check performs all preflight checks.
func (d *Doctor) Check(ctx context.Context) []model.CheckResult {
	var results []model.CheckResult

	for _, bin := range d.binaries {
		results = append(results, d.checkBinary(ctx, bin))
	}

	results = append(results, d.checkDataDir())

	if d.store != nil {
		results = append(results, d.checkArchiveStore(ctx))
	}

	return results
}

// checkBinary checks that a required tool resolves on PATH and reports its
// version when the tool can print one.
func (d *Doctor) checkBinary(ctx context.Context, bin string) model.CheckResult {
	id := fmt.Sprintf("%s_binary", bin)

	path, err := exec.LookPath(bin)
	if err != nil {
		return model.CheckResult{
			ID:      id,
			Message: fmt.Sprintf("%s not found in PATH", bin),
			Status:  model.CheckStatusError,
		}
	}

	version := "unknown version"
	vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(vctx, path, "--version").Output(); err == nil {
		if line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0]); line != "" {
			version = line
		}
	}

	return model.CheckResult{
		ID:      id,
		Message: fmt.Sprintf("%s found at %s (%s)", bin, path, version),
		Status:  model.CheckStatusOK,
	}
}

// checkDataDir checks the data directory exists (creating it if needed) and is
// writable.
func (d *Doctor) checkDataDir() model.CheckResult {
	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return model.CheckResult{
			ID:      "data_dir",
			Message: fmt.Sprintf("Cannot create data dir %s: %v", d.dataDir, err),
			Status:  model.CheckStatusError,
		}
	}

	probe := filepath.Join(d.dataDir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return model.CheckResult{
			ID:      "data_dir",
			Message: fmt.Sprintf("Data dir %s is not writable: %v", d.dataDir, err),
			Status:  model.CheckStatusError,
		}
	}
	os.Remove(probe)

	return model.CheckResult{
		ID:      "data_dir",
		Message: fmt.Sprintf("Data dir %s is writable", d.dataDir),
		Status:  model.CheckStatusOK,
	}
}

// checkArchiveStore checks the remote archive store answers. Failure is a
// warning because archival falls back to the local store.
func (d *Doctor) checkArchiveStore(ctx context.Context) model.CheckResult {
	if err := d.store.Ping(ctx); err != nil {
		return model.CheckResult{
			ID:      "archive_store",
			Message: fmt.Sprintf("Archive store not reachable: %v", err),
			Status:  model.CheckStatusWarning,
		}
	}

	return model.CheckResult{
		ID:      "archive_store",
		Message: "Archive store is reachable",
		Status:  model.CheckStatusOK,
	}
}
