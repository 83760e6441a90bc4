package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ProjectStatus represents the lifecycle state of a project. Exactly one status
// is current at any time; Error is terminal, Archived is reachable only from
// Ready after the local tree has been evicted.
type ProjectStatus string

const (
	// ProjectStatusQueued indicates the project was admitted but the pipeline
	// has not started work yet.
	ProjectStatusQueued ProjectStatus = "queued"
	// ProjectStatusAnalyzing indicates prompt analysis is in progress.
	ProjectStatusAnalyzing ProjectStatus = "analyzing"
	// ProjectStatusProjectCreated indicates the scaffold directory exists.
	ProjectStatusProjectCreated ProjectStatus = "project_created"
	// ProjectStatusCodeGenerated indicates generated files are on disk.
	ProjectStatusCodeGenerated ProjectStatus = "code_generated"
	// ProjectStatusDepsInstalled indicates dependencies are linked.
	ProjectStatusDepsInstalled ProjectStatus = "dependencies_installed"
	// ProjectStatusServerStarted indicates the dev server is healthy.
	ProjectStatusServerStarted ProjectStatus = "server_started"
	// ProjectStatusTunnelCreated indicates a public tunnel is up.
	ProjectStatusTunnelCreated ProjectStatus = "tunnel_created"
	// ProjectStatusReady indicates the preview is publicly reachable.
	ProjectStatusReady ProjectStatus = "ready"
	// ProjectStatusError is the terminal failure state.
	ProjectStatusError ProjectStatus = "error"
	// ProjectStatusArchived indicates the tree lives only in the blob archive.
	ProjectStatusArchived ProjectStatus = "archived"
)

// Terminal reports whether no further pipeline stages can run from the status.
func (s ProjectStatus) Terminal() bool {
	return s == ProjectStatusError || s == ProjectStatusReady || s == ProjectStatusArchived
}

// BuildStepStatus represents the status of one named pipeline step.
type BuildStepStatus string

const (
	BuildStepPending    BuildStepStatus = "pending"
	BuildStepInProgress BuildStepStatus = "in_progress"
	BuildStepCompleted  BuildStepStatus = "completed"
	BuildStepFailed     BuildStepStatus = "failed"
)

// BuildStep is a named, individually tracked pipeline stage. Steps are totally
// ordered; a later step never starts while an earlier one is non-terminal, and
// progress never decreases within a step.
type BuildStep struct {
	ID         string
	Name       string
	Status     BuildStepStatus
	Progress   int // 0-100
	Message    string
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Project represents one prompt-to-app generation unit and its current state.
type Project struct {
	ID           string
	OwnerID      string
	Prompt       string
	AppName      string
	Status       ProjectStatus
	Dir          string
	Port         int // 0 when no port is held
	PreviewURL   string
	Error        string
	BuildSteps   []BuildStep
	Archive      *ArchiveRecord
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// BeginStep appends a new in-progress step. It enforces total ordering: the
// previous step, if any, must be terminal.
func (p *Project) BeginStep(name string, progress int) (*BuildStep, error) {
	if n := len(p.BuildSteps); n > 0 {
		last := p.BuildSteps[n-1]
		if last.Status == BuildStepPending || last.Status == BuildStepInProgress {
			return nil, fmt.Errorf("step %q is still %s: %w", last.Name, last.Status, ErrNotValid)
		}
	}
	now := time.Now()
	p.BuildSteps = append(p.BuildSteps, BuildStep{
		ID:        fmt.Sprintf("%s-%d", p.ID, len(p.BuildSteps)),
		Name:      name,
		Status:    BuildStepInProgress,
		Progress:  progress,
		StartedAt: &now,
	})
	p.LastActiveAt = now
	return &p.BuildSteps[len(p.BuildSteps)-1], nil
}

// CurrentStep returns the last step, or nil when none started yet.
func (p *Project) CurrentStep() *BuildStep {
	if len(p.BuildSteps) == 0 {
		return nil
	}
	return &p.BuildSteps[len(p.BuildSteps)-1]
}

// CompleteStep marks the current step completed with a final progress value.
// Progress is clamped so it never decreases.
func (p *Project) CompleteStep(progress int, message string) {
	s := p.CurrentStep()
	if s == nil || s.Status != BuildStepInProgress {
		return
	}
	now := time.Now()
	if progress > s.Progress {
		s.Progress = progress
	}
	s.Status = BuildStepCompleted
	s.Message = message
	s.FinishedAt = &now
	p.LastActiveAt = now
}

// FailStep marks the current step failed, keeping the progress reached so far.
func (p *Project) FailStep(message string) {
	s := p.CurrentStep()
	if s == nil || s.Status != BuildStepInProgress {
		return
	}
	now := time.Now()
	s.Status = BuildStepFailed
	s.Message = message
	s.FinishedAt = &now
	p.LastActiveAt = now
}

var promptDangerous = regexp.MustCompile("[;&|`]|\\$\\(|\\.\\./|(?i)<script|(?i)javascript:")

// MaxPromptLength bounds accepted prompt sizes.
const MaxPromptLength = 5000

// ValidatePrompt rejects empty, oversized, or injection-shaped prompts before
// any of the prompt text gets near a subprocess or an AI request.
func ValidatePrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return fmt.Errorf("prompt is empty: %w", ErrNotValid)
	}
	if len(trimmed) > MaxPromptLength {
		return fmt.Errorf("prompt exceeds %d characters: %w", MaxPromptLength, ErrNotValid)
	}
	if promptDangerous.MatchString(trimmed) {
		return fmt.Errorf("prompt contains disallowed characters: %w", ErrNotValid)
	}
	return nil
}

var appNameWord = regexp.MustCompile(`\b[a-z]{3,}\b`)

// DeriveAppName extracts a short scaffold name from the prompt, falling back
// to a generic name when the prompt has no usable words.
func DeriveAppName(prompt string) string {
	words := appNameWord.FindAllString(strings.ToLower(prompt), 1)
	if len(words) == 0 {
		return "myapp"
	}
	name := words[0]
	if len(name) > 10 {
		name = name[:10]
	}
	return name
}
