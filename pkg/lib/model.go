package lib

import (
	"errors"
	"time"

	"github.com/appdraft/appdraft/internal/model"
)

// Public sentinel errors. All SDK methods map the internal error taxonomy to
// these so callers never depend on internal packages.
var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when a resource with the same ID already exists.
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrNotValid is returned on invalid input or an invalid operation.
	ErrNotValid = errors.New("not valid")
	// ErrCapacity is returned when the host refuses admission.
	ErrCapacity = errors.New("capacity exceeded")
)

// ProjectStatus represents the lifecycle state of a project.
//
// The typical lifecycle is:
//
//	queued -> analyzing -> project_created -> code_generated ->
//	dependencies_installed -> server_started -> tunnel_created -> ready
//
// A project can transition to error at any point, and a ready project can be
// archived after its local tree is evicted.
type ProjectStatus string

const (
	ProjectStatusQueued         ProjectStatus = "queued"
	ProjectStatusAnalyzing      ProjectStatus = "analyzing"
	ProjectStatusProjectCreated ProjectStatus = "project_created"
	ProjectStatusCodeGenerated  ProjectStatus = "code_generated"
	ProjectStatusDepsInstalled  ProjectStatus = "dependencies_installed"
	ProjectStatusServerStarted  ProjectStatus = "server_started"
	ProjectStatusTunnelCreated  ProjectStatus = "tunnel_created"
	ProjectStatusReady          ProjectStatus = "ready"
	ProjectStatusError          ProjectStatus = "error"
	ProjectStatusArchived       ProjectStatus = "archived"
)

// Project represents a project returned by the SDK.
//
// This is a read-only snapshot of the project state at the time of the API
// call. Use [Client.GetProject] to get the latest state.
type Project struct {
	// ID is the unique identifier (ULID) assigned at creation.
	ID string
	// OwnerID is the optional owner identifier.
	OwnerID string
	// Prompt is the natural language description the project was built from.
	Prompt string
	// AppName is the scaffold name derived from the prompt.
	AppName string
	// Status is the current lifecycle state.
	Status ProjectStatus
	// Port is the local dev server port. Zero when no server is running.
	Port int
	// PreviewURL is the public tunnel URL. Empty until the tunnel is up.
	PreviewURL string
	// Error holds the sanitized failure message for errored projects.
	Error string
	// BuildSteps are the pipeline stages recorded so far, in order.
	BuildSteps []BuildStep
	// Archive describes the blob-store bundle. Nil when never archived.
	Archive *ArchiveRecord
	// CreatedAt is when the project was created.
	CreatedAt time.Time
	// LastActiveAt is when the project was last touched.
	LastActiveAt time.Time
}

// BuildStepStatus represents the status of one pipeline step.
type BuildStepStatus string

const (
	BuildStepPending    BuildStepStatus = "pending"
	BuildStepInProgress BuildStepStatus = "in_progress"
	BuildStepCompleted  BuildStepStatus = "completed"
	BuildStepFailed     BuildStepStatus = "failed"
)

// BuildStep is one named, individually tracked pipeline stage.
type BuildStep struct {
	Name     string
	Status   BuildStepStatus
	Progress int
	Message  string
}

// ArchiveRecord describes a project's durable bundle in the blob store.
type ArchiveRecord struct {
	Key       string
	SizeBytes int64
	CreatedAt time.Time
}

// ProgressEvent is one progress notification delivered while generation runs.
type ProgressEvent struct {
	// Type is "progress", "complete" or "error".
	Type string
	// Stage is the pipeline stage name.
	Stage string
	// Message is the human-readable progress message.
	Message string
	// Percent is the overall pipeline progress, 0-100.
	Percent int
	// PreviewURL carries the public URL once the tunnel is live.
	PreviewURL string
	// FilesAdded lists files a stage produced, when any.
	FilesAdded []string
	// Error carries the failure message for error events.
	Error string
}

// CheckStatus represents the status of a preflight check.
type CheckStatus string

const (
	// CheckStatusOK indicates the check passed.
	CheckStatusOK CheckStatus = "ok"
	// CheckStatusWarning indicates the check passed with a warning.
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError indicates the check failed.
	CheckStatusError CheckStatus = "error"
)

// CheckResult represents the result of a single preflight check.
type CheckResult struct {
	// ID is a unique identifier for the check (e.g. "npm_binary").
	ID string
	// Message is a human-readable description of the result.
	Message string
	// Status is the check status.
	Status CheckStatus
}

// --- Internal conversion helpers ---

func fromInternalProject(p model.Project) Project {
	out := Project{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		Prompt:       p.Prompt,
		AppName:      p.AppName,
		Status:       ProjectStatus(p.Status),
		Port:         p.Port,
		PreviewURL:   p.PreviewURL,
		Error:        p.Error,
		CreatedAt:    p.CreatedAt,
		LastActiveAt: p.LastActiveAt,
	}

	for _, s := range p.BuildSteps {
		out.BuildSteps = append(out.BuildSteps, BuildStep{
			Name:     s.Name,
			Status:   BuildStepStatus(s.Status),
			Progress: s.Progress,
			Message:  s.Message,
		})
	}

	if p.Archive != nil {
		out.Archive = &ArchiveRecord{
			Key:       p.Archive.Key,
			SizeBytes: p.Archive.SizeBytes,
			CreatedAt: p.Archive.CreatedAt,
		}
	}

	return out
}

func fromInternalProjectList(ps []model.Project) []Project {
	result := make([]Project, len(ps))
	for i, p := range ps {
		result[i] = fromInternalProject(p)
	}
	return result
}

func fromInternalEnvelope(e model.Envelope) ProgressEvent {
	return ProgressEvent{
		Type:       e.Type,
		Stage:      e.Stage,
		Message:    e.Message,
		Percent:    e.Percent,
		PreviewURL: e.PreviewURL,
		FilesAdded: e.FilesAdded,
		Error:      e.Error,
	}
}

func fromInternalCheckResults(rs []model.CheckResult) []CheckResult {
	result := make([]CheckResult, len(rs))
	for i, r := range rs {
		result[i] = CheckResult{ID: r.ID, Message: r.Message, Status: CheckStatus(r.Status)}
	}
	return result
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	case errors.Is(err, model.ErrCapacity):
		return joinErrors(err, ErrCapacity)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
