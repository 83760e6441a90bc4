package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/appdraft/appdraft/internal/model"
)

// JSONPrinter prints project information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// listItem represents a project in the list output (subset of fields).
type listItem struct {
	ID         string    `json:"id"`
	AppName    string    `json:"app_name"`
	Status     string    `json:"status"`
	PreviewURL string    `json:"preview_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// statusOutput represents the full project status output.
type statusOutput struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id,omitempty"`
	AppName      string         `json:"app_name"`
	Prompt       string         `json:"prompt"`
	Status       string         `json:"status"`
	Port         int            `json:"port,omitempty"`
	PreviewURL   string         `json:"preview_url,omitempty"`
	Error        string         `json:"error,omitempty"`
	Steps        []stepOutput   `json:"steps,omitempty"`
	Archive      *archiveOutput `json:"archive,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
}

// stepOutput represents one build step in the status output.
type stepOutput struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// archiveOutput represents the archive record output.
type archiveOutput struct {
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// fileListOutput represents the workspace file listing output.
type fileListOutput struct {
	Files []string `json:"files"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintList prints projects in JSON format with a subset of fields.
func (j *JSONPrinter) PrintList(projects []model.Project) error {
	items := make([]listItem, len(projects))
	for i, p := range projects {
		items[i] = listItem{
			ID:         p.ID,
			AppName:    p.AppName,
			Status:     string(p.Status),
			PreviewURL: p.PreviewURL,
			CreatedAt:  p.CreatedAt.UTC(),
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintStatus prints detailed project status in JSON format.
func (j *JSONPrinter) PrintStatus(p model.Project) error {
	output := statusOutput{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		AppName:      p.AppName,
		Prompt:       p.Prompt,
		Status:       string(p.Status),
		Port:         p.Port,
		PreviewURL:   p.PreviewURL,
		Error:        p.Error,
		CreatedAt:    p.CreatedAt.UTC(),
		LastActiveAt: p.LastActiveAt.UTC(),
	}

	for _, s := range p.BuildSteps {
		output.Steps = append(output.Steps, stepOutput{
			Name:     s.Name,
			Status:   string(s.Status),
			Progress: s.Progress,
			Message:  s.Message,
		})
	}

	if p.Archive != nil {
		output.Archive = &archiveOutput{
			Key:       p.Archive.Key,
			SizeBytes: p.Archive.SizeBytes,
			CreatedAt: p.Archive.CreatedAt.UTC(),
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintFileList prints workspace file paths in JSON format.
func (j *JSONPrinter) PrintFileList(paths []string) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(fileListOutput{Files: paths})
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(messageOutput{Message: msg})
}
