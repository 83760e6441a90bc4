package printer

import "github.com/appdraft/appdraft/internal/model"

// Printer knows how to print project information in different formats.
type Printer interface {
	PrintList(projects []model.Project) error
	PrintStatus(project model.Project) error
	PrintFileList(paths []string) error
	PrintMessage(msg string) error
}
