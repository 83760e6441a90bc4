package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/appdraft/appdraft/internal/model"
)

// TablePrinter prints project information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintList prints projects in a table format.
func (t *TablePrinter) PrintList(projects []model.Project) error {
	if len(projects) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "ID\tAPP\tSTATUS\tPREVIEW\tCREATED")

	// Print rows
	for _, p := range projects {
		preview := p.PreviewURL
		if preview == "" {
			preview = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.AppName, p.Status, preview, TimeAgo(p.CreatedAt))
	}

	return nil
}

// PrintStatus prints detailed project status.
func (t *TablePrinter) PrintStatus(p model.Project) error {
	fmt.Fprintf(t.writer, "ID:          %s\n", p.ID)
	fmt.Fprintf(t.writer, "App:         %s\n", p.AppName)
	fmt.Fprintf(t.writer, "Status:      %s\n", p.Status)

	if p.OwnerID != "" {
		fmt.Fprintf(t.writer, "Owner:       %s\n", p.OwnerID)
	}

	if p.PreviewURL != "" {
		fmt.Fprintf(t.writer, "Preview:     %s\n", p.PreviewURL)
	}

	if p.Port != 0 {
		fmt.Fprintf(t.writer, "Port:        %d\n", p.Port)
	}

	if p.Error != "" {
		fmt.Fprintf(t.writer, "Error:       %s\n", p.Error)
	}

	if p.Archive != nil {
		fmt.Fprintf(t.writer, "Archive:     %s (%s)\n", p.Archive.Key, FormatBytes(p.Archive.SizeBytes))
	}

	fmt.Fprintf(t.writer, "Created:     %s\n", FormatTimestamp(p.CreatedAt))
	fmt.Fprintf(t.writer, "Last active: %s\n", FormatTimestamp(p.LastActiveAt))

	if len(p.BuildSteps) > 0 {
		fmt.Fprintf(t.writer, "Steps:\n")
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		for _, s := range p.BuildSteps {
			fmt.Fprintf(tw, "  %s\t%s\t%d%%\t%s\n", s.Name, s.Status, s.Progress, s.Message)
		}
		tw.Flush()
	}

	return nil
}

// PrintFileList prints workspace file paths, one per line.
func (t *TablePrinter) PrintFileList(paths []string) error {
	for _, p := range paths {
		fmt.Fprintln(t.writer, p)
	}
	return nil
}

// PrintMessage prints a simple message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
