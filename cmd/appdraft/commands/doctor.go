package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	archives3 "github.com/appdraft/appdraft/internal/archive/s3"
	"github.com/appdraft/appdraft/internal/doctor"
	"github.com/appdraft/appdraft/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the generation pipeline host.")

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	// Check the remote archive store only when one is configured.
	var store doctor.Pinger
	if c.rootCmd.S3Bucket != "" {
		client, err := archives3.NewClient(ctx, c.rootCmd.S3Region)
		if err != nil {
			return fmt.Errorf("could not create S3 client: %w", err)
		}
		s3Store, err := archives3.NewStore(archives3.StoreConfig{
			Client: client,
			Bucket: c.rootCmd.S3Bucket,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create S3 store: %w", err)
		}
		store = s3Store
	}

	d, err := doctor.NewDoctor(doctor.DoctorConfig{
		Binaries:     []string{"node", "npm", "npx", c.rootCmd.TunnelBinary},
		DataDir:      c.rootCmd.DataDir,
		ArchiveStore: store,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create doctor: %w", err)
	}

	results := d.Check(ctx)

	// Print results
	fmt.Fprintf(out, "Checking generation host...\n")
	for _, r := range results {
		icon := getStatusIcon(r.Status)
		fmt.Fprintf(out, "  %s %-20s %s\n", icon, r.ID, r.Message)
	}

	// Summary
	_, warnings, errors := model.CountByStatus(results)
	fmt.Fprintln(out)
	if errors == 0 && warnings == 0 {
		fmt.Fprintln(out, "All checks passed!")
	} else {
		var summary []string
		if errors > 0 {
			summary = append(summary, fmt.Sprintf("%d error(s)", errors))
		}
		if warnings > 0 {
			summary = append(summary, fmt.Sprintf("%d warning(s)", warnings))
		}
		fmt.Fprintf(out, "%s\n", joinWithComma(summary))
	}

	// Return error if there are any errors
	if errors > 0 {
		return fmt.Errorf("preflight checks failed with %d error(s)", errors)
	}

	return nil
}

func getStatusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}

func joinWithComma(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	result := parts[0]
	for i := 1; i < len(parts); i++ {
		result += ", " + parts[i]
	}
	return result
}
