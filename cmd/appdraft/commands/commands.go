package commands

import (
	"context"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/log"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DataDir    string
	DBPath     string

	// AI provider flags.
	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	// Archive flags.
	S3Bucket string
	S3Region string

	// Runtime flags.
	MaxProjects   int
	StartPort     int
	TunnelBinary  string
	BlueprintPath string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("data-dir", "Directory holding projects, caches and archives.").Default(defaultDataDir).StringVar(&c.DataDir)
	app.Flag("db-path", "Path to the SQLite database file (defaults to <data-dir>/"+conventions.DBFile+").").StringVar(&c.DBPath)

	app.Flag("ai-api-key", "API key for the AI code generation provider.").Envar("APPDRAFT_AI_API_KEY").StringVar(&c.AIAPIKey)
	app.Flag("ai-base-url", "Base URL for OpenAI compatible providers.").StringVar(&c.AIBaseURL)
	app.Flag("ai-model", "Model used for code generation.").StringVar(&c.AIModel)

	app.Flag("s3-bucket", "S3 bucket for project archives (local archive store when empty).").StringVar(&c.S3Bucket)
	app.Flag("s3-region", "AWS region of the archive bucket.").Default("us-east-1").StringVar(&c.S3Region)

	app.Flag("max-projects", "Maximum number of concurrently active projects.").Default("20").IntVar(&c.MaxProjects)
	app.Flag("start-port", "First port of the dev server port range.").Default("19006").IntVar(&c.StartPort)
	app.Flag("tunnel-binary", "Tunnel client binary.").Default("cloudflared").StringVar(&c.TunnelBinary)
	app.Flag("blueprint", "Path to a custom project blueprint YAML.").StringVar(&c.BlueprintPath)

	return c
}
