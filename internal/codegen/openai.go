package codegen

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/retry"
)

const systemPrompt = `You are an expert React Native and Expo developer. Given a
description of a mobile app, you produce complete, runnable source files for an
Expo project.

Respond with a single JSON object and nothing else:

{
  "summary": "<one line describing the app>",
  "files": {
    "App.tsx": "<full file contents>",
    "components/Foo.tsx": "<full file contents>"
  }
}

Rules:
- File paths are relative to the project root. Never use absolute paths or "..".
- Every file must be complete and self-contained. No placeholders or ellipses.
- Use only dependencies already present in the project manifest.
- App.tsx is the entry point and must always be included.`

// OpenAIGeneratorConfig is the configuration for the OpenAI code generator.
type OpenAIGeneratorConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint for OpenAI-compatible providers.
	BaseURL     string
	Model       string
	MaxTokens   int64
	Timeout     time.Duration
	MaxAttempts int
	Logger      log.Logger
}

func (c *OpenAIGeneratorConfig) defaults() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.Model == "" {
		c.Model = openai.ChatModelGPT4o
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 16384
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Minute
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 2
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "codegen.OpenAIGenerator"})
	return nil
}

// OpenAIGenerator generates app code through the Chat Completions API. A
// custom base URL lets it talk to any OpenAI-compatible provider.
type OpenAIGenerator struct {
	client openai.Client
	cfg    OpenAIGeneratorConfig
}

// NewOpenAIGenerator creates a new OpenAI backed generator.
func NewOpenAIGenerator(cfg OpenAIGeneratorConfig) (*OpenAIGenerator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	var res *Result
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: g.cfg.MaxAttempts,
		Logger:      g.cfg.Logger,
	}, "code generation", func() error {
		var err error
		res, err = g.generate(ctx, req)
		return err
	}, func(error) bool { return true })
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (g *OpenAIGenerator) generate(ctx context.Context, req Request) (*Result, error) {
	g.cfg.Logger.Debugf("Requesting completion from model %s", g.cfg.Model)

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               g.cfg.Model,
		MaxCompletionTokens: openai.Int(g.cfg.MaxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(req)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	res, err := parseResult(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if err := ValidateResult(res); err != nil {
		return nil, err
	}

	g.cfg.Logger.Infof("Generated %d files", len(res.Files))
	return res, nil
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "App name: %s\n\nDescription:\n%s\n", req.AppName, req.Prompt)
	if len(req.BaseFiles) > 0 {
		b.WriteString("\nThe project already contains these files:\n")
		paths := make([]string, 0, len(req.BaseFiles))
		for p := range req.BaseFiles {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", p, req.BaseFiles[p])
		}
	}
	return b.String()
}

type resultPayload struct {
	Summary string            `json:"summary"`
	Files   map[string]string `json:"files"`
}

// parseResult decodes the model reply, tolerating markdown code fences around
// the JSON body.
func parseResult(content string) (*Result, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if i := strings.LastIndex(content, "```"); i >= 0 {
			content = content[:i]
		}
		content = strings.TrimSpace(content)
	}

	var payload resultPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("could not decode generator reply: %w", err)
	}

	return &Result{Files: payload.Files, Summary: payload.Summary}, nil
}
