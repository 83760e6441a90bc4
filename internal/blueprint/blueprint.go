package blueprint

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/model"
)

//go:embed expo.yaml
var defaultBlueprint []byte

// essentialDependencies must be present in every scaffold for the dev server
// to boot, whatever the blueprint says.
var essentialDependencies = map[string]string{
	"expo":         "~50.0.0",
	"react":        "18.2.0",
	"react-native": "0.73.6",
}

// ServerCommand describes how to launch the scaffold's dev server.
type ServerCommand struct {
	Binary string            `yaml:"binary"`
	Args   []string          `yaml:"args"`
	Env    map[string]string `yaml:"env"`
}

// Blueprint is a project template: the base files every generated app starts
// from, its dependency manifest and how to run it.
type Blueprint struct {
	Name         string            `yaml:"name"`
	Dependencies map[string]string `yaml:"dependencies"`
	Files        map[string]string `yaml:"files"`
	Server       ServerCommand     `yaml:"server"`
}

// Load reads a blueprint from a YAML file, or the embedded Expo blueprint
// when path is empty.
func Load(path string) (*Blueprint, error) {
	data := defaultBlueprint
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read blueprint: %w", err)
		}
	}

	b := &Blueprint{}
	if err := yaml.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("could not parse blueprint: %w", err)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Blueprint) validate() error {
	if b.Name == "" {
		return fmt.Errorf("blueprint name is required: %w", model.ErrNotValid)
	}
	if len(b.Files) == 0 {
		return fmt.Errorf("blueprint has no files: %w", model.ErrNotValid)
	}
	if _, ok := b.Files[conventions.EntryFile]; !ok {
		return fmt.Errorf("blueprint is missing %s: %w", conventions.EntryFile, model.ErrNotValid)
	}
	if b.Server.Binary == "" {
		return fmt.Errorf("blueprint server command is required: %w", model.ErrNotValid)
	}
	for path := range b.Files {
		if _, err := model.SafeJoin("/", path); err != nil {
			return fmt.Errorf("blueprint file path %q: %w", path, err)
		}
	}
	return nil
}

// Manifest returns the dependency manifest for an app, with the essential
// runtime dependencies always present.
func (b *Blueprint) Manifest() map[string]string {
	deps := make(map[string]string, len(b.Dependencies)+len(essentialDependencies))
	for name, version := range b.Dependencies {
		deps[name] = version
	}
	for name, version := range essentialDependencies {
		if _, ok := deps[name]; !ok {
			deps[name] = version
		}
	}
	return deps
}

// Scaffold writes the blueprint's files and package.json into dir, expanding
// the app name placeholder. Returns the created file paths sorted.
func (b *Blueprint) Scaffold(dir, appName string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create project directory: %w", err)
	}

	var created []string
	for path, content := range b.Files {
		full, err := model.SafeJoin(dir, path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("could not create %s: %w", filepath.Dir(path), err)
		}
		content = strings.ReplaceAll(content, "__APP_NAME__", appName)
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("could not write %s: %w", path, err)
		}
		created = append(created, path)
	}

	manifest := map[string]any{
		"name":         appName,
		"version":      "1.0.0",
		"private":      true,
		"main":         "node_modules/expo/AppEntry.js",
		"dependencies": b.Manifest(),
		"scripts": map[string]string{
			"start": "expo start",
			"web":   "expo start --web",
		},
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, conventions.ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("could not write manifest: %w", err)
	}
	created = append(created, conventions.ManifestFile)

	sort.Strings(created)
	return created, nil
}
