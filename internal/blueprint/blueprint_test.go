package blueprint_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/blueprint"
)

func TestLoadDefault(t *testing.T) {
	b, err := blueprint.Load("")
	require.NoError(t, err)

	assert.Equal(t, "expo-web", b.Name)
	assert.Equal(t, "npx", b.Server.Binary)
	assert.Contains(t, b.Files, "App.tsx")

	deps := b.Manifest()
	assert.Contains(t, deps, "expo")
	assert.Contains(t, deps, "react")
	assert.Contains(t, deps, "react-native")
	assert.Contains(t, deps, "react-native-web")
}

func TestLoadCustom(t *testing.T) {
	tests := map[string]struct {
		blueprint string
		expErr    bool
	}{
		"A valid blueprint should load.": {
			blueprint: `
name: custom
files:
  App.tsx: "export default 1"
server:
  binary: npm
  args: ["start"]
`,
		},

		"A blueprint without a name should fail.": {
			blueprint: `
files:
  App.tsx: "x"
server:
  binary: npm
`,
			expErr: true,
		},

		"A blueprint without the entry file should fail.": {
			blueprint: `
name: custom
files:
  index.js: "x"
server:
  binary: npm
`,
			expErr: true,
		},

		"A blueprint without a server command should fail.": {
			blueprint: `
name: custom
files:
  App.tsx: "x"
`,
			expErr: true,
		},

		"A blueprint with an escaping file path should fail.": {
			blueprint: `
name: custom
files:
  App.tsx: "x"
  ../evil.js: "x"
server:
  binary: npm
`,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "blueprint.yaml")
			require.NoError(t, os.WriteFile(path, []byte(test.blueprint), 0o644))

			_, err := blueprint.Load(path)

			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScaffold(t *testing.T) {
	b, err := blueprint.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	created, err := b.Scaffold(dir, "recipes")
	require.NoError(t, err)

	assert.Contains(t, created, "App.tsx")
	assert.Contains(t, created, "package.json")

	entry, err := os.ReadFile(filepath.Join(dir, "App.tsx"))
	require.NoError(t, err)
	assert.Contains(t, string(entry), "recipes")
	assert.NotContains(t, string(entry), "__APP_NAME__")

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	require.NoError(t, err)
	var manifest struct {
		Name         string            `json:"name"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, "recipes", manifest.Name)
	assert.Contains(t, manifest.Dependencies, "expo")
}
