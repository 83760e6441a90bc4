package model_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/model"
)

func TestSafeJoin(t *testing.T) {
	root := filepath.Join("/data", "projects", "01ABC")

	tests := map[string]struct {
		rel     string
		expPath string
		expErr  bool
	}{
		"Relative file is joined onto the root": {
			rel:     "App.tsx",
			expPath: filepath.Join(root, "App.tsx"),
		},
		"Nested path is allowed": {
			rel:     "app/(tabs)/index.tsx",
			expPath: filepath.Join(root, "app", "(tabs)", "index.tsx"),
		},
		"Traversal is rejected":           {rel: "../other/secret", expErr: true},
		"Hidden traversal is rejected":    {rel: "a/../../b", expErr: true},
		"Absolute path is rejected":       {rel: "/etc/passwd", expErr: true},
		"Empty path is rejected":          {rel: "", expErr: true},
		"Shell characters are rejected":   {rel: "a;rm.txt", expErr: true},
		"Windows drive path is rejected":  {rel: `C:\boot.ini`, expErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := model.SafeJoin(root, tt.rel)
			if tt.expErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrNotValid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expPath, got)
		})
	}
}

func TestSafeJoinRootSlash(t *testing.T) {
	// Path-shape validation probes use the filesystem root; a valid relative
	// path must pass there too.
	root := string(filepath.Separator)

	got, err := model.SafeJoin(root, "App.tsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "App.tsx"), got)

	got, err = model.SafeJoin(root, "components/List.tsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "components", "List.tsx"), got)

	_, err = model.SafeJoin(root, "../escape")
	assert.ErrorIs(t, err, model.ErrNotValid)
}
