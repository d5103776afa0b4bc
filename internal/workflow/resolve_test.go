package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/clusterone-push/internal/model"
)

// TestResolveLocation_Relative checks that a relative input is resolved
// against the process working directory.
func TestResolveLocation_Relative(t *testing.T) {
	home, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(home, "proj"), 0755))
	t.Chdir(home)

	loc, err := ResolveLocation(model.EnvProjectDir, "./proj")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "proj"), loc.Path)
	assert.Equal(t, "./proj", loc.Input)
	assert.Equal(t, model.EnvProjectDir, loc.Name)
}

func TestResolveLocation_CleansDotDot(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0755))

	loc, err := ResolveLocation(model.EnvDataDir, filepath.Join(root, "a", "b", "..", ".", "b"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "b"), loc.Path)
}

func TestResolveLocation_Symlink(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	target := filepath.Join(root, "real")
	link := filepath.Join(root, "link")
	require.NoError(t, os.Mkdir(target, 0755))
	require.NoError(t, os.Symlink(target, link))

	loc, err := ResolveLocation(model.EnvDataDir, link)
	require.NoError(t, err)
	assert.Equal(t, target, loc.Path)
}

func TestResolveLocation_Errors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name     string
		input    string
		wantKind model.ErrorKind
	}{
		{"empty", "", model.KindConfigMissing},
		{"whitespace", " \t", model.KindConfigMissing},
		{"nonexistent", filepath.Join(root, "missing"), model.KindInvalidPath},
		{"regular file", file, model.KindInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveLocation(model.EnvProjectDir, tt.input)
			var wfErr *model.WorkflowError
			require.True(t, errors.As(err, &wfErr))
			assert.Equal(t, tt.wantKind, wfErr.Kind)
			assert.Equal(t, model.EnvProjectDir, wfErr.Name)
			if tt.wantKind == model.KindInvalidPath {
				assert.Equal(t, tt.input, wfErr.Value)
			}
		})
	}
}

// TestResolveInputs_Order checks that the project location is validated
// completely before the data location is looked at.
func TestResolveInputs_Order(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	_, _, err := ResolveInputs(Inputs{ProjectDir: missing, DataDir: ""})
	var wfErr *model.WorkflowError
	require.True(t, errors.As(err, &wfErr))
	assert.Equal(t, model.KindInvalidPath, wfErr.Kind)
	assert.Equal(t, model.EnvProjectDir, wfErr.Name)
}
