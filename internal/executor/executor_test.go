package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_String(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"plain", Command{Name: "git", Args: []string{"push", "clusterone", "master"}}, "git push clusterone master"},
		{"quoted", Command{Name: "just", Args: []string{"create", "job", "--name", "my job"}}, `just create job --name "my job"`},
		{"empty arg", Command{Name: "echo", Args: []string{""}}, `echo ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestFromArgv(t *testing.T) {
	cmd := FromArgv([]string{"just", "create", "job"}, "--project", "p")
	assert.Equal(t, "just", cmd.Name)
	assert.Equal(t, []string{"create", "job", "--project", "p"}, cmd.Args)

	assert.Equal(t, Command{}, FromArgv(nil))
}

// TestLocal_ExitCode verifies that a non-zero exit is reported through
// Result.ExitCode without an error.
func TestLocal_ExitCode(t *testing.T) {
	l := NewLocal(&bytes.Buffer{}, &bytes.Buffer{})

	res, err := l.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Success())

	res, err = l.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 0"}})
	require.NoError(t, err)
	assert.True(t, res.Success())
}

// TestLocal_WorkingDirectory verifies that the child runs in Command.Dir
// while the process working directory stays untouched.
func TestLocal_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	before, err := os.Getwd()
	require.NoError(t, err)

	var out bytes.Buffer
	l := NewLocal(&out, &bytes.Buffer{})
	res, err := l.Run(context.Background(), Command{Name: "pwd", Args: []string{"-P"}, Dir: dir})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, resolved, strings.TrimSpace(out.String()))

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLocal_CommandOverridesWriters(t *testing.T) {
	var def, captured bytes.Buffer
	l := NewLocal(&def, &def)

	_, err := l.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "echo $GREETING"},
		Env:    []string{"GREETING=hello"},
		Stdout: &captured,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", captured.String())
	assert.Empty(t, def.String())
}

func TestLocal_NotFound(t *testing.T) {
	l := NewLocal(&bytes.Buffer{}, &bytes.Buffer{})
	_, err := l.Run(context.Background(), Command{Name: "clusterone-push-no-such-binary"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}

func TestLocal_EmptyCommand(t *testing.T) {
	_, err := NewLocal(nil, nil).Run(context.Background(), Command{})
	assert.Error(t, err)
}

func TestLocal_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLocal(&bytes.Buffer{}, &bytes.Buffer{})
	_, err := l.Run(ctx, Command{Name: "sleep", Args: []string{"5"}})
	assert.Error(t, err)
}

func TestDryRun(t *testing.T) {
	var out bytes.Buffer
	d := NewDryRun(&out)

	res, err := d.Run(context.Background(), Command{Name: "git", Args: []string{"push", "clusterone", "master"}, Dir: "/repo"})
	require.NoError(t, err)
	assert.True(t, res.Success())

	_, err = d.Run(context.Background(), Command{Name: "just", Args: []string{"create", "job"}})
	require.NoError(t, err)

	assert.Equal(t,
		"[dry-run] (/repo) git push clusterone master\n[dry-run] (.) just create job\n",
		out.String())
	require.Len(t, d.Planned(), 2)
	assert.Equal(t, "/repo", d.Planned()[0].Dir)
}
