package helper

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/clusterone-push/internal/executor"
)

// scriptedExecutor writes canned output and exit codes keyed by program name.
type scriptedExecutor struct {
	output   map[string]string
	exitCode map[string]int
	err      error
	calls    []executor.Command
}

func (s *scriptedExecutor) Run(_ context.Context, cmd executor.Command) (executor.Result, error) {
	s.calls = append(s.calls, cmd)
	if s.err != nil {
		return executor.Result{}, s.err
	}
	if out, ok := s.output[cmd.Name]; ok && cmd.Stdout != nil {
		_, _ = io.WriteString(cmd.Stdout, out)
	}
	return executor.Result{ExitCode: s.exitCode[cmd.Name]}, nil
}

const pipShowOutput = `Name: git-remote-clusterone
Version: 0.4.2
Summary: git remote helper for ClusterOne
Location: /usr/lib/python3/site-packages
`

func TestNewPipDefaults(t *testing.T) {
	p := NewPip(&scriptedExecutor{}, nil, "")
	cmd := p.UpgradeCommand()
	assert.Equal(t, "pip", cmd.Name)
	assert.Equal(t, []string{"install", "--upgrade", DefaultPackage}, cmd.Args)
}

func TestPipUpgrade(t *testing.T) {
	exec := &scriptedExecutor{exitCode: map[string]int{"pip3": 2}}
	p := NewPip(exec, []string{"pip3", "install", "--user", "--upgrade", "git-remote-clusterone"}, "")

	res, err := p.Upgrade(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, []string{"install", "--user", "--upgrade", "git-remote-clusterone"}, exec.calls[0].Args)
}

func TestPipInstalledVersion(t *testing.T) {
	exec := &scriptedExecutor{output: map[string]string{"pip3": pipShowOutput}}
	p := NewPip(exec, []string{"pip3", "install", "--upgrade", "git-remote-clusterone"}, "git-remote-clusterone")

	v, err := p.InstalledVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.4.2", v)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, "pip3", exec.calls[0].Name, "the pip binary should follow the upgrade command")
	assert.Equal(t, []string{"show", "git-remote-clusterone"}, exec.calls[0].Args)
}

// TestPipInstalledVersionNonPipUpgrader checks that a non-pip upgrade
// command falls back to plain pip for the version query.
func TestPipInstalledVersionNonPipUpgrader(t *testing.T) {
	exec := &scriptedExecutor{output: map[string]string{"pip": pipShowOutput}}
	p := NewPip(exec, []string{"uv", "tool", "upgrade", "git-remote-clusterone"}, "")

	v, err := p.InstalledVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.4.2", v)
	assert.Equal(t, "pip", exec.calls[0].Name)
}

func TestPipInstalledVersionNotInstalled(t *testing.T) {
	exec := &scriptedExecutor{exitCode: map[string]int{"pip": 1}}
	p := NewPip(exec, nil, "")

	_, err := p.InstalledVersion(context.Background())
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestPipInstalledVersionMissingField(t *testing.T) {
	exec := &scriptedExecutor{output: map[string]string{"pip": "Name: git-remote-clusterone\n"}}
	p := NewPip(exec, nil, "")

	_, err := p.InstalledVersion(context.Background())
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestPipInstalledVersionExecError(t *testing.T) {
	boom := errors.New("exec: \"pip\": executable file not found in $PATH")
	p := NewPip(&scriptedExecutor{err: boom}, nil, "")

	_, err := p.InstalledVersion(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestParsePipShow(t *testing.T) {
	assert.Equal(t, "0.4.2", parsePipShow(pipShowOutput))
	assert.Equal(t, "1.0", parsePipShow("version: 1.0\n"))
	assert.Empty(t, parsePipShow("Name: x\n"))
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1.2.3", "v1.2.3", false},
		{"v1.2.3", "v1.2.3", false},
		{"1.2", "v1.2.0", false},
		{" 2 ", "v2.0.0", false},
		{"1.0.0-rc.1", "v1.0.0-rc.1", false},
		{"", "", true},
		{"latest", "", true},
		{"1.0.0rc1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeVersion(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		installed, minimum string
		want               bool
	}{
		{"0.4.2", "0.4.0", true},
		{"0.4.2", "0.4.2", true},
		{"0.4.2", "0.5", false},
		{"1.0.0", "1.0.0-rc.1", true},
		{"0.10.0", "0.9.9", true},
	}

	for _, tt := range tests {
		t.Run(tt.installed+">="+tt.minimum, func(t *testing.T) {
			got, err := AtLeast(tt.installed, tt.minimum)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := AtLeast("garbage", "1.0.0")
	assert.ErrorIs(t, err, ErrInvalidVersion)
}
