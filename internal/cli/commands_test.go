package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/clusterone-push/internal/config"
	"github.com/shinji-kodama/clusterone-push/internal/executor"
	"github.com/shinji-kodama/clusterone-push/internal/git"
	"github.com/shinji-kodama/clusterone-push/internal/model"
)

type fakeVersions struct {
	version string
	err     error
}

func (f fakeVersions) InstalledVersion(context.Context) (string, error) {
	return f.version, f.err
}

func TestInitCommand(t *testing.T) {
	cwd := isolate(t)

	stdout, _, err := executeRoot(t, "init", "--project", "./model", "--data", "./data")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+filepath.Join(cwd, ".clusterone.yaml"))

	data, err := os.ReadFile(filepath.Join(cwd, ".clusterone.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "project_dir: ./model")
	assert.Contains(t, string(data), "command: just create job")

	_, _, err = executeRoot(t, "init")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrFileExists)

	_, _, err = executeRoot(t, "init", "--force")
	assert.NoError(t, err)
}

// TestConfigCommand verifies that the printed configuration reflects the
// file, environment and flag layers.
func TestConfigCommand(t *testing.T) {
	cwd := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(cwd, ".clusterone.yaml"), []byte("remote: from-file\nbranch: from-file\n"), 0o644))
	t.Setenv("CLUSTERONE_BRANCH", "from-env")
	t.Setenv(model.EnvDataDir, "/data/env")

	stdout, _, err := executeRoot(t, "config", "--project-dir", "/proj/flag")
	require.NoError(t, err)

	assert.Contains(t, stdout, "project_dir: /proj/flag\n")
	assert.Contains(t, stdout, "data_dir: /data/env\n")
	assert.Contains(t, stdout, "remote: from-file\n")
	assert.Contains(t, stdout, "branch: from-env\n")
}

func TestConfigCommand_JSON(t *testing.T) {
	isolate(t)
	stdout, _, err := executeRoot(t, "config", "--json", "--step-timeout", "30s")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"remote": "clusterone"`)
	assert.Contains(t, stdout, `"step_timeout": 30000000000`)
}

func TestRunCheck(t *testing.T) {
	isolate(t)
	jsonOutput = false
	quiet := log.New(io.Discard)
	project, _ := setupPushableRepo(t)
	data, _ := setupPushableRepo(t)

	cfg := config.Default()
	cfg.ProjectDir = project
	cfg.DataDir = data

	t.Run("passes", func(t *testing.T) {
		cfg := cfg
		cfg.Update.MinVersion = "0.4"
		report, err := runCheck(context.Background(), &cfg, fakeVersions{version: "0.4.2"}, quiet)
		require.NoError(t, err)
		assert.Equal(t, project, report.Project.Path)
		assert.Equal(t, data, report.Data.Path)
		assert.NotEmpty(t, report.RemoteURLs[model.TargetProject])
		assert.NotEmpty(t, report.RemoteURLs[model.TargetData])
		assert.Equal(t, "master", report.CheckedOut[model.TargetProject])
		assert.Equal(t, "0.4.2", report.HelperVersion)

		var out bytes.Buffer
		require.NoError(t, printCheckReport(&out, report))
		assert.Contains(t, out.String(), "✔ PROJECT_DIR: "+project)
		assert.Contains(t, out.String(), "✔ helper version: 0.4.2")
		assert.NotContains(t, out.String(), "checked out")
	})

	t.Run("other branch checked out", func(t *testing.T) {
		other, _ := setupPushableRepo(t)
		runTestGit(t, other, "checkout", "-b", "feature")

		cfg := cfg
		cfg.ProjectDir = other
		report, err := runCheck(context.Background(), &cfg, fakeVersions{version: "0.4.2"}, quiet)
		require.NoError(t, err)
		assert.Equal(t, "feature", report.CheckedOut[model.TargetProject])

		var out bytes.Buffer
		require.NoError(t, printCheckReport(&out, report))
		assert.Contains(t, out.String(), "! project has feature checked out; master will be pushed\n")
	})

	t.Run("missing branch", func(t *testing.T) {
		cfg := cfg
		cfg.Branch = "main"
		_, err := runCheck(context.Background(), &cfg, fakeVersions{}, quiet)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitGitError, cliErr.Code)
		assert.Equal(t, `the project repository has no branch "main"`, cliErr.Message)
	})

	t.Run("not a working tree", func(t *testing.T) {
		cfg := cfg
		cfg.DataDir = t.TempDir()
		_, err := runCheck(context.Background(), &cfg, fakeVersions{}, quiet)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitGitError, cliErr.Code)
		assert.Equal(t, "the data directory is not a git working tree", cliErr.Message)
	})

	t.Run("unknown version without minimum", func(t *testing.T) {
		cfg := cfg
		report, err := runCheck(context.Background(), &cfg, fakeVersions{err: errors.New("pip not found")}, quiet)
		require.NoError(t, err)
		assert.Empty(t, report.HelperVersion)
	})

	t.Run("outdated helper", func(t *testing.T) {
		cfg := cfg
		cfg.Update.MinVersion = "1.0.0"
		_, err := runCheck(context.Background(), &cfg, fakeVersions{version: "0.9.9"}, quiet)

		var wfErr *model.WorkflowError
		require.True(t, errors.As(err, &wfErr))
		assert.Equal(t, model.KindHelperOutdated, wfErr.Kind)
		assert.Equal(t, 1, wfErr.ProcessExitCode())
	})

	t.Run("missing remote", func(t *testing.T) {
		cfg := cfg
		cfg.Remote = "elsewhere"
		_, err := runCheck(context.Background(), &cfg, fakeVersions{}, quiet)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitGitError, cliErr.Code)
		assert.Contains(t, cliErr.Message, `the project repository has no "elsewhere" remote`)
		assert.ErrorIs(t, err, git.ErrRemoteNotFound)
	})

	t.Run("invalid location", func(t *testing.T) {
		cfg := cfg
		cfg.DataDir = ""
		_, err := runCheck(context.Background(), &cfg, fakeVersions{}, quiet)

		var wfErr *model.WorkflowError
		require.True(t, errors.As(err, &wfErr))
		assert.Equal(t, model.KindConfigMissing, wfErr.Kind)
		assert.Equal(t, model.EnvDataDir, wfErr.Name)
	})
}

func TestStatusReporter(t *testing.T) {
	var out bytes.Buffer
	r := newStatusReporter(&out)

	r.StepStarted(model.StepPushData, executor.Command{Name: "git", Args: []string{"push", "clusterone", "master"}, Dir: "/data"})
	r.StepFinished(model.StepResult{Step: model.StepPushData, Status: model.StepOK, Duration: 1500 * time.Millisecond})
	r.StepFinished(model.StepResult{Step: model.StepUpdate, Status: model.StepSkipped})
	r.StepFinished(model.StepResult{Step: model.StepUpdate, Status: model.StepWarned, ExitCode: 1})
	r.Warn(model.StepUpdate, "continuing")
	r.StepFinished(model.StepResult{Step: model.StepCreateJob, Status: model.StepFailed, ExitCode: 2})

	assert.Equal(t, "==> [3/4] push-data: git push clusterone master\n"+
		"    in /data\n"+
		"✔ push-data (1.5s)\n"+
		"- update skipped\n"+
		"! update exited with code 1\n"+
		"warning: update: continuing\n"+
		"✘ create-job exited with code 2\n", out.String())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond+400*time.Microsecond))
	assert.Equal(t, "2.3s", formatDuration(2340*time.Millisecond))
}
