// Package git provides the git operations used by the provisioning workflow.
//
// Pushes go through an executor.Executor so that they honor the selected
// execution backend (local process, Docker container, or dry run) and so
// that their exit code can be forwarded unchanged. Read-only queries used by
// the check command (repository root, remotes, branches) shell out to the
// local git binary directly with -C.
//
// Design decisions:
//   - We shell out to `git` rather than using a Go Git library because
//     pushes must go through the user's configured remote helpers
//     (git-remote-clusterone) and credential helpers, which only the git
//     CLI honors.
//   - Query errors are wrapped in model.CLIError with ExitGitError.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shinji-kodama/clusterone-push/internal/executor"
	"github.com/shinji-kodama/clusterone-push/internal/model"
)

// Remote is one entry of `git remote -v`, merged across fetch and push.
type Remote struct {
	Name     string
	FetchURL string
	PushURL  string
}

// Manager provides git operations for one execution backend.
type Manager struct {
	exec executor.Executor
}

// NewManager creates a Manager that pushes through ex.
func NewManager(ex executor.Executor) *Manager {
	return &Manager{exec: ex}
}

// PushCommand returns the command that pushes branch to remote from repoPath.
// The repository is selected through the working directory rather than -C
// so that every backend sees the same invocation.
func PushCommand(repoPath, remote, branch string) executor.Command {
	return executor.Command{
		Name: "git",
		Args: []string{"push", remote, branch},
		Dir:  repoPath,
	}
}

// Push runs `git push <remote> <branch>` inside repoPath.
//
// A rejected or failed push is reported through Result.ExitCode; the error
// is only non-nil when git could not be run at all.
func (m *Manager) Push(ctx context.Context, repoPath, remote, branch string) (executor.Result, error) {
	return m.exec.Run(ctx, PushCommand(repoPath, remote, branch))
}

// ErrRemoteNotFound is wrapped by FindRemote when the repository has no
// remote with the requested name.
var ErrRemoteNotFound = errors.New("remote not found")

// FindRemote returns the remote called name in repoPath.
//
// The error wraps ErrRemoteNotFound and lists the remotes that do exist, so
// a misspelled or missing clusterone remote is easy to spot.
func (m *Manager) FindRemote(ctx context.Context, repoPath, name string) (Remote, error) {
	remotes, err := m.ListRemotes(ctx, repoPath)
	if err != nil {
		return Remote{}, err
	}

	known := make([]string, 0, len(remotes))
	for _, r := range remotes {
		if r.Name == name {
			return r, nil
		}
		known = append(known, r.Name)
	}
	if len(known) == 0 {
		return Remote{}, fmt.Errorf("%w: %q (no remotes configured)", ErrRemoteNotFound, name)
	}
	return Remote{}, fmt.Errorf("%w: %q (configured: %s)", ErrRemoteNotFound, name, strings.Join(known, ", "))
}

// ListRemotes returns every remote configured in repoPath.
func (m *Manager) ListRemotes(ctx context.Context, repoPath string) ([]Remote, error) {
	output, err := runGit(ctx, repoPath, "remote", "-v")
	if err != nil {
		return nil, err
	}
	return parseRemoteVerbose(output), nil
}

// GetRepoRoot returns the absolute path to the top-level directory of the
// working tree containing path.
func (m *Manager) GetRepoRoot(ctx context.Context, path string) (string, error) {
	output, err := runGit(ctx, path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// GetCurrentBranch returns the short name of the checked-out branch, or
// "HEAD" when detached.
func (m *Manager) GetCurrentBranch(ctx context.Context, path string) (string, error) {
	output, err := runGit(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// BranchExists checks whether a local branch with the given name exists.
func (m *Manager) BranchExists(ctx context.Context, repoPath, branch string) bool {
	_, err := runGit(ctx, repoPath, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// runGit executes a git query in repoPath and returns its stdout.
//
// On failure it returns a model.CLIError with ExitGitError whose message
// includes git's stderr.
func runGit(ctx context.Context, repoPath string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)

	// #nosec G204 -- args are constructed internally
	cmd := exec.CommandContext(ctx, "git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}

// parseRemoteVerbose parses `git remote -v` output:
//
//	origin	git@example.com:u/p.git (fetch)
//	origin	git@example.com:u/p.git (push)
//
// Remotes are returned in first-seen order.
func parseRemoteVerbose(output string) []Remote {
	var remotes []Remote
	index := map[string]int{}

	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, url := fields[0], fields[1]

		i, ok := index[name]
		if !ok {
			remotes = append(remotes, Remote{Name: name})
			i = len(remotes) - 1
			index[name] = i
		}

		kind := ""
		if len(fields) >= 3 {
			kind = strings.Trim(fields[2], "()")
		}
		switch kind {
		case "push":
			remotes[i].PushURL = url
		case "fetch":
			remotes[i].FetchURL = url
		default:
			// Older gits print a single line without a marker.
			remotes[i].FetchURL = url
			remotes[i].PushURL = url
		}
	}

	return remotes
}
