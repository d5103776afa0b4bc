// Package helper manages the remote-push helper tool (git-remote-clusterone)
// that git uses to talk to the ClusterOne remote.
//
// Upgrading is delegated to the package manager through an executor so the
// step can run locally, in a container, or as a dry run. The installed
// version is exposed through the VersionProvider interface; the workflow
// compares it against a configured minimum with golang.org/x/mod/semver.
package helper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/shinji-kodama/clusterone-push/internal/executor"
)

// DefaultPackage is the pip distribution of the remote-push helper.
const DefaultPackage = "git-remote-clusterone"

var (
	// ErrInvalidVersion indicates a version string is not valid semver.
	ErrInvalidVersion = errors.New("invalid semantic version")

	// ErrNotInstalled indicates the package manager does not know the helper.
	ErrNotInstalled = errors.New("helper is not installed")
)

// VersionProvider reports the installed helper version.
type VersionProvider interface {
	InstalledVersion(ctx context.Context) (string, error)
}

// Upgrader upgrades the helper to its latest published version.
type Upgrader interface {
	Upgrade(ctx context.Context) (executor.Result, error)
}

// Pip manages the helper through pip.
type Pip struct {
	exec    executor.Executor
	upgrade []string
	pkg     string
}

// NewPip creates a Pip helper. upgradeCmd is the full upgrade command line
// (for example "pip install --upgrade git-remote-clusterone"); pkg is the
// distribution name queried with `pip show`.
func NewPip(ex executor.Executor, upgradeCmd []string, pkg string) *Pip {
	if pkg == "" {
		pkg = DefaultPackage
	}
	if len(upgradeCmd) == 0 {
		upgradeCmd = []string{"pip", "install", "--upgrade", pkg}
	}
	return &Pip{exec: ex, upgrade: upgradeCmd, pkg: pkg}
}

// UpgradeCommand returns the command run by Upgrade.
func (p *Pip) UpgradeCommand() executor.Command {
	return executor.FromArgv(p.upgrade)
}

// Upgrade runs the configured upgrade command.
func (p *Pip) Upgrade(ctx context.Context) (executor.Result, error) {
	return p.exec.Run(ctx, p.UpgradeCommand())
}

// InstalledVersion runs `<pip> show <pkg>` and returns its Version field.
// The pip binary is taken from the upgrade command so that a configured
// pip3 or venv pip is queried consistently.
func (p *Pip) InstalledVersion(ctx context.Context) (string, error) {
	pipBin := "pip"
	if len(p.upgrade) > 0 && strings.Contains(p.upgrade[0], "pip") {
		pipBin = p.upgrade[0]
	}

	var out bytes.Buffer
	res, err := p.exec.Run(ctx, executor.Command{
		Name:   pipBin,
		Args:   []string{"show", p.pkg},
		Stdout: &out,
		Stderr: io.Discard,
	})
	if err != nil {
		return "", fmt.Errorf("querying %s version: %w", p.pkg, err)
	}
	if !res.Success() {
		return "", fmt.Errorf("%s: %w", p.pkg, ErrNotInstalled)
	}

	version := parsePipShow(out.String())
	if version == "" {
		return "", fmt.Errorf("%s: no Version field in pip output: %w", p.pkg, ErrNotInstalled)
	}
	return version, nil
}

// parsePipShow extracts the Version field from `pip show` output.
func parsePipShow(output string) string {
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), "version") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// NormalizeVersion converts a version such as "1.2" or "v1.2.3" into the
// canonical "v"-prefixed semver form expected by golang.org/x/mod/semver.
func NormalizeVersion(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("empty version: %w", ErrInvalidVersion)
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%q: %w", strings.TrimPrefix(v, "v"), ErrInvalidVersion)
	}
	return semver.Canonical(v), nil
}

// AtLeast reports whether installed >= minimum.
func AtLeast(installed, minimum string) (bool, error) {
	in, err := NormalizeVersion(installed)
	if err != nil {
		return false, err
	}
	minV, err := NormalizeVersion(minimum)
	if err != nil {
		return false, err
	}
	return semver.Compare(in, minV) >= 0, nil
}
