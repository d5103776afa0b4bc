package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/shinji-kodama/clusterone-push/internal/executor"
)

// execPollInterval is how often a finished exec stream is re-inspected while
// the daemon still reports the process as running.
const execPollInterval = 50 * time.Millisecond

// defaultKeepAlive keeps the run container alive between commands.
var defaultKeepAlive = []string{"sleep", "infinity"}

// containerAPI is the subset of the Docker SDK used by Executor.
// *client.Client satisfies it; tests substitute a fake.
type containerAPI interface {
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// ExecutorConfig configures the container executor.
//
// Every directory a command may run in must be listed in Mounts or be
// DefaultDir. Both are bind-mounted at their host path, so a Command.Dir
// means the same directory inside and outside the container.
type ExecutorConfig struct {
	// Image runs every command. Required.
	Image string

	// Mounts are host directories bound at the same path inside the
	// container. The CLI passes the resolved project and data directories.
	Mounts []string

	// Binds are extra host:container[:mode] mounts, for example the user's
	// ~/.ssh or ~/.gitconfig so that git push can authenticate.
	Binds []string

	// DefaultDir is where commands without a Dir run. It is always
	// mounted. Empty means the process working directory.
	DefaultDir string

	// KeepAlive is the container's main process. It must run until the
	// container is removed. Defaults to "sleep infinity".
	KeepAlive []string

	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger
}

// Executor runs every command of a workflow run inside one container.
//
// The container is created from cfg.Image on the first Run and each command
// is started in it with docker exec. Filesystem changes persist from one
// command to the next, so a package installed by the self-update step is
// the one the later git push steps use.
//
// Usage:
//
//	ex, err := docker.NewExecutor(client, docker.ExecutorConfig{
//		Image:  "python:3.12",
//		Mounts: []string{projectDir, dataDir},
//	})
//	if err != nil {
//		return err
//	}
//	defer ex.Close()
//
//	res, err := ex.Run(ctx, executor.Command{Name: "git", Args: args, Dir: projectDir})
//
// Close must be called to remove the container.
type Executor struct {
	api containerAPI
	cfg ExecutorConfig

	mu          sync.Mutex
	containerID string
}

// NewExecutor creates a container executor on top of c.
func NewExecutor(c *Client, cfg ExecutorConfig) (*Executor, error) {
	return newExecutor(c.inner, cfg)
}

func newExecutor(api containerAPI, cfg ExecutorConfig) (*Executor, error) {
	if cfg.Image == "" {
		return nil, errors.New("docker executor: no image configured")
	}
	if cfg.DefaultDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("docker executor: %w", err)
		}
		cfg.DefaultDir = wd
	}
	for _, dir := range cfg.Mounts {
		if !filepath.IsAbs(dir) {
			return nil, fmt.Errorf("docker executor: mount %q is not an absolute path", dir)
		}
	}
	if len(cfg.KeepAlive) == 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return &Executor{api: api, cfg: cfg}, nil
}

// Run satisfies executor.Executor. The command runs in the shared container,
// which is started on first use.
func (e *Executor) Run(ctx context.Context, cmd executor.Command) (executor.Result, error) {
	if cmd.Name == "" {
		return executor.Result{}, errors.New("empty command")
	}
	start := time.Now()

	dir := cmd.Dir
	if dir == "" {
		dir = e.cfg.DefaultDir
	}
	if !e.mounted(dir) {
		return executor.Result{}, fmt.Errorf("%s: directory %s is not mounted in the container", cmd.Name, dir)
	}

	id, err := e.ensureContainer(ctx)
	if err != nil {
		return executor.Result{}, err
	}

	e.cfg.Logger.Debug("exec", "container", shortID(id), "cmd", cmd.String(), "dir", dir,
		"step", executor.LabelsFrom(ctx)[LabelStep])

	created, err := e.api.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          append([]string{cmd.Name}, cmd.Args...),
		WorkingDir:   dir,
		Env:          cmd.Env,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return executor.Result{}, fmt.Errorf("creating exec for %s: %w", cmd.Name, err)
	}

	if err := e.stream(ctx, created.ID, cmd); err != nil {
		return executor.Result{}, err
	}

	code, err := e.exitCode(ctx, created.ID)
	res := executor.Result{ExitCode: code, Duration: time.Since(start)}
	if err != nil {
		return res, fmt.Errorf("waiting for %s: %w", cmd.Name, err)
	}
	return res, nil
}

// Close removes the run container, if one was started.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.containerID == "" {
		return nil
	}
	id := e.containerID
	e.containerID = ""

	// The run context may already be cancelled; removal must still happen.
	if err := e.api.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("removing container %s: %w", shortID(id), err)
	}
	e.cfg.Logger.Debug("removed container", "container", shortID(id))
	return nil
}

// mounted reports whether dir lies inside DefaultDir or one of Mounts.
func (e *Executor) mounted(dir string) bool {
	for _, m := range e.mounts() {
		rel, err := filepath.Rel(m, dir)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// mounts returns DefaultDir followed by Mounts, without duplicates.
func (e *Executor) mounts() []string {
	out := []string{e.cfg.DefaultDir}
	for _, m := range e.cfg.Mounts {
		m = filepath.Clean(m)
		if m != out[0] && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

// ensureContainer creates and starts the run container once.
func (e *Executor) ensureContainer(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.containerID != "" {
		return e.containerID, nil
	}
	if err := e.ensureImage(ctx); err != nil {
		return "", err
	}

	config, hostConfig := e.containerConfig(ctx)
	e.cfg.Logger.Debug("creating container", "image", config.Image,
		"labels", FormatLabels(config.Labels))

	created, err := e.api.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("creating container from %s: %w", e.cfg.Image, err)
	}
	if err := e.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		if rmErr := e.api.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			e.cfg.Logger.Warn("failed to remove container", "container", shortID(created.ID), "err", rmErr)
		}
		return "", fmt.Errorf("starting container from %s: %w", e.cfg.Image, err)
	}
	e.containerID = created.ID
	return created.ID, nil
}

// containerConfig builds the run container's configuration. Labels come
// from the run context; the step label is left to each exec.
func (e *Executor) containerConfig(ctx context.Context) (*container.Config, *container.HostConfig) {
	mounts := e.mounts()
	binds := make([]string, 0, len(mounts)+len(e.cfg.Binds))
	for _, m := range mounts {
		binds = append(binds, m+":"+m)
	}
	binds = append(binds, e.cfg.Binds...)

	meta := executor.LabelsFrom(ctx)
	delete(meta, LabelStep)

	config := &container.Config{
		Image:      e.cfg.Image,
		Entrypoint: e.cfg.KeepAlive[:1],
		Cmd:        e.cfg.KeepAlive[1:],
		WorkingDir: e.cfg.DefaultDir,
		Labels:     BuildLabels(meta, e.cfg.DefaultDir),
	}
	hostConfig := &container.HostConfig{Binds: binds}
	return config, hostConfig
}

// ensureImage pulls the image if it is not present.
func (e *Executor) ensureImage(ctx context.Context) error {
	if _, err := e.api.ImageInspect(ctx, e.cfg.Image); err == nil {
		return nil
	}

	e.cfg.Logger.Info("pulling image", "image", e.cfg.Image)
	rc, err := e.api.ImagePull(ctx, e.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling image %s: %w", e.cfg.Image, err)
	}
	defer rc.Close()

	// The pull only completes once its progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pulling image %s: %w", e.cfg.Image, err)
	}
	return nil
}

// stream attaches to an exec and copies its multiplexed output until the
// process closes it or ctx is cancelled.
func (e *Executor) stream(ctx context.Context, execID string, cmd executor.Command) error {
	stdout, stderr := e.cfg.Stdout, e.cfg.Stderr
	if cmd.Stdout != nil {
		stdout = cmd.Stdout
	}
	if cmd.Stderr != nil {
		stderr = cmd.Stderr
	}

	resp, err := e.api.ContainerExecAttach(ctx, execID, container.ExecAttachOptions{})
	if err != nil {
		return fmt.Errorf("attaching to %s: %w", cmd.Name, err)
	}
	defer resp.Close()
	stop := context.AfterFunc(ctx, resp.Close)
	defer stop()

	if _, err := stdcopy.StdCopy(stdout, stderr, resp.Reader); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading output of %s: %w", cmd.Name, err)
	}
	return ctx.Err()
}

// exitCode waits for the exec to stop running and returns its exit code.
func (e *Executor) exitCode(ctx context.Context, execID string) (int, error) {
	ticker := time.NewTicker(execPollInterval)
	defer ticker.Stop()

	for {
		inspect, err := e.api.ContainerExecInspect(ctx, execID)
		if err != nil {
			return 0, err
		}
		if !inspect.Running {
			return inspect.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
