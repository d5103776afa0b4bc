// Package config resolves the clusterone-push configuration.
//
// Sources, lowest to highest precedence:
//  1. built-in defaults
//  2. a config file (.clusterone.yaml, .clusterone.yml, .clusterone.json or
//     .clusterone.jsonc in the working directory, or --config)
//  3. environment variables: PROJECT_DIR and DATA_DIR, plus CLUSTERONE_*
//     for every other key (update.on_failure -> CLUSTERONE_UPDATE_ON_FAILURE)
//  4. command-line flags that were explicitly set
//
// A .env file is loaded into the process environment first, without
// overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shinji-kodama/clusterone-push/internal/helper"
	"github.com/shinji-kodama/clusterone-push/internal/model"
)

// Executor backends.
const (
	ExecutorLocal  = "local"
	ExecutorDocker = "docker"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the resolved configuration of one invocation.
type Config struct {
	ProjectDir string `mapstructure:"project_dir" yaml:"project_dir,omitempty" json:"project_dir,omitempty"`
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir,omitempty" json:"data_dir,omitempty"`

	Remote string `mapstructure:"remote" yaml:"remote" json:"remote"`
	Branch string `mapstructure:"branch" yaml:"branch" json:"branch"`

	Update UpdateConfig `mapstructure:"update" yaml:"update" json:"update"`
	Job    JobConfig    `mapstructure:"job" yaml:"job" json:"job"`

	Executor string       `mapstructure:"executor" yaml:"executor" json:"executor"`
	Docker   DockerConfig `mapstructure:"docker" yaml:"docker,omitempty" json:"docker,omitempty"`

	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout,omitempty" json:"step_timeout,omitempty"`
	DryRun      bool          `mapstructure:"dry_run" yaml:"dry_run,omitempty" json:"dry_run,omitempty"`
}

// UpdateConfig controls the helper self-update step.
type UpdateConfig struct {
	// Command is the upgrade command line, split on whitespace.
	Command    string `mapstructure:"command" yaml:"command" json:"command"`
	Package    string `mapstructure:"package" yaml:"package" json:"package"`
	Skip       bool   `mapstructure:"skip" yaml:"skip,omitempty" json:"skip,omitempty"`
	OnFailure  string `mapstructure:"on_failure" yaml:"on_failure" json:"on_failure"`
	MinVersion string `mapstructure:"min_version" yaml:"min_version,omitempty" json:"min_version,omitempty"`
}

// JobConfig controls the job-creation step.
type JobConfig struct {
	// Command is the job-creation command line, split on whitespace.
	Command string   `mapstructure:"command" yaml:"command" json:"command"`
	Args    []string `mapstructure:"args" yaml:"args,omitempty" json:"args,omitempty"`
}

// DockerConfig configures the docker executor.
type DockerConfig struct {
	Image string   `mapstructure:"image" yaml:"image,omitempty" json:"image,omitempty"`
	Binds []string `mapstructure:"binds" yaml:"binds,omitempty" json:"binds,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Remote: "clusterone",
		Branch: "master",
		Update: UpdateConfig{
			Command:   "pip install --upgrade " + helper.DefaultPackage,
			Package:   helper.DefaultPackage,
			OnFailure: model.UpdateWarn.String(),
		},
		Job: JobConfig{
			Command: "just create job",
		},
		Executor: ExecutorLocal,
	}
}

// UpdateArgv returns the self-update command split into argv.
func (c *Config) UpdateArgv() []string {
	return strings.Fields(c.Update.Command)
}

// JobArgv returns the job-creation command split into argv.
func (c *Config) JobArgv() []string {
	return strings.Fields(c.Job.Command)
}

// UpdatePolicy returns the parsed update failure policy.
func (c *Config) UpdatePolicy() (model.UpdatePolicy, error) {
	return model.ParseUpdatePolicy(c.Update.OnFailure)
}

// Validate checks the settings that can be checked without touching the
// filesystem. PROJECT_DIR and DATA_DIR are deliberately not checked here:
// the workflow validates them in a fixed order and reports them with their
// own error kinds.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Remote) == "" {
		errs = append(errs, errors.New("remote must not be empty"))
	}
	if strings.TrimSpace(c.Branch) == "" {
		errs = append(errs, errors.New("branch must not be empty"))
	}
	if _, err := c.UpdatePolicy(); err != nil {
		errs = append(errs, fmt.Errorf("update.on_failure: %w", err))
	}
	if !c.Update.Skip && len(c.UpdateArgv()) == 0 {
		errs = append(errs, errors.New("update.command must not be empty unless update.skip is set"))
	}
	if c.Update.MinVersion != "" {
		if _, err := helper.NormalizeVersion(c.Update.MinVersion); err != nil {
			errs = append(errs, fmt.Errorf("update.min_version: %w", err))
		}
	}
	if len(c.JobArgv()) == 0 {
		errs = append(errs, errors.New("job.command must not be empty"))
	}
	switch c.Executor {
	case ExecutorLocal:
	case ExecutorDocker:
		if c.Docker.Image == "" {
			errs = append(errs, errors.New("docker.image is required with the docker executor"))
		}
	default:
		errs = append(errs, fmt.Errorf("executor: %q (valid: %s, %s)", c.Executor, ExecutorLocal, ExecutorDocker))
	}
	if c.StepTimeout < 0 {
		errs = append(errs, errors.New("step_timeout must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
