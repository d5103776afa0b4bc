package model

import (
	"fmt"
	"strings"
	"time"
)

// Environment names for the two required locations. They double as the
// names reported in ConfigMissing and InvalidPath errors.
const (
	EnvProjectDir = "PROJECT_DIR"
	EnvDataDir    = "DATA_DIR"
)

// Target identifies which repository a push step concerns.
type Target string

const (
	// TargetProject is the project repository (PROJECT_DIR).
	TargetProject Target = "project"

	// TargetData is the data repository (DATA_DIR).
	TargetData Target = "data"
)

// String returns the string representation of Target.
func (t Target) String() string {
	return string(t)
}

// StepName identifies one external step of the provisioning workflow.
// Steps always run in the order they are declared here.
type StepName string

const (
	// StepUpdate upgrades the remote-push helper tool.
	StepUpdate StepName = "update"

	// StepPushProject pushes the project repository.
	StepPushProject StepName = "push-project"

	// StepPushData pushes the data repository.
	StepPushData StepName = "push-data"

	// StepCreateJob invokes the platform job-creation command.
	StepCreateJob StepName = "create-job"
)

// String returns the string representation of StepName.
func (s StepName) String() string {
	return string(s)
}

// Steps returns every workflow step in execution order. The status output
// numbers steps by their position in this list.
func Steps() []StepName {
	return []StepName{StepUpdate, StepPushProject, StepPushData, StepCreateJob}
}

// PushStep returns the step that pushes the given target.
func PushStep(t Target) StepName {
	if t == TargetData {
		return StepPushData
	}
	return StepPushProject
}

// StepStatus is the result classification of a single step.
type StepStatus string

const (
	// StepOK means the external command exited with code 0.
	StepOK StepStatus = "ok"

	// StepFailed means the step stopped the workflow.
	StepFailed StepStatus = "failed"

	// StepWarned means the step failed but the configured policy let the
	// workflow continue (only the self-update step can end up here).
	StepWarned StepStatus = "warned"

	// StepSkipped means the step was disabled by configuration.
	StepSkipped StepStatus = "skipped"
)

// String returns the string representation of StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// UpdatePolicy decides what a failed self-update does to the workflow.
type UpdatePolicy string

const (
	// UpdateWarn reports the failure and continues with the pushes.
	UpdateWarn UpdatePolicy = "warn"

	// UpdateFail stops the workflow with UpdateFailed.
	UpdateFail UpdatePolicy = "fail"
)

// String returns the string representation of UpdatePolicy.
func (p UpdatePolicy) String() string {
	return string(p)
}

// IsValid checks whether the UpdatePolicy value is one of the predefined policies.
func (p UpdatePolicy) IsValid() bool {
	return p == UpdateWarn || p == UpdateFail
}

// ParseUpdatePolicy converts a string to an UpdatePolicy.
// Returns an error if the string does not match any valid policy.
func ParseUpdatePolicy(s string) (UpdatePolicy, error) {
	policy := UpdatePolicy(strings.ToLower(strings.TrimSpace(s)))
	if !policy.IsValid() {
		return "", fmt.Errorf("invalid update failure policy: %q (valid: warn, fail)", s)
	}
	return policy, nil
}

// Location is one validated workflow input: the environment name it came
// from, the raw value as given, and the canonical absolute directory path.
type Location struct {
	// Name is the environment name, EnvProjectDir or EnvDataDir.
	Name string `json:"name"`

	// Input is the value as supplied by the caller (possibly relative).
	Input string `json:"input"`

	// Path is the absolute, cleaned, symlink-resolved directory.
	Path string `json:"path"`
}

// StepResult records how one step ended.
type StepResult struct {
	Step     StepName      `json:"step"`
	Status   StepStatus    `json:"status"`
	ExitCode int           `json:"exitCode"`
	Dir      string        `json:"dir,omitempty"`
	Command  string        `json:"command,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Outcome is the report of one workflow run. It exists only for output;
// nothing is persisted between invocations.
//
// Steps holds one entry per step that was reached, in execution order. A
// run stopped by a failure has no entries after the failed step, and a run
// stopped during input validation has none at all. With --json the Outcome
// is the single document written to standard output:
//
//	{
//	  "runId": "01J9Z...",
//	  "project": {"name": "PROJECT_DIR", "input": "./model", "path": "/home/u/model"},
//	  "data": {"name": "DATA_DIR", "input": "../data", "path": "/home/u/data"},
//	  "steps": [{"step": "update", "status": "ok", "exitCode": 0, ...}, ...]
//	}
type Outcome struct {
	RunID   string       `json:"runId"`
	Project Location     `json:"project"`
	Data    Location     `json:"data"`
	Steps   []StepResult `json:"steps"`
}

// Succeeded reports whether no recorded step failed.
func (o *Outcome) Succeeded() bool {
	for _, s := range o.Steps {
		if s.Status == StepFailed {
			return false
		}
	}
	return true
}

// Step returns the recorded result for name, if the step ran.
func (o *Outcome) Step(name StepName) (StepResult, bool) {
	for _, s := range o.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// ExitCode defines the process exit codes used by the CLI.
// Push, job and update failures bypass this table and exit with the
// external tool's own code.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError covers configuration failures and anything
	// without a more specific code.
	ExitGeneralError ExitCode = 1

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// while the docker executor is selected.
	ExitDockerNotRunning ExitCode = 3

	// ExitGitError indicates a git query (not a push) failed.
	ExitGitError ExitCode = 5

	// ExitToolNotFound is used when an external tool could not be started
	// at all, matching the shell convention for "command not found".
	ExitToolNotFound ExitCode = 127
)

// CLIError is an error that carries a process exit code. It covers
// everything outside the workflow proper: configuration loading, git
// queries made by the check command and Docker connectivity. The CLI
// layer prints Message (and Err, if set) to standard error and exits
// with Code.
//
// Workflow failures use WorkflowError instead, because they must print a
// fixed diagnostic to standard output and exit with the failing tool's
// own code.
//
// Usage:
//
//	if err := client.Ping(ctx); err != nil {
//		return model.WrapCLIError(model.ExitDockerNotRunning, "Docker is not running", err)
//	}
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
