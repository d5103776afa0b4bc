package model

import (
	"fmt"
)

// ErrorKind classifies a WorkflowError.
type ErrorKind string

const (
	// KindConfigMissing: a required location was empty or unset.
	KindConfigMissing ErrorKind = "config-missing"

	// KindInvalidPath: a location was set but is not an existing directory.
	KindInvalidPath ErrorKind = "invalid-path"

	// KindPushFailed: git push exited non-zero.
	KindPushFailed ErrorKind = "push-failed"

	// KindJobCreationFailed: the job-creation command exited non-zero.
	KindJobCreationFailed ErrorKind = "job-creation-failed"

	// KindUpdateFailed: the helper self-update exited non-zero and the
	// update policy is UpdateFail.
	KindUpdateFailed ErrorKind = "update-failed"

	// KindHelperOutdated: the installed helper is older than the
	// configured minimum version.
	KindHelperOutdated ErrorKind = "helper-outdated"
)

// WorkflowError is the error returned by the provisioning workflow.
// Every kind is fatal; the workflow stops at the first one.
//
// The CLI prints Diagnostic to standard output and exits with
// ProcessExitCode, so a failed "git push" of the data repository prints
// "Couldn't push the data" and exits with git's own code:
//
//	err := model.PushFailed(model.TargetData, 128, nil)
//	fmt.Println(err.Diagnostic())      // Couldn't push the data
//	os.Exit(err.ProcessExitCode())     // 128
//
// Only the fields relevant to the Kind are populated:
//
//	ConfigMissing      Name
//	InvalidPath        Name, Value
//	PushFailed         Target, ExitCode
//	JobCreationFailed  ExitCode
//	UpdateFailed       ExitCode
//	HelperOutdated     Value (installed), Minimum
type WorkflowError struct {
	Kind     ErrorKind
	Name     string
	Value    string
	Minimum  string
	Target   Target
	ExitCode int
	Err      error
}

// ConfigMissing reports that the named location was not provided.
func ConfigMissing(name string) *WorkflowError {
	return &WorkflowError{Kind: KindConfigMissing, Name: name}
}

// InvalidPath reports that the named location does not resolve to an
// existing directory.
func InvalidPath(name, value string, err error) *WorkflowError {
	return &WorkflowError{Kind: KindInvalidPath, Name: name, Value: value, Err: err}
}

// PushFailed reports a non-zero git push for the given target.
func PushFailed(target Target, exitCode int, err error) *WorkflowError {
	return &WorkflowError{Kind: KindPushFailed, Target: target, ExitCode: exitCode, Err: err}
}

// JobCreationFailed reports a non-zero job-creation command.
func JobCreationFailed(exitCode int, err error) *WorkflowError {
	return &WorkflowError{Kind: KindJobCreationFailed, ExitCode: exitCode, Err: err}
}

// UpdateFailed reports a non-zero helper self-update.
func UpdateFailed(exitCode int, err error) *WorkflowError {
	return &WorkflowError{Kind: KindUpdateFailed, ExitCode: exitCode, Err: err}
}

// HelperOutdated reports that the installed helper version is below minimum.
func HelperOutdated(installed, minimum string, err error) *WorkflowError {
	return &WorkflowError{Kind: KindHelperOutdated, Value: installed, Minimum: minimum, Err: err}
}

// Error satisfies the error interface.
func (e *WorkflowError) Error() string {
	var msg string
	switch e.Kind {
	case KindConfigMissing:
		msg = fmt.Sprintf("%s is not set", e.Name)
	case KindInvalidPath:
		msg = fmt.Sprintf("%s=%q is not an existing directory", e.Name, e.Value)
	case KindPushFailed:
		msg = fmt.Sprintf("push of the %s repository failed with exit code %d", e.Target, e.ExitCode)
	case KindJobCreationFailed:
		msg = fmt.Sprintf("job creation failed with exit code %d", e.ExitCode)
	case KindUpdateFailed:
		msg = fmt.Sprintf("helper self-update failed with exit code %d", e.ExitCode)
	case KindHelperOutdated:
		if e.Value == "" {
			msg = fmt.Sprintf("helper version could not be determined (minimum %s)", e.Minimum)
		} else {
			msg = fmt.Sprintf("helper version %s is older than the required minimum %s", e.Value, e.Minimum)
		}
	default:
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the one-line message printed to standard output
// when this error ends the workflow.
func (e *WorkflowError) Diagnostic() string {
	switch e.Kind {
	case KindPushFailed:
		return fmt.Sprintf("Couldn't push the %s", e.Target)
	case KindJobCreationFailed:
		return "Couldn't create a job"
	case KindUpdateFailed:
		return "Couldn't update the remote-push helper"
	case KindConfigMissing:
		return fmt.Sprintf("%s must be set to an existing directory", e.Name)
	case KindInvalidPath:
		return fmt.Sprintf("%s must be an existing directory: %s", e.Name, e.Value)
	case KindHelperOutdated:
		return "The remote-push helper is older than the required minimum version"
	default:
		return e.Error()
	}
}

// ProcessExitCode returns the code the process should exit with.
// Tool failures carry the tool's own code forward; configuration
// failures use ExitGeneralError.
func (e *WorkflowError) ProcessExitCode() int {
	switch e.Kind {
	case KindPushFailed, KindJobCreationFailed, KindUpdateFailed:
		if e.ExitCode != 0 {
			return e.ExitCode
		}
	}
	return int(ExitGeneralError)
}
