// Package docker runs the workflow's external commands inside containers.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows) and a bounded daemon health check
//   - An executor.Executor implementation that starts one container per
//     workflow run and runs each command in it with docker exec, so state
//     written by the self-update is visible to the later steps
//   - Container labels that tie each container to a run ID
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
