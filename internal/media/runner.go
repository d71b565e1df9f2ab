package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// CommandResult is what a finished external process left behind.
type CommandResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports whether the process exited with status zero.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandRunner runs an external program to completion.
// Implementations return an error only when the program could not be started
// or the context ended; a non-zero exit is reported through ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner implements CommandRunner with os/exec.
type ExecRunner struct{}

// Run starts name with args, waits for it and captures stdout and stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	// #nosec G204 - binary paths come from configuration, not request input
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		return res, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return res, fmt.Errorf("start %s: %w", name, err)
}
