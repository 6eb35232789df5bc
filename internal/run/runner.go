// Package run executes external processes (cloud CLI, infra tool) behind a
// narrow interface so pipeline and cleanup logic can be tested against a
// scripted implementation without invoking real tooling.
package run

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Result captures the outcome of one external command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner runs a named external command with arguments.
//
// Run returns a non-nil error when the command could not be started or
// exited non-zero; the Result is populated in either case so callers can
// inspect captured output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	LookPath(name string) (string, error)
}

// ExecRunner is the production CommandRunner backed by os/exec.
type ExecRunner struct {
	// Dir, when set, is the working directory for every command.
	Dir string

	// Env entries are appended to the ambient environment.
	Env []string
}

// Run executes the command, blocking until it exits.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, errors.Wrapf(err, "%s exited with code %d: %s",
			name, result.ExitCode, firstLine(result.Stderr))
	}

	result.ExitCode = -1
	return result, errors.Wrapf(err, "failed to start %s", name)
}

// LookPath reports where name resolves on PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(err, "%s not found on PATH", name)
	}
	return path, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
