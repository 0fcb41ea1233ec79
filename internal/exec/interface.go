// Package exec provides an interface for command execution.
package exec

import (
	"context"
	"io"
)

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunInput executes a command with the given string piped to stdin and
	// combined stdout/stderr streamed to out as it is produced.
	// The returned PID is valid once the process has started, 0 otherwise.
	RunInput(ctx context.Context, workDir string, stdin string, out io.Writer, name string, args ...string) (pid int, err error)

	// LookPath reports whether the named binary is available on PATH.
	LookPath(name string) error
}
