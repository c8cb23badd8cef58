//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner executes external commands. Every call names its working directory
// explicitly; implementations must never change the process working directory.
type Runner interface {
	// Run executes name with args inside dir and returns the combined output.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec under a per-command timeout.
// Messages are forced to the C locale so callers can parse them.
type ExecRunner struct {
	// timeout bounds each command. Zero disables the bound.
	timeout time.Duration
}

// CommandError describes a command that started but did not succeed.
type CommandError struct {
	// Command is the command line that was run.
	Command string
	// ExitCode is the process exit code, or -1 when it was killed or never started.
	ExitCode int
	// Output is the combined stdout and stderr.
	Output string
	// Err is the error reported by os/exec.
	Err error
}

// waitDelay bounds how long output pipes stay open after a killed command.
const waitDelay = time.Second

var errEmptyDirectory = errors.New("working directory must be set")

// NewExecRunner creates a runner bounding each command by timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		timeout: timeout,
	}
}

// Run executes the command and returns its combined output.
// A non-zero exit yields a *CommandError carrying the output.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if dir == "" {
		return nil, errEmptyDirectory
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // Commands come from the updater itself.
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "LC_MESSAGES=C")
	cmd.WaitDelay = waitDelay

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		exitCode := -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", err, ctxErr)
		}

		return output.Bytes(), &CommandError{
			Command:  strings.Join(append([]string{name}, args...), " "),
			ExitCode: exitCode,
			Output:   output.String(),
			Err:      err,
		}
	}

	return output.Bytes(), nil
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	output := strings.TrimSpace(e.Output)
	if output == "" {
		return fmt.Sprintf("%s: exit code %d: %v", e.Command, e.ExitCode, e.Err)
	}

	return fmt.Sprintf("%s: exit code %d: %v: %s", e.Command, e.ExitCode, e.Err, output)
}

// Unwrap returns the os/exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
