// Package command runs local executables with captured output.
//
// Arguments are always passed as a vector, never through a shell. A
// non-zero exit is not an error at this level: callers decide what an exit
// code means for their stage and receive both streams verbatim.
package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
)

// Invocation describes one process run.
type Invocation struct {
	Name    string
	Args    []string
	Stdin   []byte
	Dir     string
	Timeout time.Duration
}

// Output is what a finished process produced.
type Output struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Success reports a zero exit code.
func (o Output) Success() bool { return o.ExitCode == 0 }

// Runner runs local processes.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// Exec runs processes with os/exec.
type Exec struct {
	logger zerolog.Logger
}

// NewExec creates a runner backed by os/exec.
func NewExec() *Exec {
	return &Exec{logger: logging.GetLogger("command")}
}

// Run starts inv and waits for it. The error is non-nil only when the
// process could not be started, timed out, or ctx was cancelled.
func (e *Exec) Run(ctx context.Context, inv Invocation) (Output, error) {
	if inv.Name == "" {
		return Output{}, errors.New(errors.ErrInvalidInput, "command requires an executable name")
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	logging.LogCommand(e.logger, inv.Name, inv.Args)

	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	if inv.Stdin != nil {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return out, errors.Wrapf(ctxErr, errors.ErrTimeout, "%s did not finish within %s", inv.Name, inv.Timeout).
				WithDetail(errors.DetailStderr, stderr.String())
		}
		return out, errors.Wrapf(ctxErr, errors.ErrCancelled, "%s was cancelled", inv.Name)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = -1
			return out, errors.Wrapf(err, errors.ErrNotFound, "cannot run %s", inv.Name)
		}
	}

	event := e.logger.Debug()
	if out.ExitCode != 0 {
		event = e.logger.Warn()
	}
	event.
		Str("command", inv.Name).
		Int("exit_code", out.ExitCode).
		Dur("duration", out.Duration).
		Int("stdout_bytes", stdout.Len()).
		Msg("Command finished")
	if stderr.Len() > 0 {
		e.logger.Trace().Str("stderr", stderr.String()).Msg("Command stderr")
	}

	return out, nil
}
