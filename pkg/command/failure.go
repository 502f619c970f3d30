package command

import (
	"fmt"
	"strings"

	"github.com/kudato/fcosinstall/pkg/errors"
)

// Failure builds the error for a tool that exited non-zero. The tool's
// diagnostics are kept verbatim, in the message and in the details.
func Failure(code errors.ErrorCode, stage, tool string, exitCode int, stdout, stderr []byte) *errors.Error {
	diag := strings.TrimRight(string(stderr), "\n")
	if diag == "" {
		diag = strings.TrimRight(string(stdout), "\n")
	}

	msg := fmt.Sprintf("%s exited with status %d", tool, exitCode)
	if diag != "" {
		msg += ":\n" + diag
	}

	return errors.New(code, msg).
		WithDetails(map[string]interface{}{
			errors.DetailExitCode: exitCode,
			errors.DetailStdout:   string(stdout),
			errors.DetailStderr:   string(stderr),
		}).
		WithStage(stage)
}

// StageError tags a Run error with the stage it interrupted, keeping its
// code (TIMEOUT, CANCELLED, NOT_FOUND).
func StageError(err error, stage, tool string) error {
	return errors.Wrapf(err, errors.GetErrorCode(err), "%s failed", tool).WithStage(stage)
}
