package ignition

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kudato/fcosinstall/pkg/command"
	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
)

// FileWriter stores a document somewhere the validator binary can read it.
type FileWriter interface {
	WriteFile(content []byte, suffix string) (string, error)
	Remove(path string) error
}

// Validator runs ignition-validate against documents.
type Validator struct {
	runner  command.Runner
	files   FileWriter
	tool    string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewValidator creates a validator invoking tool through runner.
func NewValidator(runner command.Runner, files FileWriter, tool string, timeout time.Duration) *Validator {
	return &Validator{
		runner:  runner,
		files:   files,
		tool:    tool,
		timeout: timeout,
		logger:  logging.GetLogger("ignition.validate"),
	}
}

// Validate passes or fails doc as a whole. The document is not modified.
func (v *Validator) Validate(ctx context.Context, doc Document) error {
	path, err := v.files.WriteFile(doc.Raw, ".ign")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot stage document for validation").
			WithStage(errors.StageValidate)
	}
	defer func() {
		if err := v.files.Remove(path); err != nil {
			v.logger.Debug().Err(err).Str("path", path).Msg("Failed to remove staged document")
		}
	}()

	out, err := v.runner.Run(ctx, command.Invocation{
		Name:    v.tool,
		Args:    []string{path},
		Timeout: v.timeout,
	})
	if err != nil {
		return command.StageError(err, errors.StageValidate, v.tool)
	}
	if !out.Success() {
		return command.Failure(errors.ErrValidate, errors.StageValidate, v.tool, out.ExitCode, out.Stdout, out.Stderr).
			WithDetail("source", doc.Source)
	}

	v.logger.Debug().Str("source", doc.Source).Msg("Document passed validation")
	return nil
}
