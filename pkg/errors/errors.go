package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrTimeout      ErrorCode = "TIMEOUT"
	ErrCancelled    ErrorCode = "CANCELLED"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Template errors
	ErrTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrTemplateRender   ErrorCode = "TEMPLATE_RENDER"

	// Pipeline errors
	ErrCompile         ErrorCode = "COMPILE"
	ErrValidate        ErrorCode = "VALIDATE"
	ErrVersionMismatch ErrorCode = "VERSION_MISMATCH"
	ErrMergeConflict   ErrorCode = "MERGE_CONFLICT"

	// Remote errors
	ErrRemoteConnect ErrorCode = "REMOTE_CONNECT"
	ErrTransfer      ErrorCode = "TRANSFER"
	ErrInstall       ErrorCode = "INSTALL"
	ErrMarkerRead    ErrorCode = "MARKER_READ"
	ErrMarkerWrite   ErrorCode = "MARKER_WRITE"
)

// Detail keys shared by the pipeline and the orchestrator.
const (
	DetailStage              = "stage"
	DetailStdout             = "stdout"
	DetailStderr             = "stderr"
	DetailExitCode           = "exit_code"
	DetailManualIntervention = "manual_intervention"
)

// Stages recorded under DetailStage.
const (
	StageInput       = "input"
	StageRender      = "render"
	StageCompile     = "compile"
	StageValidate    = "validate"
	StageMerge       = "merge"
	StageCheckMarker = "check_marker"
	StageTransfer    = "transfer"
	StageInstall     = "install"
	StageWriteMarker = "write_marker"
)

// Error represents a structured error with code and details
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *Error) Is(target error) bool {
	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new Error with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithStage tags the error with the pipeline stage that produced it.
// An existing stage is kept so the innermost stage wins.
func (e *Error) WithStage(stage string) *Error {
	if _, ok := e.Details[DetailStage]; ok {
		return e
	}
	return e.WithDetail(DetailStage, stage)
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not an Error
func GetErrorCode(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not an Error
func GetErrorDetails(err error) map[string]interface{} {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Details
	}
	return nil
}

// Stage returns the stage recorded on err, searching the whole chain.
func Stage(err error) string {
	for err != nil {
		var coded *Error
		if !errors.As(err, &coded) {
			return ""
		}
		if stage, ok := coded.Details[DetailStage].(string); ok {
			return stage
		}
		err = coded.Wrapped
	}
	return ""
}

// RequiresManualIntervention reports whether err left the target in a state
// an operator has to inspect by hand.
func RequiresManualIntervention(err error) bool {
	details := GetErrorDetails(err)
	if details == nil {
		return false
	}
	v, _ := details[DetailManualIntervention].(bool)
	return v
}
