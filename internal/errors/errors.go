// Package errors provides centralized error handling for deskpilot.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrNoJSONFound indicates that the model response contained no closed JSON object.
	ErrNoJSONFound = errors.New("no JSON found")

	// ErrMalformedJSON indicates that a JSON candidate was located but could not be decoded
	// into an action.
	ErrMalformedJSON = errors.New("malformed JSON")

	// ErrPermissionDenied indicates that an action was refused because its capability is not granted.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrLoopDetected indicates that the same action signature repeated past the abort threshold.
	ErrLoopDetected = errors.New("likely infinite loop")

	// ErrCaptureFailed indicates that the screen could not be captured or encoded.
	ErrCaptureFailed = errors.New("screen capture failed")

	// ErrNoDisplay indicates that no active display is available for capture.
	ErrNoDisplay = errors.New("no active display")

	// ErrInferenceFailed indicates that the inference endpoint returned an error response.
	ErrInferenceFailed = errors.New("inference request failed")

	// ErrInferenceUnavailable indicates that the inference endpoint could not be reached.
	ErrInferenceUnavailable = errors.New("inference endpoint unavailable")

	// ErrInferenceTimeout indicates that an inference request exceeded its deadline.
	ErrInferenceTimeout = errors.New("inference request timed out")

	// ErrEmptyResponse indicates that the model produced no text.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrModelNotFound indicates that the requested model is not installed on the endpoint.
	ErrModelNotFound = errors.New("model not found")

	// ErrUnknownProvider indicates an unsupported inference provider name.
	ErrUnknownProvider = errors.New("unknown inference provider")

	// ErrMissingAPIKey indicates that an API key is required by the provider but was not set.
	ErrMissingAPIKey = errors.New("api key not set")

	// ErrTaskCancelled indicates that the running task was cancelled by the user.
	ErrTaskCancelled = errors.New("operation cancelled by user")

	// ErrTaskAlreadyRunning indicates that a task was started while another is still running.
	ErrTaskAlreadyRunning = errors.New("a task is already running")

	// ErrEmptyTask indicates that a task description was empty.
	ErrEmptyTask = errors.New("task description is empty")

	// ErrInvalidTransition indicates an attempt to move a session to an illegal state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownElement indicates that no detector matches the requested element name.
	ErrUnknownElement = errors.New("unknown UI element")

	// ErrElementNotFound indicates that a known element was not located on screen.
	ErrElementNotFound = errors.New("UI element not found")

	// ErrTemplateLoad indicates that a reference glyph could not be decoded.
	ErrTemplateLoad = errors.New("failed to load template")

	// ErrInvalidParameter indicates that an action parameter was missing or had the wrong type.
	ErrInvalidParameter = errors.New("invalid action parameter")

	// ErrUnknownAction indicates an action tag the dispatcher does not handle.
	ErrUnknownAction = errors.New("unknown action")

	// ErrEmptyAppName indicates that open_app was requested without an application name.
	ErrEmptyAppName = errors.New("application name is empty")

	// ErrSessionNotFound indicates that a stored session could not be found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrLockTimeout indicates that the history store lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrInvalidOutputFormat indicates an unsupported --output value.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrInvalidPermission indicates an unknown capability name on the command line.
	ErrInvalidPermission = errors.New("invalid permission name")

	// ErrMenuCanceled indicates the user aborted an interactive prompt.
	ErrMenuCanceled = errors.New("menu canceled")

	// ErrNotInteractive indicates that an interactive prompt was requested without a terminal.
	ErrNotInteractive = errors.New("not running in an interactive terminal")
)

// Configuration errors.
var (
	// ErrConfigNotFound indicates that the configuration file does not exist.
	ErrConfigNotFound = errors.New("config not found")

	// ErrConfigNil indicates that a nil configuration was passed to Validate.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidInference indicates an invalid inference section.
	ErrConfigInvalidInference = errors.New("invalid inference configuration")

	// ErrConfigInvalidAgent indicates an invalid agent section.
	ErrConfigInvalidAgent = errors.New("invalid agent configuration")

	// ErrConfigInvalidCapture indicates an invalid capture section.
	ErrConfigInvalidCapture = errors.New("invalid capture configuration")

	// ErrConfigInvalidDetection indicates an invalid detection section.
	ErrConfigInvalidDetection = errors.New("invalid detection configuration")

	// ErrConfigInvalidMetrics indicates an invalid metrics section.
	ErrConfigInvalidMetrics = errors.New("invalid metrics configuration")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
