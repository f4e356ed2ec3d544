package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinel errors to their user-facing messages.
// A slice keeps lookup order stable for wrapped errors.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Inference
	// ===================
	{
		err: ErrInferenceUnavailable,
		info: ErrorInfo{
			Message: "Could not reach the inference endpoint.",
			Action:  "Start the model server (e.g. 'ollama serve') or check inference.base_url.",
		},
	},
	{
		err: ErrInferenceTimeout,
		info: ErrorInfo{
			Message: "The model took too long to answer.",
			Action:  "Increase inference.timeout or use a smaller model.",
		},
	},
	{
		err: ErrModelNotFound,
		info: ErrorInfo{
			Message: "The requested model is not installed on the inference endpoint.",
			Action:  "Run 'deskpilot models' to list installed models.",
		},
	},
	{
		err: ErrMissingAPIKey,
		info: ErrorInfo{
			Message: "The selected inference provider needs an API key.",
			Action:  "Set the variable named by inference.api_key_env (a .env file works too).",
		},
	},
	{
		err: ErrInferenceFailed,
		info: ErrorInfo{
			Message: "The inference endpoint returned an error.",
			Action:  "Check the endpoint logs and the configured model name.",
		},
	},

	// ===================
	// Agent loop
	// ===================
	{
		err: ErrNoJSONFound,
		info: ErrorInfo{
			Message: "The model did not answer with a JSON action.",
			Action:  "Retry the task or switch to a model that follows instructions more closely.",
		},
	},
	{
		err: ErrMalformedJSON,
		info: ErrorInfo{
			Message: "The model answered with malformed JSON.",
			Action:  "Retry the task; run with --verbose to see the raw response.",
		},
	},
	{
		err: ErrLoopDetected,
		info: ErrorInfo{
			Message: "The agent kept repeating the same action and was stopped.",
			Action:  "Rephrase the task with more specific steps.",
		},
	},
	{
		err: ErrTaskCancelled,
		info: ErrorInfo{
			Message: "Operation cancelled by user.",
		},
	},
	{
		err: ErrTaskAlreadyRunning,
		info: ErrorInfo{
			Message: "Another task is still running.",
			Action:  "Wait for it to finish or cancel it first.",
		},
	},
	{
		err: ErrPermissionDenied,
		info: ErrorInfo{
			Message: "The action needs a permission that has not been granted.",
			Action:  "Grant it with --allow (mouse, keyboard, file, process) or in the permissions config section.",
		},
	},

	// ===================
	// Screen & vision
	// ===================
	{
		err: ErrNoDisplay,
		info: ErrorInfo{
			Message: "No active display was found.",
			Action:  "Run deskpilot from a graphical session.",
		},
	},
	{
		err: ErrCaptureFailed,
		info: ErrorInfo{
			Message: "The screen could not be captured.",
			Action:  "Check screen recording permissions for this terminal.",
		},
	},
	{
		err: ErrUnknownElement,
		info: ErrorInfo{
			Message: "No detector knows that element.",
			Action:  "Try 'start button', 'edge', 'file explorer' or 'search'.",
		},
	},

	// ===================
	// Configuration & CLI
	// ===================
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Message: "Invalid output format.",
			Action:  "Use --output text or --output json.",
		},
	},
	{
		err: ErrInvalidPermission,
		info: ErrorInfo{
			Message: "Unknown permission name.",
			Action:  "Valid permissions are mouse, keyboard, file and process.",
		},
	},
	{
		err: ErrConfigInvalidInference,
		info: ErrorInfo{
			Message: "The inference configuration is invalid.",
			Action:  "Run 'deskpilot config show' and fix the inference section.",
		},
	},
}

// errorInfoMap provides direct lookup for unwrapped sentinel errors.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoMap = buildErrorInfoMap()

func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for err, falling back to errors.Is()
// traversal for wrapped errors and to the raw message when nothing matches.
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}
	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly message along with a suggested action.
// The action is empty when there is nothing the user can do.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
