// Package constants provides centralized constant values used throughout deskpilot.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by deskpilot for organizing data.
const (
	// HomeDirName is the hidden directory name where deskpilot stores all its data.
	// This directory is created in the user's home directory.
	HomeDirName = ".deskpilot"

	// HomeEnvVar overrides the data directory location.
	HomeEnvVar = "DESKPILOT_HOME"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// ScreenshotsDir is the directory name where captured screens are written.
	ScreenshotsDir = "screenshots"

	// HistoryDir is the directory name where session histories are stored.
	HistoryDir = "history"

	// AssetsDir is the directory name holding reference glyph images.
	AssetsDir = "assets"
)

// File names.
const (
	// CLILogFileName is the name of the rotating CLI log file.
	// This file is located in ~/.deskpilot/logs/deskpilot.log
	CLILogFileName = "deskpilot.log"

	// GlobalConfigName is the name of the global configuration file in the home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigDir is the directory holding the project configuration file.
	ProjectConfigDir = ".deskpilot"

	// EnvFileName is the dotenv file loaded from the working directory.
	EnvFileName = ".env"

	// ScreenshotPrefix and ScreenshotExt form screen_YYYYMMDD_HHMMSS.jpg file names.
	ScreenshotPrefix = "screen_"
	ScreenshotExt    = ".jpg"

	// ScreenshotTimeLayout is the timestamp layout used in screenshot file names.
	ScreenshotTimeLayout = "20060102_150405"
)

// Log rotation settings for the CLI log file.
const (
	// LogMaxSizeMB is the maximum size of a log file before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files to keep.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of rotated log files.
	LogMaxAgeDays = 14

	// LogCompress enables gzip compression of rotated files.
	LogCompress = true
)

// Inference defaults.
const (
	// DefaultBaseURL is the default local model-serving address.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is the default vision-capable model.
	DefaultModel = "llava:7b"

	// DefaultInferenceTimeout bounds a single generate or chat call.
	DefaultInferenceTimeout = 60 * time.Second

	// DefaultUnloadTimeout bounds the model unload call.
	DefaultUnloadTimeout = 10 * time.Second

	// DefaultKeepAlive tells the server how long to keep the model resident.
	DefaultKeepAlive = "5m"

	// DefaultNumCtx is the context window requested for agent steps.
	DefaultNumCtx = 2048

	// DefaultNumGPU asks the server to offload as many layers as possible.
	DefaultNumGPU = 99

	// DefaultNumThread is the CPU thread hint sent with each request.
	DefaultNumThread = 4

	// DefaultNumPredict caps the tokens generated per agent step.
	DefaultNumPredict = 512

	// DefaultTemperature, DefaultTopP and DefaultTopK are the agent sampling options.
	DefaultTemperature = 0.3
	DefaultTopP        = 0.9
	DefaultTopK        = 40

	// DefaultAPIKeyEnv names the variable holding the key for OpenAI-compatible backends.
	DefaultAPIKeyEnv = "OPENAI_API_KEY"

	// MaxStreamLineBytes is the largest NDJSON line accepted from a stream.
	MaxStreamLineBytes = 1024 * 1024
)

// Agent loop defaults.
const (
	// DefaultMaxSteps is the number of steps after which a task stops.
	DefaultMaxSteps = 15

	// DefaultContextWindow is the number of recent steps fed back into the prompt.
	DefaultContextWindow = 5

	// DefaultStepDelay is the pause between consecutive steps.
	DefaultStepDelay = 500 * time.Millisecond

	// DefaultLoopWarnThreshold is the repeat count that triggers a loop warning.
	DefaultLoopWarnThreshold = 3

	// DefaultLoopAbortThreshold is the repeat count that aborts the task.
	DefaultLoopAbortThreshold = 5

	// AuditPreviewLength is the number of characters of typed text kept in the audit log.
	AuditPreviewLength = 50
)

// Action settle delays and parameter defaults.
const (
	ClickSettleDelay   = 500 * time.Millisecond
	TypeSettleDelay    = 300 * time.Millisecond
	OpenAppSettleDelay = 1500 * time.Millisecond

	DefaultMoveDuration  = 0.5
	DefaultScrollAmount  = 3
	DefaultWaitSeconds   = 1.0
	DefaultMouseButton   = "left"
	MaxWaitSeconds       = 60.0
	DefaultKeyPressDelay = 50 * time.Millisecond
)

// Screen capture defaults.
const (
	// DefaultJPEGQuality is the quality used when encoding screenshots.
	DefaultJPEGQuality = 85

	// DefaultScreenshotRetention is the number of screenshots kept after a task.
	DefaultScreenshotRetention = 10

	// FallbackScreenWidth and FallbackScreenHeight are used when the display size is unknown.
	FallbackScreenWidth  = 2560
	FallbackScreenHeight = 1440
)

// Detection defaults.
const (
	// DefaultHighConfidence accepts a template match without secondary checks.
	DefaultHighConfidence = 0.55

	// DefaultConfidenceFloor is the lowest score that is considered at all.
	DefaultConfidenceFloor = 0.45

	// MaxTemplateDimension is the largest template side kept after loading.
	MaxTemplateDimension = 64

	// MinTemplateDimension is the smallest template side that is matched.
	MinTemplateDimension = 10

	// CropMargin grows the glyph extent by this fraction in total (half per side)
	// to size the patch for the secondary checks.
	CropMargin = 0.35
)

// History store settings.
const (
	// LockTimeout is how long the history store waits for its file lock.
	LockTimeout = 5 * time.Second

	// LockRetryInterval is the delay between lock attempts.
	LockRetryInterval = 50 * time.Millisecond
)

// Metrics defaults.
const (
	// DefaultMetricsAddr is the listen address for the Prometheus endpoint.
	DefaultMetricsAddr = "127.0.0.1:9464"

	// MetricsNamespace prefixes every exported metric name.
	MetricsNamespace = "deskpilot"
)
