// Package config provides configuration management for deskpilot with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (DESKPILOT_* prefix, plus a .env file in the working directory)
//  3. Project config (.deskpilot/config.yaml)
//  4. Global config (~/.deskpilot/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Provider names accepted in the inference section.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config is the root configuration structure for deskpilot.
type Config struct {
	// Inference contains settings for the vision model endpoint.
	Inference InferenceConfig `yaml:"inference" mapstructure:"inference"`

	// Agent contains settings for the step loop.
	Agent AgentConfig `yaml:"agent" mapstructure:"agent"`

	// Capture contains settings for screenshot acquisition and retention.
	Capture CaptureConfig `yaml:"capture" mapstructure:"capture"`

	// Detection contains settings for the template-matching glyph detector.
	Detection DetectionConfig `yaml:"detection" mapstructure:"detection"`

	// Permissions contains the capabilities granted at session start.
	Permissions PermissionsConfig `yaml:"permissions" mapstructure:"permissions"`

	// Metrics contains settings for the optional Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// InferenceConfig contains settings for the model-serving endpoint.
type InferenceConfig struct {
	// Provider selects the backend ("ollama" or "openai").
	// Default: "ollama"
	Provider string `yaml:"provider" mapstructure:"provider"`

	// BaseURL is the endpoint root. For the openai provider an empty value
	// uses the SDK default.
	// Default: "http://localhost:11434"
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Model is the model used for agent steps and chat.
	// Default: "llava:7b"
	Model string `yaml:"model" mapstructure:"model"`

	// VisionModel is used for one-shot screen analysis. Empty means Model.
	VisionModel string `yaml:"vision_model" mapstructure:"vision_model"`

	// Timeout bounds a single generate or chat call.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// UnloadTimeout bounds the unload call made at task teardown.
	// Default: 10s
	UnloadTimeout time.Duration `yaml:"unload_timeout" mapstructure:"unload_timeout"`

	// KeepAlive is forwarded to the server with each request.
	// Default: "5m"
	KeepAlive string `yaml:"keep_alive" mapstructure:"keep_alive"`

	// Stream enables token streaming for agent steps.
	// Default: true
	Stream bool `yaml:"stream" mapstructure:"stream"`

	NumCtx      int     `yaml:"num_ctx" mapstructure:"num_ctx"`
	NumGPU      int     `yaml:"num_gpu" mapstructure:"num_gpu"`
	NumThread   int     `yaml:"num_thread" mapstructure:"num_thread"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TopP        float64 `yaml:"top_p" mapstructure:"top_p"`
	TopK        int     `yaml:"top_k" mapstructure:"top_k"`
	NumPredict  int     `yaml:"num_predict" mapstructure:"num_predict"`

	// APIKeyEnv names the environment variable holding the API key for the
	// openai provider. The key itself never lives in config files.
	// Default: "OPENAI_API_KEY"
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// AgentConfig contains settings for the step loop.
type AgentConfig struct {
	// MaxSteps is the step count after which a task stops with a partial result.
	// Default: 15
	MaxSteps int `yaml:"max_steps" mapstructure:"max_steps"`

	// ContextWindow is the number of recent steps fed back into each prompt.
	// Default: 5
	ContextWindow int `yaml:"context_window" mapstructure:"context_window"`

	// StepDelay is the pause after every step.
	// Default: 500ms
	StepDelay time.Duration `yaml:"step_delay" mapstructure:"step_delay"`

	// LoopWarnThreshold and LoopAbortThreshold are repeat counts for identical actions.
	// Default: 3 and 5
	LoopWarnThreshold  int `yaml:"loop_warn_threshold" mapstructure:"loop_warn_threshold"`
	LoopAbortThreshold int `yaml:"loop_abort_threshold" mapstructure:"loop_abort_threshold"`

	// HistoryDir is where session histories are written. Empty means ~/.deskpilot/history.
	HistoryDir string `yaml:"history_dir" mapstructure:"history_dir"`
}

// CaptureConfig contains settings for screenshots.
type CaptureConfig struct {
	// Dir is where screenshots are written. Empty means ~/.deskpilot/screenshots.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Retention is the number of screenshots kept after each task.
	// Default: 10
	Retention int `yaml:"retention" mapstructure:"retention"`

	// JPEGQuality is the encoder quality (1-100).
	// Default: 85
	JPEGQuality int `yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
}

// DetectionConfig contains settings for the glyph detector.
type DetectionConfig struct {
	// AssetsDir holds the reference PNGs. Empty means ~/.deskpilot/assets.
	AssetsDir string `yaml:"assets_dir" mapstructure:"assets_dir"`

	// HighConfidence accepts a match without secondary checks.
	// Default: 0.55
	HighConfidence float64 `yaml:"high_confidence" mapstructure:"high_confidence"`

	// ConfidenceFloor rejects anything below it.
	// Default: 0.45
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`

	// Scales is the template scale ladder.
	// Default: [0.6 0.7 0.8 0.9 1.0 1.1 1.2 1.3 1.5]
	Scales []float64 `yaml:"scales" mapstructure:"scales"`
}

// PermissionsConfig lists the capabilities granted when a session starts.
// All default to false; nothing is ever granted implicitly.
type PermissionsConfig struct {
	Mouse    bool `yaml:"mouse" mapstructure:"mouse"`
	Keyboard bool `yaml:"keyboard" mapstructure:"keyboard"`
	File     bool `yaml:"file" mapstructure:"file"`
	Process  bool `yaml:"process" mapstructure:"process"`
}

// MetricsConfig contains settings for the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns on metric collection and the HTTP endpoint.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Addr is the listen address for /metrics.
	// Default: "127.0.0.1:9464"
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ResolvedVisionModel returns VisionModel, or Model when no dedicated vision model is set.
func (c InferenceConfig) ResolvedVisionModel() string {
	if c.VisionModel != "" {
		return c.VisionModel
	}
	return c.Model
}
