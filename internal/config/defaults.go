package config

import (
	"github.com/mrz1836/deskpilot/internal/constants"
)

// DefaultScales returns the template scale ladder used when none is configured.
func DefaultScales() []float64 {
	return []float64{0.6, 0.7, 0.8, 0.9, 1.0, 1.1, 1.2, 1.3, 1.5}
}

// DefaultConfig returns a new Config with sensible default values.
// These defaults are used as the base layer that can be overridden by
// config files, environment variables, and CLI flags.
func DefaultConfig() *Config {
	return &Config{
		Inference: InferenceConfig{
			Provider:      ProviderOllama,
			BaseURL:       constants.DefaultBaseURL,
			Model:         constants.DefaultModel,
			Timeout:       constants.DefaultInferenceTimeout,
			UnloadTimeout: constants.DefaultUnloadTimeout,
			KeepAlive:     constants.DefaultKeepAlive,
			Stream:        true,
			NumCtx:        constants.DefaultNumCtx,
			NumGPU:        constants.DefaultNumGPU,
			NumThread:     constants.DefaultNumThread,
			Temperature:   constants.DefaultTemperature,
			TopP:          constants.DefaultTopP,
			TopK:          constants.DefaultTopK,
			NumPredict:    constants.DefaultNumPredict,
			APIKeyEnv:     constants.DefaultAPIKeyEnv,
		},
		Agent: AgentConfig{
			MaxSteps:           constants.DefaultMaxSteps,
			ContextWindow:      constants.DefaultContextWindow,
			StepDelay:          constants.DefaultStepDelay,
			LoopWarnThreshold:  constants.DefaultLoopWarnThreshold,
			LoopAbortThreshold: constants.DefaultLoopAbortThreshold,
		},
		Capture: CaptureConfig{
			Retention:   constants.DefaultScreenshotRetention,
			JPEGQuality: constants.DefaultJPEGQuality,
		},
		Detection: DetectionConfig{
			HighConfidence:  constants.DefaultHighConfidence,
			ConfidenceFloor: constants.DefaultConfidenceFloor,
			Scales:          DefaultScales(),
		},
		// Permissions: zero value, every capability must be granted explicitly.
		Metrics: MetricsConfig{
			Addr: constants.DefaultMetricsAddr,
		},
	}
}
