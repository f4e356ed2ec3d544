package config

import (
	"net"

	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - inference provider must be ollama or openai; model and timeouts must be set
//   - agent max steps and context window must be positive, warn < abort threshold
//   - capture retention must be >= 0, JPEG quality 1-100
//   - detection thresholds must satisfy 0 <= floor <= high <= 1, scales positive
//   - metrics addr must be host:port when metrics are enabled
func Validate(cfg *Config) error {
	if cfg == nil {
		return dperrors.ErrConfigNil
	}

	if err := validateInferenceConfig(&cfg.Inference); err != nil {
		return err
	}
	if err := validateAgentConfig(&cfg.Agent); err != nil {
		return err
	}
	if err := validateCaptureConfig(&cfg.Capture); err != nil {
		return err
	}
	if err := validateDetectionConfig(&cfg.Detection); err != nil {
		return err
	}
	return validateMetricsConfig(&cfg.Metrics)
}

func validateInferenceConfig(cfg *InferenceConfig) error {
	switch cfg.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return dperrors.Wrapf(dperrors.ErrConfigInvalidInference,
			"inference.provider must be %q or %q, got %q", ProviderOllama, ProviderOpenAI, cfg.Provider)
	}
	if cfg.Provider == ProviderOllama && cfg.BaseURL == "" {
		return dperrors.Wrap(dperrors.ErrConfigInvalidInference, "inference.base_url must not be empty")
	}
	if cfg.Model == "" {
		return dperrors.Wrap(dperrors.ErrConfigInvalidInference, "inference.model must not be empty")
	}
	if cfg.Timeout <= 0 {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidInference,
			"inference.timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.UnloadTimeout <= 0 {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidInference,
			"inference.unload_timeout must be positive, got %s", cfg.UnloadTimeout)
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidInference,
			"inference.temperature must be between 0 and 2, got %g", cfg.Temperature)
	}
	if cfg.TopP < 0 || cfg.TopP > 1 {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidInference,
			"inference.top_p must be between 0 and 1, got %g", cfg.TopP)
	}
	if cfg.NumPredict < 0 || cfg.NumCtx < 0 {
		return dperrors.Wrap(dperrors.ErrConfigInvalidInference,
			"inference.num_predict and inference.num_ctx must not be negative")
	}
	return nil
}

func validateAgentConfig(cfg *AgentConfig) error {
	if cfg.MaxSteps < 1 {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidAgent,
			"agent.max_steps must be at least 1, got %d", cfg.MaxSteps)
	}
	if cfg.ContextWindow < 1 {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidAgent,
			"agent.context_window must be at least 1, got %d", cfg.ContextWindow)
	}
	if cfg.StepDelay < 0 {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidAgent,
			"agent.step_delay must not be negative, got %s", cfg.StepDelay)
	}
	if cfg.LoopWarnThreshold < 1 || cfg.LoopAbortThreshold <= cfg.LoopWarnThreshold {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidAgent,
			"agent loop thresholds must satisfy 1 <= warn < abort, got warn=%d abort=%d",
			cfg.LoopWarnThreshold, cfg.LoopAbortThreshold)
	}
	return nil
}

func validateCaptureConfig(cfg *CaptureConfig) error {
	if cfg.Retention < 0 {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidCapture,
			"capture.retention must not be negative, got %d", cfg.Retention)
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidCapture,
			"capture.jpeg_quality must be between 1 and 100, got %d", cfg.JPEGQuality)
	}
	return nil
}

func validateDetectionConfig(cfg *DetectionConfig) error {
	if cfg.ConfidenceFloor < 0 || cfg.HighConfidence > 1 || cfg.ConfidenceFloor > cfg.HighConfidence {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidDetection,
			"detection thresholds must satisfy 0 <= confidence_floor <= high_confidence <= 1, got floor=%g high=%g",
			cfg.ConfidenceFloor, cfg.HighConfidence)
	}
	if len(cfg.Scales) == 0 {
		return dperrors.Wrap(dperrors.ErrConfigInvalidDetection, "detection.scales must not be empty")
	}
	for _, s := range cfg.Scales {
		if s <= 0 {
			return dperrors.Wrapf(dperrors.ErrConfigInvalidDetection,
				"detection.scales must be positive, got %g", s)
		}
	}
	return nil
}

func validateMetricsConfig(cfg *MetricsConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return dperrors.Wrapf(dperrors.ErrConfigInvalidMetrics,
			"metrics.addr must be host:port, got %q", cfg.Addr)
	}
	return nil
}
