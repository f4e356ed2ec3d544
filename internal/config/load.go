package config

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/deskpilot/internal/constants"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// EnvPrefix is the prefix of every environment variable read by deskpilot.
const EnvPrefix = "DESKPILOT"

// newViperInstance creates a new Viper instance with the deskpilot environment
// prefix (DESKPILOT_), key replacer, and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// LoadEnvFile loads KEY=value pairs from path into the process environment.
// Variables already set in the environment are left untouched and a missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = constants.EnvFileName
	}
	if err := godotenv.Load(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return dperrors.Wrapf(err, "failed to load env file %s", path)
	}
	return nil
}

// unmarshalAndValidate unmarshals viper config into Config struct and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, dperrors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, dperrors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (DESKPILOT_* prefix, .env included)
//  2. Project config (.deskpilot/config.yaml)
//  3. Global config (~/.deskpilot/config.yaml)
//  4. Built-in defaults
//
// Missing config files are not errors.
func Load(ctx context.Context) (*Config, error) {
	if err := LoadEnvFile(constants.EnvFileName); err != nil {
		return nil, err
	}

	v := newViperInstance()

	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, dperrors.Wrap(err, "failed to unmarshal config")
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("inference.provider", cfg.Inference.Provider).
		Str("inference.model", cfg.Inference.Model).
		Dur("inference.timeout", cfg.Inference.Timeout).
		Int("agent.max_steps", cfg.Agent.MaxSteps).
		Msg("configuration loaded and unmarshaled")

	if err := Validate(&cfg); err != nil {
		return nil, dperrors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// loadGlobalConfig attempts to load the global config file.
// Returns nil if the file doesn't exist or the home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, err := GlobalConfigPath()
	if err != nil || !fileExists(globalConfigPath) {
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return dperrors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// loadProjectConfig attempts to merge the project config file over the global one.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return dperrors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// Only non-zero values in overrides are applied.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, dperrors.Wrap(err, "invalid configuration after overrides")
	}

	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths.
// Either path can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, dperrors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, dperrors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// setDefaults configures all default values on the Viper instance.
// Keys must match the mapstructure tag names exactly; AutomaticEnv only
// resolves keys viper already knows about.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("inference.provider", d.Inference.Provider)
	v.SetDefault("inference.base_url", d.Inference.BaseURL)
	v.SetDefault("inference.model", d.Inference.Model)
	v.SetDefault("inference.vision_model", d.Inference.VisionModel)
	v.SetDefault("inference.timeout", d.Inference.Timeout)
	v.SetDefault("inference.unload_timeout", d.Inference.UnloadTimeout)
	v.SetDefault("inference.keep_alive", d.Inference.KeepAlive)
	v.SetDefault("inference.stream", d.Inference.Stream)
	v.SetDefault("inference.num_ctx", d.Inference.NumCtx)
	v.SetDefault("inference.num_gpu", d.Inference.NumGPU)
	v.SetDefault("inference.num_thread", d.Inference.NumThread)
	v.SetDefault("inference.temperature", d.Inference.Temperature)
	v.SetDefault("inference.top_p", d.Inference.TopP)
	v.SetDefault("inference.top_k", d.Inference.TopK)
	v.SetDefault("inference.num_predict", d.Inference.NumPredict)
	v.SetDefault("inference.api_key_env", d.Inference.APIKeyEnv)

	v.SetDefault("agent.max_steps", d.Agent.MaxSteps)
	v.SetDefault("agent.context_window", d.Agent.ContextWindow)
	v.SetDefault("agent.step_delay", d.Agent.StepDelay)
	v.SetDefault("agent.loop_warn_threshold", d.Agent.LoopWarnThreshold)
	v.SetDefault("agent.loop_abort_threshold", d.Agent.LoopAbortThreshold)
	v.SetDefault("agent.history_dir", d.Agent.HistoryDir)

	v.SetDefault("capture.dir", d.Capture.Dir)
	v.SetDefault("capture.retention", d.Capture.Retention)
	v.SetDefault("capture.jpeg_quality", d.Capture.JPEGQuality)

	v.SetDefault("detection.assets_dir", d.Detection.AssetsDir)
	v.SetDefault("detection.high_confidence", d.Detection.HighConfidence)
	v.SetDefault("detection.confidence_floor", d.Detection.ConfidenceFloor)
	v.SetDefault("detection.scales", d.Detection.Scales)

	v.SetDefault("permissions.mouse", d.Permissions.Mouse)
	v.SetDefault("permissions.keyboard", d.Permissions.Keyboard)
	v.SetDefault("permissions.file", d.Permissions.File)
	v.SetDefault("permissions.process", d.Permissions.Process)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// applyOverrides merges non-zero override values into the config.
//
// IMPORTANT: Boolean fields (Stream, permissions, Metrics.Enabled) cannot be
// overridden to false here because the zero value is indistinguishable from
// "not set". The CLI handles those flags with cmd.Flags().Changed.
func applyOverrides(cfg, overrides *Config) {
	applyInferenceOverrides(cfg, overrides)

	if overrides.Agent.MaxSteps != 0 {
		cfg.Agent.MaxSteps = overrides.Agent.MaxSteps
	}
	if overrides.Agent.StepDelay != 0 {
		cfg.Agent.StepDelay = overrides.Agent.StepDelay
	}
	if overrides.Agent.HistoryDir != "" {
		cfg.Agent.HistoryDir = overrides.Agent.HistoryDir
	}

	if overrides.Capture.Dir != "" {
		cfg.Capture.Dir = overrides.Capture.Dir
	}
	if overrides.Detection.AssetsDir != "" {
		cfg.Detection.AssetsDir = overrides.Detection.AssetsDir
	}

	if overrides.Metrics.Addr != "" {
		cfg.Metrics.Addr = overrides.Metrics.Addr
	}
}

// applyInferenceOverrides applies inference-related overrides to the config.
func applyInferenceOverrides(cfg, overrides *Config) {
	if overrides.Inference.Provider != "" {
		cfg.Inference.Provider = overrides.Inference.Provider
	}
	if overrides.Inference.BaseURL != "" {
		cfg.Inference.BaseURL = overrides.Inference.BaseURL
	}
	if overrides.Inference.Model != "" {
		cfg.Inference.Model = overrides.Inference.Model
	}
	if overrides.Inference.VisionModel != "" {
		cfg.Inference.VisionModel = overrides.Inference.VisionModel
	}
	if overrides.Inference.Timeout != 0 {
		cfg.Inference.Timeout = overrides.Inference.Timeout
	}
}

// viperDecoderOption returns the decoder options for Viper unmarshal.
// Durations decode from strings such as "500ms" and comma-separated env
// values decode into slices.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}
