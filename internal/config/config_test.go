package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/constants"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, ProviderOllama, cfg.Inference.Provider)
	assert.Equal(t, constants.DefaultModel, cfg.Inference.Model)
	assert.True(t, cfg.Inference.Stream)
	assert.Equal(t, 15, cfg.Agent.MaxSteps)
	assert.Equal(t, 5, cfg.Agent.ContextWindow)
	assert.InDelta(t, 0.55, cfg.Detection.HighConfidence, 1e-9)
	assert.InDelta(t, 0.45, cfg.Detection.ConfidenceFloor, 1e-9)
	assert.Len(t, cfg.Detection.Scales, 9)
	assert.False(t, cfg.Permissions.Mouse, "no capability is granted by default")
	assert.False(t, cfg.Permissions.Process)
}

func TestLoadFromPaths_DefaultsWhenNoFiles(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromPaths(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultBaseURL, cfg.Inference.BaseURL)
	assert.Equal(t, constants.DefaultInferenceTimeout, cfg.Inference.Timeout)
	assert.Equal(t, DefaultScales(), cfg.Detection.Scales)
}

func TestLoadFromPaths_ProjectConfigOverridesGlobal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := writeFile(t, dir, "global.yaml", `
inference:
  model: llava:13b
  timeout: 90s
agent:
  max_steps: 20
`)
	project := writeFile(t, dir, "project.yaml", `
inference:
  model: qwen3-vl:8b
permissions:
  mouse: true
`)

	cfg, err := LoadFromPaths(context.Background(), project, global)
	require.NoError(t, err)

	assert.Equal(t, "qwen3-vl:8b", cfg.Inference.Model, "project wins")
	assert.Equal(t, 90*time.Second, cfg.Inference.Timeout, "global value survives merge")
	assert.Equal(t, 20, cfg.Agent.MaxSteps)
	assert.True(t, cfg.Permissions.Mouse)
	assert.False(t, cfg.Permissions.Keyboard)
}

func TestLoadFromPaths_MissingFilesIgnored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := LoadFromPaths(context.Background(),
		filepath.Join(dir, "nope.yaml"), filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultModel, cfg.Inference.Model)
}

func TestLoadFromPaths_InvalidValuesRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := writeFile(t, dir, "bad.yaml", `
detection:
  high_confidence: 0.3
  confidence_floor: 0.5
`)

	_, err := LoadFromPaths(context.Background(), project, "")
	require.Error(t, err)
	require.ErrorIs(t, err, dperrors.ErrConfigInvalidDetection)
}

func TestLoadFromPaths_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	project := writeFile(t, dir, "project.yaml", "agent:\n  max_steps: 7\n")

	t.Setenv("DESKPILOT_AGENT_MAX_STEPS", "9")
	t.Setenv("DESKPILOT_AGENT_STEP_DELAY", "250ms")
	t.Setenv("DESKPILOT_PERMISSIONS_KEYBOARD", "true")

	cfg, err := LoadFromPaths(context.Background(), project, "")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Agent.MaxSteps)
	assert.Equal(t, 250*time.Millisecond, cfg.Agent.StepDelay)
	assert.True(t, cfg.Permissions.Keyboard)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "DESKPILOT_TEST_ENV_FILE=from-file\n")

	t.Setenv("DESKPILOT_TEST_ENV_FILE", "")
	require.NoError(t, os.Unsetenv("DESKPILOT_TEST_ENV_FILE"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("DESKPILOT_TEST_ENV_FILE"))

	require.NoError(t, LoadEnvFile(filepath.Join(dir, "absent.env")), "missing file is not an error")
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	applyOverrides(cfg, &Config{
		Inference: InferenceConfig{Model: "llava:34b", Timeout: 2 * time.Minute},
		Agent:     AgentConfig{MaxSteps: 3},
		Metrics:   MetricsConfig{Addr: "0.0.0.0:9000"},
	})

	assert.Equal(t, "llava:34b", cfg.Inference.Model)
	assert.Equal(t, 2*time.Minute, cfg.Inference.Timeout)
	assert.Equal(t, 3, cfg.Agent.MaxSteps)
	assert.Equal(t, constants.DefaultContextWindow, cfg.Agent.ContextWindow, "zero values are not applied")
	assert.Equal(t, "0.0.0.0:9000", cfg.Metrics.Addr)
	assert.Equal(t, constants.DefaultBaseURL, cfg.Inference.BaseURL)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"nil config", nil, dperrors.ErrConfigNil},
		{"unknown provider", func(c *Config) { c.Inference.Provider = "bard" }, dperrors.ErrConfigInvalidInference},
		{"empty model", func(c *Config) { c.Inference.Model = "" }, dperrors.ErrConfigInvalidInference},
		{"zero timeout", func(c *Config) { c.Inference.Timeout = 0 }, dperrors.ErrConfigInvalidInference},
		{"openai without base url is fine", func(c *Config) {
			c.Inference.Provider = ProviderOpenAI
			c.Inference.BaseURL = ""
		}, nil},
		{"zero max steps", func(c *Config) { c.Agent.MaxSteps = 0 }, dperrors.ErrConfigInvalidAgent},
		{"warn equals abort", func(c *Config) { c.Agent.LoopWarnThreshold = 5 }, dperrors.ErrConfigInvalidAgent},
		{"negative retention", func(c *Config) { c.Capture.Retention = -1 }, dperrors.ErrConfigInvalidCapture},
		{"quality too high", func(c *Config) { c.Capture.JPEGQuality = 101 }, dperrors.ErrConfigInvalidCapture},
		{"no scales", func(c *Config) { c.Detection.Scales = nil }, dperrors.ErrConfigInvalidDetection},
		{"negative scale", func(c *Config) { c.Detection.Scales = []float64{1, -0.5} }, dperrors.ErrConfigInvalidDetection},
		{"bad metrics addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Addr = "nohostport"
		}, dperrors.ErrConfigInvalidMetrics},
		{"disabled metrics ignore addr", func(c *Config) { c.Metrics.Addr = "" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var cfg *Config
			if tt.mutate != nil {
				cfg = DefaultConfig()
				tt.mutate(cfg)
			}
			err := Validate(cfg)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDataDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv(constants.HomeEnvVar, home)

	cfg := DefaultConfig()
	dir, err := cfg.ScreenshotsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, constants.ScreenshotsDir), dir)

	cfg.Agent.HistoryDir = "/var/tmp/hist"
	dir, err = cfg.HistoryDir()
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/hist", dir)

	path, err := GlobalConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, constants.GlobalConfigName), path)

	assert.Equal(t, filepath.Join(".deskpilot", "config.yaml"), ProjectConfigPath())
}

func TestResolvedVisionModel(t *testing.T) {
	t.Parallel()

	c := InferenceConfig{Model: "llava:7b"}
	assert.Equal(t, "llava:7b", c.ResolvedVisionModel())
	c.VisionModel = "qwen3-vl:8b"
	assert.Equal(t, "qwen3-vl:8b", c.ResolvedVisionModel())
}
