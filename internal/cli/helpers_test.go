package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/ai"
	"github.com/mrz1836/deskpilot/internal/config"
	"github.com/mrz1836/deskpilot/internal/testutil"
)

// testEnv is a fully faked backend set for command tests.
type testEnv struct {
	cfg      *config.Config
	client   *testutil.FakeClient
	driver   *testutil.FakeDriver
	grabber  *testutil.FakeGrabber
	launcher *testutil.FakeLauncher
	deps     *Deps
}

func newTestEnv(t *testing.T, replies ...string) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Agent.StepDelay = 0
	cfg.Agent.HistoryDir = t.TempDir()
	cfg.Capture.Dir = t.TempDir()
	cfg.Detection.AssetsDir = t.TempDir()

	env := &testEnv{
		cfg:      cfg,
		client:   testutil.NewFakeClient(replies...),
		driver:   testutil.NewFakeDriver(),
		grabber:  &testutil.FakeGrabber{Image: testutil.Desktop()},
		launcher: &testutil.FakeLauncher{},
	}
	env.deps = &Deps{
		LoadConfig: func(context.Context) (*config.Config, error) {
			c := *env.cfg
			return &c, nil
		},
		NewClient: func(config.InferenceConfig, ...ai.FactoryOption) (ai.Client, error) {
			return env.client, nil
		},
		Grabber:     env.grabber,
		Driver:      env.driver,
		Launcher:    env.launcher,
		Interactive: func() bool { return false },
		NewLogger:   func(bool, bool) zerolog.Logger { return zerolog.Nop() },
	}
	return env
}

// execute runs the root command with args and returns stdout and stderr.
func (e *testEnv) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmdWithDeps(&GlobalFlags{}, BuildInfo{Version: "test"}, e.deps)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(bytes.NewReader(nil))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// executeWithInput is execute with stdin set to input.
func (e *testEnv) executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	var stdout bytes.Buffer
	cmd := newRootCmdWithDeps(&GlobalFlags{}, BuildInfo{Version: "test"}, e.deps)
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewBufferString(input))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func requireNoError(t *testing.T, err error, stderr string) {
	t.Helper()
	require.NoError(t, err, "stderr: %s", stderr)
}
