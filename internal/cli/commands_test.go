package cli

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/config"
	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/testutil"
)

const (
	replyType     = `{"action": "keyboard_type", "reasoning": "type it", "parameters": {"text": "hello"}}`
	replyComplete = "```json\n{\"action\": \"complete\", \"reasoning\": \"done\"}\n```"
)

func decodeResult(t *testing.T, stdout string) domain.TaskResult {
	t.Helper()
	var res domain.TaskResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res), stdout)
	return res
}

func TestRun_DeniedActionThenComplete(t *testing.T) {
	env := newTestEnv(t, replyType, replyComplete)

	stdout, stderr, err := env.execute(t, "run", "type", "hello", "--allow", "mouse", "-o", "json")
	requireNoError(t, err, stderr)

	res := decodeResult(t, stdout)
	assert.True(t, res.Success)
	assert.Equal(t, "type hello", res.Task)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, 2, res.StepsTaken)
	assert.Empty(t, env.driver.Calls(), "keyboard was not granted")
	assert.Equal(t, 2, env.grabber.Grabs())

	files, err := filepath.Glob(filepath.Join(env.cfg.Agent.HistoryDir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRun_TextOutput(t *testing.T) {
	env := newTestEnv(t, replyComplete)

	stdout, stderr, err := env.execute(t, "run", "do nothing", "--allow", "none")
	requireNoError(t, err, stderr)

	assert.Contains(t, stdout, "No permissions granted")
	assert.Contains(t, stdout, "Task completed!")
	assert.Contains(t, stdout, "deskpilot history show")
	assert.Contains(t, stderr, "do nothing")
}

func TestRun_Unsuccessful(t *testing.T) {
	env := newTestEnv(t, "I am not sure what to do")

	stdout, _, err := env.execute(t, "run", "open notepad", "--allow", "keyboard", "-o", "json")
	require.ErrorIs(t, err, errTaskUnsuccessful)
	assert.Equal(t, ExitError, ExitCodeForError(err))

	res := decodeResult(t, stdout)
	assert.False(t, res.Success)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestRun_StepLimitIsPartialSuccess(t *testing.T) {
	env := newTestEnv(t, replyType)

	stdout, stderr, err := env.execute(t, "run", "type hello", "--allow", "keyboard", "--max-steps", "1", "-o", "json")
	requireNoError(t, err, stderr)

	res := decodeResult(t, stdout)
	assert.True(t, res.Success)
	assert.Equal(t, domain.StatusStepLimitReached, res.Status)
	assert.Equal(t, 1, res.StepsCompleted)
	assert.Equal(t, []string{"TypeText(hello)"}, env.driver.CallStrings())
}

func TestRun_InputErrors(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.execute(t, "run", "x", "--allow", "root")
	require.ErrorIs(t, err, dperrors.ErrInvalidPermission)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))

	_, _, err = env.execute(t, "run", "   ")
	require.ErrorIs(t, err, dperrors.ErrEmptyTask)

	_, _, err = env.execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
	assert.Zero(t, env.client.PromptCount())
}

func TestResolvePermissions(t *testing.T) {
	t.Parallel()

	cfg := config.PermissionsConfig{Keyboard: true, Process: true}
	preset := []domain.Capability{domain.CapabilityKeyboard, domain.CapabilityProcess}

	tests := []struct {
		name        string
		allow       []string
		assumeYes   bool
		interactive bool
		want        []domain.Capability
		wantErr     error
	}{
		{name: "explicit list", allow: []string{"Mouse", "keyboard", "mouse"}, want: []domain.Capability{domain.CapabilityMouse, domain.CapabilityKeyboard}},
		{name: "all", allow: []string{"all"}, want: domain.AllCapabilities()},
		{name: "none", allow: []string{"none"}, want: nil},
		{name: "unknown", allow: []string{"network"}, wantErr: dperrors.ErrInvalidPermission},
		{name: "config preset when not interactive", want: preset},
		{name: "config preset with yes", assumeYes: true, interactive: true, want: preset},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolvePermissions(tc.allow, cfg, tc.assumeYes, tc.interactive)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	env := newTestEnv(t)

	cfg, err := loadConfig(context.Background(), env.deps, &config.Config{
		Inference: config.InferenceConfig{Model: "qwen2.5vl:7b"},
		Agent:     config.AgentConfig{MaxSteps: 3},
		Metrics:   config.MetricsConfig{Addr: "127.0.0.1:0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5vl:7b", cfg.Inference.Model)
	assert.Equal(t, 3, cfg.Agent.MaxSteps)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, constants.DefaultModel, env.cfg.Inference.Model, "loaded config is not mutated")

	_, err = loadConfig(context.Background(), env.deps, &config.Config{Agent: config.AgentConfig{MaxSteps: -1}})
	require.ErrorIs(t, err, dperrors.ErrConfigInvalidAgent)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, "**Hello** from the model")

	stdout, stderr, err := env.execute(t, "chat", "hi", "there")
	requireNoError(t, err, stderr)
	assert.Contains(t, stdout, "Hello")
	assert.Zero(t, env.grabber.Grabs())

	env = newTestEnv(t, "I see a desktop")
	stdout, stderr, err = env.execute(t, "chat", "--screen", "what is open?", "-o", "json")
	requireNoError(t, err, stderr)

	var reply chatReply
	require.NoError(t, json.Unmarshal([]byte(stdout), &reply))
	assert.Equal(t, "I see a desktop", reply.Reply)
	assert.Equal(t, constants.DefaultModel, reply.Model)
	assert.Equal(t, 1, env.grabber.Grabs())
}

func TestChat_InteractiveKeepsConversation(t *testing.T) {
	env := newTestEnv(t, "first answer", "second answer", "never sent")

	stdout, err := env.executeWithInput(t, "one\n\ntwo\nexit\nthree\n", "chat", "-o", "json")
	require.NoError(t, err)

	assert.Contains(t, stdout, "first answer")
	assert.Contains(t, stdout, "second answer")
	assert.NotContains(t, stdout, "never sent")
	require.Len(t, env.client.Chats, 2)
	assert.Len(t, env.client.Chats[1], 4, "system, user, assistant, user")
	assert.Equal(t, "assistant: first answer", env.client.Chats[1][2])
}

func TestChatLoop(t *testing.T) {
	t.Parallel()

	var sent []string
	send := func(s string) error {
		if s == "boom" {
			return errors.New("send failed")
		}
		sent = append(sent, s)
		return nil
	}

	var prompt strings.Builder
	err := chatLoop(context.Background(), strings.NewReader("a\n  \nb\nboom\nc\n"), &prompt, &GlobalFlags{Output: OutputText}, send)
	require.EqualError(t, err, "send failed")
	assert.Equal(t, []string{"a", "b"}, sent)
	assert.Contains(t, prompt.String(), "you>")

	sent = nil
	require.NoError(t, chatLoop(context.Background(), strings.NewReader("x\nQUIT\ny\n"), &prompt, &GlobalFlags{Output: OutputJSON}, send))
	assert.Equal(t, []string{"x"}, sent)
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t, "A desktop with a taskbar")
	env.cfg.Inference.VisionModel = "llava:13b"

	stdout, stderr, err := env.execute(t, "analyze", "what is visible?", "-o", "json")
	requireNoError(t, err, stderr)

	var reply chatReply
	require.NoError(t, json.Unmarshal([]byte(stdout), &reply))
	assert.Equal(t, "A desktop with a taskbar", reply.Reply)
	assert.Equal(t, "llava:13b", reply.Model)
	require.Len(t, env.client.Prompts, 1)
	assert.Contains(t, env.client.Prompts[0], "what is visible?")
}

func TestDetect(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := env.execute(t, "detect", "start", "button", "-o", "json")
	requireNoError(t, err, stderr)

	var res domain.DetectionResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, "Windows Start button", res.Name)
	assert.Equal(t, testutil.DesktopStartX+26, res.X)
	assert.Equal(t, testutil.DesktopStartY+26, res.Y)
	assert.Equal(t, 1, env.grabber.Grabs())
}

func TestDetect_FromImage(t *testing.T) {
	env := newTestEnv(t)

	path := filepath.Join(t.TempDir(), "screen.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, testutil.Desktop()))
	require.NoError(t, f.Close())

	stdout, stderr, err := env.execute(t, "detect", "windows start menu", "--image", path)
	requireNoError(t, err, stderr)
	assert.Contains(t, stdout, "Windows Start button at (106, 566)")
	assert.Zero(t, env.grabber.Grabs())
}

func TestDetect_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.execute(t, "detect", "teapot")
	require.ErrorIs(t, err, dperrors.ErrUnknownElement)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))

	_, _, err = env.execute(t, "detect")
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))

	// No reference glyph is installed for the search bar.
	_, _, err = env.execute(t, "detect", "search bar")
	require.ErrorIs(t, err, dperrors.ErrElementNotFound)
	assert.Equal(t, ExitError, ExitCodeForError(err))
}

func TestDetect_List(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := env.execute(t, "detect", "--list", "-o", "json")
	requireNoError(t, err, stderr)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
	require.Len(t, rows, 4)
	assert.Equal(t, "start", rows[0]["KEY"])
	assert.Equal(t, "yes", rows[0]["AVAILABLE"])
	assert.Equal(t, "no", rows[1]["AVAILABLE"])
}

func TestModels(t *testing.T) {
	env := newTestEnv(t)
	env.client.Models = []string{"qwen2.5vl:7b", "llava:7b"}

	stdout, stderr, err := env.execute(t, "models", "-o", "json")
	requireNoError(t, err, stderr)

	var resp modelsResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, constants.DefaultModel, resp.Active)
	assert.Equal(t, []string{"llava:7b", "qwen2.5vl:7b"}, resp.Models)

	stdout, stderr, err = env.execute(t, "models")
	requireNoError(t, err, stderr)
	assert.Contains(t, stdout, "*")
	assert.Contains(t, stdout, "qwen2.5vl:7b")
}

func TestUnload(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Inference.VisionModel = "llava:13b"

	_, stderr, err := env.execute(t, "unload")
	requireNoError(t, err, stderr)
	assert.Equal(t, []string{constants.DefaultModel, "llava:13b"}, env.client.UnloadedModels())

	stdout, stderr, err := env.execute(t, "unload", "other:1b", "-o", "json")
	requireNoError(t, err, stderr)
	assert.JSONEq(t, `{"unloaded": ["other:1b"]}`, stdout)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Permissions.Mouse = true

	stdout, stderr, err := env.execute(t, "status", "-o", "json")
	requireNoError(t, err, stderr)

	var resp statusResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.True(t, resp.Reachable)
	assert.Equal(t, domain.StatusIdle, resp.Status)
	assert.Equal(t, constants.DefaultModel, resp.Model)
	assert.True(t, resp.Permissions[domain.CapabilityMouse])
	assert.False(t, resp.Permissions[domain.CapabilityKeyboard])

	env.client.Err = dperrors.ErrInferenceUnavailable
	stdout, stderr, err = env.execute(t, "status")
	requireNoError(t, err, stderr)
	assert.Contains(t, stdout, "Reachable")
	assert.Contains(t, stdout, "no (")
}
