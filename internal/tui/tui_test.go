package tui_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/tui"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTTYOutput(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	out := tui.NewOutput(&buf, tui.FormatText)
	out.Success("done")
	out.Error(errors.New("broken"))
	out.Warning("careful")
	out.Info("note")
	out.Table([]string{"ID", "Status"}, [][]string{{"a", "completed"}, {"bb"}})

	got := buf.String()
	assert.Contains(t, got, "✓ done")
	assert.Contains(t, got, "✗ broken")
	assert.Contains(t, got, "⚠ careful")
	assert.Contains(t, got, "note")
	assert.Contains(t, got, "ID  Status\n")
	assert.Contains(t, got, "a   completed\n")
	assert.Contains(t, got, "bb\n")
}

func TestJSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	out := tui.NewOutput(&buf, tui.FormatJSON)
	out.Success("ignored")
	out.Info("ignored")
	out.Warning("ignored")
	assert.Empty(t, buf.String())

	out.Table([]string{"ID", "Status"}, [][]string{{"a", "completed"}, {"b"}})
	var rows []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Equal(t, []map[string]string{{"ID": "a", "Status": "completed"}, {"ID": "b", "Status": ""}}, rows)

	buf.Reset()
	out.Error(dperrors.ErrModelNotFound)
	assert.JSONEq(t, `{"error": "model not found"}`, buf.String())

	buf.Reset()
	out.Markdown("# hi")
	assert.JSONEq(t, `{"text": "# hi"}`, buf.String())

	buf.Reset()
	require.NoError(t, out.JSON(map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n": 1}`, buf.String())
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	out := tui.RenderMarkdown("**Notepad** is open.")
	assert.Contains(t, out, "Notepad")
	assert.Contains(t, out, "is open.")
}

func TestStatusIcons(t *testing.T) {
	t.Parallel()

	tests := map[domain.SessionStatus]string{
		domain.StatusIdle:             "○",
		domain.StatusRunning:          "●",
		domain.StatusCompleted:        "✓",
		domain.StatusCancelled:        "✗",
		domain.StatusFailed:           "✗",
		domain.StatusStepLimitReached: "⚠",
		domain.SessionStatus("weird"): "?",
	}
	for status, icon := range tests {
		assert.Equal(t, icon, tui.StatusIcon(status), status)
		assert.Contains(t, tui.FormatStatus(status), string(status))
	}
	assert.Equal(t, tui.ColorSuccess, tui.StatusColor(domain.StatusCompleted))
	assert.Equal(t, tui.ColorError, tui.StatusColor(domain.StatusFailed))
}

func TestFormatEntry(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	tui.CheckNoColor()
	styles := tui.NewOutputStyles()

	ok := tui.FormatEntry(domain.ExecutionLogEntry{Step: 2, Action: "mouse_click", Outcome: "Clicked at (1, 2)", Success: true}, styles)
	assert.Equal(t, "✓ [2] mouse_click: Clicked at (1, 2)", ok)

	failed := tui.FormatEntry(domain.ExecutionLogEntry{Step: 3, Action: "parse", Outcome: "Could not parse AI response"}, styles)
	assert.Equal(t, "✗ [3] parse: Could not parse AI response", failed)

	cancelled := tui.FormatEntry(domain.ExecutionLogEntry{Step: 1, Action: "cancel", Outcome: "Task cancelled by user"}, styles)
	assert.True(t, strings.HasPrefix(cancelled, "■ [1] cancel"))
}

func TestStepFeedback_Plain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	buf := &syncBuffer{}
	f := tui.NewStepFeedback(context.Background(), buf, tui.WithAnimation(false), tui.WithReasoning(true))
	f.Start("open notepad", 15)
	f.StepStarted(1, 15)
	f.Token("a")
	f.StepFinished(domain.ExecutionLogEntry{Step: 1, Action: "open_app", Reasoning: "need notepad", Outcome: "Opened notepad successfully", Success: true})
	f.Stop()

	assert.Equal(t, "▶ open notepad\n✓ [1] open_app: Opened notepad successfully\n    need notepad\n", buf.String())
}

func TestStepFeedback_Animated(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	f := tui.NewStepFeedback(context.Background(), buf)
	f.Start("task", 3)
	f.StepStarted(2, 3)
	for range 5 {
		f.Token("x")
	}
	time.Sleep(3 * tui.SpinnerInterval)
	f.StepFinished(domain.ExecutionLogEntry{Step: 2, Action: "wait", Outcome: "Waited 1 seconds", Success: true})
	f.Stop()
	f.Stop()

	got := buf.String()
	assert.Contains(t, got, "task")
	assert.Contains(t, got, "Step 2/3")
	assert.Contains(t, got, "thinking (5 tokens)")
	assert.Contains(t, got, "[2] wait")
	assert.Contains(t, got, "\r\033[K")
}

func TestSpinner_StopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := tui.NewSpinner(&syncBuffer{})
	s.Start(ctx, "working")
	assert.True(t, s.Running())
	cancel()
	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 10*time.Millisecond)
}

func TestProgressBar(t *testing.T) {
	t.Parallel()

	pb := tui.NewProgressBar(10)
	assert.Equal(t, 10, pb.Width())
	assert.Equal(t, pb.Render(1), pb.Render(2), "clamped")
	assert.Equal(t, pb.Render(0), pb.Render(-1), "clamped")
	assert.Equal(t, "Step 3/15", tui.FormatStepCounter(3, 15))
}

func TestPermissionOptions(t *testing.T) {
	t.Parallel()

	opts := tui.PermissionOptions([]domain.Capability{domain.CapabilityMouse})
	require.Len(t, opts, len(domain.AllCapabilities()))
	assert.Equal(t, domain.CapabilityMouse, opts[0].Value)
	assert.Contains(t, opts[0].Key, "mouse - move the cursor")
	assert.Equal(t, domain.CapabilityKeyboard, opts[1].Value)
}

func TestRelativeTimeAndDuration(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{2 * time.Hour, "2 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{15 * 24 * time.Hour, "2 weeks ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tui.RelativeTime(now.Add(-tt.ago), now))
	}

	assert.Equal(t, "850ms", tui.FormatDuration(850*time.Millisecond))
	assert.Equal(t, "12.4s", tui.FormatDuration(12400*time.Millisecond))
	assert.Equal(t, "3m05s", tui.FormatDuration(185*time.Second))
}
