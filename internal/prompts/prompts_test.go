package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/domain"
)

func TestList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []PromptID{AnalyzeScreen, ChatSystem, AgentStep}, List())
	for _, id := range List() {
		assert.True(t, Exists(id))
		src, err := GetTemplate(id)
		require.NoError(t, err)
		assert.NotEmpty(t, src)
	}
	assert.False(t, Exists("agent/missing"))
}

func TestRender_AgentStep(t *testing.T) {
	t.Parallel()

	t.Run("first step has no context section", func(t *testing.T) {
		t.Parallel()
		out, err := Render(AgentStep, StepData{Task: "open notepad", Step: 1, MaxSteps: 15, Width: 1920, Height: 1080})
		require.NoError(t, err)

		lines := strings.Split(out, "\n")
		assert.Equal(t, "TASK: open notepad", lines[0])
		assert.Equal(t, "Step 1/15 | Screen Resolution: 1920x1080", lines[1])
		assert.NotContains(t, out, "PREVIOUS STEPS")
		assert.NotContains(t, out, "WARNING:")
		assert.Contains(t, out, "```json")
		assert.Contains(t, out, `"task_complete": false`)
		assert.Contains(t, out, `- detect_ui_element: {"element_name": "Start button"}`)
		assert.Contains(t, out, "- open_app:")
	})

	t.Run("context window and loop warning", func(t *testing.T) {
		t.Parallel()
		out, err := Render(AgentStep, StepData{
			Task: "t", Step: 3, MaxSteps: 15, Width: 800, Height: 600,
			Context: []domain.ContextEntry{
				{Action: "detect_ui_element", Reasoning: "find start", Result: "found at (24, 580)"},
				{Action: "mouse_click", Reasoning: "open menu"},
			},
			LoopWarning: "Same action repeated 3 times",
			Elements:    []string{"Windows Start button", "Search Bar"},
		})
		require.NoError(t, err)
		assert.Contains(t, out, "PREVIOUS STEPS (what you've already done):\n1. detect_ui_element: find start\n   Result: found at (24, 580)\n2. mouse_click: open menu\n")
		assert.Contains(t, out, "Don't repeat successful actions.")
		assert.Contains(t, out, "WARNING: Same action repeated 3 times")
		assert.Contains(t, out, "(known: Windows Start button, Search Bar)")
	})
}

func TestRender_AnalyzeAndChat(t *testing.T) {
	t.Parallel()

	out, err := Render(AnalyzeScreen, AnalyzeData{Question: DefaultAnalyzeQuestion, Width: 10, Height: 20})
	require.NoError(t, err)
	assert.Equal(t, "Describe what you see on the screen.\n\nThe screenshot is 10x20 pixels.", out)

	out, err = Render(AnalyzeScreen, AnalyzeData{Question: "Is notepad open?"})
	require.NoError(t, err)
	assert.Equal(t, "Is notepad open?", out)

	out, err = Render(ChatSystem, ChatSystemData{Width: 1920, Height: 1080})
	require.NoError(t, err)
	assert.Contains(t, out, "on the 1920x1080 screen.")
}

func TestRender_Errors(t *testing.T) {
	t.Parallel()

	_, err := Render("agent/missing", nil)
	require.ErrorIs(t, err, ErrTemplateNotFound)

	_, err = Render(AgentStep, AnalyzeData{})
	require.ErrorIs(t, err, ErrInvalidData)

	assert.Panics(t, func() { MustRender(ChatSystem, "wrong") })
	assert.NotPanics(t, func() { MustRender(ChatSystem, ChatSystemData{}) })
}
