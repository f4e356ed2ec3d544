package loopguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

func TestGuard_IdenticalSignatures(t *testing.T) {
	t.Parallel()

	g := New(3, 5)
	var counts []int
	var verdicts []Verdict
	for range 6 {
		r := g.Observe("wait_")
		counts = append(counts, r.Count)
		verdicts = append(verdicts, r.Verdict)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, counts)
	assert.Equal(t, []Verdict{OK, OK, OK, Warn, Warn, Abort}, verdicts)
}

func TestGuard_ChangeResets(t *testing.T) {
	t.Parallel()

	g := New(3, 5)
	for range 4 {
		g.Observe("open_app_notepad")
	}
	assert.Equal(t, 3, g.Count())

	r := g.Observe("open_app_paint")
	assert.Equal(t, 0, r.Count)
	assert.Equal(t, OK, r.Verdict)

	g.Observe("open_app_paint")
	g.Reset()
	assert.Equal(t, 0, g.Observe("open_app_paint").Count)
}

func TestGuard_FirstEmptySignatureCountsZero(t *testing.T) {
	t.Parallel()

	g := New(0, 0)
	assert.Equal(t, 0, g.Observe("").Count)
	assert.Equal(t, 1, g.Observe("").Count)
}

func TestResult_Err(t *testing.T) {
	t.Parallel()

	require.NoError(t, Result{Verdict: Warn}.Err())
	err := Result{Signature: "escape_", Count: 5, Verdict: Abort}.Err()
	require.ErrorIs(t, err, dperrors.ErrLoopDetected)
	assert.Contains(t, err.Error(), "escape_")
}

func TestSignature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action *domain.Action
		want   string
	}{
		{"nil", nil, ""},
		{"open_app uses app", &domain.Action{Tag: "open_app", Args: domain.Args{App: "notepad"}}, "open_app_notepad"},
		{"typing uses text", &domain.Action{Tag: "keyboard_type", Args: domain.Args{Text: "hi"}}, "keyboard_type_hi"},
		{"raw params for unknown", &domain.Action{Tag: "launch", Params: domain.Params{"app": "x"}}, "launch_x"},
		{"no salient parameter", &domain.Action{Tag: "mouse_click", Params: domain.Params{"x": 1}}, "mouse_click_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Signature(tt.action))
		})
	}
}

func TestVerdict_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", OK.String())
	assert.Equal(t, "warn", Warn.String())
	assert.Equal(t, "abort", Abort.String())
}
