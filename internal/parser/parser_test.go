package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		want    string
		wantErr error
	}{
		{
			name: "fenced block wins over surrounding prose",
			text: "THINKING: first {not this}\n```json\n{\"action\": \"wait\"}\n```\nthanks {x}",
			want: `{"action": "wait"}`,
		},
		{
			name: "fence tag is case-insensitive",
			text: "```JSON {\"action\":\"escape\"}```",
			want: `{"action":"escape"}`,
		},
		{
			name: "bare object after reasoning",
			text: `I see the desktop. {"action":"complete","parameters":{}} done.`,
			want: `{"action":"complete","parameters":{}}`,
		},
		{
			name: "braces inside strings do not close early",
			text: `prefix {"reasoning":"use {curly} literally","action":"wait"} suffix`,
			want: `{"reasoning":"use {curly} literally","action":"wait"}`,
		},
		{
			name: "escaped quote inside string",
			text: `{"text":"say \"}\" now","action":"keyboard_type"}`,
			want: `{"text":"say \"}\" now","action":"keyboard_type"}`,
		},
		{
			name: "escaped backslash before closing quote",
			text: `{"path":"C:\\","action":"wait"} tail}`,
			want: `{"path":"C:\\","action":"wait"}`,
		},
		{
			name: "nested objects",
			text: `x {"action":"mouse_click","parameters":{"x":1,"y":{"z":2}}} y`,
			want: `{"action":"mouse_click","parameters":{"x":1,"y":{"z":2}}}`,
		},
		{name: "no brace", text: "I am not sure what to do", wantErr: dperrors.ErrNoJSONFound},
		{name: "unclosed object", text: `{"action":"wait"`, wantErr: dperrors.ErrNoJSONFound},
		{name: "unterminated string", text: `{"action":"wait}`, wantErr: dperrors.ErrNoJSONFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Extract(tt.text)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("full action with typed parameters", func(t *testing.T) {
		t.Parallel()
		text := "THINKING: click start\n```json\n" +
			`{"observation":"desktop","action":" Mouse_Click ","reasoning":"open menu",` +
			`"parameters":{"x":"24","y":1418.7,"button":"left"},"task_complete":false}` + "\n```"
		a, err := Parse(text)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionClick, a.Type)
		assert.Equal(t, "mouse_click", a.Tag)
		assert.Equal(t, "open menu", a.Reasoning)
		assert.Equal(t, "desktop", a.Observation)
		require.NoError(t, a.ArgsErr)
		assert.True(t, a.Args.HasPoint)
		assert.Equal(t, 24, a.Args.X)
		assert.Equal(t, 1418, a.Args.Y)
		assert.Equal(t, "left", a.Args.Button)
		assert.False(t, a.Completes())
	})

	t.Run("defaults for missing optional fields", func(t *testing.T) {
		t.Parallel()
		a, err := Parse(`{"action":"scroll"}`)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionScroll, a.Type)
		assert.Empty(t, a.Params)
		assert.Equal(t, 3, a.Args.Amount)
		assert.False(t, a.TaskComplete)
	})

	t.Run("unknown tag is preserved", func(t *testing.T) {
		t.Parallel()
		a, err := Parse(`{"action":"teleport","parameters":{"where":"moon"}}`)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionUnknown, a.Type)
		assert.Equal(t, "teleport", a.Tag)
	})

	t.Run("task_complete flag completes", func(t *testing.T) {
		t.Parallel()
		a, err := Parse(`{"action":"wait","task_complete":"true"}`)
		require.NoError(t, err)
		assert.True(t, a.Completes())
	})

	t.Run("parameter errors do not fail the parse", func(t *testing.T) {
		t.Parallel()
		a, err := Parse(`{"action":"keyboard_type","parameters":{"text":""}}`)
		require.NoError(t, err)
		require.ErrorIs(t, a.ArgsErr, dperrors.ErrInvalidParameter)
	})

	malformed := []struct {
		name string
		text string
	}{
		{"missing value", `{"action": }`},
		{"missing action", `{"reasoning":"hmm"}`},
		{"blank action", `{"action":"   "}`},
		{"non-string action", `{"action":42}`},
		{"parameters not an object", `{"action":"wait","parameters":[1,2]}`},
		{"fenced garbage", "```json\nnot json\n```"},
		{"fenced array", "```json\n[1]\n```"},
	}
	for _, tt := range malformed {
		t.Run("malformed: "+tt.name, func(t *testing.T) {
			t.Parallel()
			a, err := Parse(tt.text)
			assert.Nil(t, a)
			require.ErrorIs(t, err, dperrors.ErrMalformedJSON)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.NotEmpty(t, pe.Candidate)
		})
	}

	t.Run("no JSON", func(t *testing.T) {
		t.Parallel()
		_, err := Parse("THINKING: nothing to do")
		require.ErrorIs(t, err, dperrors.ErrNoJSONFound)
	})
}
