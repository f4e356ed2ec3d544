package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		ok     bool
		token  string
		isDone bool
	}{
		{name: "blank", line: "   ", ok: false},
		{name: "garbage", line: "{oops", ok: false},
		{name: "response", line: `{"response":"a"}`, ok: true, token: "a"},
		{name: "thinking fallback", line: `{"thinking":"b"}`, ok: true, token: "b"},
		{name: "response wins", line: `{"response":"a","thinking":"b"}`, ok: true, token: "a"},
		{name: "done", line: `{"done":true}`, ok: true, isDone: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chunk, ok := ParseStreamLine([]byte(tt.line))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, chunk.Token())
			assert.Equal(t, tt.isDone, chunk.Done)
		})
	}
}

func TestReadStream(t *testing.T) {
	t.Parallel()

	t.Run("stops at done and counts skipped lines", func(t *testing.T) {
		t.Parallel()
		in := "{\"response\":\"he\"}\nbad\n{\"response\":\"llo\",\"done\":true}\n{\"response\":\"x\"}\n"
		res, err := ReadStream(strings.NewReader(in), nil)
		require.NoError(t, err)
		assert.Equal(t, "hello", res.Text)
		assert.Equal(t, 2, res.Tokens)
		assert.Equal(t, 1, res.Skipped)
		assert.True(t, res.Done)
	})

	t.Run("EOF without done keeps text", func(t *testing.T) {
		t.Parallel()
		res, err := ReadStream(strings.NewReader(`{"response":"partial"}`), nil)
		require.NoError(t, err)
		assert.Equal(t, "partial", res.Text)
		assert.False(t, res.Done)
	})

	t.Run("records server error chunk", func(t *testing.T) {
		t.Parallel()
		res, err := ReadStream(strings.NewReader(`{"error":"out of memory","done":true}`), nil)
		require.NoError(t, err)
		assert.Equal(t, "out of memory", res.Error)
		assert.Empty(t, res.Text)
	})

	t.Run("accepts long lines", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("x", 200*1024)
		res, err := ReadStream(strings.NewReader(`{"response":"`+long+`"}`), nil)
		require.NoError(t, err)
		assert.Len(t, res.Text, len(long))
	})
}
