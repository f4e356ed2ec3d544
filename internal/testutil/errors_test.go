package testutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrMockDriver", ErrMockDriver, "driver failure"},
		{"ErrMockCapture", ErrMockCapture, "capture failure"},
		{"ErrMockNetwork", ErrMockNetwork, "network error"},
		{"ErrMockLaunch", ErrMockLaunch, "launch failure"},
		{"ErrMockScriptExhausted", ErrMockScriptExhausted, "no scripted reply left"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", tt.err), tt.err))
		})
	}
}
