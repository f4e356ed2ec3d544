// Package testutil provides fakes and mock errors shared by deskpilot tests.
//
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
var (
	// ErrMockDriver indicates a simulated input driver failure.
	ErrMockDriver = errors.New("driver failure")

	// ErrMockCapture indicates a simulated screen grab failure.
	ErrMockCapture = errors.New("capture failure")

	// ErrMockNetwork indicates a simulated network error.
	ErrMockNetwork = errors.New("network error")

	// ErrMockLaunch indicates a simulated application launch failure.
	ErrMockLaunch = errors.New("launch failure")

	// ErrMockScriptExhausted is returned by FakeClient when it has no replies left.
	ErrMockScriptExhausted = errors.New("no scripted reply left")
)
