package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// ServiceInfo carries provider details used in error messages.
type ServiceInfo struct {
	Name    string // provider name (e.g., "ollama", "openai")
	BaseURL string // endpoint root
	Hint    string // how to fix an unreachable service
}

// WrapTransportError classifies a failed call: deadline -> ErrInferenceTimeout,
// refused or unresolvable -> ErrInferenceUnavailable, everything else ->
// ErrInferenceFailed. Cancellation of the caller's context passes through.
func WrapTransportError(info ServiceInfo, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return fmt.Errorf("%w: %s request timed out: %w", dperrors.ErrInferenceTimeout, info.Name, err)
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) || isDNSError(err) ||
		strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("%w: %s at %s - %s", dperrors.ErrInferenceUnavailable, info.Name, info.BaseURL, info.Hint)
	}
	return fmt.Errorf("%w: %s: %w", dperrors.ErrInferenceFailed, info.Name, err)
}

// WrapStatusError reports a non-2xx response, trimming the body.
func WrapStatusError(info ServiceInfo, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	if status == 404 && strings.Contains(strings.ToLower(msg), "not found") {
		return fmt.Errorf("%w: %s: HTTP %d: %s", dperrors.ErrModelNotFound, info.Name, status, msg)
	}
	return fmt.Errorf("%w: %s: HTTP %d: %s", dperrors.ErrInferenceFailed, info.Name, status, msg)
}

func isTimeout(err error) bool {
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}

func isDNSError(err error) bool {
	var de *net.DNSError
	return stderrors.As(err, &de)
}
