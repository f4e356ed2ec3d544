// Package ai talks to the vision model that decides each agent step.
//
// This package defines the Client interface and two implementations: an
// HTTP client for Ollama-style local model servers and an OpenAI-compatible
// chat completions backend.
//
// IMPORTANT: This package may import internal/constants, internal/errors,
// internal/config, internal/domain and internal/metrics. It MUST NOT import
// internal/agent or internal/cli.
package ai

import (
	"context"
	"strings"
)

// TokenFunc receives streamed tokens in order. Returning an error stops the
// stream and the error is returned from GenerateStream unchanged.
type TokenFunc func(token string) error

// Client is the inference service used by the agent.
//
// Context controls cancellation; every request is additionally bounded by its
// own timeout.
type Client interface {
	// Generate sends a single prompt (with optional images) and waits for the
	// whole answer.
	Generate(ctx context.Context, req *GenerateRequest) (*Response, error)

	// GenerateStream sends a prompt and delivers tokens as they arrive.
	// The returned Response holds the accumulated text.
	GenerateStream(ctx context.Context, req *GenerateRequest, onToken TokenFunc) (*Response, error)

	// Chat sends a conversation and returns the assistant reply.
	Chat(ctx context.Context, req *ChatRequest) (*Response, error)

	// Unload asks the server to release the model from memory.
	Unload(ctx context.Context, model string) error

	// ListModels returns the names of installed models.
	ListModels(ctx context.Context) ([]string, error)

	// CheckConnection returns nil when the service answers.
	CheckConnection(ctx context.Context) error
}

// Response is the text produced by one inference call.
type Response struct {
	Model string
	Text  string

	// Streamed is true when the text was assembled from streamed tokens.
	Streamed bool

	// Tokens counts the streamed chunks that carried text.
	Tokens int
}

// SupportsStreaming reports whether model can be streamed. Some vision model
// families return their whole answer in a single chunk and are asked for a
// buffered response instead.
func SupportsStreaming(model string) bool {
	return !strings.Contains(strings.ToLower(model), "qwen3-vl")
}
