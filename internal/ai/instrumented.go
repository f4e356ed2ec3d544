package ai

import (
	"context"
	"time"

	"github.com/mrz1836/deskpilot/internal/metrics"
)

// Instrumented records every generate and chat call.
type Instrumented struct {
	Client

	metrics metrics.Metrics
}

// NewInstrumented wraps c.
func NewInstrumented(c Client, m metrics.Metrics) *Instrumented {
	return &Instrumented{Client: c, metrics: metrics.OrNoop(m)}
}

// Generate implements Client.
func (i *Instrumented) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	start := time.Now()
	resp, err := i.Client.Generate(ctx, req)
	i.metrics.InferenceCompleted(req.Model, false, time.Since(start), err)
	return resp, err
}

// GenerateStream implements Client.
func (i *Instrumented) GenerateStream(ctx context.Context, req *GenerateRequest, onToken TokenFunc) (*Response, error) {
	start := time.Now()
	resp, err := i.Client.GenerateStream(ctx, req, onToken)
	i.metrics.InferenceCompleted(req.Model, resp != nil && resp.Streamed, time.Since(start), err)
	return resp, err
}

// Chat implements Client.
func (i *Instrumented) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	start := time.Now()
	resp, err := i.Client.Chat(ctx, req)
	i.metrics.InferenceCompleted(req.Model, false, time.Since(start), err)
	return resp, err
}
