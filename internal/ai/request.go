package ai

import (
	"time"

	"github.com/mrz1836/deskpilot/internal/config"
	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/domain"
)

// Options are the sampling and placement hints forwarded to the model server.
type Options struct {
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumGPU      int     `json:"num_gpu,omitempty"`
	NumThread   int     `json:"num_thread,omitempty"`
	NUMA        bool    `json:"numa"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// AgentOptions returns the options used for agent steps.
func AgentOptions(cfg config.InferenceConfig) *Options {
	return &Options{
		NumCtx:      cfg.NumCtx,
		NumGPU:      cfg.NumGPU,
		NumThread:   cfg.NumThread,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
		NumPredict:  cfg.NumPredict,
	}
}

// GenerateRequest is a single-prompt inference request.
type GenerateRequest struct {
	Model     string
	Prompt    string
	Images    []string
	KeepAlive string
	Options   *Options
	Timeout   time.Duration
}

// ChatRequest is a conversation request. Images on a message are sent with
// that message.
type ChatRequest struct {
	Model     string
	Messages  []domain.ChatMessage
	KeepAlive string
	Options   *Options
	Timeout   time.Duration
}

// RequestOption is a functional option for configuring a GenerateRequest.
type RequestOption func(*GenerateRequest)

// NewGenerateRequest creates a GenerateRequest with the given prompt.
// Default values are applied for unspecified options.
//
// Example:
//
//	req := NewGenerateRequest(prompt,
//	    WithModel("llava:7b"),
//	    WithImages(frame.Base64),
//	    WithTimeout(time.Minute),
//	)
func NewGenerateRequest(prompt string, opts ...RequestOption) *GenerateRequest {
	req := &GenerateRequest{
		Prompt:    prompt,
		Model:     constants.DefaultModel,
		KeepAlive: constants.DefaultKeepAlive,
		Timeout:   constants.DefaultInferenceTimeout,
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// WithModel sets the model.
func WithModel(model string) RequestOption {
	return func(req *GenerateRequest) {
		if model != "" {
			req.Model = model
		}
	}
}

// WithImages attaches base64-encoded images.
func WithImages(images ...string) RequestOption {
	return func(req *GenerateRequest) {
		for _, img := range images {
			if img != "" {
				req.Images = append(req.Images, img)
			}
		}
	}
}

// WithKeepAlive sets how long the server keeps the model resident.
func WithKeepAlive(keepAlive string) RequestOption {
	return func(req *GenerateRequest) {
		if keepAlive != "" {
			req.KeepAlive = keepAlive
		}
	}
}

// WithOptions sets sampling options.
func WithOptions(o *Options) RequestOption {
	return func(req *GenerateRequest) {
		req.Options = o
	}
}

// WithTimeout bounds the request.
func WithTimeout(timeout time.Duration) RequestOption {
	return func(req *GenerateRequest) {
		if timeout > 0 {
			req.Timeout = timeout
		}
	}
}
