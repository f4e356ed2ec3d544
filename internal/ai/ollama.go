package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/deskpilot/internal/constants"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// connectionCheckTimeout bounds CheckConnection independently of the request timeout.
const connectionCheckTimeout = 5 * time.Second

// OllamaClient talks to an Ollama-compatible HTTP endpoint.
type OllamaClient struct {
	baseURL       string
	httpClient    *http.Client
	unloadTimeout time.Duration
	logger        zerolog.Logger
}

// Compile-time check that OllamaClient implements Client.
var _ Client = (*OllamaClient)(nil)

// OllamaOption configures an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithHTTPClient sets the HTTP client. Per-request timeouts still apply.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *OllamaClient) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithUnloadTimeout bounds Unload.
func WithUnloadTimeout(d time.Duration) OllamaOption {
	return func(o *OllamaClient) {
		if d > 0 {
			o.unloadTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) OllamaOption {
	return func(o *OllamaClient) { o.logger = logger }
}

// NewOllamaClient creates a client for the endpoint at baseURL.
func NewOllamaClient(baseURL string, opts ...OllamaOption) *OllamaClient {
	if baseURL == "" {
		baseURL = constants.DefaultBaseURL
	}
	c := &OllamaClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		unloadTimeout: constants.DefaultUnloadTimeout,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the endpoint root.
func (c *OllamaClient) BaseURL() string { return c.baseURL }

func (c *OllamaClient) info() ServiceInfo {
	return ServiceInfo{Name: "ollama", BaseURL: c.baseURL, Hint: "is 'ollama serve' running?"}
}

type generatePayload struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt,omitempty"`
	Images    []string `json:"images,omitempty"`
	Stream    bool     `json:"stream"`
	KeepAlive string   `json:"keep_alive,omitempty"`
	Options   *Options `json:"options,omitempty"`
}

type unloadPayload struct {
	Model     string `json:"model"`
	KeepAlive int    `json:"keep_alive"`
}

type generateReply struct {
	Response string `json:"response"`
	Thinking string `json:"thinking"`
	Error    string `json:"error"`
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatPayload struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	KeepAlive string        `json:"keep_alive,omitempty"`
	Options   *Options      `json:"options,omitempty"`
}

type chatReply struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

type tagsReply struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// do posts body to path and returns the open response on 2xx.
// The caller closes the body.
func (c *OllamaClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, dperrors.Wrap(err, "encode request")
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, dperrors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapTransportError(c.info(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, WrapStatusError(c.info(), resp.StatusCode, data)
	}
	return resp, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = constants.DefaultInferenceTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Generate implements Client with a buffered request. When the reply has no
// response text, the thinking field is used instead.
func (c *OllamaClient) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/api/generate", generatePayload{
		Model:     req.Model,
		Prompt:    req.Prompt,
		Images:    req.Images,
		Stream:    false,
		KeepAlive: req.KeepAlive,
		Options:   req.Options,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var reply generateReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, WrapTransportError(c.info(), fmt.Errorf("decode generate reply: %w", err))
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: ollama: %s", dperrors.ErrInferenceFailed, reply.Error)
	}

	text := reply.Response
	if strings.TrimSpace(text) == "" {
		text = reply.Thinking
	}
	if strings.TrimSpace(text) == "" {
		return nil, dperrors.ErrEmptyResponse
	}
	c.logger.Debug().Str("model", req.Model).Int("chars", len(text)).Msg("generate completed")
	return &Response{Model: req.Model, Text: text}, nil
}

// GenerateStream implements Client. Models that cannot stream fall back to
// Generate and deliver the whole answer as one token.
func (c *OllamaClient) GenerateStream(ctx context.Context, req *GenerateRequest, onToken TokenFunc) (*Response, error) {
	if !SupportsStreaming(req.Model) {
		buffered := *req
		buffered.Options = nil
		resp, err := c.Generate(ctx, &buffered)
		if err != nil {
			return nil, err
		}
		if onToken != nil {
			if err := onToken(resp.Text); err != nil {
				return nil, err
			}
		}
		return resp, nil
	}

	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/api/generate", generatePayload{
		Model:     req.Model,
		Prompt:    req.Prompt,
		Images:    req.Images,
		Stream:    true,
		KeepAlive: req.KeepAlive,
		Options:   req.Options,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	res, err := ReadStream(resp.Body, onToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapTransportError(c.info(), ctx.Err())
		}
		return nil, err
	}
	if res.Skipped > 0 {
		c.logger.Debug().Int("skipped", res.Skipped).Msg("skipped undecodable stream lines")
	}
	if strings.TrimSpace(res.Text) == "" {
		if res.Error != "" {
			return nil, fmt.Errorf("%w: ollama: %s", dperrors.ErrInferenceFailed, res.Error)
		}
		return nil, dperrors.ErrEmptyResponse
	}
	return &Response{Model: req.Model, Text: res.Text, Streamed: true, Tokens: res.Tokens}, nil
}

// Chat implements Client.
func (c *OllamaClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	msgs := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content, Images: m.Images})
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/chat", chatPayload{
		Model:     req.Model,
		Messages:  msgs,
		Stream:    false,
		KeepAlive: req.KeepAlive,
		Options:   req.Options,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, WrapTransportError(c.info(), fmt.Errorf("decode chat reply: %w", err))
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: ollama: %s", dperrors.ErrInferenceFailed, reply.Error)
	}
	if strings.TrimSpace(reply.Message.Content) == "" {
		return nil, dperrors.ErrEmptyResponse
	}
	return &Response{Model: req.Model, Text: reply.Message.Content}, nil
}

// Unload implements Client by sending a generate request with keep_alive 0.
func (c *OllamaClient) Unload(ctx context.Context, model string) error {
	ctx, cancel := context.WithTimeout(ctx, c.unloadTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/api/generate", unloadPayload{Model: model})
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	c.logger.Debug().Str("model", model).Msg("model unloaded")
	return nil
}

// ListModels implements Client.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, connectionCheckTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var reply tagsReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, WrapTransportError(c.info(), fmt.Errorf("decode tags reply: %w", err))
	}
	names := make([]string, 0, len(reply.Models))
	for _, m := range reply.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// CheckConnection implements Client.
func (c *OllamaClient) CheckConnection(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}
