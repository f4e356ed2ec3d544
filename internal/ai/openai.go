package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
// Prompts become a single user message; images are sent as data URLs.
type OpenAIClient struct {
	client  openai.Client
	baseURL string
	logger  zerolog.Logger
}

// Compile-time check that OpenAIClient implements Client.
var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client. An empty baseURL uses the SDK default.
func NewOpenAIClient(apiKey, baseURL string, httpClient *http.Client, logger zerolog.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, dperrors.ErrMissingAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		baseURL: baseURL,
		logger:  logger,
	}, nil
}

func (c *OpenAIClient) info() ServiceInfo {
	base := c.baseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return ServiceInfo{Name: "openai", BaseURL: base, Hint: "check inference.base_url and network access"}
}

func (c *OpenAIClient) wrap(err error) error {
	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: openai: HTTP %d", dperrors.ErrModelNotFound, apiErr.StatusCode)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: openai: HTTP %d", dperrors.ErrMissingAPIKey, apiErr.StatusCode)
		default:
			return fmt.Errorf("%w: openai: HTTP %d: %s", dperrors.ErrInferenceFailed, apiErr.StatusCode, apiErr.Message)
		}
	}
	return WrapTransportError(c.info(), err)
}

// imageURL wraps base64 JPEG data as a data URL.
func imageURL(b64 string) string {
	if strings.HasPrefix(b64, "data:") {
		return b64
	}
	return "data:image/jpeg;base64," + b64
}

func userContent(text string, images []string) openai.ChatCompletionMessageParamUnion {
	if len(images) == 0 {
		return openai.UserMessage(text)
	}
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(text)}
	for _, img := range images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: imageURL(img),
		}))
	}
	return openai.UserMessage(parts)
}

func convertMessages(msgs []domain.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, userContent(m.Content, m.Images))
		}
	}
	return out
}

func completionParams(model string, msgs []openai.ChatCompletionMessageParamUnion, o *Options) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: msgs,
	}
	if o != nil {
		if o.Temperature > 0 {
			params.Temperature = openai.Float(o.Temperature)
		}
		if o.TopP > 0 {
			params.TopP = openai.Float(o.TopP)
		}
		if o.NumPredict > 0 {
			params.MaxTokens = openai.Int(int64(o.NumPredict))
		}
	}
	return params
}

func (c *OpenAIClient) complete(ctx context.Context, params openai.ChatCompletionNewParams, timeout time.Duration) (*Response, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, c.wrap(err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, dperrors.ErrEmptyResponse
	}
	return &Response{Model: params.Model, Text: completion.Choices[0].Message.Content}, nil
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{userContent(req.Prompt, req.Images)}
	return c.complete(ctx, completionParams(req.Model, msgs, req.Options), req.Timeout)
}

// GenerateStream implements Client.
func (c *OpenAIClient) GenerateStream(ctx context.Context, req *GenerateRequest, onToken TokenFunc) (*Response, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	msgs := []openai.ChatCompletionMessageParamUnion{userContent(req.Prompt, req.Images)}
	stream := c.client.Chat.Completions.NewStreaming(ctx, completionParams(req.Model, msgs, req.Options))
	defer func() { _ = stream.Close() }()

	var (
		sb     strings.Builder
		tokens int
	)
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		tok := chunk.Choices[0].Delta.Content
		if tok == "" {
			continue
		}
		sb.WriteString(tok)
		tokens++
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return nil, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, c.wrap(err)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, dperrors.ErrEmptyResponse
	}
	return &Response{Model: req.Model, Text: sb.String(), Streamed: true, Tokens: tokens}, nil
}

// Chat implements Client.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	return c.complete(ctx, completionParams(req.Model, convertMessages(req.Messages), req.Options), req.Timeout)
}

// Unload implements Client. Hosted endpoints manage residency themselves.
func (c *OpenAIClient) Unload(_ context.Context, model string) error {
	c.logger.Debug().Str("model", model).Msg("unload is a no-op for openai provider")
	return nil
}

// ListModels implements Client.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, connectionCheckTimeout)
	defer cancel()

	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, c.wrap(err)
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

// CheckConnection implements Client.
func (c *OpenAIClient) CheckConnection(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}
