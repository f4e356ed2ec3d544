package ai

import (
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/mrz1836/deskpilot/internal/config"
	"github.com/mrz1836/deskpilot/internal/constants"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/metrics"
)

// FactoryOption configures NewClient.
type FactoryOption func(*factory)

type factory struct {
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    metrics.Metrics
	lookupEnv  func(string) (string, bool)
}

// WithFactoryHTTPClient sets the HTTP client used by either backend.
func WithFactoryHTTPClient(c *http.Client) FactoryOption {
	return func(f *factory) { f.httpClient = c }
}

// WithFactoryLogger sets the logger.
func WithFactoryLogger(logger zerolog.Logger) FactoryOption {
	return func(f *factory) { f.logger = logger }
}

// WithFactoryMetrics wraps the client so every call is recorded.
func WithFactoryMetrics(m metrics.Metrics) FactoryOption {
	return func(f *factory) { f.metrics = m }
}

// WithEnvLookup replaces os.LookupEnv for API key resolution.
func WithEnvLookup(fn func(string) (string, bool)) FactoryOption {
	return func(f *factory) { f.lookupEnv = fn }
}

// NewClient builds the backend selected by cfg.Provider.
func NewClient(cfg config.InferenceConfig, opts ...FactoryOption) (Client, error) {
	f := &factory{logger: zerolog.Nop(), lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(f)
	}

	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case "", config.ProviderOllama:
		client = NewOllamaClient(cfg.BaseURL,
			WithHTTPClient(f.httpClient),
			WithUnloadTimeout(cfg.UnloadTimeout),
			WithLogger(f.logger),
		)
	case config.ProviderOpenAI:
		envName := cfg.APIKeyEnv
		if envName == "" {
			envName = constants.DefaultAPIKeyEnv
		}
		key, _ := f.lookupEnv(envName)
		client, err = NewOpenAIClient(key, cfg.BaseURL, f.httpClient, f.logger)
		if err != nil {
			return nil, fmt.Errorf("%w (%s)", err, envName)
		}
	default:
		return nil, dperrors.Wrapf(dperrors.ErrUnknownProvider, "%q", cfg.Provider)
	}

	if f.metrics != nil {
		client = NewInstrumented(client, f.metrics)
	}
	return client, nil
}
