package llm

import (
	"context"
	"log"

	"github.com/dbtai-dev/dbtai/internal/config"
)

// New selects the backend named by cfg once and wraps it with the standard
// middleware stack: logging (when logger is non-nil), bounded retry of
// network failures, and a per-request timeout.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (Client, error) {
	inner, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mws := make([]Middleware, 0, 3)
	if logger != nil {
		mws = append(mws, WithLogging(logger))
	}
	mws = append(mws, Retry(cfg.Attempts(), 0), WithTimeout(cfg.Timeout()))
	return Wrap(inner, mws...), nil
}

func newBackend(ctx context.Context, cfg config.Config) (Client, error) {
	switch cfg.Backend {
	case config.BackendOpenAI, "":
		return NewOpenAIClient(cfg.ResolveAPIKey(), cfg.ModelName(), cfg.Timeout()), nil
	case config.BackendMistral:
		return NewMistralClient(cfg.ResolveAPIKey(), cfg.ModelName(), cfg.Timeout()), nil
	case config.BackendGemini:
		key := cfg.ResolveAPIKey()
		if key == "" {
			return nil, &UnsupportedBackendError{Backend: string(cfg.Backend), Err: ErrMissingAPIKey}
		}
		return NewGeminiClient(ctx, key, cfg.ModelName())
	case config.BackendAzureOpenAI:
		return nil, &UnsupportedBackendError{Backend: string(cfg.Backend), Err: ErrNotImplemented}
	default:
		return nil, &UnsupportedBackendError{Backend: string(cfg.Backend), Err: config.ErrUnknownBackend}
	}
}
