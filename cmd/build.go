package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/ai"
	"github.com/spigell/candidate-vetter/internal/ai/gemini"
	"github.com/spigell/candidate-vetter/internal/ai/openrouter"
	"github.com/spigell/candidate-vetter/internal/analysis"
	"github.com/spigell/candidate-vetter/internal/evaluation"
	"github.com/spigell/candidate-vetter/internal/github"
	"github.com/spigell/candidate-vetter/internal/linkedin"
	"github.com/spigell/candidate-vetter/internal/ratelimit"
	"github.com/spigell/candidate-vetter/internal/secrets"
)

// service is everything a command needs to evaluate candidates.
type service struct {
	engine   *evaluation.Engine
	limiters []*ratelimit.Limiter
}

// sweep drops idle limiter keys and returns how many were removed.
func (s *service) sweep() int {
	removed := 0
	for _, l := range s.limiters {
		removed += l.Sweep()
	}
	return removed
}

func newService(ctx context.Context, config *Config, logger *zap.Logger) (*service, error) {
	ghLimiter := ratelimit.New(config.GitHub.RateLimit.Requests, config.GitHub.RateLimit.Window)
	svc := &service{limiters: []*ratelimit.Limiter{ghLimiter}}

	token, err := secrets.Optional(secrets.Source{
		Name:  "github token",
		Value: config.GitHub.Token,
		File:  config.GitHub.TokenFile,
	})
	if err != nil {
		return nil, err
	}
	if token == "" {
		logger.Warn("github token is not configured", zap.String("hint", "set GITHUB_TOKEN to raise the API rate limit"))
	}

	deps := evaluation.Deps{
		CodeHost: github.New(github.Options{
			APIURL:      config.GitHub.APIURL,
			Token:       token,
			UserAgent:   config.GitHub.UserAgent,
			Timeout:     config.GitHub.Timeout,
			Retry:       config.Retry,
			Limiter:     ghLimiter,
			ReadmeLimit: config.GitHub.ReadmeLimit,
		}, logger),
	}

	if config.LinkedIn.Enabled {
		liLimiter := ratelimit.New(config.LinkedIn.RateLimit.Requests, config.LinkedIn.RateLimit.Window)
		svc.limiters = append(svc.limiters, liLimiter)

		deps.Network = linkedin.NewFetcher(linkedin.Options{
			BaseURL:   config.LinkedIn.BaseURL,
			UserAgent: config.LinkedIn.UserAgent,
			Timeout:   config.LinkedIn.Timeout,
			Retry:     config.Retry,
			Limiter:   liLimiter,
		}, logger)
	}

	completer, err := newCompleter(ctx, config.AI, config, logger)
	if err != nil {
		logger.Warn("project analysis falls back to metadata", zap.Error(err))
		completer = nil
	}
	deps.Analyzer = analysis.New(completer, analysis.Options{
		Timeout:      config.AI.Timeout,
		MaxLogLength: config.AI.MaxLogLength,
	}, logger)

	svc.engine = evaluation.New(config.Evaluation, deps, logger)
	return svc, nil
}

// newCompleter returns nil without an error when AI is disabled.
func newCompleter(ctx context.Context, cfg *AIConfig, config *Config, logger *zap.Logger) (ai.Completer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", ai.ProviderGemini:
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: gc.APIKey,
			File:  gc.APIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		generator, err := gemini.NewGenerator(ctx, gemini.Options{
			APIKey:            apiKey,
			Model:             gc.Model,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Retry:             config.Retry,
			MaxLogLength:      cfg.MaxLogLength,
		}, logger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	case ai.ProviderOpenRouter:
		oc := cfg.OpenRouter
		if oc == nil {
			oc = &OpenRouterConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openrouter api key",
			Value: oc.APIKey,
			File:  oc.APIKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openrouter.api-key-file or OPENROUTER_API_KEY)", err)
		}
		client, err := openrouter.New(openrouter.Options{
			APIURL:            oc.APIURL,
			APIKey:            apiKey,
			Model:             oc.Model,
			Referer:           oc.Referer,
			Title:             oc.Title,
			Timeout:           cfg.Timeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Retry:             config.Retry,
			MaxLogLength:      cfg.MaxLogLength,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
