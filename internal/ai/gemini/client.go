package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/candidate-vetter/internal/ai"
	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/logger"
	"github.com/spigell/candidate-vetter/internal/retry"
	"github.com/spigell/candidate-vetter/internal/utils"
)

const (
	defaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
	temperature         = float32(0.2)
)

var retryInMessage = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

// contentGenerator is the subset of genai.Models used by the generator.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configures a Generator.
type Options struct {
	APIKey            string
	Model             string
	RequestsPerMinute int
	Retry             retry.Policy
	MaxLogLength      int
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models    contentGenerator
	modelName string
	pacer     *rate.Limiter
	policy    retry.Policy
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Completer = (*Generator)(nil)

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, opts Options, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, opts, log), nil
}

func newGenerator(models contentGenerator, opts Options, log *zap.Logger) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Generator{
		models:    models,
		modelName: model,
		pacer:     ai.NewPacer(opts.RequestsPerMinute),
		policy:    opts.Retry,
		logger:    logger.WithCommonFields(log, ai.ProviderGemini, model),
		maxLogLen: maxLogLen,
	}
}

// Complete sends the prompt to Gemini and returns the joined textual response.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	const op = "gemini generate content"
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errs.Newf(errs.InvalidInput, op, "prompt must not be empty")
	}

	g.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(temperature),
	}

	output, err := retry.Do(ctx, g.policy, func(ctx context.Context) (string, error) {
		if err := g.pacer.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
		if err != nil {
			classified := classify(op, err)
			g.logger.Debug("gemini call failed", zap.String("kind", string(errs.KindOf(classified))), zap.Error(err))
			return "", classified
		}

		text := joinCandidates(resp)
		if text == "" {
			return "", errs.Newf(errs.Malformed, op, "gemini api returned empty response")
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func joinCandidates(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// classify maps genai failures onto the shared error kinds.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.Timeout, op, err)
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return err
		}
		apiErr = *apiErrPtr
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return &errs.Error{Kind: errs.RateLimited, Op: op, Err: err, RetryAfter: retryDelay(apiErr)}
	case apiErr.Code == http.StatusNotFound:
		return errs.New(errs.NotFound, op, err)
	case apiErr.Code == http.StatusBadRequest:
		return errs.New(errs.InvalidInput, op, err)
	case apiErr.Code == http.StatusGatewayTimeout:
		return errs.New(errs.Timeout, op, err)
	case apiErr.Code >= 500:
		return errs.New(errs.Unavailable, op, err)
	default:
		return err
	}
}

// retryDelay reads the server hint from RetryInfo details or the message text.
func retryDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && d > 0 {
			return d
		}
	}

	if m := retryInMessage.FindStringSubmatch(apiErr.Message); len(m) == 2 {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 0
}
