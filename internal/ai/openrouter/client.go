package openrouter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/candidate-vetter/internal/ai"
	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/logger"
	"github.com/spigell/candidate-vetter/internal/retry"
	"github.com/spigell/candidate-vetter/internal/utils"
)

const (
	apiURL              = "https://openrouter.ai/api/v1"
	defaultModel        = "openai/gpt-4o-mini"
	defaultTimeout      = 60 * time.Second
	defaultMaxLogLength = 200
	systemPrompt        = "You review software repositories for hiring teams. Reply with JSON only."
)

// Options configures a Client.
type Options struct {
	APIURL            string
	APIKey            string
	Model             string
	Referer           string
	Title             string
	Timeout           time.Duration
	RequestsPerMinute int
	Retry             retry.Policy
	MaxLogLength      int
}

// Client talks to the OpenRouter chat completions endpoint.
type Client struct {
	http      *resty.Client
	modelName string
	pacer     *rate.Limiter
	policy    retry.Policy
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Completer = (*Client)(nil)

func New(opts Options, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("openrouter api key is required")
	}

	base := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if base == "" {
		base = apiURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")
	if opts.Referer != "" {
		client.SetHeader("HTTP-Referer", opts.Referer)
	}
	if opts.Title != "" {
		client.SetHeader("X-Title", opts.Title)
	}

	return &Client{
		http:      client,
		modelName: model,
		pacer:     ai.NewPacer(opts.RequestsPerMinute),
		policy:    opts.Retry,
		logger:    logger.WithCommonFields(log, ai.ProviderOpenRouter, model),
		maxLogLen: maxLogLen,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model          string            `json:"model"`
	Messages       []message         `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

// Complete sends the prompt as a user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	const op = "openrouter chat completion"

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errs.Newf(errs.InvalidInput, op, "prompt must not be empty")
	}

	body := completionRequest{
		Model: c.modelName,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	c.logger.Debug("openrouter request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	output, err := retry.Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		if err := c.pacer.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/chat/completions")
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return "", errs.New(errs.Timeout, op, err)
			}
			return "", err
		}
		if err := checkStatus(op, resp); err != nil {
			return "", err
		}

		raw := resp.Body()
		if !gjson.ValidBytes(raw) {
			return "", errs.Newf(errs.Malformed, op, "response is not json")
		}
		if msg := gjson.GetBytes(raw, "error.message").String(); msg != "" {
			return "", errs.Newf(errs.Unavailable, op, "provider error: %s", msg)
		}

		text := strings.TrimSpace(gjson.GetBytes(raw, "choices.0.message.content").String())
		if text == "" {
			return "", errs.Newf(errs.Malformed, op, "no content in response")
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("openrouter response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, c.maxLogLen)),
	)
	return output, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.modelName
}

func checkStatus(op string, resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		var after time.Duration
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header().Get("Retry-After"))); err == nil && secs > 0 {
			after = time.Duration(secs) * time.Second
		}
		return &errs.Error{Kind: errs.RateLimited, Op: op, Err: errors.New(resp.Status()), RetryAfter: after}
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return errs.Newf(errs.Timeout, op, "bad status: %s", resp.Status())
	case code >= 500:
		return errs.Newf(errs.Unavailable, op, "bad status: %s", resp.Status())
	case code == http.StatusBadRequest:
		return errs.Newf(errs.InvalidInput, op, "bad status: %s", resp.Status())
	case code == http.StatusNotFound:
		return errs.Newf(errs.NotFound, op, "bad status: %s", resp.Status())
	default:
		return errs.Newf(errs.KindUnknown, op, "bad status: %s: %s", resp.Status(), gjson.GetBytes(resp.Body(), "error.message").String())
	}
}
