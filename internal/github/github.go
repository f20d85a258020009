package github

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/ratelimit"
	"github.com/spigell/candidate-vetter/internal/retry"
)

const (
	apiURL     = "https://api.github.com"
	userAgent  = "spigell/candidate-vetter"
	apiVersion = "2022-11-28"

	// PlatformKey is the rate limiter key for every call made by the client.
	PlatformKey = "github"

	// Max value for per_page on list endpoints.
	perPage  = 100
	maxPages = 3

	// Commit history is read up to maxCommitPages*perPage newest commits.
	maxCommitPages = 10

	defaultTimeout = 10 * time.Second
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	APIURL    string
	Token     string
	UserAgent string
	Timeout   time.Duration
	Retry     retry.Policy
	Limiter   *ratelimit.Limiter
	// ReadmeLimit caps the stored README in runes.
	ReadmeLimit int
}

type Client struct {
	http    *resty.Client
	logger  *zap.Logger
	limiter *ratelimit.Limiter
	policy  retry.Policy
	timeout time.Duration
	now     func() time.Time

	readmeLimit int
}

func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if base == "" {
		base = apiURL
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = userAgent
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	readme := opts.ReadmeLimit
	if readme <= 0 {
		readme = defaultReadmeLimit
	}

	client := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", apiVersion).
		SetHeader("User-Agent", ua)

	if token := strings.TrimSpace(opts.Token); token != "" {
		client.SetAuthToken(token)
	}

	return &Client{
		http:    client,
		logger:  logger,
		limiter: opts.Limiter,
		policy:  opts.Retry,
		timeout: timeout,
		now:     time.Now,

		readmeLimit: readme,
	}
}

type request struct {
	op     string
	path   string
	params map[string]string
	query  map[string]string
	accept string
}

// get runs one logical call: local rate limit, per-call timeout and the retry
// policy around every attempt.
func (c *Client) get(ctx context.Context, r request) (*resty.Response, error) {
	return retry.Do(ctx, c.policy, func(ctx context.Context) (*resty.Response, error) {
		if err := c.limiter.Wait(ctx, PlatformKey); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req := c.http.R().SetContext(callCtx)
		if len(r.params) > 0 {
			req.SetPathParams(r.params)
		}
		if len(r.query) > 0 {
			req.SetQueryParams(r.query)
		}
		if r.accept != "" {
			req.SetHeader("Accept", r.accept)
		}

		c.logger.Debug("make request", zap.String("op", r.op), zap.String("path", r.path))

		resp, err := req.Get(r.path)
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, errs.New(errs.Timeout, r.op, err)
			}
			return nil, err
		}

		return resp, c.checkStatus(r.op, resp)
	})
}

func (c *Client) checkStatus(op string, resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errs.New(errs.NotFound, op, nil)
	case code == http.StatusTooManyRequests,
		code == http.StatusForbidden && resp.Header().Get("X-RateLimit-Remaining") == "0":
		return &errs.Error{
			Kind:       errs.RateLimited,
			Op:         op,
			Err:        errors.New(resp.Status()),
			RetryAfter: c.retryAfter(resp.Header()),
		}
	case code >= 500:
		return errs.Newf(errs.Unavailable, op, "bad status: %s", resp.Status())
	case code == http.StatusUnprocessableEntity, code == http.StatusBadRequest:
		return errs.Newf(errs.InvalidInput, op, "bad status: %s", resp.Status())
	default:
		return errs.Newf(errs.KindUnknown, op, "bad status: %s", resp.Status())
	}
}

// retryAfter reads Retry-After (seconds) or X-RateLimit-Reset (unix time).
func (c *Client) retryAfter(h http.Header) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := strings.TrimSpace(h.Get("X-RateLimit-Reset")); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(c.now()); d > 0 {
				return d
			}
		}
	}
	return 0
}
