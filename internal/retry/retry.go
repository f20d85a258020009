package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"time"

	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/utils"
)

// Policy describes how an idempotent operation is retried.
type Policy struct {
	// MaxAttempts counts the first call too.
	MaxAttempts int           `mapstructure:"max-attempts" json:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base-delay" json:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max-delay" json:"max_delay"`
	Factor      float64       `mapstructure:"factor" json:"factor"`
	// Jitter is the fraction of the computed delay that is randomised, 0..1.
	Jitter float64 `mapstructure:"jitter" json:"jitter"`
	// MaxRetryAfter caps a server-requested delay. Longer requests stop retrying.
	MaxRetryAfter time.Duration `mapstructure:"max-retry-after" json:"max_retry_after"`
}

// Default returns the policy used for platform and model calls.
func Default() Policy {
	return Policy{
		MaxAttempts:   3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Factor:        2,
		Jitter:        0.2,
		MaxRetryAfter: time.Minute,
	}
}

var (
	wait   = utils.WaitFor
	random = rand.Float64
)

func (p Policy) normalized() Policy {
	def := Default()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = def.Jitter
	}
	if p.MaxRetryAfter <= 0 {
		p.MaxRetryAfter = def.MaxRetryAfter
	}
	return p
}

// Backoff returns the delay after the given failed attempt (1-based).
// r is a uniform sample in [0,1) used for jitter.
func (p Policy) Backoff(attempt int, r float64) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d = d * (1 - p.Jitter + 2*p.Jitter*r)
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy runs out of attempts. A rate-limit failure that survives every
// attempt is reported as errs.Limited.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		retryable, delay := Classify(err)
		if !retryable || attempt == p.MaxAttempts {
			break
		}

		if delay > p.MaxRetryAfter {
			break
		}
		if delay <= 0 {
			delay = p.Backoff(attempt, random())
		}

		if err := wait(ctx, delay); err != nil {
			return zero, lastErr
		}
	}

	if errs.Is(lastErr, errs.RateLimited) {
		return zero, &errs.Error{Kind: errs.Limited, Op: "retry", Err: lastErr}
	}
	return zero, lastErr
}

// Classify reports whether err is worth another attempt and the delay the
// remote side asked for, if any.
func Classify(err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}
	if errors.Is(err, context.Canceled) {
		return false, 0
	}

	switch errs.KindOf(err) {
	case errs.RateLimited:
		return true, errs.RetryAfter(err)
	case errs.Unavailable, errs.Timeout:
		return true, 0
	case errs.NotFound, errs.InvalidInput, errs.Malformed, errs.Limited:
		return false, 0
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true, 0
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout, 0
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout(), 0
	}

	return false, 0
}
