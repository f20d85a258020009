package ai

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// Completer sends a single prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// NewPacer returns a limiter allowing perMinute calls with no burst.
// A non-positive value disables pacing.
func NewPacer(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}
