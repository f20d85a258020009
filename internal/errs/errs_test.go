package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOfWrapped(t *testing.T) {
	t.Parallel()

	base := &Error{Kind: RateLimited, Op: "fetch profile", RetryAfter: 3 * time.Second}
	wrapped := fmt.Errorf("github: %w", base)

	if got := KindOf(wrapped); got != RateLimited {
		t.Fatalf("expected %q, got %q", RateLimited, got)
	}
	if !Is(wrapped, RateLimited) {
		t.Fatalf("expected Is to match")
	}
	if got := RetryAfter(wrapped); got != 3*time.Second {
		t.Fatalf("unexpected retry after: %v", got)
	}
}

func TestKindOfPlainError(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("expected unknown kind, got %q", got)
	}
	if Is(nil, NotFound) {
		t.Fatalf("nil error must not match any kind")
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    *Error
		expect string
	}{
		{name: "op and cause", err: New(NotFound, "fetch profile", errors.New("octocat")), expect: "fetch profile: not_found: octocat"},
		{name: "op only", err: New(Timeout, "complete", nil), expect: "complete: timeout"},
		{name: "cause only", err: New(InvalidInput, "", errors.New("bad handle")), expect: "invalid_input: bad handle"},
		{name: "kind only", err: New(Limited, "", nil), expect: "limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	err := Newf(Malformed, "parse", "wrapping %w", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
}
