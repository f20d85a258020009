package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Options{
		APIURL: server.URL,
		APIKey: "or-key",
		Title:  "candidate-vetter",
		Retry:  retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1},
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestComplete(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "candidate-vetter", r.Header.Get("X-Title"))

		var body completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, defaultModel, body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.Equal(t, "rate this", body.Messages[1].Content)

		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":" {\"code_quality\": 80} "}}]}`)
	})

	out, err := c.Complete(context.Background(), "rate this")
	require.NoError(t, err)
	assert.Equal(t, `{"code_quality": 80}`, out)
	assert.Equal(t, defaultModel, c.Model())
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	})

	out, err := c.Complete(context.Background(), "rate this")
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCompleteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		kind    errs.Kind
		retries bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, kind: errs.Limited, retries: true},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, kind: errs.Malformed},
		{name: "not json", status: http.StatusOK, body: `upstream hiccup`, kind: errs.Malformed},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"bad"}}`, kind: errs.InvalidInput},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, kind: errs.Timeout, retries: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls int32
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := c.Complete(context.Background(), "rate this")
			assert.True(t, errs.Is(err, tt.kind), "expected %s, got %v", tt.kind, err)

			expected := int32(1)
			if tt.retries {
				expected = 2
			}
			assert.Equal(t, expected, atomic.LoadInt32(&calls))
		})
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New(Options{}, nil)
	assert.Error(t, err)
}
