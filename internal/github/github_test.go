package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/ratelimit"
	"github.com/spigell/candidate-vetter/internal/retry"
)

var fastRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(Options{
		APIURL:  server.URL,
		Token:   "secret",
		Retry:   fastRetry,
		Limiter: ratelimit.New(100, time.Minute),
	}, zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchProfile(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/octocat", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, apiVersion, r.Header.Get("X-GitHub-Api-Version"))
		fmt.Fprint(w, `{"login":"octocat","name":"The Octocat","bio":null,"blog":"octo.dev","html_url":"https://github.com/octocat","public_repos":8,"followers":"42","created_at":"2011-01-25T18:44:36Z"}`)
	}))

	profile, err := c.FetchProfile(context.Background(), "octocat")
	require.NoError(t, err)

	assert.Equal(t, "octocat", profile.Login)
	assert.Equal(t, "The Octocat", profile.Name)
	assert.Empty(t, profile.Bio)
	assert.Equal(t, "https://octo.dev", profile.Blog)
	assert.Equal(t, 8, profile.PublicRepos)
	assert.Equal(t, 42, profile.Followers, "loosely typed numbers are normalized")
	assert.Equal(t, 2011, profile.CreatedAt.Year())
}

func TestFetchProfileNotFound(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, nil)
	}))

	_, err := c.FetchProfile(context.Background(), "ghost-user")
	assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "not found is terminal")
}

func TestFetchProfileInvalidHandleSkipsNetwork(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	_, err := c.FetchProfile(context.Background(), "bad--handle")
	assert.True(t, errs.Is(err, errs.InvalidInput), "got %v", err)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestFetchProfileRetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"login":"octocat"}`)
	}))

	profile, err := c.FetchProfile(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Equal(t, "octocat", profile.Login)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchProfileSurfacesLimited(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.FetchProfile(context.Background(), "octocat")
	assert.True(t, errs.Is(err, errs.Limited), "got %v", err)
}

func TestFetchProfileDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.FetchProfile(context.Background(), "octocat")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchProfileMalformed(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))

	_, err := c.FetchProfile(context.Background(), "octocat")
	assert.True(t, errs.Is(err, errs.Malformed), "got %v", err)
}

func TestFetchRepositoriesPaginates(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/jane-dev/repos", r.URL.Path)
		assert.Equal(t, "owner", r.URL.Query().Get("type"))

		var items []string
		switch r.URL.Query().Get("page") {
		case "1":
			for i := 0; i < perPage; i++ {
				items = append(items, fmt.Sprintf(`{"id":%d,"name":"repo-%d","owner":{"login":"jane-dev"}}`, i, i))
			}
		case "2":
			items = append(items, `{"id":1000,"name":"last","fork":true,"archived":true,"topics":["go"," "],"license":null,"created_at":"2024-01-01T10:00:00Z"}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(items, ","))
	}))

	repos, err := c.FetchRepositories(context.Background(), "jane-dev")
	require.NoError(t, err)
	require.Equal(t, perPage+1, repos.Len())

	last := repos.FindByName("last")
	require.NotNil(t, last)
	assert.True(t, last.IsFork)
	assert.True(t, last.IsArchived)
	assert.Equal(t, []string{"go"}, last.Topics)
	assert.Equal(t, "2024-01-01", last.CreatedAt.Format(time.DateOnly))
	assert.Equal(t, 1, repos.Forks())
}

func TestFetchRepositoryDetailDegradesGracefully(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/jane-dev/kv-store", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"id":7,"name":"kv-store","owner":{"login":"jane-dev"},"homepage":"kv.jane.dev","has_pages":true,"license":{"spdx_id":"MIT"},"stargazers_count":12}`)
	})
	mux.HandleFunc("/repos/jane-dev/kv-store/readme", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/repos/jane-dev/kv-store/contributors", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"login":"jane-dev"},{"login":"friend"}]`)
	})
	mux.HandleFunc("/repos/jane-dev/kv-store/commits", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			{"commit":{"author":{"date":"2024-06-20T10:00:00Z"}}},
			{"commit":{"author":{"date":"2024-06-10T10:00:00Z"}}},
			{"commit":{"committer":{"date":"2024-06-01T10:00:00Z"}}}
		]`)
	})

	c := newTestClient(t, mux)

	detail, err := c.FetchRepositoryDetail(context.Background(), "jane-dev", "kv-store")
	require.NoError(t, err)

	assert.Equal(t, "kv-store", detail.Name)
	assert.Equal(t, "MIT", detail.License)
	assert.Equal(t, "https://kv.jane.dev", detail.Homepage)
	assert.Empty(t, detail.Readme, "missing readme degrades to empty")
	assert.Equal(t, 2, detail.ContributorCount)
	assert.Equal(t, 3, detail.CommitPattern.TotalCommits)
	assert.Equal(t, 3, detail.CommitPattern.CommitsLastMonth)
}

func TestFetchRepositoryDetailPagesCommits(t *testing.T) {
	t.Parallel()

	commit := `{"commit":{"author":{"date":"2024-06-20T10:00:00Z"}}}`
	fullPage := "[" + strings.TrimSuffix(strings.Repeat(commit+",", perPage), ",") + "]"

	var pages int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/jane-dev/busy", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name":"busy"}`)
	})
	mux.HandleFunc("/repos/jane-dev/busy/commits", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		switch r.URL.Query().Get("page") {
		case "1", "2":
			fmt.Fprint(w, fullPage)
		case "3":
			fmt.Fprintf(w, "[%s,%s]", commit, commit)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	c := newTestClient(t, mux)

	detail, err := c.FetchRepositoryDetail(context.Background(), "jane-dev", "busy")
	require.NoError(t, err)
	assert.Equal(t, 2*perPage+2, detail.CommitPattern.TotalCommits)
	assert.Equal(t, int32(3), atomic.LoadInt32(&pages))
}

func TestFetchRepositoryDetailCommitPagesCapped(t *testing.T) {
	t.Parallel()

	commit := `{"commit":{"author":{"date":"2024-06-20T10:00:00Z"}}}`
	fullPage := "[" + strings.TrimSuffix(strings.Repeat(commit+",", perPage), ",") + "]"

	var pages int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/jane-dev/huge", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name":"huge"}`)
	})
	mux.HandleFunc("/repos/jane-dev/huge/commits", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&pages, 1)
		fmt.Fprint(w, fullPage)
	})

	c := newTestClient(t, mux)

	detail, err := c.FetchRepositoryDetail(context.Background(), "jane-dev", "huge")
	require.NoError(t, err)
	assert.Equal(t, maxCommitPages*perPage, detail.CommitPattern.TotalCommits)
	assert.Equal(t, int32(maxCommitPages), atomic.LoadInt32(&pages))
}

func TestFetchRepositoryDetailReadmeTruncated(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/jane-dev/notes", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name":"notes"}`)
	})
	mux.HandleFunc("/repos/jane-dev/notes/readme", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, rawMediaType, r.Header.Get("Accept"))
		fmt.Fprint(w, strings.Repeat("a", 50))
	})
	mux.HandleFunc("/repos/jane-dev/notes/contributors", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/repos/jane-dev/notes/commits", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	c := New(Options{APIURL: server.URL, Retry: fastRetry, ReadmeLimit: 10}, zap.NewNop())

	detail, err := c.FetchRepositoryDetail(context.Background(), "jane-dev", "notes")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 10), detail.Readme)
	assert.Zero(t, detail.ContributorCount)
	assert.Zero(t, detail.CommitPattern.TotalCommits)
}

func TestFetchRepositoryDetailMissingRepository(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.NotFoundHandler())

	detail, err := c.FetchRepositoryDetail(context.Background(), "jane-dev", "gone")
	assert.Nil(t, detail)
	assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)

	_, err = c.FetchRepositoryDetail(context.Background(), "jane-dev", "../etc")
	assert.True(t, errs.Is(err, errs.InvalidInput), "got %v", err)
}

func TestRetryAfterFromReset(t *testing.T) {
	t.Parallel()

	c := New(Options{}, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	h := http.Header{}
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", now.Add(90*time.Second).Unix()))
	assert.Equal(t, 90*time.Second, c.retryAfter(h))

	h.Set("Retry-After", "5")
	assert.Equal(t, 5*time.Second, c.retryAfter(h))
}
