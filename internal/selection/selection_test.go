package selection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/candidate-vetter/internal/github"
)

var now = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func testDeps() Deps {
	return Deps{Logger: zap.NewNop(), Now: func() time.Time { return now }}
}

func repo(name string, mutate func(*github.RepositorySummary)) *github.RepositorySummary {
	r := &github.RepositorySummary{Name: name, UpdatedAt: now.Add(-24 * time.Hour)}
	if mutate != nil {
		mutate(r)
	}
	return r
}

func TestRunDefaultPipeline(t *testing.T) {
	t.Parallel()

	repos := &github.Repositories{Items: []*github.RepositorySummary{
		repo("fork", func(r *github.RepositorySummary) { r.IsFork = true; r.StarCount = 100 }),
		repo("archived", func(r *github.RepositorySummary) { r.IsArchived = true }),
		repo("stale", func(r *github.RepositorySummary) { r.UpdatedAt = now.AddDate(-3, 0, 0) }),
		repo("unknown-activity", func(r *github.RepositorySummary) { r.UpdatedAt = time.Time{} }),
		repo("popular", func(r *github.RepositorySummary) { r.StarCount = 10 }),
	}}

	got, err := Run(context.Background(), DefaultConfig(), testDeps(), Default(), repos)
	require.NoError(t, err)
	assert.Equal(t, []string{"popular", "unknown-activity"}, got.Names())
}

func TestRunLogsEveryStep(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	deps := Deps{Logger: zap.New(core), Now: func() time.Time { return now }}

	repos := &github.Repositories{Items: []*github.RepositorySummary{
		repo("a", func(r *github.RepositorySummary) { r.IsFork = true }),
		repo("b", nil),
	}}

	_, err := Run(context.Background(), nil, deps, Default(), repos)
	require.NoError(t, err)

	entries := logs.FilterMessage("selection step").All()
	require.Len(t, entries, 4)

	first := entries[0].ContextMap()
	assert.Equal(t, "forks", first["name"])
	assert.EqualValues(t, 2, first["initial"])
	assert.EqualValues(t, 1, first["dropped"])
	assert.EqualValues(t, 1, first["left"])
}

func TestTopRankedKeepsN(t *testing.T) {
	t.Parallel()

	var items []*github.RepositorySummary
	for i := 0; i < 12; i++ {
		stars := i
		items = append(items, repo(string(rune('a'+i)), func(r *github.RepositorySummary) { r.StarCount = stars }))
	}

	cfg := DefaultConfig()
	got, err := Run(context.Background(), cfg, testDeps(), []Filter{NewTopRanked()}, &github.Repositories{Items: items})
	require.NoError(t, err)

	require.Equal(t, cfg.TopN, got.Len())
	assert.Equal(t, "l", got.Items[0].Name, "most starred first")
	assert.Equal(t, "e", got.Items[cfg.TopN-1].Name)
}

func TestTopRankedTieBreak(t *testing.T) {
	t.Parallel()

	repos := &github.Repositories{Items: []*github.RepositorySummary{
		repo("zeta", nil),
		repo("alpha", nil),
		repo("recent", func(r *github.RepositorySummary) { r.PushedAt = now }),
	}}

	got, err := Run(context.Background(), DefaultConfig(), testDeps(), []Filter{NewTopRanked()}, repos)
	require.NoError(t, err)
	assert.Equal(t, []string{"recent", "alpha", "zeta"}, got.Names())
}

func TestWeightsScore(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	r := &github.RepositorySummary{StarCount: 2, ForkCount: 1, Topics: []string{"go", "cli"}, Homepage: "https://x.dev"}
	assert.InDelta(t, 2*3+1*2+2*1.5+5, w.Score(r), 1e-9)

	r.Size = 1000
	assert.Greater(t, w.Score(r), 16.0)
	assert.Less(t, w.Score(r), 16.0+8)
}

func TestDisableByName(t *testing.T) {
	t.Parallel()

	steps := Default()
	DisableByName(steps, "forks", "forks requested")

	repos := &github.Repositories{Items: []*github.RepositorySummary{
		repo("fork", func(r *github.RepositorySummary) { r.IsFork = true }),
	}}
	got, err := Run(context.Background(), DefaultConfig(), testDeps(), steps, repos)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	statuses := Describe(steps)
	require.Len(t, statuses, 4)
	assert.False(t, statuses[0].Enabled)
	assert.Equal(t, "forks requested", statuses[0].Reason)
	assert.Equal(t, "8", statuses[3].Details["limit"])
}

func TestRunValidation(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), &Config{TopN: 0}, testDeps(), Default(), nil)
	assert.ErrorContains(t, err, "top_ranked")

	_, err = Run(context.Background(), &Config{TopN: 1, InactiveAfter: -time.Hour}, testDeps(), Default(), nil)
	assert.ErrorContains(t, err, "inactive")
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, DefaultConfig(), testDeps(), Default(), &github.Repositories{})
	assert.ErrorIs(t, err, context.Canceled)
}
