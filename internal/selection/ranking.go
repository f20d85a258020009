package selection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/github"
)

// Weights controls how repositories are ranked before the deep analysis.
type Weights struct {
	Stars    float64 `mapstructure:"stars"`
	Forks    float64 `mapstructure:"forks"`
	Size     float64 `mapstructure:"size"`
	Topics   float64 `mapstructure:"topics"`
	Homepage float64 `mapstructure:"homepage"`
}

func DefaultWeights() Weights {
	return Weights{
		Stars:    3,
		Forks:    2,
		Size:     1,
		Topics:   1.5,
		Homepage: 5,
	}
}

// Score ranks one repository. Size is in KB and counted logarithmically.
func (w Weights) Score(r *github.RepositorySummary) float64 {
	score := w.Stars*float64(r.StarCount) +
		w.Forks*float64(r.ForkCount) +
		w.Size*math.Log1p(float64(r.Size)) +
		w.Topics*float64(len(r.Topics))
	if r.Homepage != "" {
		score += w.Homepage
	}
	return score
}

type topRankedFilter struct {
	toggle
	limit   int
	weights Weights
}

// NewTopRanked creates a step that keeps the N highest ranked repositories.
func NewTopRanked() Filter {
	return &topRankedFilter{}
}

func (f *topRankedFilter) Name() string { return "top_ranked" }

func (f *topRankedFilter) Validate(cfg *Config) error {
	if cfg.TopN <= 0 {
		return fmt.Errorf("top-n must be positive, got %d", cfg.TopN)
	}
	f.limit = cfg.TopN
	f.weights = cfg.Weights
	return nil
}

func (f *topRankedFilter) Apply(_ context.Context, deps Deps, repos *github.Repositories) (*github.Repositories, Step, error) {
	initial := repos.Len()

	ranked := make([]*github.RepositorySummary, len(repos.Items))
	copy(ranked, repos.Items)

	scores := make(map[*github.RepositorySummary]float64, len(ranked))
	for _, r := range ranked {
		scores[r] = f.weights.Score(r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		if la, lb := a.LastActivity(), b.LastActivity(); !la.Equal(lb) {
			return la.After(lb)
		}
		return a.Name < b.Name
	})

	if len(ranked) > f.limit {
		var dropped []string
		for _, r := range ranked[f.limit:] {
			dropped = append(dropped, r.Name)
		}
		deps.Logger.Debug("keeping top ranked repositories",
			zap.Int("limit", f.limit),
			zap.Strings("excluded_repositories", dropped),
		)
		ranked = ranked[:f.limit]
	}

	repos.Items = ranked
	return repos, Step{Initial: initial, Dropped: initial - len(ranked), Left: len(ranked)}, nil
}

func (f *topRankedFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{
			"limit":           strconv.Itoa(f.limit),
			"stars_weight":    strconv.FormatFloat(f.weights.Stars, 'f', -1, 64),
			"forks_weight":    strconv.FormatFloat(f.weights.Forks, 'f', -1, 64),
			"size_weight":     strconv.FormatFloat(f.weights.Size, 'f', -1, 64),
			"topics_weight":   strconv.FormatFloat(f.weights.Topics, 'f', -1, 64),
			"homepage_weight": strconv.FormatFloat(f.weights.Homepage, 'f', -1, 64),
		},
	}
}
