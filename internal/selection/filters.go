package selection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/github"
)

type forksFilter struct{ toggle }

// NewForks creates a step that removes forked repositories.
func NewForks() Filter {
	return &forksFilter{}
}

func (f *forksFilter) Name() string { return "forks" }

func (f *forksFilter) Validate(*Config) error { return nil }

func (f *forksFilter) Apply(_ context.Context, deps Deps, repos *github.Repositories) (*github.Repositories, Step, error) {
	initial := repos.Len()
	excluded := repos.Exclude(func(r *github.RepositorySummary) bool { return r.IsFork })
	if len(excluded) > 0 {
		deps.Logger.Debug("excluding forked repositories",
			zap.Strings("excluded_repositories", excluded),
			zap.Int("repositories_left", repos.Len()),
		)
	}

	return repos, Step{Initial: initial, Dropped: len(excluded), Left: repos.Len()}, nil
}

func (f *forksFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type archivedFilter struct{ toggle }

// NewArchived creates a step that removes archived repositories.
func NewArchived() Filter {
	return &archivedFilter{}
}

func (f *archivedFilter) Name() string { return "archived" }

func (f *archivedFilter) Validate(*Config) error { return nil }

func (f *archivedFilter) Apply(_ context.Context, deps Deps, repos *github.Repositories) (*github.Repositories, Step, error) {
	initial := repos.Len()
	excluded := repos.Exclude(func(r *github.RepositorySummary) bool { return r.IsArchived })
	if len(excluded) > 0 {
		deps.Logger.Debug("excluding archived repositories",
			zap.Strings("excluded_repositories", excluded),
			zap.Int("repositories_left", repos.Len()),
		)
	}

	return repos, Step{Initial: initial, Dropped: len(excluded), Left: repos.Len()}, nil
}

func (f *archivedFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type inactiveFilter struct {
	toggle
	after time.Duration
}

// NewInactive creates a step that removes repositories without activity in
// the configured period.
func NewInactive() Filter {
	return &inactiveFilter{}
}

func (f *inactiveFilter) Name() string { return "inactive" }

func (f *inactiveFilter) Validate(cfg *Config) error {
	f.after = cfg.InactiveAfter
	if f.after < 0 {
		return fmt.Errorf("inactive-after must not be negative, got %s", f.after)
	}
	return nil
}

func (f *inactiveFilter) Apply(_ context.Context, deps Deps, repos *github.Repositories) (*github.Repositories, Step, error) {
	initial := repos.Len()
	if f.after == 0 {
		return repos, Step{Initial: initial, Left: initial}, nil
	}

	cutoff := deps.now().Add(-f.after)
	excluded := repos.Exclude(func(r *github.RepositorySummary) bool {
		last := r.LastActivity()
		// Unknown activity is kept.
		return !last.IsZero() && last.Before(cutoff)
	})
	if len(excluded) > 0 {
		deps.Logger.Debug("excluding inactive repositories",
			zap.Time("cutoff", cutoff),
			zap.Strings("excluded_repositories", excluded),
			zap.Int("repositories_left", repos.Len()),
		)
	}

	return repos, Step{Initial: initial, Dropped: len(excluded), Left: repos.Len()}, nil
}

func (f *inactiveFilter) Status() Status {
	details := map[string]string{}
	if f.after > 0 {
		details["inactive_after"] = f.after.String()
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
