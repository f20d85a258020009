package evaluation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/candidate-vetter/internal/analysis"
	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/github"
	"github.com/spigell/candidate-vetter/internal/linkedin"
	"github.com/spigell/candidate-vetter/internal/logger"
	"github.com/spigell/candidate-vetter/internal/links"
	"github.com/spigell/candidate-vetter/internal/scoring"
	"github.com/spigell/candidate-vetter/internal/selection"
)

const maxRecommendations = 10

// CodeHost is the code-hosting side of the data gateway.
type CodeHost interface {
	FetchProfile(ctx context.Context, handle string) (*github.Profile, error)
	FetchRepositories(ctx context.Context, handle string) (*github.Repositories, error)
	FetchRepositoryDetail(ctx context.Context, handle, name string) (*github.RepositoryDetail, error)
}

type ProjectAnalyzer interface {
	Analyze(ctx context.Context, detail *github.RepositoryDetail, resumeExcerpt string, skills []string) analysis.ProjectAnalysis
}

// NetworkSource returns a fetched or synthesized professional-network profile.
type NetworkSource interface {
	Resolve(ctx context.Context, handle string) (*linkedin.Profile, error)
}

type Config struct {
	Workers       int                `mapstructure:"workers" validate:"gte=1,lte=8"`
	Selection     *selection.Config  `mapstructure:"selection"`
	DisabledSteps []string           `mapstructure:"disabled-steps"`
	Weights       scoring.Weights    `mapstructure:"weights"`
	Thresholds    scoring.Thresholds `mapstructure:"thresholds"`
	Ladder        scoring.Ladder     `mapstructure:"ladder"`
	Network       linkedin.Weights   `mapstructure:"network"`
}

func DefaultConfig() Config {
	return Config{
		Workers:    4,
		Selection:  selection.DefaultConfig(),
		Weights:    scoring.DefaultWeights(),
		Thresholds: scoring.DefaultThresholds(),
		Ladder:     scoring.DefaultLadder(),
		Network:    linkedin.DefaultWeights(),
	}
}

// Deps are the external capabilities. A nil source leaves its branch with an
// error in the report.
type Deps struct {
	CodeHost CodeHost
	Analyzer ProjectAnalyzer
	Network  NetworkSource
}

type Engine struct {
	cfg      Config
	deps     Deps
	logger   *zap.Logger
	validate *validator.Validate

	now   func() time.Time
	newID func() string
}

func New(cfg Config, deps Deps, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.Selection == nil {
		cfg.Selection = selection.DefaultConfig()
	}
	if deps.Analyzer == nil {
		deps.Analyzer = analysis.New(nil, analysis.Options{}, log)
	}

	return &Engine{
		cfg:      cfg,
		deps:     deps,
		logger:   log,
		validate: validator.New(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Evaluate runs both sources for the candidate described by req. Only invalid
// input fails the call; source failures are recorded in the report.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Report, error) {
	const op = "evaluate"

	if err := e.validate.Struct(req); err != nil {
		return nil, errs.New(errs.InvalidInput, op, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found := links.Extract(req.Resume)
	report := &Report{
		RequestID: e.newID(),
		CreatedAt: e.now().UTC(),
		Job:       req.Job,
		Links:     found,
	}

	log := logger.WithFields(e.logger, logger.RequestFields(report.RequestID, found.CodeHostHandle())...)
	log.Info("evaluation started",
		zap.String("code_host", found.CodeHost),
		zap.String("network", found.Network),
	)

	var g errgroup.Group
	g.Go(func() error {
		gh, err := e.evaluateGitHub(ctx, log, found.CodeHostHandle(), req)
		if err != nil {
			log.Warn("code host evaluation failed", zap.Error(err))
			report.GitHubError = sourceError(err)
			return nil
		}
		report.GitHub = gh
		report.FallbackCount = gh.OverallMetrics.Fallbacks
		return nil
	})
	g.Go(func() error {
		li, err := e.evaluateLinkedIn(ctx, found.NetworkHandle(), req.Resume)
		if err != nil {
			log.Warn("network evaluation failed", zap.Error(err))
			report.LinkedInError = sourceError(err)
			return nil
		}
		report.LinkedIn = li
		return nil
	})
	_ = g.Wait()

	if report.FallbackCount > 0 {
		log.Warn("analyses fell back",
			zap.Int("fallback_count", report.FallbackCount),
			zap.Int("analyzed", report.GitHub.OverallMetrics.Analyzed),
		)
	}

	log.Info("evaluation finished", zap.Int("fallback_count", report.FallbackCount))
	return report, nil
}

func (e *Engine) evaluateLinkedIn(ctx context.Context, handle, resume string) (*linkedin.Analysis, error) {
	const op = "evaluate network profile"
	if handle == "" {
		return nil, errs.Newf(errs.NotFound, op, "no professional network link in résumé")
	}
	if e.deps.Network == nil {
		return nil, errs.Newf(errs.Unavailable, op, "no network source configured")
	}

	profile, err := e.deps.Network.Resolve(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := linkedin.Analyze(profile, resume, e.cfg.Network)
	return &result, nil
}

func (e *Engine) evaluateGitHub(ctx context.Context, log *zap.Logger, handle string, req Request) (*GitHubAnalysis, error) {
	const op = "evaluate code host profile"
	if handle == "" {
		return nil, errs.Newf(errs.NotFound, op, "no code host link in résumé")
	}
	if e.deps.CodeHost == nil {
		return nil, errs.Newf(errs.Unavailable, op, "no code host configured")
	}

	profile, err := e.deps.CodeHost.FetchProfile(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	all, err := e.deps.CodeHost.FetchRepositories(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("fetch repositories: %w", err)
	}

	steps := selection.Default()
	for _, name := range e.cfg.DisabledSteps {
		selection.DisableByName(steps, name, "disabled by config")
	}

	// Selection steps shrink the list in place.
	candidates := &github.Repositories{Items: append([]*github.RepositorySummary(nil), all.Items...)}
	selected, err := selection.Run(ctx, e.cfg.Selection, selection.Deps{Logger: log, Now: e.now}, steps, candidates)
	if err != nil {
		return nil, fmt.Errorf("select repositories: %w", err)
	}

	analyses := e.analyzeRepositories(ctx, log, handle, selected, req)

	now := e.now()
	counts := scoring.CountRepositories(all.Items, now, e.cfg.Weights.ActiveWithin)
	agg := scoring.Aggregate(analyses, profile, counts, e.cfg.Weights)
	flags := scoring.DetectFlags(all.Items, analyses, profile, e.cfg.Thresholds)
	metrics := scoring.Summarize(analyses)

	verdict := e.cfg.Ladder.Decide(scoring.VerdictInput{
		Scores:        agg.Scores(),
		RedFlags:      len(flags.RedFlags),
		CriticalFlags: flags.CriticalCount,
		AIUsage:       metrics.AvgAIUsage,
		ResumeMatches: metrics.ResumeMatched,
	})

	log.Info("code host evaluated",
		zap.Int("repositories", counts.Total),
		zap.Int("selected", selected.Len()),
		zap.Float64("technical", agg.Technical),
		zap.Float64("activity", agg.Activity),
		zap.Float64("authenticity", agg.Authenticity),
		zap.String("verdict", string(verdict.Decision)),
	)

	return &GitHubAnalysis{
		Profile:            profile,
		RepositoryAnalysis: analyses,
		OverallMetrics: OverallMetrics{
			Metrics:      metrics,
			Repositories: counts,
			Selected:     selected.Len(),
			Languages:    languages(all),
			Technologies: technologies(analyses),
		},
		RedFlags:           flags.RedFlags,
		PositiveIndicators: flags.PositiveIndicators,
		TechnicalScore:     agg.Technical,
		ActivityScore:      agg.Activity,
		AuthenticityScore:  agg.Authenticity,
		Recommendations:    recommendations(analyses, metrics),
		HiringVerdict:      verdict,
		Repositories:       all,
		Selection:          selection.Describe(steps),
	}, nil
}

// analyzeRepositories fetches and analyzes every selected repository with at
// most cfg.Workers in flight. Each worker writes its own slot; slots left
// empty by cancellation are dropped.
func (e *Engine) analyzeRepositories(ctx context.Context, log *zap.Logger, handle string, repos *github.Repositories, req Request) []analysis.ProjectAnalysis {
	results := make([]analysis.ProjectAnalysis, repos.Len())
	done := make([]bool, repos.Len())

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)

	for i, summary := range repos.Items {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			detail, err := e.deps.CodeHost.FetchRepositoryDetail(ctx, handle, summary.Name)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.ForRepository(log, github.PlatformKey, summary.Name).Warn("repository detail unavailable",
					zap.String("kind", string(errs.KindOf(err))),
					zap.Error(err),
				)
				results[i] = analysis.Fallback(&github.RepositoryDetail{RepositorySummary: *summary}, req.Resume)
				done[i] = true
				return nil
			}

			results[i] = e.deps.Analyzer.Analyze(ctx, detail, req.Resume, req.Job.Skills)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]analysis.ProjectAnalysis, 0, len(results))
	for i, r := range results {
		if done[i] {
			out = append(out, r)
		}
	}
	return out
}

func languages(repos *github.Repositories) map[string]int {
	out := make(map[string]int)
	for lang, items := range repos.ReportByLanguage() {
		out[lang] = len(items)
	}
	return out
}

func technologies(analyses []analysis.ProjectAnalysis) []string {
	seen := make(map[string]string)
	for _, a := range analyses {
		for _, t := range a.Technologies {
			key := strings.ToLower(t)
			if _, ok := seen[key]; !ok {
				seen[key] = t
			}
		}
	}
	out := make([]string, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

// recommendations merges per-repository recommendations, high priority first.
func recommendations(analyses []analysis.ProjectAnalysis, m scoring.Metrics) []string {
	type entry struct {
		rank int
		text string
	}

	var entries []entry
	seen := make(map[string]bool)
	for _, a := range analyses {
		if a.Fallback {
			continue
		}
		for _, r := range a.Recommendations {
			text := a.Repository + ": " + r.Text
			if seen[text] {
				continue
			}
			seen[text] = true
			entries = append(entries, entry{rank: r.Priority.Rank(), text: text})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].rank < entries[j].rank })

	out := make([]string, 0, maxRecommendations+1)
	if m.Fallbacks > 0 {
		out = append(out, fmt.Sprintf("%d of %d repository analyses fell back to metadata; review them manually", m.Fallbacks, m.Analyzed))
	}
	for _, e := range entries {
		if len(out) == maxRecommendations {
			break
		}
		out = append(out, e.text)
	}
	return out
}
