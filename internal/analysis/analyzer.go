package analysis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/ai"
	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/github"
	"github.com/spigell/candidate-vetter/internal/utils"
)

const (
	DefaultTimeout      = 30 * time.Second
	defaultReadmeBudget = 4000
	defaultResumeBudget = 3000
	defaultMaxLogLength = 200
)

//go:embed prompt.md
var promptTemplate string

// Options configures an Analyzer. Zero values fall back to defaults.
type Options struct {
	Timeout      time.Duration
	ReadmeBudget int
	ResumeBudget int
	MaxLogLength int
}

// Analyzer turns repository details into validated ProjectAnalysis values.
type Analyzer struct {
	completer    ai.Completer
	timeout      time.Duration
	readmeBudget int
	resumeBudget int
	maxLogLen    int
	logger       *zap.Logger
}

// New creates an Analyzer. A nil completer makes every analysis a fallback.
func New(completer ai.Completer, opts Options, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Analyzer{
		completer:    completer,
		timeout:      opts.Timeout,
		readmeBudget: opts.ReadmeBudget,
		resumeBudget: opts.ResumeBudget,
		maxLogLen:    opts.MaxLogLength,
		logger:       logger,
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.readmeBudget <= 0 {
		a.readmeBudget = defaultReadmeBudget
	}
	if a.resumeBudget <= 0 {
		a.resumeBudget = defaultResumeBudget
	}
	if a.maxLogLen <= 0 {
		a.maxLogLen = defaultMaxLogLength
	}
	return a
}

// Analyze never fails: any problem with the model call or its answer yields
// Fallback for the repository.
func (a *Analyzer) Analyze(ctx context.Context, detail *github.RepositoryDetail, resumeExcerpt string, skills []string) ProjectAnalysis {
	if detail == nil {
		detail = &github.RepositoryDetail{}
	}
	log := a.logger.With(zap.String("repository", detail.Name))

	result, err := a.analyze(ctx, detail, resumeExcerpt, skills)
	if err != nil {
		log.Warn("analysis fell back", zap.String("kind", string(errs.KindOf(err))), zap.Error(err))
		return Fallback(detail, resumeExcerpt)
	}
	return result
}

func (a *Analyzer) analyze(ctx context.Context, detail *github.RepositoryDetail, resumeExcerpt string, skills []string) (ProjectAnalysis, error) {
	if a.completer == nil {
		return ProjectAnalysis{}, errors.New("no model configured")
	}

	prompt, err := a.buildPrompt(detail, resumeExcerpt, skills)
	if err != nil {
		return ProjectAnalysis{}, err
	}

	a.logger.Debug("analysis request",
		zap.String("repository", detail.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := a.complete(ctx, prompt)
	if err != nil {
		return ProjectAnalysis{}, err
	}

	a.logger.Debug("analysis response",
		zap.String("repository", detail.Name),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	result, err := parseResponse(raw)
	if err != nil {
		return ProjectAnalysis{}, err
	}

	result.Repository = detail.Name
	result.DemoLinks = synthesizeDemos(result.DemoLinks, detail)
	return result, nil
}

// complete races the model call against the analysis timeout. A late answer
// is discarded.
func (a *Analyzer) complete(ctx context.Context, prompt string) (string, error) {
	const op = "analysis completion"

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)

	go func() {
		text, err := a.completer.Complete(ctx, prompt)
		done <- answer{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", errs.New(errs.Timeout, op, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return res.text, nil
	}
}

type repositoryPrompt struct {
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	Language         string   `json:"language,omitempty"`
	Topics           []string `json:"topics,omitempty"`
	Stars            int      `json:"stars"`
	Forks            int      `json:"forks"`
	SizeKB           int      `json:"size_kb"`
	License          string   `json:"license,omitempty"`
	Homepage         string   `json:"homepage,omitempty"`
	Contributors     int      `json:"contributors"`
	CreatedAt        string   `json:"created_at,omitempty"`
	UpdatedAt        string   `json:"updated_at,omitempty"`
	BatchCommitDates []string `json:"batch_commit_dates,omitempty"`
}

func (a *Analyzer) buildPrompt(d *github.RepositoryDetail, resumeExcerpt string, skills []string) (string, error) {
	meta := repositoryPrompt{
		Name:             d.Name,
		Description:      d.Description,
		Language:         d.Language,
		Topics:           d.Topics,
		Stars:            d.StarCount,
		Forks:            d.ForkCount,
		SizeKB:           d.Size,
		License:          d.License,
		Homepage:         d.Homepage,
		Contributors:     d.ContributorCount,
		BatchCommitDates: d.CommitPattern.BatchCommitDates,
	}
	if !d.CreatedAt.IsZero() {
		meta.CreatedAt = d.CreatedAt.Format(time.DateOnly)
	}
	if !d.UpdatedAt.IsZero() {
		meta.UpdatedAt = d.UpdatedAt.Format(time.DateOnly)
	}

	repoJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", errs.New(errs.InvalidInput, "build prompt", err)
	}

	readme := utils.Truncate(strings.TrimSpace(d.Readme), a.readmeBudget)
	if readme == "" {
		readme = "(no README)"
	}
	resume := utils.Truncate(strings.TrimSpace(resumeExcerpt), a.resumeBudget)
	if resume == "" {
		resume = "(no résumé text)"
	}

	var cleaned []string
	for _, s := range skills {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, "- "+s)
		}
	}
	skillList := strings.Join(cleaned, "\n")
	if skillList == "" {
		skillList = "- none specified"
	}

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Repository:\n{{REPOSITORY_JSON}}\n\nCommits:\n{{COMMIT_SUMMARY}}\n\nREADME:\n{{README}}\n\nRésumé:\n{{RESUME}}\n\nSkills:\n{{SKILLS}}\n\nJSON Response:"
	}

	prompt := strings.NewReplacer(
		"{{REPOSITORY_JSON}}", string(repoJSON),
		"{{COMMIT_SUMMARY}}", d.CommitPattern.Summary(),
		"{{README}}", readme,
		"{{RESUME}}", resume,
		"{{SKILLS}}", skillList,
	).Replace(template)

	return prompt, nil
}
