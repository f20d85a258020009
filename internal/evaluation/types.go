package evaluation

import (
	"time"

	"github.com/spigell/candidate-vetter/internal/analysis"
	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/github"
	"github.com/spigell/candidate-vetter/internal/linkedin"
	"github.com/spigell/candidate-vetter/internal/links"
	"github.com/spigell/candidate-vetter/internal/scoring"
	"github.com/spigell/candidate-vetter/internal/selection"
)

type JobDescription struct {
	Title        string   `json:"title" validate:"max=200"`
	Requirements []string `json:"requirements" validate:"max=50,dive,max=500"`
	Skills       []string `json:"skills" validate:"max=100,dive,required,max=100"`
	Experience   string   `json:"experience" validate:"max=200"`
}

type Request struct {
	Resume string         `json:"resume" validate:"required,max=200000"`
	Job    JobDescription `json:"job"`
}

// Report is the full evaluation of one candidate. A source that could not be
// evaluated is nil and carries its error instead.
type Report struct {
	RequestID     string             `json:"request_id"`
	CreatedAt     time.Time          `json:"created_at"`
	Job           JobDescription     `json:"job"`
	Links         links.Links        `json:"links"`
	GitHub        *GitHubAnalysis    `json:"github,omitempty"`
	GitHubError   *SourceError       `json:"github_error,omitempty"`
	LinkedIn      *linkedin.Analysis `json:"linkedin,omitempty"`
	LinkedInError *SourceError       `json:"linkedin_error,omitempty"`
	FallbackCount int                `json:"fallback_count"`
}

type SourceError struct {
	Kind    errs.Kind `json:"kind"`
	Message string    `json:"message"`
}

func sourceError(err error) *SourceError {
	kind := errs.KindOf(err)
	if kind == errs.KindUnknown {
		kind = errs.Unavailable
	}
	return &SourceError{Kind: kind, Message: err.Error()}
}

type GitHubAnalysis struct {
	Profile            *github.Profile            `json:"profile"`
	RepositoryAnalysis []analysis.ProjectAnalysis `json:"repository_analysis"`
	OverallMetrics     OverallMetrics             `json:"overall_metrics"`
	RedFlags           []string                   `json:"red_flags"`
	PositiveIndicators []string                   `json:"positive_indicators"`
	TechnicalScore     float64                    `json:"technical_score"`
	ActivityScore      float64                    `json:"activity_score"`
	AuthenticityScore  float64                    `json:"authenticity_score"`
	Recommendations    []string                   `json:"recommendations"`
	HiringVerdict      scoring.Verdict            `json:"hiring_verdict"`

	Repositories *github.Repositories `json:"repositories"`
	Selection    []selection.Status   `json:"selection"`
}

type OverallMetrics struct {
	scoring.Metrics
	Repositories scoring.RepoCounts `json:"repositories"`
	Selected     int                `json:"selected"`
	Languages    map[string]int     `json:"languages"`
	Technologies []string           `json:"technologies"`
}
