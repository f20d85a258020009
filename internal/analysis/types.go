package analysis

import "github.com/spigell/candidate-vetter/internal/domain"

// ProjectAnalysis is the validated judgment for one repository.
type ProjectAnalysis struct {
	Repository         string              `json:"repository"`
	ResumeMention      bool                `json:"resume_mention"`
	ResumeEvidence     string              `json:"resume_evidence,omitempty"`
	CompletenessScore  float64             `json:"completeness_score"`
	DemoLinks          []DemoLink          `json:"demo_links"`
	CodeQuality        CodeQuality         `json:"code_quality"`
	RedFlags           []RedFlag           `json:"red_flags"`
	PositiveIndicators []PositiveIndicator `json:"positive_indicators"`
	Recommendations    []Recommendation    `json:"recommendations"`
	Technologies       []string            `json:"technologies"`
	Complexity         domain.Complexity   `json:"complexity"`
	Collaboration      Collaboration       `json:"collaboration"`
	// Fallback is set when the result was produced without the model.
	Fallback bool `json:"fallback"`
}

type DemoLink struct {
	URL         string        `json:"url"`
	Description string        `json:"description,omitempty"`
	Impact      domain.Impact `json:"impact"`
}

// CodeQuality numeric fields are always within 0..100.
type CodeQuality struct {
	Naming             float64 `json:"naming"`
	Comments           float64 `json:"comments"`
	Structure          float64 `json:"structure"`
	AIUsagePercent     float64 `json:"ai_usage_percent"`
	Overall            float64 `json:"overall"`
	ProfessionalReadme bool    `json:"professional_readme"`
	HasTests           bool    `json:"has_tests"`
	FollowsConventions bool    `json:"follows_conventions"`
	Confidence         float64 `json:"confidence"`
}

type RedFlag struct {
	Severity    domain.Severity `json:"severity"`
	Description string          `json:"description"`
}

type PositiveIndicator struct {
	Category    domain.IndicatorCategory `json:"category"`
	Description string                   `json:"description"`
}

type Recommendation struct {
	Priority domain.Priority `json:"priority"`
	Text     string          `json:"text"`
}

type Collaboration struct {
	IsGroupProject      bool    `json:"is_group_project"`
	ContributionClarity float64 `json:"contribution_clarity"`
}

// CriticalFlags counts red flags with critical severity.
func (p ProjectAnalysis) CriticalFlags() int {
	n := 0
	for _, f := range p.RedFlags {
		if f.Severity == domain.SeverityCritical {
			n++
		}
	}
	return n
}

// HasDemo reports whether at least one demo link is known.
func (p ProjectAnalysis) HasDemo() bool {
	return len(p.DemoLinks) > 0
}
