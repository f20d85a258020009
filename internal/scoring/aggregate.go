package scoring

import (
	"math"
	"time"

	"github.com/spigell/candidate-vetter/internal/analysis"
	"github.com/spigell/candidate-vetter/internal/domain"
	"github.com/spigell/candidate-vetter/internal/github"
)

// AggregateProfile is the per-source score triple. Only Aggregate builds it.
type AggregateProfile struct {
	Technical    float64 `json:"technical_score"`
	Activity     float64 `json:"activity_score"`
	Authenticity float64 `json:"authenticity_score"`
}

// Scores lists the triple in a form the verdict ladder accepts.
func (a AggregateProfile) Scores() []Score {
	return []Score{
		{Name: "technical", Value: a.Technical},
		{Name: "activity", Value: a.Activity},
		{Name: "authenticity", Value: a.Authenticity},
	}
}

// RepoCounts describes the whole repository list, not only the analyzed part.
type RepoCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// CountRepositories counts repositories and those pushed within the window.
func CountRepositories(repos []*github.RepositorySummary, now time.Time, within time.Duration) RepoCounts {
	counts := RepoCounts{Total: len(repos)}
	cutoff := now.Add(-within)
	for _, r := range repos {
		if last := r.LastActivity(); !last.IsZero() && !last.Before(cutoff) {
			counts.Active++
		}
	}
	return counts
}

// Metrics are the per-source averages and counts derived from analyses.
type Metrics struct {
	Analyzed        int     `json:"analyzed"`
	Fallbacks       int     `json:"fallbacks"`
	AvgQuality      float64 `json:"avg_code_quality"`
	AvgCompleteness float64 `json:"avg_completeness"`
	AvgAIUsage      float64 `json:"avg_ai_usage"`
	AvgConfidence   float64 `json:"avg_confidence"`
	ResumeMatched   int     `json:"resume_matched"`
	WithDemo        int     `json:"with_demo"`
	RedFlags        int     `json:"red_flags"`
	CriticalFlags   int     `json:"critical_flags"`
}

// Summarize computes Metrics. Averages use model-backed analyses; when every
// analysis fell back they use the fallback values. Red flag counts skip
// fallback analyses. Empty input yields zeros.
func Summarize(analyses []analysis.ProjectAnalysis) Metrics {
	m := Metrics{Analyzed: len(analyses)}

	var averaged []analysis.ProjectAnalysis
	for _, a := range analyses {
		if a.Fallback {
			m.Fallbacks++
			continue
		}
		averaged = append(averaged, a)
		m.RedFlags += len(a.RedFlags)
		m.CriticalFlags += a.CriticalFlags()
	}
	if len(averaged) == 0 {
		averaged = analyses
	}

	for _, a := range analyses {
		if a.ResumeMention {
			m.ResumeMatched++
		}
		if a.HasDemo() {
			m.WithDemo++
		}
	}

	if n := float64(len(averaged)); n > 0 {
		for _, a := range averaged {
			m.AvgQuality += finite(a.CodeQuality.Overall)
			m.AvgCompleteness += finite(a.CompletenessScore)
			m.AvgAIUsage += finite(a.CodeQuality.AIUsagePercent)
			m.AvgConfidence += finite(a.CodeQuality.Confidence)
		}
		m.AvgQuality = domain.ClampScore(m.AvgQuality / n)
		m.AvgCompleteness = domain.ClampScore(m.AvgCompleteness / n)
		m.AvgAIUsage = domain.ClampScore(m.AvgAIUsage / n)
		m.AvgConfidence = domain.ClampScore(m.AvgConfidence / n)
	}

	return m
}

// Aggregate combines analyses, profile and repository counts into the three
// bounded scores. Technical is 0 when nothing was analyzed.
func Aggregate(analyses []analysis.ProjectAnalysis, profile *github.Profile, counts RepoCounts, w Weights) AggregateProfile {
	m := Summarize(analyses)

	followers := 0.0
	if profile != nil {
		followers = float64(profile.Followers)
	}

	var technical float64
	if m.Analyzed > 0 {
		technical = w.Quality*m.AvgQuality +
			w.ResumeMatch*float64(m.ResumeMatched) +
			w.Demo*float64(m.WithDemo) +
			math.Min(w.FollowerCap, w.FollowerTechnical*followers)
	}

	activity := w.Repository*float64(counts.Total) +
		w.FollowerActivity*followers +
		w.Completeness*m.AvgCompleteness +
		w.ActiveRepository*float64(counts.Active)

	authenticity := 100 -
		w.RedFlagPenalty*float64(m.RedFlags) -
		w.AIUsagePenalty*m.AvgAIUsage

	return AggregateProfile{
		Technical:    domain.ClampScore(finite(technical)),
		Activity:     domain.ClampScore(finite(activity)),
		Authenticity: domain.ClampScore(finite(authenticity)),
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
