package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/spigell/candidate-vetter/internal/analysis"
	"github.com/spigell/candidate-vetter/internal/github"
)

// Flags is the rule engine output. CriticalCount counts critical per-repository
// flags of model-backed analyses.
type Flags struct {
	RedFlags           []string `json:"red_flags"`
	PositiveIndicators []string `json:"positive_indicators"`
	CriticalCount      int      `json:"critical_count"`
}

// DetectFlags evaluates every rule independently; any subset may fire.
// repos is the full owned repository list, forks included.
func DetectFlags(repos []*github.RepositorySummary, analyses []analysis.ProjectAnalysis, profile *github.Profile, th Thresholds) Flags {
	m := Summarize(analyses)
	flags := Flags{
		RedFlags:           []string{},
		PositiveIndicators: []string{},
		CriticalCount:      m.CriticalFlags,
	}

	flags.RedFlags = append(flags.RedFlags, batchUploads(repos, th.BatchSameDay)...)

	if m.Analyzed > 0 && m.AvgAIUsage > th.HighAIUsage {
		flags.RedFlags = append(flags.RedFlags,
			fmt.Sprintf("high AI dependency: %.0f%% average AI-generated code", m.AvgAIUsage))
	}

	if m.CriticalFlags > 0 {
		flags.RedFlags = append(flags.RedFlags,
			fmt.Sprintf("%d critical issue(s) found across repositories", m.CriticalFlags))
	}

	if m.ResumeMatched == 0 && len(repos) > th.ResumeMismatchRepos {
		flags.RedFlags = append(flags.RedFlags,
			fmt.Sprintf("résumé mentions none of the %d repositories", len(repos)))
	}

	unclear := 0
	for _, a := range analyses {
		if a.Fallback {
			continue
		}
		if a.Collaboration.IsGroupProject && a.Collaboration.ContributionClarity < th.UnclearContribution {
			unclear++
		}
	}
	if unclear > th.UnclearGroupProjects {
		flags.RedFlags = append(flags.RedFlags,
			fmt.Sprintf("%d group projects with unclear individual contribution", unclear))
	}

	if m.Analyzed > 0 && m.AvgQuality > th.HighQuality {
		flags.PositiveIndicators = append(flags.PositiveIndicators,
			fmt.Sprintf("high average code quality (%.0f/100)", m.AvgQuality))
	}

	if profile != nil && profile.Followers > th.Followers {
		flags.PositiveIndicators = append(flags.PositiveIndicators,
			fmt.Sprintf("strong community following (%d followers)", profile.Followers))
	}

	original, forked := 0, 0
	for _, r := range repos {
		if r.IsFork {
			forked++
		} else {
			original++
		}
	}
	ratio := float64(original)
	if forked > 0 {
		ratio = float64(original) / float64(forked)
	}
	if ratio > th.OriginalToForkedRatio {
		flags.PositiveIndicators = append(flags.PositiveIndicators,
			fmt.Sprintf("mostly original work (%d original, %d forked)", original, forked))
	}

	if m.Analyzed > m.Fallbacks && m.AvgConfidence > th.HighConfidence {
		flags.PositiveIndicators = append(flags.PositiveIndicators,
			fmt.Sprintf("high assessment confidence (%.0f/100)", m.AvgConfidence))
	}

	if m.ResumeMatched > 0 {
		flags.PositiveIndicators = append(flags.PositiveIndicators,
			fmt.Sprintf("%d repositories referenced in the résumé", m.ResumeMatched))
	}

	return flags
}

// batchUploads reports days on which at least threshold original repositories
// were created, oldest first.
func batchUploads(repos []*github.RepositorySummary, threshold int) []string {
	if threshold <= 0 {
		return nil
	}

	perDay := make(map[string]int)
	for _, r := range repos {
		if r.IsFork || r.CreatedAt.IsZero() {
			continue
		}
		perDay[r.CreatedAt.UTC().Format(time.DateOnly)]++
	}

	days := make([]string, 0, len(perDay))
	for day, n := range perDay {
		if n >= threshold {
			days = append(days, day)
		}
	}
	sort.Strings(days)

	out := make([]string, 0, len(days))
	for _, day := range days {
		out = append(out, fmt.Sprintf("%d repositories created on %s (possible batch upload)", perDay[day], day))
	}
	return out
}
