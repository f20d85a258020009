// Package domain holds the closed value sets shared by the analyzers.
// Every Parse function accepts loosely typed input and maps anything it does
// not recognise to a fixed default, so values coming from a model or a remote
// API never leave this boundary unchecked.
package domain

import "strings"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// ParseSeverity defaults to minor.
func ParseSeverity(s string) Severity {
	switch normalize(s) {
	case "critical", "high", "severe":
		return SeverityCritical
	case "moderate", "medium":
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// ParseImpact defaults to neutral.
func ParseImpact(s string) Impact {
	switch normalize(s) {
	case "positive":
		return ImpactPositive
	case "negative":
		return ImpactNegative
	default:
		return ImpactNeutral
	}
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority defaults to medium.
func ParsePriority(s string) Priority {
	switch normalize(s) {
	case "high", "critical", "urgent":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Rank orders priorities with high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

type IndicatorCategory string

const (
	CategoryTechnical     IndicatorCategory = "technical"
	CategoryProfessional  IndicatorCategory = "professional"
	CategoryCollaboration IndicatorCategory = "collaboration"
)

// ParseIndicatorCategory defaults to technical.
func ParseIndicatorCategory(s string) IndicatorCategory {
	switch normalize(s) {
	case "professional":
		return CategoryProfessional
	case "collaboration", "teamwork":
		return CategoryCollaboration
	default:
		return CategoryTechnical
	}
}

// Complexity is ordinal: beginner < intermediate < advanced < expert.
type Complexity string

const (
	ComplexityBeginner     Complexity = "beginner"
	ComplexityIntermediate Complexity = "intermediate"
	ComplexityAdvanced     Complexity = "advanced"
	ComplexityExpert       Complexity = "expert"
)

// ParseComplexity defaults to beginner.
func ParseComplexity(s string) Complexity {
	switch normalize(s) {
	case "intermediate", "medium":
		return ComplexityIntermediate
	case "advanced":
		return ComplexityAdvanced
	case "expert":
		return ComplexityExpert
	default:
		return ComplexityBeginner
	}
}

func (c Complexity) Level() int {
	switch c {
	case ComplexityIntermediate:
		return 1
	case ComplexityAdvanced:
		return 2
	case ComplexityExpert:
		return 3
	default:
		return 0
	}
}

type InconsistencyCategory string

const (
	CategoryExperience InconsistencyCategory = "experience"
	CategoryEducation  InconsistencyCategory = "education"
	CategorySkills     InconsistencyCategory = "skills"
	CategoryPersonal   InconsistencyCategory = "personal"
	CategoryTimeline   InconsistencyCategory = "timeline"
)

// ParseInconsistencyCategory defaults to personal.
func ParseInconsistencyCategory(s string) InconsistencyCategory {
	switch normalize(s) {
	case "experience", "work":
		return CategoryExperience
	case "education":
		return CategoryEducation
	case "skills", "skill":
		return CategorySkills
	case "timeline", "dates":
		return CategoryTimeline
	default:
		return CategoryPersonal
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Clamp bounds v into [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampScore bounds v into the 0..100 score range.
func ClampScore(v float64) float64 {
	return Clamp(v, 0, 100)
}
