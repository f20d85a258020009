package scoring

import (
	"fmt"
	"strings"

	"github.com/spigell/candidate-vetter/internal/domain"
)

type Decision string

const (
	StrongHire Decision = "strong_hire"
	Hire       Decision = "hire"
	Maybe      Decision = "maybe"
	NoHire     Decision = "no_hire"
)

// Rank orders decisions by desirability, strong_hire highest.
func (d Decision) Rank() int {
	switch d {
	case StrongHire:
		return 3
	case Hire:
		return 2
	case Maybe:
		return 1
	default:
		return 0
	}
}

type Verdict struct {
	Decision   Decision `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Reasoning  []string `json:"reasoning"`
}

// Score is one named input of the verdict average.
type Score struct {
	Name  string
	Value float64
}

type VerdictInput struct {
	Scores        []Score
	RedFlags      int
	CriticalFlags int
	AIUsage       float64
	ResumeMatches int
}

// Average is the mean of the input scores, 0 for no scores.
func (in VerdictInput) Average() float64 {
	if len(in.Scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range in.Scores {
		sum += domain.ClampScore(s.Value)
	}
	return sum / float64(len(in.Scores))
}

// Decide applies the default ladder.
func Decide(in VerdictInput) Verdict {
	return DefaultLadder().Decide(in)
}

// Decide evaluates the rules top-down; the first match wins.
func (l Ladder) Decide(in VerdictInput) Verdict {
	avg := in.Average()
	ai := domain.ClampScore(in.AIUsage)

	parts := make([]string, 0, len(in.Scores))
	for _, s := range in.Scores {
		parts = append(parts, fmt.Sprintf("%s %.0f", s.Name, domain.ClampScore(s.Value)))
	}
	scoreLine := fmt.Sprintf("average score %.1f", avg)
	if len(parts) > 0 {
		scoreLine += " (" + strings.Join(parts, ", ") + ")"
	}

	reasoning := []string{
		scoreLine,
		fmt.Sprintf("%d red flag(s), %d critical", in.RedFlags, in.CriticalFlags),
	}

	switch {
	case avg >= l.StrongHireScore && in.RedFlags == 0 && in.ResumeMatches > 0 && ai < l.StrongHireMaxAI:
		reasoning = append(reasoning,
			fmt.Sprintf("%d résumé claim(s) confirmed by public work", in.ResumeMatches),
			fmt.Sprintf("low AI usage (%.0f%%)", ai))
		return Verdict{Decision: StrongHire, Confidence: 95, Reasoning: reasoning}

	case avg >= l.HireScore && in.CriticalFlags == 0 && ai < l.HireMaxAI:
		reasoning = append(reasoning,
			fmt.Sprintf("score at or above %.0f with no critical issues", l.HireScore),
			fmt.Sprintf("moderate AI usage (%.0f%%)", ai))
		return Verdict{Decision: Hire, Confidence: 85, Reasoning: reasoning}

	case avg >= l.MaybeScore && in.CriticalFlags <= l.MaybeMaxCritical:
		reasoning = append(reasoning,
			fmt.Sprintf("score at or above %.0f, further interviews needed", l.MaybeScore))
		return Verdict{Decision: Maybe, Confidence: 65, Reasoning: reasoning}

	default:
		if avg < l.MaybeScore {
			reasoning = append(reasoning, fmt.Sprintf("score below %.0f", l.MaybeScore))
		} else {
			reasoning = append(reasoning, "too many critical issues")
		}
		return Verdict{Decision: NoHire, Confidence: 80, Reasoning: reasoning}
	}
}
