package scoring

import "time"

// Weights are the coefficients of the three aggregate scores.
type Weights struct {
	Quality           float64 `mapstructure:"quality"`
	ResumeMatch       float64 `mapstructure:"resume-match"`
	Demo              float64 `mapstructure:"demo"`
	FollowerTechnical float64 `mapstructure:"follower-technical"`
	FollowerCap       float64 `mapstructure:"follower-cap"`

	Repository       float64 `mapstructure:"repository"`
	FollowerActivity float64 `mapstructure:"follower-activity"`
	Completeness     float64 `mapstructure:"completeness"`
	ActiveRepository float64 `mapstructure:"active-repository"`

	RedFlagPenalty float64 `mapstructure:"red-flag-penalty"`
	AIUsagePenalty float64 `mapstructure:"ai-usage-penalty"`

	// ActiveWithin is how recent the last push must be for a repository to count as active.
	ActiveWithin time.Duration `mapstructure:"active-within"`
}

func DefaultWeights() Weights {
	return Weights{
		Quality:           0.4,
		ResumeMatch:       15,
		Demo:              8,
		FollowerTechnical: 0.2,
		FollowerCap:       20,

		Repository:       1.5,
		FollowerActivity: 0.3,
		Completeness:     0.4,
		ActiveRepository: 2,

		RedFlagPenalty: 15,
		AIUsagePenalty: 0.3,

		ActiveWithin: 180 * 24 * time.Hour,
	}
}

// Thresholds drive the flag detector.
type Thresholds struct {
	BatchSameDay          int     `mapstructure:"batch-same-day"`
	HighAIUsage           float64 `mapstructure:"high-ai-usage"`
	ResumeMismatchRepos   int     `mapstructure:"resume-mismatch-repos"`
	UnclearContribution   float64 `mapstructure:"unclear-contribution"`
	UnclearGroupProjects  int     `mapstructure:"unclear-group-projects"`
	HighQuality           float64 `mapstructure:"high-quality"`
	Followers             int     `mapstructure:"followers"`
	OriginalToForkedRatio float64 `mapstructure:"original-to-forked-ratio"`
	HighConfidence        float64 `mapstructure:"high-confidence"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		BatchSameDay:          3,
		HighAIUsage:           70,
		ResumeMismatchRepos:   5,
		UnclearContribution:   40,
		UnclearGroupProjects:  1,
		HighQuality:           80,
		Followers:             50,
		OriginalToForkedRatio: 2,
		HighConfidence:        85,
	}
}

// Ladder holds the verdict rule thresholds, evaluated top-down.
type Ladder struct {
	StrongHireScore  float64 `mapstructure:"strong-hire-score"`
	StrongHireMaxAI  float64 `mapstructure:"strong-hire-max-ai"`
	HireScore        float64 `mapstructure:"hire-score"`
	HireMaxAI        float64 `mapstructure:"hire-max-ai"`
	MaybeScore       float64 `mapstructure:"maybe-score"`
	MaybeMaxCritical int     `mapstructure:"maybe-max-critical"`
}

func DefaultLadder() Ladder {
	return Ladder{
		StrongHireScore:  85,
		StrongHireMaxAI:  30,
		HireScore:        75,
		HireMaxAI:        50,
		MaybeScore:       60,
		MaybeMaxCritical: 1,
	}
}
