package linkedin

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spigell/candidate-vetter/internal/domain"
	"github.com/spigell/candidate-vetter/internal/scoring"
)

const honestyFloor = 20

type Inconsistency struct {
	Severity       domain.Severity              `json:"severity"`
	Category       domain.InconsistencyCategory `json:"category"`
	ResumeValue    string                       `json:"resume_value"`
	ProfileValue   string                       `json:"profile_value"`
	Impact         domain.Impact                `json:"impact"`
	Recommendation string                       `json:"recommendation"`
}

// Weights drive the presence scores and the timeline tolerance.
type Weights struct {
	Photo        float64 `mapstructure:"photo"`
	Headline     float64 `mapstructure:"headline"`
	Summary      float64 `mapstructure:"summary"`
	Location     float64 `mapstructure:"location"`
	Position     float64 `mapstructure:"position"`
	MaxPositions int     `mapstructure:"max-positions"`
	School       float64 `mapstructure:"school"`
	MaxSchools   int     `mapstructure:"max-schools"`

	Connections       float64 `mapstructure:"connections"`
	ConnectionsTarget int     `mapstructure:"connections-target"`
	Certification     float64 `mapstructure:"certification"`
	MaxCertifications int     `mapstructure:"max-certifications"`
	Skill             float64 `mapstructure:"skill"`
	MaxSkills         int     `mapstructure:"max-skills"`
	TitledPosition    float64 `mapstructure:"titled-position"`

	// Years of difference between claimed and listed experience.
	TimelineModerate int `mapstructure:"timeline-moderate"`
	TimelineCritical int `mapstructure:"timeline-critical"`
}

func DefaultWeights() Weights {
	return Weights{
		Photo:        15,
		Headline:     15,
		Summary:      15,
		Location:     5,
		Position:     10,
		MaxPositions: 3,
		School:       10,
		MaxSchools:   2,

		Connections:       40,
		ConnectionsTarget: 500,
		Certification:     10,
		MaxCertifications: 3,
		Skill:             2,
		MaxSkills:         10,
		TitledPosition:    10,

		TimelineModerate: 2,
		TimelineCritical: 5,
	}
}

type Scores struct {
	Honesty      float64 `json:"honesty"`
	Completeness float64 `json:"completeness"`
	Professional float64 `json:"professional"`
}

// Analysis is the professional-network branch result.
type Analysis struct {
	ProfileData     *Profile        `json:"profile_data"`
	Claims          Claims          `json:"resume_claims"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	Scores          Scores          `json:"scores"`
	Recommendations []string        `json:"recommendations"`
	Verdict         scoring.Verdict `json:"verdict"`
}

// Analyze compares the résumé with profile. Only fields the profile carries
// are checked, so a synthesized profile yields few inconsistencies.
func Analyze(profile *Profile, resume string, w Weights) Analysis {
	year := time.Now().UTC().Year()
	return analyze(profile, parseResume(resume, year), w, year)
}

func analyze(profile *Profile, claims Claims, w Weights, currentYear int) Analysis {
	if profile == nil {
		profile = &Profile{Source: SourceSynthesized}
	}

	c := checker{profile: profile, claims: claims, w: w, year: currentYear, found: []Inconsistency{}}
	c.name()
	c.companies()
	c.schools()
	c.skills()
	c.timeline()

	counts := map[domain.Severity]int{}
	for _, inc := range c.found {
		counts[inc.Severity]++
	}

	scores := Scores{
		Honesty: domain.Clamp(100-
			30*float64(counts[domain.SeverityCritical])-
			15*float64(counts[domain.SeverityModerate])-
			5*float64(counts[domain.SeverityMinor]), honestyFloor, 100),
		Completeness: completeness(profile, w),
		Professional: professional(profile, w),
	}

	verdict := scoring.Decide(scoring.VerdictInput{
		Scores: []scoring.Score{
			{Name: "professional", Value: scores.Professional},
			{Name: "completeness", Value: scores.Completeness},
			{Name: "honesty", Value: scores.Honesty},
		},
		RedFlags:      counts[domain.SeverityCritical] + counts[domain.SeverityModerate],
		CriticalFlags: counts[domain.SeverityCritical],
		ResumeMatches: c.confirmed,
	})

	return Analysis{
		ProfileData:     profile,
		Claims:          claims,
		Inconsistencies: c.found,
		Scores:          scores,
		Recommendations: recommendations(profile, c.found, scores),
		Verdict:         verdict,
	}
}

type checker struct {
	profile *Profile
	claims  Claims
	w       Weights
	year    int

	found     []Inconsistency
	confirmed int
}

func (c *checker) add(sev domain.Severity, cat domain.InconsistencyCategory, resume, profile, rec string) {
	impact := domain.ImpactNegative
	if sev == domain.SeverityMinor {
		impact = domain.ImpactNeutral
	}
	c.found = append(c.found, Inconsistency{
		Severity:       sev,
		Category:       cat,
		ResumeValue:    resume,
		ProfileValue:   profile,
		Impact:         impact,
		Recommendation: rec,
	})
}

func (c *checker) name() {
	if c.claims.Name == "" || c.profile.Name == "" {
		return
	}
	if sharesToken(c.claims.Name, c.profile.Name) {
		return
	}
	c.add(domain.SeverityCritical, domain.CategoryPersonal, c.claims.Name, c.profile.Name,
		"confirm the candidate's identity: résumé and profile names differ")
}

func (c *checker) companies() {
	if len(c.profile.Positions) == 0 {
		return
	}
	listed := make([]string, 0, len(c.profile.Positions))
	for _, p := range c.profile.Positions {
		listed = append(listed, p.Company)
	}
	for _, company := range c.claims.Companies {
		if matchesAny(company, listed) {
			c.confirmed++
			continue
		}
		c.add(domain.SeverityModerate, domain.CategoryExperience, company, strings.Join(listed, ", "),
			fmt.Sprintf("ask about the role at %s, which the profile does not list", company))
	}
}

func (c *checker) schools() {
	if len(c.profile.Education) == 0 {
		return
	}
	listed := make([]string, 0, len(c.profile.Education))
	for _, e := range c.profile.Education {
		listed = append(listed, e.School)
	}
	for _, school := range c.claims.Schools {
		if matchesAny(school, listed) {
			c.confirmed++
			continue
		}
		c.add(domain.SeverityModerate, domain.CategoryEducation, school, strings.Join(listed, ", "),
			fmt.Sprintf("verify the education at %s", school))
	}
}

func (c *checker) skills() {
	if len(c.profile.Skills) == 0 || len(c.claims.Skills) == 0 {
		return
	}
	var missing []string
	for _, skill := range c.claims.Skills {
		if !matchesAny(skill, c.profile.Skills) {
			missing = append(missing, skill)
		}
	}
	if 2*len(missing) <= len(c.claims.Skills) {
		return
	}
	c.add(domain.SeverityMinor, domain.CategorySkills,
		fmt.Sprintf("%d of %d skills not on profile: %s", len(missing), len(c.claims.Skills), strings.Join(missing, ", ")),
		strings.Join(c.profile.Skills, ", "),
		"probe the unlisted skills in the technical interview")
}

func (c *checker) timeline() {
	if c.claims.Years <= 0 {
		return
	}
	listed, ok := listedYears(c.profile.Positions, c.year)
	if !ok {
		return
	}

	diff := c.claims.Years - listed
	if diff < 0 {
		diff = -diff
	}

	var sev domain.Severity
	switch {
	case diff > c.w.TimelineCritical:
		sev = domain.SeverityCritical
	case diff > c.w.TimelineModerate:
		sev = domain.SeverityModerate
	default:
		return
	}
	c.add(sev, domain.CategoryTimeline,
		fmt.Sprintf("%d years of experience", c.claims.Years),
		fmt.Sprintf("%d years across listed positions", listed),
		"walk through the employment dates with the candidate")
}

// listedYears is the span from the earliest known start to the latest end.
func listedYears(positions []Position, currentYear int) (int, bool) {
	first, last := 0, 0
	for _, p := range positions {
		if p.StartYear == 0 {
			continue
		}
		end := p.EndYear
		if end == 0 {
			end = currentYear
		}
		if first == 0 || p.StartYear < first {
			first = p.StartYear
		}
		if end > last {
			last = end
		}
	}
	if first == 0 || last < first {
		return 0, false
	}
	return last - first, true
}

func completeness(p *Profile, w Weights) float64 {
	score := presence(p.PhotoURL, w.Photo) +
		presence(p.Headline, w.Headline) +
		presence(p.Summary, w.Summary) +
		presence(p.Location, w.Location) +
		w.Position*float64(min(len(p.Positions), w.MaxPositions)) +
		w.School*float64(min(len(p.Education), w.MaxSchools))
	return domain.ClampScore(score)
}

func professional(p *Profile, w Weights) float64 {
	score := w.Certification*float64(min(len(p.Certifications), w.MaxCertifications)) +
		w.Skill*float64(min(len(p.Skills), w.MaxSkills))

	if w.ConnectionsTarget > 0 && p.Connections > 0 {
		score += w.Connections * math.Min(1, float64(p.Connections)/float64(w.ConnectionsTarget))
	}
	for _, pos := range p.Positions {
		if pos.Title != "" {
			score += w.TitledPosition
			break
		}
	}
	return domain.ClampScore(score)
}

func presence(v string, weight float64) float64 {
	if strings.TrimSpace(v) == "" {
		return 0
	}
	return weight
}

func recommendations(p *Profile, found []Inconsistency, scores Scores) []string {
	out := make([]string, 0, len(found)+1)
	seen := make(map[string]bool)
	for _, inc := range found {
		if !seen[inc.Recommendation] {
			seen[inc.Recommendation] = true
			out = append(out, inc.Recommendation)
		}
	}

	switch {
	case p.Source == SourceSynthesized:
		out = append(out, "profile page could not be read; verify employment history with references")
	case scores.Completeness < 50:
		out = append(out, "profile is sparse; ask the candidate for an updated profile or references")
	case len(found) == 0:
		out = append(out, "résumé claims are consistent with the public profile")
	}
	return out
}

func sharesToken(a, b string) bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(normalizeOrg(a)) {
		if len([]rune(t)) >= 2 {
			tokens[t] = true
		}
	}
	for _, t := range strings.Fields(normalizeOrg(b)) {
		if tokens[t] {
			return true
		}
	}
	return false
}

func matchesAny(claim string, listed []string) bool {
	want := normalizeOrg(claim)
	if want == "" {
		return false
	}
	for _, l := range listed {
		got := normalizeOrg(l)
		if got == "" {
			continue
		}
		if got == want || strings.Contains(got, want) || strings.Contains(want, got) {
			return true
		}
	}
	return false
}
