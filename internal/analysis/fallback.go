package analysis

import (
	"fmt"
	"strings"

	"github.com/spigell/candidate-vetter/internal/domain"
	"github.com/spigell/candidate-vetter/internal/github"
	"github.com/spigell/candidate-vetter/internal/utils"
)

const (
	FallbackRedFlag        = "automated analysis could not complete"
	FallbackRecommendation = "manually review this repository"

	neutralQuality = 50
)

// Fallback builds the deterministic analysis used whenever the model cannot
// produce a usable answer. It depends only on its arguments.
func Fallback(detail *github.RepositoryDetail, resumeExcerpt string) ProjectAnalysis {
	if detail == nil {
		detail = &github.RepositoryDetail{}
	}

	mentioned, evidence := ResumeMention(detail.Name, resumeExcerpt)

	var techs []string
	if detail.Language != "" {
		techs = append(techs, detail.Language)
	}
	techs = append(techs, detail.Topics...)

	out := ProjectAnalysis{
		Repository:        detail.Name,
		ResumeMention:     mentioned,
		ResumeEvidence:    evidence,
		CompletenessScore: metadataCompleteness(detail),
		CodeQuality: CodeQuality{
			Naming:             neutralQuality,
			Comments:           neutralQuality,
			Structure:          neutralQuality,
			Overall:            neutralQuality,
			ProfessionalReadme: len([]rune(detail.Readme)) >= 500,
		},
		RedFlags: []RedFlag{{
			Severity:    domain.SeverityMinor,
			Description: FallbackRedFlag,
		}},
		Recommendations: []Recommendation{{
			Priority: domain.PriorityHigh,
			Text:     FallbackRecommendation,
		}},
		Technologies: technologySet(techs),
		Complexity:   domain.ComplexityBeginner,
		Collaboration: Collaboration{
			IsGroupProject: detail.ContributorCount > 1,
		},
		Fallback: true,
	}

	out.DemoLinks = synthesizeDemos(nil, detail)
	return out
}

// metadataCompleteness scores what the repository exposes without reading code.
func metadataCompleteness(d *github.RepositoryDetail) float64 {
	score := 0.0
	if strings.TrimSpace(d.Readme) != "" {
		score += 30
	}
	if d.Description != "" {
		score += 15
	}
	if d.License != "" {
		score += 15
	}
	if len(d.Topics) > 0 {
		score += 10
	}
	if d.Homepage != "" || d.HasPages {
		score += 10
	}
	if d.CommitPattern.TotalCommits > 0 {
		score += 10
	}
	if d.ContributorCount > 1 {
		score += 10
	}
	return domain.ClampScore(score)
}

// ResumeMention looks for the repository name in the résumé, also trying the
// name with separators replaced by spaces. The evidence is the matching line.
func ResumeMention(name, resume string) (bool, string) {
	name = strings.TrimSpace(name)
	if len(name) < 3 || strings.TrimSpace(resume) == "" {
		return false, ""
	}

	needles := []string{strings.ToLower(name)}
	if spaced := strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(needles[0]); spaced != needles[0] {
		needles = append(needles, spaced)
	}

	for _, line := range strings.Split(resume, "\n") {
		lower := strings.ToLower(line)
		for _, needle := range needles {
			if strings.Contains(lower, needle) {
				return true, utils.Truncate(strings.TrimSpace(line), maxEvidenceLen)
			}
		}
	}
	return false, ""
}

// synthesizeDemos appends homepage and pages links the list does not already
// contain. Added links are tagged positive.
func synthesizeDemos(links []DemoLink, d *github.RepositoryDetail) []DemoLink {
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		seen[demoKey(l.URL)] = struct{}{}
	}

	add := func(raw, description string) {
		link, ok := demoURL(raw)
		if !ok {
			return
		}
		key := demoKey(link)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		links = append(links, DemoLink{URL: link, Description: description, Impact: domain.ImpactPositive})
	}

	if d.Homepage != "" {
		add(d.Homepage, "project homepage")
	}
	if pages := pagesURL(d); pages != "" {
		add(pages, "published pages site")
	}
	return links
}

func pagesURL(d *github.RepositoryDetail) string {
	owner := strings.ToLower(strings.TrimSpace(d.Owner))
	if owner == "" {
		return ""
	}
	if strings.EqualFold(d.Name, owner+".github.io") {
		return fmt.Sprintf("https://%s.github.io/", owner)
	}
	if d.HasPages {
		return fmt.Sprintf("https://%s.github.io/%s/", owner, d.Name)
	}
	return ""
}

func demoKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.TrimPrefix(key, "https://")
	key = strings.TrimPrefix(key, "http://")
	key = strings.TrimPrefix(key, "www.")
	return strings.TrimRight(key, "/")
}
