package analysis

import (
	_ "embed"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/spigell/candidate-vetter/internal/domain"
	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/utils"
)

const (
	maxListItems   = 10
	maxTextLength  = 400
	maxEvidenceLen = 300
)

//go:embed schema.json
var responseSchemaJSON string

var responseSchema = mustSchema(responseSchemaJSON)

func mustSchema(doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("analysis response schema: %v", err))
	}
	return schema
}

// extractJSON strips code fences and cuts the text to its outermost object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return strings.TrimSpace(raw)
	}
	return raw[start : end+1]
}

// parseResponse validates the model output and converts it into a typed
// analysis. Numbers are clamped and enums defaulted; nothing is taken verbatim.
func parseResponse(raw string) (ProjectAnalysis, error) {
	const op = "parse analysis"

	doc := extractJSON(raw)
	if doc == "" || !gjson.Valid(doc) {
		return ProjectAnalysis{}, errs.Newf(errs.Malformed, op, "response is not valid json")
	}

	result, err := responseSchema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return ProjectAnalysis{}, errs.New(errs.Malformed, op, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return ProjectAnalysis{}, errs.Newf(errs.Malformed, op, "response does not match schema: %s", strings.Join(problems, "; "))
	}

	root := gjson.Parse(doc)

	out := ProjectAnalysis{
		CompletenessScore: score(root.Get("completeness_score")),
		CodeQuality: CodeQuality{
			Naming:             score(root.Get("code_quality.naming")),
			Comments:           score(root.Get("code_quality.comments")),
			Structure:          score(root.Get("code_quality.structure")),
			AIUsagePercent:     score(root.Get("code_quality.ai_usage_percent")),
			Overall:            score(root.Get("code_quality.overall")),
			ProfessionalReadme: root.Get("code_quality.professional_readme").Bool(),
			HasTests:           root.Get("code_quality.has_tests").Bool(),
			FollowsConventions: root.Get("code_quality.follows_conventions").Bool(),
			Confidence:         score(root.Get("code_quality.confidence")),
		},
		Complexity: domain.ParseComplexity(root.Get("complexity").String()),
		Collaboration: Collaboration{
			IsGroupProject:      root.Get("collaboration.is_group_project").Bool(),
			ContributionClarity: score(root.Get("collaboration.contribution_clarity")),
		},
	}

	mention := root.Get("resume_mention")
	if mention.IsObject() {
		out.ResumeMention = mention.Get("mentioned").Bool()
		out.ResumeEvidence = text(mention.Get("evidence"), maxEvidenceLen)
	} else {
		out.ResumeMention = mention.Bool()
	}
	if !out.ResumeMention {
		out.ResumeEvidence = ""
	}

	root.Get("demo_links").ForEach(func(_, item gjson.Result) bool {
		link, ok := demoURL(item.Get("url").String())
		if ok {
			out.DemoLinks = append(out.DemoLinks, DemoLink{
				URL:         link,
				Description: text(item.Get("description"), maxTextLength),
				Impact:      domain.ParseImpact(item.Get("impact").String()),
			})
		}
		return len(out.DemoLinks) < maxListItems
	})

	root.Get("red_flags").ForEach(func(_, item gjson.Result) bool {
		desc, severity := entry(item, "description", "severity")
		if desc != "" {
			out.RedFlags = append(out.RedFlags, RedFlag{Severity: domain.ParseSeverity(severity), Description: desc})
		}
		return len(out.RedFlags) < maxListItems
	})

	root.Get("positive_indicators").ForEach(func(_, item gjson.Result) bool {
		desc, category := entry(item, "description", "category")
		if desc != "" {
			out.PositiveIndicators = append(out.PositiveIndicators, PositiveIndicator{
				Category:    domain.ParseIndicatorCategory(category),
				Description: desc,
			})
		}
		return len(out.PositiveIndicators) < maxListItems
	})

	root.Get("recommendations").ForEach(func(_, item gjson.Result) bool {
		desc, priority := entry(item, "text", "priority")
		if desc != "" {
			out.Recommendations = append(out.Recommendations, Recommendation{
				Priority: domain.ParsePriority(priority),
				Text:     desc,
			})
		}
		return len(out.Recommendations) < maxListItems
	})
	sortRecommendations(out.Recommendations)

	var techs []string
	root.Get("technologies").ForEach(func(_, item gjson.Result) bool {
		techs = append(techs, item.String())
		return true
	})
	out.Technologies = technologySet(techs)

	return out, nil
}

func score(r gjson.Result) float64 {
	if !r.Exists() {
		return 0
	}
	return domain.ClampScore(r.Float())
}

func text(r gjson.Result, limit int) string {
	return utils.Truncate(strings.TrimSpace(r.String()), limit)
}

// entry reads an object item or a bare string item.
func entry(item gjson.Result, textKey, enumKey string) (string, string) {
	if item.Type == gjson.String {
		return utils.Truncate(strings.TrimSpace(item.String()), maxTextLength), ""
	}
	return text(item.Get(textKey), maxTextLength), item.Get(enumKey).String()
}

func demoURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return u.String(), true
}

func technologySet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func sortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.Rank() < recs[j].Priority.Rank()
	})
}
