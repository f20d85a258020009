package linkedin

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Claims are the résumé statements the profile is checked against.
type Claims struct {
	Name      string   `json:"name,omitempty"`
	Companies []string `json:"companies,omitempty"`
	Schools   []string `json:"schools,omitempty"`
	Degrees   []string `json:"degrees,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	// Years is the stated total experience, or the span of the listed
	// employment dates when nothing is stated. 0 means unknown.
	Years int `json:"years,omitempty"`
}

type section int

const (
	sectionNone section = iota
	sectionExperience
	sectionEducation
	sectionSkills
	sectionOther
)

const maxSkillLength = 40

var (
	headers = map[string]section{
		"experience":              sectionExperience,
		"work experience":         sectionExperience,
		"professional experience": sectionExperience,
		"employment":              sectionExperience,
		"employment history":      sectionExperience,
		"work history":            sectionExperience,
		"education":               sectionEducation,
		"skills":                  sectionSkills,
		"technical skills":        sectionSkills,
		"core skills":             sectionSkills,
		"key skills":              sectionSkills,
		"technologies":            sectionSkills,
		"tech stack":              sectionSkills,
		"summary":                 sectionOther,
		"profile":                 sectionOther,
		"about":                   sectionOther,
		"projects":                sectionOther,
		"certifications":          sectionOther,
		"languages":               sectionOther,
		"contacts":                sectionOther,
		"contact":                 sectionOther,
	}

	yearsPattern = regexp.MustCompile(`(?i)(\d{1,2})\+?\s*(?:years?|yrs?)\s+(?:of\s+)?(?:\w+\s+){0,3}?(?:experience|exp\b)`)
	rangePattern = regexp.MustCompile(`(?i)\b((?:19|20)\d{2})\s*(?:-|–|—|to)\s*((?:19|20)\d{2}|present|current|now)\b`)
	atPattern    = regexp.MustCompile(`(?i)^(.+?)\s+(?:at|@)\s+(.+)$`)

	schoolKeywords = []string{"university", "college", "institute", "school", "academy", "polytechnic"}
	degreePattern  = regexp.MustCompile(`(?i)\b(bachelor(?:'s)?|master(?:'s)?|ph\.?d|doctorate|mba|b\.?sc|m\.?sc|b\.?s\.?|m\.?s\.?|b\.?a\.?|m\.?a\.?|associate)\b`)

	companyCut = regexp.MustCompile(`\s*(?:[,(|•·]|\s[-–—]\s).*$`)
)

// ParseResume extracts claims from plain résumé text. It never fails;
// unrecognised lines are ignored.
func ParseResume(text string) Claims {
	return parseResume(text, time.Now().UTC().Year())
}

func parseResume(text string, currentYear int) Claims {
	var claims Claims
	current := sectionNone
	firstYear, lastYear := 0, 0

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "-*•·"))
		if line == "" {
			continue
		}

		if s, ok := headers[headerKey(line)]; ok {
			current = s
			continue
		}

		if claims.Name == "" && current == sectionNone && looksLikeName(line) {
			claims.Name = line
			continue
		}

		if m := yearsPattern.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > claims.Years {
				claims.Years = n
			}
		}

		for _, m := range rangePattern.FindAllStringSubmatch(line, -1) {
			start, _ := strconv.Atoi(m[1])
			end, err := strconv.Atoi(m[2])
			if err != nil {
				end = currentYear
			}
			if current == sectionEducation || end < start {
				continue
			}
			if firstYear == 0 || start < firstYear {
				firstYear = start
			}
			if end > lastYear {
				lastYear = end
			}
		}

		switch current {
		case sectionExperience:
			if company := companyFromLine(line); company != "" {
				claims.Companies = appendUnique(claims.Companies, company)
			}
		case sectionEducation:
			if school := schoolFromLine(line); school != "" {
				claims.Schools = appendUnique(claims.Schools, school)
			}
			if m := degreePattern.FindString(line); m != "" {
				claims.Degrees = appendUnique(claims.Degrees, m)
			}
		case sectionSkills:
			for _, skill := range splitSkills(line) {
				claims.Skills = appendUnique(claims.Skills, skill)
			}
		}
	}

	if claims.Years == 0 && firstYear > 0 {
		claims.Years = lastYear - firstYear
	}
	return claims
}

func headerKey(line string) string {
	key := strings.ToLower(strings.TrimRight(line, ": "))
	return strings.Join(strings.Fields(key), " ")
}

func looksLikeName(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 4 || len(line) > 60 {
		return false
	}
	for _, w := range words {
		if !unicode.IsUpper([]rune(w)[0]) {
			return false
		}
		for _, r := range w {
			if !unicode.IsLetter(r) && r != '-' && r != '\'' && r != '.' {
				return false
			}
		}
	}
	return true
}

func companyFromLine(line string) string {
	m := atPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	company := rangePattern.ReplaceAllString(m[2], "")
	company = strings.TrimSpace(companyCut.ReplaceAllString(company, ""))
	if company == "" || len(company) > 80 {
		return ""
	}
	if first := []rune(company)[0]; !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return ""
	}
	return company
}

func schoolFromLine(line string) string {
	for _, part := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == '|' || r == '(' }) {
		part = strings.TrimSpace(rangePattern.ReplaceAllString(part, ""))
		lower := strings.ToLower(part)
		for _, kw := range schoolKeywords {
			if strings.Contains(lower, kw) {
				return part
			}
		}
	}
	return ""
}

func splitSkills(line string) []string {
	if i := strings.Index(line, ":"); i >= 0 && i < 30 {
		line = line[i+1:]
	}
	var out []string
	for _, s := range strings.FieldsFunc(line, func(r rune) bool { return strings.ContainsRune(",;|•·/", r) }) {
		s = strings.TrimSpace(s)
		if s != "" && len(s) <= maxSkillLength {
			out = append(out, s)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return list
		}
	}
	return append(list, v)
}

// normalizeOrg lowercases and drops punctuation and legal suffixes so
// "Acme, Inc." matches "ACME".
func normalizeOrg(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	words := strings.Fields(s)
	for len(words) > 1 {
		switch words[len(words)-1] {
		case "inc", "llc", "ltd", "gmbh", "corp", "corporation", "co", "company", "plc", "ag", "sa":
			words = words[:len(words)-1]
			continue
		}
		break
	}
	return strings.Join(words, " ")
}
