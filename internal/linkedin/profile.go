package linkedin

import (
	"strings"
	"unicode"

	"github.com/spigell/candidate-vetter/internal/links"
)

type Source string

const (
	SourceFetched     Source = "fetched"
	SourceSynthesized Source = "synthesized"
)

type Position struct {
	Title   string `json:"title,omitempty"`
	Company string `json:"company"`
	// StartYear and EndYear are 0 when unknown. EndYear 0 with a known start means current.
	StartYear int `json:"start_year,omitempty"`
	EndYear   int `json:"end_year,omitempty"`
}

type Education struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
}

// Profile is the professional-network data of one candidate. Empty fields are
// unknown, not absent.
type Profile struct {
	URL            string      `json:"url"`
	Handle         string      `json:"handle"`
	Name           string      `json:"name,omitempty"`
	Headline       string      `json:"headline,omitempty"`
	Summary        string      `json:"summary,omitempty"`
	Location       string      `json:"location,omitempty"`
	PhotoURL       string      `json:"photo_url,omitempty"`
	Connections    int         `json:"connections"`
	Positions      []Position  `json:"positions,omitempty"`
	Education      []Education `json:"education,omitempty"`
	Skills         []string    `json:"skills,omitempty"`
	Certifications []string    `json:"certifications,omitempty"`
	Source         Source      `json:"source"`
}

// Synthesize builds a profile from the handle alone. It carries a name only
// when the handle reads like one ("jane-doe-42" gives "Jane Doe").
func Synthesize(handle string) *Profile {
	return &Profile{
		URL:    profileURL(handle),
		Handle: handle,
		Name:   nameFromHandle(handle),
		Source: SourceSynthesized,
	}
}

func profileURL(handle string) string {
	if handle == "" {
		return ""
	}
	return "https://www.linkedin.com/in/" + handle
}

func nameFromHandle(handle string) string {
	if !links.ValidHandle(handle) {
		return ""
	}

	var words []string
	for _, part := range strings.Split(handle, "-") {
		if !isLetters(part) {
			continue
		}
		if len(part) < 2 {
			return ""
		}
		words = append(words, strings.ToUpper(part[:1])+strings.ToLower(part[1:]))
	}
	if len(words) < 2 || len(words) > 4 {
		return ""
	}
	return strings.Join(words, " ")
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
