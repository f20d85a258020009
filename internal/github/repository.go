package github

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/candidate-vetter/internal/commits"
)

// RepositorySummary is one entry of a profile's repository list.
type RepositorySummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Owner       string    `json:"owner"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	Language    string    `json:"language,omitempty"`
	StarCount   int       `json:"star_count"`
	ForkCount   int       `json:"fork_count"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	Homepage    string    `json:"homepage,omitempty"`
	IsFork      bool      `json:"is_fork"`
	IsArchived  bool      `json:"is_archived"`
	HasPages    bool      `json:"has_pages"`
}

// RepositoryDetail extends a summary with the data needed for deep analysis.
type RepositoryDetail struct {
	RepositorySummary
	Readme           string          `json:"readme,omitempty"`
	ContributorCount int             `json:"contributor_count"`
	License          string          `json:"license,omitempty"`
	CommitPattern    commits.Pattern `json:"commit_pattern"`
}

// LastActivity returns the most recent of pushed and updated times.
func (r *RepositorySummary) LastActivity() time.Time {
	if r.PushedAt.After(r.UpdatedAt) {
		return r.PushedAt
	}
	return r.UpdatedAt
}

type Repositories struct {
	Items []*RepositorySummary `json:"items"`
}

func (r *Repositories) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

func (r *Repositories) Names() []string {
	names := make([]string, 0, r.Len())
	if r == nil {
		return names
	}
	for _, repo := range r.Items {
		names = append(names, repo.Name)
	}
	return names
}

func (r *Repositories) FindByName(name string) *RepositorySummary {
	for _, repo := range r.Items {
		if strings.EqualFold(repo.Name, name) {
			return repo
		}
	}
	return nil
}

// Exclude removes repositories matching drop, keeping order, and returns the
// removed names.
func (r *Repositories) Exclude(drop func(*RepositorySummary) bool) []string {
	var excluded []string
	kept := r.Items[:0]
	for _, repo := range r.Items {
		if drop(repo) {
			excluded = append(excluded, repo.Name)
			continue
		}
		kept = append(kept, repo)
	}
	r.Items = kept
	return excluded
}

// Forks counts forked repositories.
func (r *Repositories) Forks() int {
	n := 0
	for _, repo := range r.Items {
		if repo.IsFork {
			n++
		}
	}
	return n
}

// ReportByLanguage groups repositories by primary language.
func (r *Repositories) ReportByLanguage() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, repo := range r.Items {
		key := repo.Language
		if key == "" {
			key = "unknown"
		}
		report[key] = append(report[key], map[string]string{
			"name":     repo.Name,
			"url":      repo.URL,
			"stars":    fmt.Sprintf("%d", repo.StarCount),
			"forks":    fmt.Sprintf("%d", repo.ForkCount),
			"updated":  repo.UpdatedAt.Format(time.DateOnly),
			"homepage": repo.Homepage,
		})
	}
	for key := range report {
		sort.Slice(report[key], func(i, j int) bool {
			return report[key][i]["name"] < report[key][j]["name"]
		})
	}
	return report
}

func (r *Repositories) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "repositories_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// rawRepository mirrors the loosely typed API payload. Conversion to
// RepositorySummary is the only way into the typed model.
type rawRepository struct {
	ID              int64    `mapstructure:"id"`
	Name            string   `mapstructure:"name"`
	HTMLURL         string   `mapstructure:"html_url"`
	Description     string   `mapstructure:"description"`
	Language        string   `mapstructure:"language"`
	StargazersCount int      `mapstructure:"stargazers_count"`
	ForksCount      int      `mapstructure:"forks_count"`
	Size            int      `mapstructure:"size"`
	CreatedAt       string   `mapstructure:"created_at"`
	UpdatedAt       string   `mapstructure:"updated_at"`
	PushedAt        string   `mapstructure:"pushed_at"`
	Topics          []string `mapstructure:"topics"`
	Homepage        string   `mapstructure:"homepage"`
	Fork            bool     `mapstructure:"fork"`
	Archived        bool     `mapstructure:"archived"`
	HasPages        bool     `mapstructure:"has_pages"`
	Owner           struct {
		Login string `mapstructure:"login"`
	} `mapstructure:"owner"`
	License struct {
		SPDXID string `mapstructure:"spdx_id"`
		Name   string `mapstructure:"name"`
	} `mapstructure:"license"`
}

func (raw rawRepository) license() string {
	license := strings.TrimSpace(raw.License.SPDXID)
	if license == "" || license == "NOASSERTION" {
		license = strings.TrimSpace(raw.License.Name)
	}
	return license
}

func (raw rawRepository) summary() *RepositorySummary {
	topics := make([]string, 0, len(raw.Topics))
	for _, topic := range raw.Topics {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}

	return &RepositorySummary{
		ID:          raw.ID,
		Name:        strings.TrimSpace(raw.Name),
		Owner:       strings.TrimSpace(raw.Owner.Login),
		URL:         strings.TrimSpace(raw.HTMLURL),
		Description: strings.TrimSpace(raw.Description),
		Language:    strings.TrimSpace(raw.Language),
		StarCount:   nonNegative(raw.StargazersCount),
		ForkCount:   nonNegative(raw.ForksCount),
		Size:        nonNegative(raw.Size),
		CreatedAt:   parseTime(raw.CreatedAt),
		UpdatedAt:   parseTime(raw.UpdatedAt),
		PushedAt:    parseTime(raw.PushedAt),
		Topics:      topics,
		Homepage:    normalizeHomepage(raw.Homepage),
		IsFork:      raw.Fork,
		IsArchived:  raw.Archived,
		HasPages:    raw.HasPages,
	}
}

func decode(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func parseTime(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func normalizeHomepage(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		v = "https://" + v
	}
	return v
}
