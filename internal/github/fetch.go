package github

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/candidate-vetter/internal/commits"
	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/links"
	"github.com/spigell/candidate-vetter/internal/utils"
)

const (
	defaultReadmeLimit = 8000
	rawMediaType       = "application/vnd.github.raw"
)

var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// Profile is the public account data of a handle.
type Profile struct {
	Login       string    `json:"login"`
	Name        string    `json:"name,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Company     string    `json:"company,omitempty"`
	Location    string    `json:"location,omitempty"`
	Blog        string    `json:"blog,omitempty"`
	URL         string    `json:"url"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
}

type rawProfile struct {
	Login       string `mapstructure:"login"`
	Name        string `mapstructure:"name"`
	Bio         string `mapstructure:"bio"`
	Company     string `mapstructure:"company"`
	Location    string `mapstructure:"location"`
	Blog        string `mapstructure:"blog"`
	HTMLURL     string `mapstructure:"html_url"`
	AvatarURL   string `mapstructure:"avatar_url"`
	PublicRepos int    `mapstructure:"public_repos"`
	Followers   int    `mapstructure:"followers"`
	Following   int    `mapstructure:"following"`
	CreatedAt   string `mapstructure:"created_at"`
}

// FetchProfile returns the public profile of handle.
func (c *Client) FetchProfile(ctx context.Context, handle string) (*Profile, error) {
	const op = "fetch profile"
	if !links.ValidHandle(handle) {
		return nil, errs.Newf(errs.InvalidInput, op, "invalid handle %q", handle)
	}

	resp, err := c.get(ctx, request{
		op:     op,
		path:   "/users/{user}",
		params: map[string]string{"user": handle},
	})
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, errs.New(errs.Malformed, op, err)
	}

	var raw rawProfile
	if err := decode(payload, &raw); err != nil {
		return nil, errs.New(errs.Malformed, op, err)
	}
	if strings.TrimSpace(raw.Login) == "" {
		return nil, errs.Newf(errs.Malformed, op, "profile without login")
	}

	return &Profile{
		Login:       strings.TrimSpace(raw.Login),
		Name:        strings.TrimSpace(raw.Name),
		Bio:         strings.TrimSpace(raw.Bio),
		Company:     strings.TrimSpace(raw.Company),
		Location:    strings.TrimSpace(raw.Location),
		Blog:        normalizeHomepage(raw.Blog),
		URL:         strings.TrimSpace(raw.HTMLURL),
		AvatarURL:   strings.TrimSpace(raw.AvatarURL),
		PublicRepos: nonNegative(raw.PublicRepos),
		Followers:   nonNegative(raw.Followers),
		Following:   nonNegative(raw.Following),
		CreatedAt:   parseTime(raw.CreatedAt),
	}, nil
}

// FetchRepositories returns the repositories owned by handle, newest first.
func (c *Client) FetchRepositories(ctx context.Context, handle string) (*Repositories, error) {
	const op = "fetch repositories"
	if !links.ValidHandle(handle) {
		return nil, errs.Newf(errs.InvalidInput, op, "invalid handle %q", handle)
	}

	repos := &Repositories{}
	for page := 1; page <= maxPages; page++ {
		resp, err := c.get(ctx, request{
			op:     op,
			path:   "/users/{user}/repos",
			params: map[string]string{"user": handle},
			query: map[string]string{
				"type":     "owner",
				"sort":     "updated",
				"per_page": strconv.Itoa(perPage),
				"page":     strconv.Itoa(page),
			},
		})
		if err != nil {
			return nil, err
		}

		var items []any
		if err := json.Unmarshal(resp.Body(), &items); err != nil {
			return nil, errs.New(errs.Malformed, op, err)
		}

		var raws []rawRepository
		if err := decode(items, &raws); err != nil {
			return nil, errs.New(errs.Malformed, op, err)
		}

		for _, raw := range raws {
			summary := raw.summary()
			if summary.Name == "" {
				continue
			}
			repos.Items = append(repos.Items, summary)
		}

		if len(items) < perPage {
			break
		}

		c.logger.Debug("additional request needed", zap.String("handle", handle), zap.Int("next_page", page+1))
	}

	return repos, nil
}

// FetchRepositoryDetail returns repository metadata plus README, contributor
// count and commit pattern. The sub-resources are optional and fall back to
// empty values; only the repository itself can fail the call.
func (c *Client) FetchRepositoryDetail(ctx context.Context, handle, name string) (*RepositoryDetail, error) {
	const op = "fetch repository detail"
	if !links.ValidHandle(handle) {
		return nil, errs.Newf(errs.InvalidInput, op, "invalid handle %q", handle)
	}
	if !repoNamePattern.MatchString(name) || name == "." || name == ".." {
		return nil, errs.Newf(errs.InvalidInput, op, "invalid repository name %q", name)
	}

	params := map[string]string{"owner": handle, "repo": name}

	resp, err := c.get(ctx, request{op: op, path: "/repos/{owner}/{repo}", params: params})
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, errs.New(errs.Malformed, op, err)
	}
	var raw rawRepository
	if err := decode(payload, &raw); err != nil {
		return nil, errs.New(errs.Malformed, op, err)
	}

	detail := &RepositoryDetail{
		RepositorySummary: *raw.summary(),
		License:           raw.license(),
	}

	var timestamps []time.Time

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		detail.Readme = c.readme(gctx, params)
		return nil
	})
	g.Go(func() error {
		detail.ContributorCount = c.contributors(gctx, params)
		return nil
	})
	g.Go(func() error {
		timestamps = c.commitTimes(gctx, params)
		return nil
	})
	_ = g.Wait()

	detail.CommitPattern = commits.Analyze(timestamps, c.now())

	return detail, nil
}

func (c *Client) readme(ctx context.Context, params map[string]string) string {
	resp, err := c.get(ctx, request{
		op:     "fetch readme",
		path:   "/repos/{owner}/{repo}/readme",
		params: params,
		accept: rawMediaType,
	})
	if err != nil {
		c.logger.Debug("readme is not available", zap.String("repository", params["repo"]), zap.Error(err))
		return ""
	}
	return utils.Truncate(strings.TrimSpace(resp.String()), c.readmeLimit)
}

func (c *Client) contributors(ctx context.Context, params map[string]string) int {
	resp, err := c.get(ctx, request{
		op:     "fetch contributors",
		path:   "/repos/{owner}/{repo}/contributors",
		params: params,
		query:  map[string]string{"per_page": strconv.Itoa(perPage), "anon": "1"},
	})
	if err != nil {
		c.logger.Debug("contributors are not available", zap.String("repository", params["repo"]), zap.Error(err))
		return 0
	}

	body := resp.Body()
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return 0
	}
	return int(gjson.GetBytes(body, "#").Int())
}

// commitTimes pages through the commit list, newest first, and stops after
// maxCommitPages. A failed later page keeps what was already read.
func (c *Client) commitTimes(ctx context.Context, params map[string]string) []time.Time {
	var timestamps []time.Time
	for page := 1; page <= maxCommitPages; page++ {
		resp, err := c.get(ctx, request{
			op:     "fetch commits",
			path:   "/repos/{owner}/{repo}/commits",
			params: params,
			query: map[string]string{
				"per_page": strconv.Itoa(perPage),
				"page":     strconv.Itoa(page),
			},
		})
		if err != nil {
			c.logger.Debug("commits are not available", zap.String("repository", params["repo"]), zap.Int("page", page), zap.Error(err))
			return timestamps
		}

		body := resp.Body()
		if !gjson.ValidBytes(body) {
			return timestamps
		}

		entries := gjson.GetBytes(body, "#.commit").Array()
		for _, entry := range entries {
			date := entry.Get("author.date").String()
			if date == "" {
				date = entry.Get("committer.date").String()
			}
			if ts := parseTime(date); !ts.IsZero() {
				timestamps = append(timestamps, ts)
			}
		}

		if len(entries) < perPage {
			return timestamps
		}
	}

	c.logger.Debug("commit history capped", zap.String("repository", params["repo"]), zap.Int("commits", len(timestamps)))
	return timestamps
}
