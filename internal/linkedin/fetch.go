package linkedin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/links"
	"github.com/spigell/candidate-vetter/internal/logger"
	"github.com/spigell/candidate-vetter/internal/ratelimit"
	"github.com/spigell/candidate-vetter/internal/retry"
)

const (
	baseURL = "https://www.linkedin.com"
	// PlatformKey is the rate limiter key for profile page requests.
	PlatformKey = "linkedin"

	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; candidate-vetter/1.0)"

	// LinkedIn answers automated clients with this non-standard status.
	statusBlocked = 999
)

type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Retry     retry.Policy
	Limiter   *ratelimit.Limiter
}

// Fetcher reads public profile pages.
type Fetcher struct {
	http    *resty.Client
	logger  *zap.Logger
	limiter *ratelimit.Limiter
	policy  retry.Policy
	timeout time.Duration
}

func NewFetcher(opts Options, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}

	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = baseURL
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(base).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "text/html").
		SetHeader("Accept-Language", "en-US,en;q=0.8")

	return &Fetcher{
		http:    client,
		logger:  logger.WithFields(log, zap.String(logger.FieldSource, PlatformKey)),
		limiter: opts.Limiter,
		policy:  opts.Retry,
		timeout: timeout,
	}
}

// Resolve fetches the public profile of handle and synthesizes one when the
// page is blocked, behind a login wall or carries no profile data. Invalid
// handles and missing profiles are returned as errors.
func (f *Fetcher) Resolve(ctx context.Context, handle string) (*Profile, error) {
	profile, err := f.Fetch(ctx, handle)
	if err == nil {
		return profile, nil
	}

	switch errs.KindOf(err) {
	case errs.InvalidInput, errs.NotFound:
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f.logger.Warn("profile synthesized",
		zap.String(logger.FieldHandle, handle),
		zap.String("kind", string(errs.KindOf(err))),
		zap.Error(err),
	)
	return Synthesize(handle), nil
}

// Fetch downloads and parses the public profile page of handle.
func (f *Fetcher) Fetch(ctx context.Context, handle string) (*Profile, error) {
	const op = "fetch network profile"

	if !links.ValidHandle(handle) {
		return nil, errs.Newf(errs.InvalidInput, op, "invalid handle %q", handle)
	}

	resp, err := retry.Do(ctx, f.policy, func(ctx context.Context) (*resty.Response, error) {
		if err := f.limiter.Wait(ctx, PlatformKey); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		f.logger.Debug("make request", zap.String("op", op), zap.String(logger.FieldHandle, handle))

		resp, err := f.http.R().
			SetContext(callCtx).
			SetPathParam("handle", handle).
			Get("/in/{handle}")
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, errs.New(errs.Timeout, op, err)
			}
			return nil, err
		}
		return resp, checkStatus(op, resp)
	})
	if err != nil {
		return nil, err
	}

	if isAuthWall(resp) {
		return nil, errs.Newf(errs.Limited, op, "login wall")
	}

	profile, err := parseProfile(resp.Body())
	if err != nil {
		return nil, errs.New(errs.Malformed, op, err)
	}
	profile.Handle = handle
	profile.URL = profileURL(handle)
	return profile, nil
}

func checkStatus(op string, resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusGone:
		return errs.New(errs.NotFound, op, nil)
	case code == http.StatusTooManyRequests:
		var after time.Duration
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header().Get("Retry-After"))); err == nil && secs >= 0 {
			after = time.Duration(secs) * time.Second
		}
		return &errs.Error{Kind: errs.RateLimited, Op: op, Err: errors.New(resp.Status()), RetryAfter: after}
	case code == statusBlocked, code == http.StatusUnauthorized, code == http.StatusForbidden:
		return errs.Newf(errs.Limited, op, "blocked: status %d", code)
	case code >= 500:
		return errs.Newf(errs.Unavailable, op, "bad status: %s", resp.Status())
	default:
		return errs.Newf(errs.KindUnknown, op, "bad status: %s", resp.Status())
	}
}

func isAuthWall(resp *resty.Response) bool {
	if resp.RawResponse == nil || resp.RawResponse.Request == nil || resp.RawResponse.Request.URL == nil {
		return false
	}
	path := resp.RawResponse.Request.URL.Path
	return strings.Contains(path, "authwall") || strings.HasPrefix(path, "/login") || strings.HasPrefix(path, "/signup")
}

type rawMeta struct {
	Title       string `mapstructure:"og:title"`
	Description string `mapstructure:"og:description"`
	Image       string `mapstructure:"og:image"`
	FirstName   string `mapstructure:"profile:first_name"`
	LastName    string `mapstructure:"profile:last_name"`
	Plain       string `mapstructure:"description"`
}

var errNoProfile = errors.New("page carries no profile data")

func parseProfile(body []byte) (*Profile, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	meta := make(map[string]any)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := s.AttrOr("property", s.AttrOr("name", ""))
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if key == "" || content == "" {
			return
		}
		if _, seen := meta[key]; !seen {
			meta[key] = content
		}
	})

	var raw rawMeta
	if err := mapstructure.Decode(meta, &raw); err != nil {
		return nil, err
	}

	profile := &Profile{Source: SourceFetched}

	title := strings.TrimSuffix(strings.TrimSpace(raw.Title), "| LinkedIn")
	parts := splitTitle(title)
	if name := strings.TrimSpace(raw.FirstName + " " + raw.LastName); name != "" {
		profile.Name = name
	} else if len(parts) > 0 {
		profile.Name = parts[0]
	}
	if len(parts) > 1 {
		profile.Headline = parts[1]
	}
	if len(parts) > 2 {
		profile.Positions = append(profile.Positions, Position{Title: profile.Headline, Company: parts[2]})
	}

	profile.Summary = raw.Description
	if profile.Summary == "" {
		profile.Summary = raw.Plain
	}
	if !strings.Contains(raw.Image, "ghost") {
		profile.PhotoURL = raw.Image
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		person, ok := personNode(s.Text())
		if !ok {
			return true
		}
		mergePerson(profile, person)
		return false
	})

	if profile.Name == "" && profile.Headline == "" && len(profile.Positions) == 0 {
		return nil, errNoProfile
	}
	return profile, nil
}

// splitTitle splits "Name - Headline - Company" page titles.
func splitTitle(title string) []string {
	var parts []string
	for _, p := range strings.Split(title, " - ") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func personNode(raw string) (gjson.Result, bool) {
	if !gjson.Valid(raw) {
		return gjson.Result{}, false
	}
	root := gjson.Parse(raw)
	if root.Map()["@type"].String() == "Person" {
		return root, true
	}
	for _, node := range items(root.Map()["@graph"]) {
		if node.Map()["@type"].String() == "Person" {
			return node, true
		}
	}
	return gjson.Result{}, false
}

func mergePerson(p *Profile, person gjson.Result) {
	if p.Name == "" {
		p.Name = strings.TrimSpace(person.Get("name").String())
	}
	if p.Location == "" {
		p.Location = strings.TrimSpace(person.Get("address.addressLocality").String())
	}
	if p.PhotoURL == "" {
		p.PhotoURL = person.Get("image.contentUrl").String()
	}
	if p.Connections == 0 {
		p.Connections = int(person.Get("interactionStatistic.userInteractionCount").Int())
	}

	var titles []string
	for _, t := range items(person.Get("jobTitle")) {
		titles = append(titles, strings.TrimSpace(t.String()))
	}
	if p.Headline == "" && len(titles) > 0 {
		p.Headline = titles[0]
	}

	var positions []Position
	for i, org := range items(person.Get("worksFor")) {
		company := strings.TrimSpace(org.Get("name").String())
		if company == "" {
			continue
		}
		pos := Position{
			Company:   company,
			StartYear: year(org.Get("member.startDate").String()),
			EndYear:   year(org.Get("member.endDate").String()),
		}
		if i < len(titles) {
			pos.Title = titles[i]
		}
		positions = append(positions, pos)
	}
	if len(positions) > 0 {
		p.Positions = positions
	}

	for _, school := range items(person.Get("alumniOf")) {
		if name := strings.TrimSpace(school.Get("name").String()); name != "" {
			p.Education = append(p.Education, Education{School: name})
		}
	}
	for _, skill := range items(person.Get("knowsAbout")) {
		if s := strings.TrimSpace(skill.String()); s != "" {
			p.Skills = append(p.Skills, s)
		}
	}
	for _, cert := range items(person.Get("hasCredential")) {
		if name := strings.TrimSpace(cert.Get("name").String()); name != "" {
			p.Certifications = append(p.Certifications, name)
		}
	}
}

// items treats a single value as a one-element list.
func items(r gjson.Result) []gjson.Result {
	if !r.Exists() {
		return nil
	}
	if r.IsArray() {
		return r.Array()
	}
	return []gjson.Result{r}
}

func year(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y < 1950 || y > 2100 {
		return 0
	}
	return y
}
