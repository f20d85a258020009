package links

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	TypeCode    = "code"
	TypeWebsite = "website"

	codeHostHost = "github.com"
	networkHost  = "linkedin.com"

	maxHandleLength = 39
)

// Link is an extra URL that did not claim one of the known categories.
type Link struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Links holds at most one URL per known category. Empty strings mean unset.
type Links struct {
	CodeHost  string `json:"code_host_profile,omitempty"`
	Network   string `json:"network_profile,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
	Website   string `json:"website,omitempty"`
	Other     []Link `json:"other,omitempty"`
}

var (
	urlPattern    = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'()\[\]{}|,]+`)
	handlePattern = regexp.MustCompile(`^[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*$`)

	// Tried in order, only for categories the URL pass left unset.
	codeHostLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bgithub\.com/@?([A-Za-z0-9-]+)(?:[\s,;)/.:]|$)`),
		label(`github(?:\s+(?:profile|username|handle|id))?`, `@?([A-Za-z0-9-]+)(?:[\s,;).]|$)`),
	}
	networkLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\blinkedin\.com/in/([A-Za-z0-9-]+)(?:[\s,;)/.:]|$)`),
		label(`linkedin(?:\s+(?:profile|url|handle))?`, `(?:in/)?@?([A-Za-z0-9-]+)(?:[\s,;).]|$)`),
	}
	portfolioLabels = []*regexp.Regexp{
		label(`(?:portfolio|blog)`, `((?:[a-z0-9-]+\.)+[a-z]{2,}(?:/[^\s,;)]*)?)`),
	}
	websiteLabels = []*regexp.Regexp{
		label(`(?:website|personal site|homepage|site)`, `((?:[a-z0-9-]+\.)+[a-z]{2,}(?:/[^\s,;)]*)?)`),
	}

	reservedHandles = map[string]bool{
		"about": true, "api": true, "blog": true, "collections": true, "company": true,
		"contact": true, "docs": true, "enterprise": true, "events": true, "explore": true,
		"features": true, "feed": true, "help": true, "home": true, "in": true,
		"index": true, "issues": true, "jobs": true, "join": true, "login": true,
		"logout": true, "marketplace": true, "notifications": true, "orgs": true,
		"organizations": true, "pricing": true, "privacy": true, "profile": true,
		"pub": true, "pulls": true, "register": true, "school": true, "search": true,
		"security": true, "settings": true, "signup": true, "site": true, "sponsors": true,
		"terms": true, "topics": true, "trending": true, "user": true, "users": true,
	}

	// Known platforms never reported as a personal website.
	excludedHosts = []string{
		"google.", "bing.com", "duckduckgo.com", "yahoo.com", "baidu.com", "yandex.",
		"stackoverflow.com", "stackexchange.com", "superuser.com", "serverfault.com", "quora.com",
		"twitter.com", "x.com", "facebook.com", "fb.com", "instagram.com", "tiktok.com",
		"youtube.com", "youtu.be", "reddit.com", "t.me", "telegram.me", "wa.me", "vk.com",
		"pinterest.com", "snapchat.com", "threads.net",
	}

	codeHosts = []string{"gitlab.com", "bitbucket.org", "codeberg.org", "sr.ht", "gitee.com"}

	portfolioHostSuffixes = []string{"github.io", "netlify.app", "vercel.app", "pages.dev", "gitlab.io"}
	portfolioKeywords     = []string{"portfolio", "folio", "blog"}
)

// Extract finds identity links in free text. It is pure and never fails;
// anything that does not parse is skipped.
func Extract(text string) Links {
	var (
		result    Links
		repoOwner string
		seen      = make(map[string]bool)
	)

	for _, raw := range urlPattern.FindAllString(text, -1) {
		u, ok := parse(raw)
		if !ok {
			continue
		}

		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		segments := pathSegments(u.Path)

		switch {
		case host == codeHostHost:
			if len(segments) == 0 || !ValidHandle(segments[0]) {
				continue
			}
			if len(segments) == 1 {
				if result.CodeHost == "" {
					result.CodeHost = codeHostURL(segments[0])
				}
				continue
			}
			if repoOwner == "" {
				repoOwner = segments[0]
			}
			continue
		case host == networkHost || strings.HasSuffix(host, "."+networkHost):
			if len(segments) >= 2 && strings.EqualFold(segments[0], "in") && ValidHandle(segments[1]) && result.Network == "" {
				result.Network = networkURL(segments[1])
			}
			continue
		}

		normalized := normalizeURL(u)
		if seen[normalized] {
			continue
		}

		switch {
		case isPortfolio(host, u.Path):
			if result.Portfolio == "" {
				result.Portfolio = normalized
				seen[normalized] = true
			}
		case isExcluded(host):
		case hostIn(host, codeHosts):
			seen[normalized] = true
			result.Other = append(result.Other, Link{URL: normalized, Type: TypeCode})
		case result.Website == "":
			seen[normalized] = true
			result.Website = normalized
		default:
			seen[normalized] = true
			result.Other = append(result.Other, Link{URL: normalized, Type: TypeWebsite})
		}
	}

	if result.CodeHost == "" {
		if handle := firstHandle(text, codeHostLabels); handle != "" {
			result.CodeHost = codeHostURL(handle)
		} else if repoOwner != "" {
			result.CodeHost = codeHostURL(repoOwner)
		}
	}
	if result.Network == "" {
		if handle := firstHandle(text, networkLabels); handle != "" {
			result.Network = networkURL(handle)
		}
	}
	if result.Portfolio == "" {
		result.Portfolio = firstDomain(text, portfolioLabels)
	}
	if result.Website == "" {
		if site := firstDomain(text, websiteLabels); site != "" && site != result.Portfolio {
			result.Website = site
		}
	}

	return result
}

// ValidHandle applies the profile handle rules: 1..39 characters of letters,
// digits and single inner hyphens, and not a reserved path segment.
func ValidHandle(handle string) bool {
	if handle == "" || len(handle) > maxHandleLength {
		return false
	}
	if !handlePattern.MatchString(handle) {
		return false
	}
	return !reservedHandles[strings.ToLower(handle)]
}

// CodeHostHandle returns the handle of the code-host profile, if any.
func (l Links) CodeHostHandle() string {
	return lastSegment(l.CodeHost)
}

// NetworkHandle returns the handle of the professional-network profile, if any.
func (l Links) NetworkHandle() string {
	return lastSegment(l.Network)
}

// Empty reports whether no link was found.
func (l Links) Empty() bool {
	return l.CodeHost == "" && l.Network == "" && l.Portfolio == "" && l.Website == "" && len(l.Other) == 0
}

func codeHostURL(handle string) string {
	return "https://" + codeHostHost + "/" + handle
}

func networkURL(handle string) string {
	return "https://www." + networkHost + "/in/" + handle
}

func parse(raw string) (*url.URL, bool) {
	raw = strings.TrimRight(raw, ".,;:!?'\")]}")
	if strings.HasPrefix(strings.ToLower(raw), "www.") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	host := u.Hostname()
	if host == "" || !strings.Contains(host, ".") || strings.HasSuffix(host, ".") {
		return nil, false
	}
	return u, true
}

func normalizeURL(u *url.URL) string {
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimPrefix(strings.ToLower(u.Host), "www.") + path
}

func pathSegments(path string) []string {
	var segments []string
	for _, part := range strings.Split(path, "/") {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

func lastSegment(raw string) string {
	if raw == "" {
		return ""
	}
	segments := pathSegments(strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://"))
	if len(segments) < 2 {
		return ""
	}
	return segments[len(segments)-1]
}

func isPortfolio(host, path string) bool {
	for _, suffix := range portfolioHostSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	target := host + strings.ToLower(path)
	for _, keyword := range portfolioKeywords {
		if strings.Contains(target, keyword) {
			return true
		}
	}
	return false
}

func isExcluded(host string) bool {
	for _, pattern := range excludedHosts {
		if strings.HasSuffix(pattern, ".") {
			if strings.HasPrefix(host, pattern) || strings.Contains(host, "."+pattern) {
				return true
			}
			continue
		}
		if host == pattern || strings.HasSuffix(host, "."+pattern) {
			return true
		}
	}
	return false
}

func hostIn(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// label builds a "<name> <separator> <value>" pattern anchored at a line
// start or after a field delimiter.
func label(name, value string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)(?:^|[|•·,;(])[ \t]*` + name + `[ \t]*(?::|=|\||[ \t][-–—][ \t])[ \t]*` + value)
}

func firstHandle(text string, patterns []*regexp.Regexp) string {
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if ValidHandle(match[1]) {
				return match[1]
			}
		}
	}
	return ""
}

func firstDomain(text string, patterns []*regexp.Regexp) string {
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			u, ok := parse(match[1])
			if !ok {
				u, ok = parse("https://" + match[1])
			}
			if !ok {
				continue
			}
			host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
			if host == codeHostHost || host == networkHost || isExcluded(host) {
				continue
			}
			return normalizeURL(u)
		}
	}
	return ""
}
