package linkedin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/candidate-vetter/internal/domain"
	"github.com/spigell/candidate-vetter/internal/errs"
	"github.com/spigell/candidate-vetter/internal/retry"
	"github.com/spigell/candidate-vetter/internal/scoring"
)

const profilePage = `<!DOCTYPE html>
<html><head>
<title>Jane Doe - Backend Engineer - Acme | LinkedIn</title>
<meta property="og:title" content="Jane Doe - Backend Engineer - Acme | LinkedIn">
<meta property="og:description" content="Backend engineer building payment systems.">
<meta property="og:image" content="https://media.example.com/jane.jpg">
<script type="application/ld+json">
{"@context":"http://schema.org","@graph":[
  {"@type":"WebPage","name":"ignored"},
  {"@type":"Person","name":"Jane Doe",
   "jobTitle":["Backend Engineer","Developer"],
   "address":{"addressLocality":"Berlin"},
   "worksFor":[
     {"@type":"Organization","name":"Acme Inc.","member":{"startDate":"2019-03"}},
     {"@type":"Organization","name":"Globex","member":{"startDate":"2015","endDate":"2019"}}
   ],
   "alumniOf":{"@type":"EducationalOrganization","name":"Technical University of Munich"},
   "interactionStatistic":{"userInteractionCount":250}}
]}
</script>
</head><body></body></html>`

const resumeText = `Jane Doe
jane@example.com

Summary
Backend engineer with 8 years of experience.

Experience
- Senior Engineer at Acme Corp (2019 - Present)
- Developer at Initech, Berlin (2016 - 2019)

Education
Technical University of Munich, M.Sc. Computer Science (2010 - 2015)

Skills
Go, PostgreSQL, Kafka, Kubernetes
`

var noRetry = retry.Policy{MaxAttempts: 1}

func newFetcher(t *testing.T, handler http.Handler, log *zap.Logger) *Fetcher {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewFetcher(Options{BaseURL: srv.URL, Retry: noRetry, Timeout: time.Second}, log)
}

func TestFetchParsesPublicProfile(t *testing.T) {
	t.Parallel()

	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/in/jane-doe", r.URL.Path)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(profilePage))
	}), nil)

	p, err := f.Fetch(context.Background(), "jane-doe")
	require.NoError(t, err)

	assert.Equal(t, SourceFetched, p.Source)
	assert.Equal(t, "jane-doe", p.Handle)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe", p.URL)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, "Backend Engineer", p.Headline)
	assert.Equal(t, "Backend engineer building payment systems.", p.Summary)
	assert.Equal(t, "Berlin", p.Location)
	assert.Equal(t, "https://media.example.com/jane.jpg", p.PhotoURL)
	assert.Equal(t, 250, p.Connections)
	assert.Equal(t, []Position{
		{Title: "Backend Engineer", Company: "Acme Inc.", StartYear: 2019},
		{Title: "Developer", Company: "Globex", StartYear: 2015, EndYear: 2019},
	}, p.Positions)
	assert.Equal(t, []Education{{School: "Technical University of Munich"}}, p.Education)
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    errs.Kind
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
			kind:    errs.NotFound,
		},
		{
			name:    "blocked",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(statusBlocked) },
			kind:    errs.Limited,
		},
		{
			name: "empty page",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html><head><title>LinkedIn</title></head></html>"))
			},
			kind: errs.Malformed,
		},
		{
			name: "login wall",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/authwall" {
					_, _ = w.Write([]byte(profilePage))
					return
				}
				http.Redirect(w, r, "/authwall?trk=public_profile", http.StatusFound)
			},
			kind: errs.Limited,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			kind:    errs.Unavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFetcher(t, tt.handler, nil)
			_, err := f.Fetch(context.Background(), "jane-doe")
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
		})
	}
}

func TestFetchInvalidHandleMakesNoRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	f := newFetcher(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }), nil)

	for _, handle := range []string{"", "-jane", "jane--doe", "in", "jane/../x"} {
		_, err := f.Resolve(context.Background(), handle)
		assert.True(t, errs.Is(err, errs.InvalidInput), handle)
	}
	assert.Zero(t, calls.Load())
}

func TestResolveSynthesizesWhenBlocked(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(statusBlocked)
	}), zap.New(core))

	p, err := f.Resolve(context.Background(), "jane-doe-42")
	require.NoError(t, err)
	assert.Equal(t, SourceSynthesized, p.Source)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe-42", p.URL)

	require.Equal(t, 1, logs.FilterMessage("profile synthesized").Len())
}

func TestResolveKeepsNotFound(t *testing.T) {
	t.Parallel()

	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), nil)

	_, err := f.Resolve(context.Background(), "ghost")
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestSynthesizeName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"jane-doe":        "Jane Doe",
		"jane-doe-42":     "Jane Doe",
		"mary-ann-van-os": "Mary Ann Van Os",
		"jdoe":            "",
		"j-doe":           "",
		"jane-doe_":       "",
	}
	for handle, want := range tests {
		assert.Equal(t, want, Synthesize(handle).Name, handle)
	}
}

func TestParseResume(t *testing.T) {
	t.Parallel()

	claims := parseResume(resumeText, 2024)

	assert.Equal(t, Claims{
		Name:      "Jane Doe",
		Companies: []string{"Acme Corp", "Initech"},
		Schools:   []string{"Technical University of Munich"},
		Degrees:   []string{"M.Sc"},
		Skills:    []string{"Go", "PostgreSQL", "Kafka", "Kubernetes"},
		Years:     8,
	}, claims)
}

func TestParseResumeYearsFromRanges(t *testing.T) {
	t.Parallel()

	claims := parseResume("Experience\nEngineer at Acme (2014 - 2018)\nLead at Globex (2018 - present)\n", 2024)
	assert.Equal(t, 10, claims.Years)
	assert.Empty(t, claims.Name)
	assert.Equal(t, []string{"Acme", "Globex"}, claims.Companies)
}

func fetchedProfile() *Profile {
	return &Profile{
		Name:        "Jane Doe",
		Headline:    "Backend Engineer",
		Summary:     "Backend engineer building payment systems.",
		Location:    "Berlin",
		PhotoURL:    "https://media.example.com/jane.jpg",
		Connections: 250,
		Positions: []Position{
			{Title: "Backend Engineer", Company: "Acme Inc.", StartYear: 2019},
			{Title: "Developer", Company: "Globex", StartYear: 2015, EndYear: 2019},
		},
		Education: []Education{{School: "Technical University of Munich"}},
		Source:    SourceFetched,
	}
}

func TestAnalyzeFetchedProfile(t *testing.T) {
	t.Parallel()

	a := analyze(fetchedProfile(), parseResume(resumeText, 2024), DefaultWeights(), 2024)

	require.Len(t, a.Inconsistencies, 1)
	inc := a.Inconsistencies[0]
	assert.Equal(t, domain.SeverityModerate, inc.Severity)
	assert.Equal(t, domain.CategoryExperience, inc.Category)
	assert.Equal(t, "Initech", inc.ResumeValue)
	assert.Equal(t, domain.ImpactNegative, inc.Impact)
	assert.NotEmpty(t, inc.Recommendation)

	assert.Equal(t, 85.0, a.Scores.Honesty)
	assert.Equal(t, 80.0, a.Scores.Completeness)
	assert.Equal(t, 30.0, a.Scores.Professional)

	assert.Equal(t, scoring.Maybe, a.Verdict.Decision)
	assert.Contains(t, a.Recommendations, inc.Recommendation)
}

func TestAnalyzeHonestyFloor(t *testing.T) {
	t.Parallel()

	claims := Claims{
		Name:      "John Smith",
		Companies: []string{"Umbrella", "Cyberdyne", "Tyrell"},
		Years:     20,
	}
	a := analyze(fetchedProfile(), claims, DefaultWeights(), 2024)

	critical := 0
	for _, inc := range a.Inconsistencies {
		if inc.Severity == domain.SeverityCritical {
			critical++
		}
	}
	assert.Equal(t, 2, critical, "name and timeline")
	assert.Len(t, a.Inconsistencies, 5)
	assert.Equal(t, 20.0, a.Scores.Honesty)
	assert.Equal(t, scoring.NoHire, a.Verdict.Decision)
}

func TestAnalyzeTimeline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		years int
		want  domain.Severity
	}{
		{years: 9},
		{years: 11},
		{years: 12, want: domain.SeverityModerate},
		{years: 6, want: domain.SeverityModerate},
		{years: 15, want: domain.SeverityCritical},
		{years: 3, want: domain.SeverityCritical},
	}

	for _, tt := range tests {
		a := analyze(fetchedProfile(), Claims{Years: tt.years}, DefaultWeights(), 2024)
		if tt.want == "" {
			assert.Empty(t, a.Inconsistencies, "years %d", tt.years)
			continue
		}
		require.Len(t, a.Inconsistencies, 1, "years %d", tt.years)
		assert.Equal(t, tt.want, a.Inconsistencies[0].Severity, "years %d", tt.years)
		assert.Equal(t, domain.CategoryTimeline, a.Inconsistencies[0].Category)
	}
}

func TestAnalyzeSkills(t *testing.T) {
	t.Parallel()

	p := fetchedProfile()
	p.Skills = []string{"Go", "Docker"}

	a := analyze(p, Claims{Skills: []string{"Go", "Rust", "Kafka"}}, DefaultWeights(), 2024)
	require.Len(t, a.Inconsistencies, 1)
	assert.Equal(t, domain.SeverityMinor, a.Inconsistencies[0].Severity)
	assert.Equal(t, domain.ImpactNeutral, a.Inconsistencies[0].Impact)
	assert.Equal(t, 95.0, a.Scores.Honesty)

	a = analyze(p, Claims{Skills: []string{"Go", "Docker", "Kafka"}}, DefaultWeights(), 2024)
	assert.Empty(t, a.Inconsistencies)
}

func TestAnalyzeSynthesizedChecksOnlyCarriedFields(t *testing.T) {
	t.Parallel()

	a := Analyze(Synthesize("jane-doe"), resumeText, DefaultWeights())

	assert.Empty(t, a.Inconsistencies)
	assert.NotNil(t, a.Inconsistencies)
	assert.Equal(t, 100.0, a.Scores.Honesty)
	assert.Equal(t, 0.0, a.Scores.Completeness)
	assert.Contains(t, a.Recommendations, "profile page could not be read; verify employment history with references")
}

func TestAnalyzeNilProfile(t *testing.T) {
	t.Parallel()

	a := Analyze(nil, "", DefaultWeights())
	require.NotNil(t, a.ProfileData)
	assert.Equal(t, 100.0, a.Scores.Honesty)
	assert.NotEmpty(t, a.Verdict.Reasoning)
}
