package commits

import (
	"fmt"
	"sort"
	"time"
)

const (
	// BatchThreshold is the number of commits in one day that marks a batch day.
	BatchThreshold = 5

	DayLayout = "2006-01-02"

	yearWindow  = 365 * 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
)

// Pattern summarises the commit history of one repository.
type Pattern struct {
	TotalCommits     int      `json:"total_commits"`
	CommitsThisYear  int      `json:"commits_this_year"`
	CommitsLastMonth int      `json:"commits_last_month"`
	ConsistencyScore float64  `json:"consistency_score"`
	BatchCommitDates []string `json:"batch_commit_dates,omitempty"`
	ActiveDays       int      `json:"active_days"`
	SpanDays         int      `json:"span_days"`
}

// Analyze buckets commits by UTC calendar day. The consistency score depends
// only on the timestamps; the rolling windows are anchored to now.
func Analyze(timestamps []time.Time, now time.Time) Pattern {
	var (
		p      Pattern
		perDay = make(map[string]int)
		first  time.Time
		last   time.Time
	)

	for _, ts := range timestamps {
		if ts.IsZero() {
			continue
		}
		ts = ts.UTC()
		p.TotalCommits++

		if age := now.Sub(ts); age >= 0 {
			if age <= yearWindow {
				p.CommitsThisYear++
			}
			if age <= monthWindow {
				p.CommitsLastMonth++
			}
		}

		day := truncateDay(ts)
		perDay[day.Format(DayLayout)]++
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if last.IsZero() || day.After(last) {
			last = day
		}
	}

	if p.TotalCommits == 0 {
		return p
	}

	p.ActiveDays = len(perDay)
	p.SpanDays = int(last.Sub(first).Hours() / 24)
	p.ConsistencyScore = consistency(p.ActiveDays, p.SpanDays)

	for day, count := range perDay {
		if count >= BatchThreshold {
			p.BatchCommitDates = append(p.BatchCommitDates, day)
		}
	}
	sort.Strings(p.BatchCommitDates)

	return p
}

func consistency(activeDays, spanDays int) float64 {
	if spanDays <= 0 {
		return 0
	}
	score := float64(activeDays) / float64(spanDays) * 1000
	if score > 100 {
		return 100
	}
	return score
}

func truncateDay(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Summary renders the pattern as one line for prompts and reports.
func (p Pattern) Summary() string {
	if p.TotalCommits == 0 {
		return "no commits available"
	}
	return fmt.Sprintf("%d commits over %d days (%d active days, %d this year, %d last month), consistency %.0f/100, %d batch days",
		p.TotalCommits, p.SpanDays, p.ActiveDays, p.CommitsThisYear, p.CommitsLastMonth, p.ConsistencyScore, len(p.BatchCommitDates))
}
