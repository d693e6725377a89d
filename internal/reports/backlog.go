package reports

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"team-health/internal/history"
	"team-health/internal/stats"
)

// oldestLimit caps the oldest-issues table.
const oldestLimit = 25

// BacklogIssue is one aged backlog entry.
type BacklogIssue struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
	AgeDays  int    `json:"ageDays"`
}

// BacklogReport summarises open work that is not planned into a sprint.
type BacklogReport struct {
	Total         int               `json:"total"`
	Buckets       []stats.AgeBucket `json:"buckets"`
	MedianAgeDays float64           `json:"medianAgeDays"`
	Oldest        []BacklogIssue    `json:"oldest"`
	ByType        []Count           `json:"byType"`
	ByPriority    []Count           `json:"byPriority"`
}

// Backlog builds the backlog age report.
func (b *Builder) Backlog(ctx context.Context, _ Params) (*BacklogReport, error) {
	issues, err := b.jira.Issues(ctx, b.jql("created ASC", "statusCategory != Done", "(sprint is EMPTY OR sprint not in (openSprints(), futureSprints()))"))
	if err != nil {
		return nil, fmt.Errorf("failed to search backlog: %w", err)
	}
	now := b.now()

	var all []BacklogIssue
	var ages []int
	types := make(map[string]int)
	priorities := make(map[string]int)
	for _, issue := range issues {
		if issue.IsDone() || inOpenSprint(issue) {
			continue
		}
		age := history.WholeDays(now.Sub(issue.Created))
		ages = append(ages, age)
		types[issue.IssueType]++
		priorities[issue.Priority]++
		all = append(all, BacklogIssue{
			Key:      issue.Key,
			URL:      b.jira.BrowseURL(issue.Key),
			Summary:  issue.Summary,
			Type:     issue.IssueType,
			Priority: issue.Priority,
			Status:   issue.Status,
			Assignee: issue.AssigneeName(),
			AgeDays:  age,
		})
	}

	slices.SortStableFunc(all, func(a, b BacklogIssue) int {
		if c := cmp.Compare(b.AgeDays, a.AgeDays); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	oldest := all
	if len(oldest) > oldestLimit {
		oldest = oldest[:oldestLimit]
	}
	if oldest == nil {
		oldest = []BacklogIssue{}
	}

	return &BacklogReport{
		Total:         len(all),
		Buckets:       stats.BucketAges(ages),
		MedianAgeDays: stats.CalculateMedianDiscrete(ages),
		Oldest:        oldest,
		ByType:        sortedCounts(types),
		ByPriority:    sortedCounts(priorities),
	}, nil
}
