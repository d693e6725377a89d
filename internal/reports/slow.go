package reports

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"team-health/internal/history"
	"team-health/internal/jira"
)

// SlowIssue is an open sprint issue that has sat in its status too long.
type SlowIssue struct {
	Key        string             `json:"key"`
	URL        string             `json:"url"`
	Summary    string             `json:"summary"`
	Type       string             `json:"type"`
	Status     string             `json:"status"`
	Assignee   string             `json:"assignee"`
	AvatarURL  string             `json:"avatarUrl,omitempty"`
	DaysStuck  int                `json:"daysStuck"`
	BadgeClass string             `json:"badgeClass"`
	Sprints    int                `json:"sprints"`
	CreatedIn  bool               `json:"createdInStatus"`
	Intervals  []history.Interval `json:"intervals"`
}

// SlowReport lists stuck issues, longest first.
type SlowReport struct {
	Sprint             *jira.Sprint `json:"sprint,omitempty"`
	ThresholdDays      int          `json:"thresholdDays"`
	SprintDurationDays int          `json:"sprintDurationDays"`
	Scanned            int          `json:"scanned"`
	Issues             []SlowIssue  `json:"issues"`
}

// BadgeClass grades days stuck against the sprint length: "" below one sprint, "warning" below
// two, "danger" beyond.
func BadgeClass(daysStuck, sprintDays int) string {
	switch {
	case daysStuck < sprintDays:
		return ""
	case daysStuck < 2*sprintDays:
		return "warning"
	default:
		return "danger"
	}
}

// Slow builds the stuck-issues report.
func (b *Builder) Slow(ctx context.Context, _ Params) (*SlowReport, error) {
	active, err := b.jira.ActiveSprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sprint: %w", err)
	}

	issues, err := b.jira.Issues(ctx, b.jql("created ASC", "sprint in openSprints()", "statusCategory != Done"))
	if err != nil {
		return nil, fmt.Errorf("failed to search open sprint issues: %w", err)
	}
	open := slices.DeleteFunc(issues, jira.Issue.IsDone)
	b.identities.SeedIssues(open)

	changelogs, err := b.jira.ChangelogsFor(ctx, issueKeys(open))
	if err != nil {
		return nil, err
	}
	sprintField := b.jira.SprintFieldID(ctx)
	now := b.now()

	res := &SlowReport{
		Sprint:             active,
		ThresholdDays:      b.opts.StuckThresholdDays,
		SprintDurationDays: b.sprintDays(active),
		Scanned:            len(open),
		Issues:             []SlowIssue{},
	}
	for _, issue := range open {
		changelog := changelogs[issue.Key]
		stuck := history.DaysStuck(issue.Status, issue.Created, changelog, now)
		if stuck.Days < b.opts.StuckThresholdDays {
			continue
		}
		res.Issues = append(res.Issues, SlowIssue{
			Key:        issue.Key,
			URL:        b.jira.BrowseURL(issue.Key),
			Summary:    issue.Summary,
			Type:       issue.IssueType,
			Status:     issue.Status,
			Assignee:   issue.AssigneeName(),
			AvatarURL:  avatarOf(issue.Assignee),
			DaysStuck:  stuck.Days,
			BadgeClass: BadgeClass(stuck.Days, res.SprintDurationDays),
			Sprints:    history.DistinctSprints(issue.Sprints, changelog, sprintField),
			CreatedIn:  stuck.CreatedInStatus,
			Intervals:  stuck.Intervals,
		})
	}
	slices.SortStableFunc(res.Issues, func(a, b SlowIssue) int {
		if c := cmp.Compare(b.DaysStuck, a.DaysStuck); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return res, nil
}

// sprintDays is the active sprint's planned length in days, or the configured default.
func (b *Builder) sprintDays(active *jira.Sprint) int {
	if active != nil {
		if d := history.WholeDays(active.Duration()); d > 0 {
			return d
		}
	}
	return b.opts.SprintDurationDays
}

func issueKeys(issues []jira.Issue) []string {
	keys := make([]string, len(issues))
	for i, issue := range issues {
		keys[i] = issue.Key
	}
	return keys
}

func avatarOf(u *jira.User) string {
	if u == nil {
		return ""
	}
	return u.AvatarURL
}
