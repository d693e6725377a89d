package reports

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"team-health/internal/history"
	"team-health/internal/jira"
	"team-health/internal/stats"
)

// DoneIssue is one issue completed in the window.
type DoneIssue struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Resolved  time.Time `json:"resolved"`
	CycleDays int       `json:"cycleDays"`
}

// DoneGroup is one assignee's completed work.
type DoneGroup struct {
	Assignee  string      `json:"assignee"`
	AvatarURL string      `json:"avatarUrl,omitempty"`
	Issues    []DoneIssue `json:"issues"`
	ByType    []Count     `json:"byType"`
}

// Count is a labelled tally.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DoneReport groups completed issues by assignee.
type DoneReport struct {
	Window stats.Window `json:"window"`
	Total  int          `json:"total"`
	ByType []Count      `json:"byType"`
	// AvgCycleDays is the mean created-to-resolved time, nil when nothing was completed.
	AvgCycleDays *float64   `json:"avgCycleDays"`
	Groups       []DoneGroup `json:"groups"`
}

// Done builds the completed-work report for p.Period.
func (b *Builder) Done(ctx context.Context, p Params) (*DoneReport, error) {
	w, err := b.window(ctx, p.Period)
	if err != nil {
		return nil, err
	}

	jql := b.jql("resolved DESC", "statusCategory = Done", sinceClause("resolved", w.Start), untilClause("resolved", w.End))
	issues, err := b.jira.Issues(ctx, jql)
	if err != nil {
		return nil, fmt.Errorf("failed to search completed issues: %w", err)
	}
	b.identities.SeedIssues(issues)

	res := &DoneReport{Window: w, Groups: []DoneGroup{}}
	groups := make(map[string]*DoneGroup)
	var order []string
	var cycles []float64
	allTypes := make(map[string]int)

	for _, issue := range issues {
		resolved := resolvedAt(issue)
		if !issue.IsDone() || !w.Contains(resolved) {
			continue
		}
		name := issue.AssigneeName()
		g, ok := groups[name]
		if !ok {
			g = &DoneGroup{Assignee: name, AvatarURL: avatarOf(issue.Assignee)}
			groups[name] = g
			order = append(order, name)
		}
		cycle := history.WholeDays(resolved.Sub(issue.Created))
		g.Issues = append(g.Issues, DoneIssue{
			Key:       issue.Key,
			URL:       b.jira.BrowseURL(issue.Key),
			Summary:   issue.Summary,
			Type:      issue.IssueType,
			Status:    issue.Status,
			Resolved:  resolved,
			CycleDays: cycle,
		})
		cycles = append(cycles, resolved.Sub(issue.Created).Hours()/24)
		allTypes[issue.IssueType]++
		res.Total++
	}

	stats.SortByLabel(order)
	for _, name := range order {
		g := groups[name]
		types := make(map[string]int)
		for _, i := range g.Issues {
			types[i.Type]++
		}
		g.ByType = sortedCounts(types)
		slices.SortFunc(g.Issues, func(a, b DoneIssue) int { return b.Resolved.Compare(a.Resolved) })
		res.Groups = append(res.Groups, *g)
	}
	res.ByType = sortedCounts(allTypes)
	if len(cycles) > 0 {
		avg := stats.Round1(stats.Mean(cycles))
		res.AvgCycleDays = &avg
	}
	return res, nil
}

// window resolves a period, reading the active sprint only for this-sprint.
func (b *Builder) window(ctx context.Context, period string) (stats.Window, error) {
	if period == "" {
		period = stats.DefaultPeriod
	}
	if !slices.Contains(stats.Periods, period) {
		return stats.Window{}, &stats.UnknownPeriodError{Period: period}
	}
	var start *time.Time
	if period == stats.PeriodThisSprint {
		active, err := b.jira.ActiveSprint(ctx)
		if err != nil {
			return stats.Window{}, fmt.Errorf("failed to load active sprint: %w", err)
		}
		if active != nil {
			start = active.Start
		}
	}
	return stats.ResolvePeriod(period, b.now(), start, b.opts.SprintDurationDays)
}

// resolvedAt is the resolution date, or the last update for issues closed without one.
func resolvedAt(issue jira.Issue) time.Time {
	if issue.ResolutionDate != nil {
		return *issue.ResolutionDate
	}
	return issue.Updated
}

// sortedCounts orders tallies by count desc, then label.
func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for label, n := range m {
		if label == "" {
			label = "None"
		}
		out = append(out, Count{Label: label, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}
