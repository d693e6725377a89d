package reports

import (
	"context"
	"fmt"
	"slices"
	"time"

	"team-health/internal/history"
	"team-health/internal/identity"
	"team-health/internal/stats"
)

// ProgressIssue is an issue with at least one tracked change in the window.
type ProgressIssue struct {
	Key      string                 `json:"key"`
	URL      string                 `json:"url"`
	Summary  string                 `json:"summary"`
	Type     string                 `json:"type"`
	Assignee string                 `json:"assignee"`
	Fields   []history.FieldHistory `json:"fields"`
	// LastChange is the newest in-window change, used for ordering.
	LastChange time.Time `json:"lastChange"`
}

// ProgressReport lists what moved during a period.
type ProgressReport struct {
	Window  stats.Window    `json:"window"`
	Scanned int             `json:"scanned"`
	Changes []Count         `json:"changes" jsonschema:"number of in-window changes per tracked field"`
	Issues  []ProgressIssue `json:"issues"`
}

// Progress builds the field-change report for p.Period.
func (b *Builder) Progress(ctx context.Context, p Params) (*ProgressReport, error) {
	w, err := b.window(ctx, p.Period)
	if err != nil {
		return nil, err
	}

	issues, err := b.jira.Issues(ctx, b.jql("updated DESC", sinceClause("updated", w.Start)))
	if err != nil {
		return nil, fmt.Errorf("failed to search updated issues: %w", err)
	}
	b.identities.SeedIssues(issues)

	changelogs, err := b.jira.ChangelogsFor(ctx, issueKeys(issues))
	if err != nil {
		return nil, err
	}

	res := &ProgressReport{Window: w, Scanned: len(issues), Issues: []ProgressIssue{}}
	perField := make(map[string]int, len(history.TrackedFields))
	for _, issue := range issues {
		fields := history.FieldHistoryInWindow(history.CurrentValues(issue), changelogs[issue.Key], w.Start, w.End)

		var changed []history.FieldHistory
		var last time.Time
		for _, f := range fields {
			if !f.Changed() {
				continue
			}
			if f.Field == "assignee" {
				b.resolveAssignees(ctx, &f)
			}
			perField[f.Field] += len(f.Changes)
			if at := f.Changes[len(f.Changes)-1].At; at.After(last) {
				last = at
			}
			changed = append(changed, f)
		}
		if len(changed) == 0 {
			continue
		}
		res.Issues = append(res.Issues, ProgressIssue{
			Key:        issue.Key,
			URL:        b.jira.BrowseURL(issue.Key),
			Summary:    issue.Summary,
			Type:       issue.IssueType,
			Assignee:   issue.AssigneeName(),
			Fields:     changed,
			LastChange: last,
		})
	}

	slices.SortStableFunc(res.Issues, func(a, b ProgressIssue) int { return b.LastChange.Compare(a.LastChange) })
	for _, field := range history.TrackedFields {
		res.Changes = append(res.Changes, Count{Label: field, Count: perField[field]})
	}
	return res, nil
}

// resolveAssignees replaces raw account ids in an assignee history with display names.
func (b *Builder) resolveAssignees(ctx context.Context, h *history.FieldHistory) {
	name := func(display, id string) string {
		if display != "" && !identity.IsAccountID(display) {
			return display
		}
		if id == "" {
			id = display
		}
		if id == "" {
			return ""
		}
		return b.identities.DisplayName(ctx, id)
	}
	changes := slices.Clone(h.Changes)
	for i, c := range changes {
		changes[i].From = name(c.From, c.FromID)
		changes[i].To = name(c.To, c.ToID)
	}
	h.Changes = changes
	h.Start = name(h.Start, "")
	h.End = name(h.End, "")
}
