package history

import (
	"strings"
	"time"

	"team-health/internal/jira"
)

// TrackedFields are the fields the progress report follows, in display order.
var TrackedFields = []string{"status", "assignee", "priority", "issuetype"}

// FieldChange is one change of a tracked field.
type FieldChange struct {
	At     time.Time `json:"at"`
	Author string    `json:"author,omitempty"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	// FromID and ToID carry raw ids (account ids for assignee).
	FromID string `json:"fromId,omitempty"`
	ToID   string `json:"toId,omitempty"`
}

// FieldHistory is a field's value at the window edges and every change inside the window.
type FieldHistory struct {
	Field   string        `json:"field"`
	Start   string        `json:"start"`
	End     string        `json:"end"`
	Changes []FieldChange `json:"changes"`
}

// Changed reports whether the field moved inside the window.
func (h FieldHistory) Changed() bool { return len(h.Changes) > 0 }

// CurrentValues returns the present value of each tracked field.
func CurrentValues(issue jira.Issue) map[string]string {
	assignee := ""
	if issue.Assignee != nil {
		assignee = issue.Assignee.DisplayName
	}
	return map[string]string{
		"status":    issue.Status,
		"assignee":  assignee,
		"priority":  issue.Priority,
		"issuetype": issue.IssueType,
	}
}

// FieldHistoryInWindow rewinds each tracked field from its current value to find its value at
// windowStart and windowEnd, and lists every change with windowStart <= at <= windowEnd in
// chronological order. changelog must be ascending.
func FieldHistoryInWindow(current map[string]string, changelog []jira.ChangelogEntry, windowStart, windowEnd time.Time) []FieldHistory {
	out := make([]FieldHistory, 0, len(TrackedFields))
	for _, field := range TrackedFields {
		changes := fieldChanges(changelog, field)

		h := FieldHistory{Field: field, Start: current[field], End: current[field]}
		for i := len(changes) - 1; i >= 0; i-- {
			c := changes[i]
			if c.At.After(windowEnd) {
				h.End = c.From
			}
			if !c.At.Before(windowStart) {
				h.Start = c.From
			} else {
				break
			}
		}
		for _, c := range changes {
			if !c.At.Before(windowStart) && !c.At.After(windowEnd) {
				h.Changes = append(h.Changes, c)
			}
		}
		out = append(out, h)
	}
	return out
}

func fieldChanges(changelog []jira.ChangelogEntry, field string) []FieldChange {
	var out []FieldChange
	for _, e := range changelog {
		author := ""
		if e.Author != nil {
			author = e.Author.DisplayName
		}
		for _, itm := range e.Items {
			if !strings.EqualFold(itm.Field, field) && !strings.EqualFold(itm.FieldID, field) {
				continue
			}
			out = append(out, FieldChange{
				At:     e.Created,
				Author: author,
				From:   itm.FromString,
				To:     itm.ToString,
				FromID: itm.From,
				ToID:   itm.To,
			})
		}
	}
	return out
}
