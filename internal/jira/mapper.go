package jira

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// User is a Jira account as seen in issues, changelogs and lookups.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	// Legacy (Server) identifiers, kept for identity fallbacks.
	Key  string `json:"key,omitempty"`
	Name string `json:"name,omitempty"`
}

// Issue is the read-only view of a Jira issue the reports work with.
type Issue struct {
	Key            string      `json:"key"`
	Summary        string      `json:"summary"`
	Status         string      `json:"status"`
	StatusID       string      `json:"statusId"`
	StatusCategory string      `json:"statusCategory"`
	IssueType      string      `json:"issueType"`
	IsSubtask      bool        `json:"isSubtask"`
	Priority       string      `json:"priority,omitempty"`
	Created        time.Time   `json:"created"`
	Updated        time.Time   `json:"updated"`
	ResolutionDate *time.Time  `json:"resolutionDate,omitempty"`
	Resolution     string      `json:"resolution,omitempty"`
	Assignee       *User       `json:"assignee,omitempty"`
	Reporter       *User       `json:"reporter,omitempty"`
	Labels         []string    `json:"labels,omitempty"`
	Sprints        []SprintRef `json:"sprints,omitempty"`
}

// IsDone reports whether the issue sits in a status of the "done" category.
func (i Issue) IsDone() bool {
	return strings.EqualFold(i.StatusCategory, "done")
}

// AssigneeName is the display name of the assignee, or "Unassigned".
func (i Issue) AssigneeName() string {
	if i.Assignee == nil || i.Assignee.DisplayName == "" {
		return "Unassigned"
	}
	return i.Assignee.DisplayName
}

// ProjectKey is the part of the key before the dash.
func (i Issue) ProjectKey() string {
	if idx := strings.IndexByte(i.Key, '-'); idx > 0 {
		return i.Key[:idx]
	}
	return ""
}

// ChangeItem is a single field change.
type ChangeItem struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId,omitempty"`
	From       string `json:"from,omitempty"`
	FromString string `json:"fromString,omitempty"`
	To         string `json:"to,omitempty"`
	ToString   string `json:"toString,omitempty"`
}

// ChangelogEntry is one changelog record.
type ChangelogEntry struct {
	ID      string       `json:"id"`
	Created time.Time    `json:"created"`
	Author  *User        `json:"author,omitempty"`
	Items   []ChangeItem `json:"items"`
}

// Sprint is a board sprint.
type Sprint struct {
	ID       int        `json:"id"`
	Name     string     `json:"name"`
	State    string     `json:"state"`
	Goal     string     `json:"goal,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	Complete *time.Time `json:"complete,omitempty"`
}

// Duration is the planned sprint length, or 0 when the sprint is dateless.
func (s Sprint) Duration() time.Duration {
	if s.Start == nil || s.End == nil {
		return 0
	}
	return s.End.Sub(*s.Start)
}

// BoardColumn is a board column and the status ids mapped to it.
type BoardColumn struct {
	Name      string   `json:"name"`
	StatusIDs []string `json:"statusIds"`
}

// MapUser converts a DTO, returning nil for an absent user.
func MapUser(u *UserDTO) *User {
	if u == nil {
		return nil
	}
	return &User{
		AccountID:   u.AccountID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURLs["48x48"],
		Key:         u.Key,
		Name:        u.Name,
	}
}

// MapIssue transforms a Jira DTO into a domain Issue. sprintField is the custom field id
// holding sprint membership; an undecodable value is logged and treated as no sprints.
func MapIssue(item IssueDTO, sprintField string) Issue {
	f := item.Fields
	issue := Issue{
		Key:            item.Key,
		Summary:        f.Summary,
		Status:         f.Status.Name,
		StatusID:       f.Status.ID,
		StatusCategory: f.Status.StatusCategory.Key,
		IssueType:      f.IssueType.Name,
		IsSubtask:      f.IssueType.Subtask,
		Assignee:       MapUser(f.Assignee),
		Reporter:       MapUser(f.Reporter),
		Labels:         f.Labels,
		ResolutionDate: parseTimePtr(f.ResolutionDate),
	}
	if f.Priority != nil {
		issue.Priority = f.Priority.Name
	}
	if f.Resolution != nil {
		issue.Resolution = f.Resolution.Name
	}
	if t, err := ParseTime(f.Created); err == nil {
		issue.Created = t
	}
	if t, err := ParseTime(f.Updated); err == nil {
		issue.Updated = t
	}

	if raw, ok := f.Custom[sprintField]; ok && sprintField != "" {
		var sf SprintField
		if err := json.Unmarshal(raw, &sf); err != nil {
			log.Warn().Err(err).Str("key", item.Key).Str("field", sprintField).Msg("Unreadable sprint field")
		} else {
			issue.Sprints = sf.Refs()
		}
	}
	return issue
}

// MapChangelog converts changelog DTOs and sorts them ascending by time. Entries with an
// unparseable timestamp are dropped.
func MapChangelog(histories []HistoryDTO) []ChangelogEntry {
	out := make([]ChangelogEntry, 0, len(histories))
	for _, h := range histories {
		t, err := ParseTime(h.Created)
		if err != nil {
			continue
		}
		entry := ChangelogEntry{
			ID:      h.ID,
			Created: t,
			Author:  MapUser(h.Author),
			Items:   make([]ChangeItem, 0, len(h.Items)),
		}
		for _, itm := range h.Items {
			entry.Items = append(entry.Items, ChangeItem(itm))
		}
		out = append(out, entry)
	}
	slices.SortStableFunc(out, func(a, b ChangelogEntry) int {
		return a.Created.Compare(b.Created)
	})
	return out
}

// MapSprint converts a sprint DTO.
func MapSprint(s SprintDTO) Sprint {
	return Sprint{
		ID:       s.ID,
		Name:     s.Name,
		State:    strings.ToLower(s.State),
		Goal:     s.Goal,
		Start:    parseTimePtr(s.StartDate),
		End:      parseTimePtr(s.EndDate),
		Complete: parseTimePtr(s.CompleteDate),
	}
}
