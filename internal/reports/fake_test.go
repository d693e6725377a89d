package reports

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"team-health/internal/identity"
	"team-health/internal/jira"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return now.AddDate(0, 0, -n) }

func ptr[T any](v T) *T { return &v }

// fakeSource is an in-memory Source. Issues answers every query with issues unless byJQL
// matches a substring of the query first.
type fakeSource struct {
	issues     []jira.Issue
	byJQL      map[string][]jira.Issue
	changelogs map[string][]jira.ChangelogEntry
	active     *jira.Sprint
	closed     []jira.Sprint
	columns    []jira.BoardColumn
	reports    map[int]*jira.SprintReport
	reportErrs map[int]error
	searchErr  error

	mu      sync.Mutex
	queries []string
}

func (f *fakeSource) Issues(ctx context.Context, jql string) ([]jira.Issue, error) {
	f.mu.Lock()
	f.queries = append(f.queries, jql)
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	for frag, issues := range f.byJQL {
		if strings.Contains(jql, frag) {
			return issues, nil
		}
	}
	return f.issues, nil
}

func (f *fakeSource) BulkFetch(ctx context.Context, keys []string) ([]jira.Issue, error) {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out []jira.Issue
	for _, i := range f.issues {
		if want[i.Key] {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeSource) ChangelogsFor(ctx context.Context, keys []string) (map[string][]jira.ChangelogEntry, error) {
	out := make(map[string][]jira.ChangelogEntry, len(keys))
	for _, k := range keys {
		out[k] = f.changelogs[k]
	}
	return out, nil
}

func (f *fakeSource) ActiveSprint(ctx context.Context) (*jira.Sprint, error) { return f.active, nil }

func (f *fakeSource) RecentClosedSprints(ctx context.Context, n int) ([]jira.Sprint, error) {
	if len(f.closed) > n {
		return f.closed[:n], nil
	}
	return f.closed, nil
}

func (f *fakeSource) Sprints(ctx context.Context, states ...string) ([]jira.Sprint, error) {
	out := append([]jira.Sprint{}, f.closed...)
	if f.active != nil {
		out = append(out, *f.active)
	}
	return out, nil
}

func (f *fakeSource) BoardColumns(ctx context.Context) ([]jira.BoardColumn, error) {
	return f.columns, nil
}

func (f *fakeSource) SprintReport(ctx context.Context, sprintID int) (*jira.SprintReport, error) {
	if err := f.reportErrs[sprintID]; err != nil {
		return nil, err
	}
	if rep, ok := f.reports[sprintID]; ok {
		return rep, nil
	}
	return nil, errors.New("no such sprint")
}

func (f *fakeSource) SprintFieldID(ctx context.Context) string { return "customfield_10020" }

func (f *fakeSource) BrowseURL(key string) string { return "https://jira.test/browse/" + key }

func (f *fakeSource) ProjectKey() string { return "TH" }

func newTestBuilder(src Source) *Builder {
	b := New(src, nil, identity.NewCache(nil), Options{})
	b.Now = func() time.Time { return now }
	return b
}

func user(name string) *jira.User {
	return &jira.User{AccountID: "id-" + strings.ToLower(name), DisplayName: name}
}

func sprint(id int, name, state string, start time.Time, days int) jira.Sprint {
	end := start.AddDate(0, 0, days)
	s := jira.Sprint{ID: id, Name: name, State: state, Start: &start, End: &end}
	if state == "closed" {
		s.Complete = &end
	}
	return s
}

func reportLine(key, assignee string, done bool) jira.SprintReportIssue {
	line := jira.SprintReportIssue{Key: key, Done: done}
	if assignee != "" {
		line.AssigneeID = "id-" + strings.ToLower(assignee)
		line.AssigneeName = assignee
	}
	return line
}
