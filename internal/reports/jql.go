package reports

import (
	"fmt"
	"strings"
	"time"

	"team-health/internal/jira"
	"team-health/internal/stats"
)

// jql joins clauses with AND, scoped to the configured project when one is set.
func (b *Builder) jql(orderBy string, clauses ...string) string {
	var parts []string
	if pk := b.jira.ProjectKey(); pk != "" {
		parts = append(parts, fmt.Sprintf("project = %q", pk))
	}
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	q := strings.Join(parts, " AND ")
	if orderBy != "" {
		q += " ORDER BY " + orderBy
	}
	return q
}

func sinceClause(field string, t time.Time) string {
	return fmt.Sprintf("%s >= %q", field, stats.JQLDate(t))
}

// untilClause bounds field by t inclusively. JQL dates stop at the minute, so the bound is
// the start of the following minute.
func untilClause(field string, t time.Time) string {
	return fmt.Sprintf("%s < %q", field, stats.JQLDate(t.Truncate(time.Minute).Add(time.Minute)))
}

// inOpenSprint is true when an issue is on a sprint that is not closed.
func inOpenSprint(issue jira.Issue) bool {
	for _, s := range issue.Sprints {
		if s.State != "closed" {
			return true
		}
	}
	return false
}
