package reports

import (
	"fmt"
	"slices"
	"strings"

	"team-health/internal/stats"
	"team-health/internal/visuals"
)

// Markdowner is implemented by reports with a markdown rendering.
type Markdowner interface {
	Markdown() string
}

// Markdown renders the retrospective as a markdown document.
func (r *RetroReport) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Retro: %s\n\n", r.Sprint.Name)
	if r.Sprint.Start != nil && r.Sprint.End != nil {
		fmt.Fprintf(&sb, "_%s to %s_\n\n", r.Sprint.Start.Format("Jan 2"), r.Sprint.End.Format("Jan 2, 2006"))
	}
	if r.Sprint.Goal != "" {
		fmt.Fprintf(&sb, "**Goal:** %s\n\n", r.Sprint.Goal)
	}

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Committed: %d\n", r.Committed)
	fmt.Fprintf(&sb, "- Completed: %d of %d (%d%%)\n", r.Completed, r.Completed+r.NotCompleted, r.CompletionPct)
	fmt.Fprintf(&sb, "- Added: %d, removed: %d, creep: %s\n\n", r.Creep.Added, r.Creep.Removed, r.Creep.PctLabel())

	sb.WriteString("## Load\n\n| Assignee | Assigned | Completed | % |\n|---|---:|---:|---:|\n")
	for _, a := range r.Assignees {
		fmt.Fprintf(&sb, "| %s | %d | %d | %d%% |\n", escapeCell(a.Assignee), a.Assigned, a.Completed, a.CompletionPct)
	}
	sb.WriteString("\n")
	people := make([]string, len(r.Assignees))
	assigned := make([]int, len(r.Assignees))
	completed := make([]int, len(r.Assignees))
	for i, a := range r.Assignees {
		people[i], assigned[i], completed[i] = a.Assignee, a.Assigned, a.Completed
	}
	if chart := visuals.GenerateLoadChart(people, assigned, completed); chart != "" {
		sb.WriteString(chart + "\n\n")
	}

	if len(r.CarryOver) > 0 {
		sb.WriteString("## Carry-over\n\n")
		for _, c := range r.CarryOver {
			fmt.Fprintf(&sb, "- [%s](%s) %s (%s, %d sprints)\n", c.Key, c.URL, c.Summary, c.Assignee, c.Sprints)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Coaching\n\n")
	for _, c := range r.Checks {
		mark := "x"
		if c.Triggered {
			mark = " "
		}
		fmt.Fprintf(&sb, "- [%s] %s\n", mark, c.Message)
	}
	return sb.String()
}

// Markdown renders the creep table and trend chart.
func (r *CreepReport) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# Scope creep\n\n| Sprint | Started | Added | Removed | Ended | Creep |\n|---|---:|---:|---:|---:|---:|\n")
	for _, s := range r.Sprints {
		if s.Error != "" {
			fmt.Fprintf(&sb, "| %s | | | | | unavailable |\n", escapeCell(s.Sprint.Name))
			continue
		}
		fmt.Fprintf(&sb, "| %s | %d | %d | %d | %d | %s |\n",
			escapeCell(s.Sprint.Name), s.Creep.StartedWith, s.Creep.Added, s.Creep.Removed, s.Creep.EndedWith, s.PctLabel)
	}

	var names []string
	var creep []stats.Creep
	for _, s := range slices.Backward(r.Sprints) {
		if s.Error == "" {
			names = append(names, s.Sprint.Name)
			creep = append(creep, s.Creep)
		}
	}
	if chart := visuals.GenerateCreepChart(names, creep); chart != "" {
		sb.WriteString("\n" + chart + "\n")
	}
	return sb.String()
}

// Markdown renders the backlog summary and age chart.
func (r *BacklogReport) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Backlog\n\n%d open issues outside a sprint, median age %s days.\n\n", r.Total, stats.FormatOneDecimal(r.MedianAgeDays))
	if chart := visuals.GenerateAgeChart(r.Buckets); chart != "" {
		sb.WriteString(chart + "\n\n")
	}
	if len(r.Oldest) > 0 {
		sb.WriteString("## Oldest\n\n")
		for _, i := range r.Oldest {
			fmt.Fprintf(&sb, "- [%s](%s) %s (%d days)\n", i.Key, i.URL, i.Summary, i.AgeDays)
		}
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
