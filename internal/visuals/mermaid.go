// Package visuals renders report data as Mermaid charts for markdown output.
package visuals

import (
	"fmt"
	"math"
	"strings"

	"team-health/internal/stats"
)

// GenerateLoadChart creates a Mermaid bar chart of assigned vs completed issues per person.
// The completed series is drawn over the assigned one.
func GenerateLoadChart(people []string, assigned, completed []int) string {
	if len(people) == 0 || len(assigned) != len(people) || len(completed) != len(people) {
		return ""
	}

	labels := make([]string, len(people))
	maxVal := 0
	for i, p := range people {
		labels[i] = quote(p)
		if assigned[i] > maxVal {
			maxVal = assigned[i]
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Assigned vs Completed\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Issues\" 0 --> %d\n", headroom(maxVal)))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", joinInts(assigned)))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", joinInts(completed)))
	sb.WriteString("```")
	return sb.String()
}

// GenerateCreepChart creates a Mermaid line chart of creep % per sprint, oldest first.
// Sprints with undefined creep are plotted as 0.
func GenerateCreepChart(sprints []string, creep []stats.Creep) string {
	if len(sprints) == 0 || len(creep) != len(sprints) {
		return ""
	}

	labels := make([]string, len(sprints))
	values := make([]string, len(sprints))
	minVal, maxVal := 0.0, 0.0
	for i, name := range sprints {
		labels[i] = quote(name)
		v := 0.0
		if creep[i].CreepPct != nil {
			v = *creep[i].CreepPct
		}
		values[i] = fmt.Sprintf("%.1f", v)
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Scope Creep\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Creep (%%)\" %d --> %d\n", int(math.Floor(minVal)), headroom(int(math.Ceil(maxVal)))))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateAgeChart creates a Mermaid bar chart of the backlog age buckets.
func GenerateAgeChart(buckets []stats.AgeBucket) string {
	if len(buckets) == 0 {
		return ""
	}

	labels := make([]string, len(buckets))
	counts := make([]int, len(buckets))
	maxVal := 0
	for i, b := range buckets {
		labels[i] = quote(b.Label)
		counts[i] = b.Count
		if b.Count > maxVal {
			maxVal = b.Count
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Backlog Age\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Issues\" 0 --> %d\n", headroom(maxVal)))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", joinInts(counts)))
	sb.WriteString("```")
	return sb.String()
}

// headroom leaves ~20% (at least 1) above the tallest value.
func headroom(maxVal int) int {
	return maxVal + int(math.Max(1, float64(maxVal)*0.2))
}

func quote(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "'") + "\""
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
