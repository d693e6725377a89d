package reports

import (
	"context"
	"fmt"

	"team-health/internal/jira"
	"team-health/internal/stats"
)

// LoadRow is one assignee's issue count per board column.
type LoadRow struct {
	Assignee string `json:"assignee"`
	Cells    []int  `json:"cells"`
	Total    int    `json:"total"`
	Done     int    `json:"done"`
}

// LoadReport pivots the active sprint by assignee and board column.
type LoadReport struct {
	Sprint       *jira.Sprint    `json:"sprint"`
	Columns      []string        `json:"columns"`
	Rows         []LoadRow       `json:"rows"`
	ColumnTotals []int           `json:"columnTotals"`
	Total        int             `json:"total"`
	Imbalance    stats.Imbalance `json:"imbalance"`
}

// Load builds the active sprint load report. Without an active sprint the report is empty.
func (b *Builder) Load(ctx context.Context, _ Params) (*LoadReport, error) {
	res := &LoadReport{Columns: []string{}, Rows: []LoadRow{}, ColumnTotals: []int{}}

	active, err := b.jira.ActiveSprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sprint: %w", err)
	}
	if active == nil {
		return res, nil
	}
	res.Sprint = active

	columns, err := b.jira.BoardColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load board columns: %w", err)
	}
	issues, err := b.jira.Issues(ctx, b.jql("rank ASC", fmt.Sprintf("sprint = %d", active.ID)))
	if err != nil {
		return nil, fmt.Errorf("failed to search sprint issues: %w", err)
	}
	b.identities.SeedIssues(issues)

	pivot, columnOf := newColumnPivot(columns)
	for _, issue := range issues {
		if issue.IsSubtask {
			continue
		}
		pivot.Add(issue.AssigneeName(), columnOf(issue), issue.IsDone())
	}

	res.Columns = pivot.Columns
	for _, col := range pivot.Columns {
		total := pivot.ColumnTotal(col).Assigned
		res.ColumnTotals = append(res.ColumnTotals, total)
		res.Total += total
	}
	for _, row := range pivot.Rows() {
		lr := LoadRow{Assignee: row, Cells: make([]int, len(pivot.Columns))}
		for i, col := range pivot.Columns {
			lr.Cells[i] = pivot.Cell(row, col).Assigned
		}
		t := pivot.RowTotal(row)
		lr.Total, lr.Done = t.Assigned, t.Completed
		res.Rows = append(res.Rows, lr)
	}
	res.Imbalance = stats.DetectImbalance(pivot.Loads(), b.opts.LoadImbalanceRatio)
	return res, nil
}

// newColumnPivot seeds a pivot with the board columns and returns the status-to-column mapper.
// Statuses missing from the board configuration become their own column.
func newColumnPivot(columns []jira.BoardColumn) (*stats.Pivot, func(jira.Issue) string) {
	names := make([]string, 0, len(columns))
	byStatus := make(map[string]string)
	for _, c := range columns {
		names = append(names, c.Name)
		for _, id := range c.StatusIDs {
			byStatus[id] = c.Name
		}
	}
	return stats.NewPivot(names...), func(issue jira.Issue) string {
		if name, ok := byStatus[issue.StatusID]; ok {
			return name
		}
		return issue.Status
	}
}
