package reports

import (
	"context"
	"slices"

	"team-health/internal/jira"
	"team-health/internal/stats"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SweatCell is one assignee's counts in one sprint. Label is "assigned (pct%)".
type SweatCell struct {
	Assigned  int    `json:"assigned"`
	Completed int    `json:"completed"`
	Label     string `json:"label"`
}

// SweatRow is one assignee across sprints.
type SweatRow struct {
	Assignee string      `json:"assignee"`
	Cells    []SweatCell `json:"cells"`
	Total    SweatCell   `json:"total"`
}

// SweatColumn is one sprint of the pivot.
type SweatColumn struct {
	SprintID int    `json:"sprintId"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// SweatReport pivots assigned and completed issues by assignee and sprint, oldest sprint first.
type SweatReport struct {
	Columns []SweatColumn `json:"columns"`
	Rows    []SweatRow    `json:"rows"`
}

// Sweat builds the per-assignee completion report.
func (b *Builder) Sweat(ctx context.Context, _ Params) (*SweatReport, error) {
	sprints, err := b.recentSprints(ctx)
	if err != nil {
		return nil, err
	}
	slices.Reverse(sprints)

	reps := make([]*jira.SprintReport, len(sprints))
	errs := make([]error, len(sprints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sprintReportConc)
	for i, s := range sprints {
		g.Go(func() error {
			rep, err := b.jira.SprintReport(gctx, s.ID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Int("sprint", s.ID).Msg("Sprint report unavailable")
				errs[i] = err
				return nil
			}
			reps[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, len(sprints))
	res := &SweatReport{Columns: make([]SweatColumn, len(sprints)), Rows: []SweatRow{}}
	for i, s := range sprints {
		names[i] = s.Name
		res.Columns[i] = SweatColumn{SprintID: s.ID, Name: s.Name, State: s.State}
		if errs[i] != nil {
			res.Columns[i].Error = errs[i].Error()
		}
	}

	pivot := stats.NewPivot(names...)
	for i, rep := range reps {
		if rep == nil {
			continue
		}
		for _, issue := range rep.Completed {
			pivot.Add(b.reportAssignee(ctx, issue), names[i], true)
		}
		for _, issue := range rep.NotCompleted {
			pivot.Add(b.reportAssignee(ctx, issue), names[i], false)
		}
	}

	for _, row := range pivot.Rows() {
		sr := SweatRow{Assignee: row, Cells: make([]SweatCell, len(names))}
		for i, name := range names {
			sr.Cells[i] = sweatCell(pivot.Cell(row, name))
		}
		sr.Total = sweatCell(pivot.RowTotal(row))
		res.Rows = append(res.Rows, sr)
	}
	return res, nil
}

func sweatCell(c stats.Cell) SweatCell {
	return SweatCell{Assigned: c.Assigned, Completed: c.Completed, Label: stats.SweatCell(c)}
}

// reportAssignee names the assignee of a sprint report line, resolving bare account ids.
func (b *Builder) reportAssignee(ctx context.Context, issue jira.SprintReportIssue) string {
	switch {
	case issue.AssigneeName != "" && issue.AssigneeName != issue.AssigneeID:
		return issue.AssigneeName
	case issue.AssigneeID != "":
		return b.identities.DisplayName(ctx, issue.AssigneeID)
	case issue.AssigneeName != "":
		return b.identities.DisplayName(ctx, issue.AssigneeName)
	default:
		return stats.Unassigned
	}
}
