package reports

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"team-health/internal/history"
	"team-health/internal/jira"
	"team-health/internal/stats"
)

// Retro coaching thresholds.
const (
	completionFloorPct = 70
	creepCeilingPct    = 20
	carryOverSprints   = 3
)

// ErrNoSprint is returned when the board has no sprint to review.
var ErrNoSprint = errors.New("no sprint to review")

// RetroAssignee is one person's share of the sprint.
type RetroAssignee struct {
	Assignee      string `json:"assignee"`
	Assigned      int    `json:"assigned"`
	Completed     int    `json:"completed"`
	CompletionPct int    `json:"completionPct"`
}

// CarryOver is an unfinished issue that has been through several sprints.
type CarryOver struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
	Sprints  int    `json:"sprints"`
}

// Check is one coaching prompt.
type Check struct {
	Name      string `json:"name"`
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// RetroReport is the sprint retrospective summary.
type RetroReport struct {
	Sprint        jira.Sprint     `json:"sprint"`
	Committed     int             `json:"committed"`
	Completed     int             `json:"completed"`
	NotCompleted  int             `json:"notCompleted"`
	CompletionPct int             `json:"completionPct"`
	Creep         stats.Creep     `json:"creep"`
	Assignees     []RetroAssignee `json:"assignees"`
	Imbalance     stats.Imbalance `json:"imbalance"`
	CarryOver     []CarryOver     `json:"carryOver"`
	Checks        []Check         `json:"checks"`
}

// Retro builds the retrospective for p.SprintID, or the most recently closed sprint, or the
// active one.
func (b *Builder) Retro(ctx context.Context, p Params) (*RetroReport, error) {
	sprint, err := b.retroSprint(ctx, p.SprintID)
	if err != nil {
		return nil, err
	}
	rep, err := b.jira.SprintReport(ctx, sprint.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sprint report for %s: %w", sprint.Name, err)
	}

	res := &RetroReport{
		Sprint:       *sprint,
		Completed:    len(rep.Completed),
		NotCompleted: len(rep.NotCompleted),
		Creep:        creepOf(rep),
		Assignees:    []RetroAssignee{},
		CarryOver:    []CarryOver{},
	}
	res.Committed = res.Creep.StartedWith
	res.CompletionPct = integerPct(res.Completed, res.Completed+res.NotCompleted)

	pivot := stats.NewPivot(sprint.Name)
	for _, issue := range rep.Completed {
		pivot.Add(b.reportAssignee(ctx, issue), sprint.Name, true)
	}
	for _, issue := range rep.NotCompleted {
		pivot.Add(b.reportAssignee(ctx, issue), sprint.Name, false)
	}
	for _, row := range pivot.Rows() {
		c := pivot.RowTotal(row)
		res.Assignees = append(res.Assignees, RetroAssignee{
			Assignee:      row,
			Assigned:      c.Assigned,
			Completed:     c.Completed,
			CompletionPct: integerPct(c.Completed, c.Assigned),
		})
	}
	res.Imbalance = stats.DetectImbalance(pivot.Loads(), b.opts.LoadImbalanceRatio)

	carry, err := b.carryOver(ctx, rep.NotCompleted)
	if err != nil {
		return nil, err
	}
	res.CarryOver = carry
	res.Checks = retroChecks(res)
	return res, nil
}

func (b *Builder) retroSprint(ctx context.Context, id int) (*jira.Sprint, error) {
	if id > 0 {
		sprints, err := b.jira.Sprints(ctx, "active", "closed")
		if err != nil {
			return nil, fmt.Errorf("failed to list sprints: %w", err)
		}
		for _, s := range sprints {
			if s.ID == id {
				return &s, nil
			}
		}
		return nil, fmt.Errorf("sprint %d is not on this board: %w", id, ErrNoSprint)
	}

	closed, err := b.jira.RecentClosedSprints(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list closed sprints: %w", err)
	}
	if len(closed) > 0 {
		return &closed[0], nil
	}
	active, err := b.jira.ActiveSprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sprint: %w", err)
	}
	if active == nil {
		return nil, ErrNoSprint
	}
	return active, nil
}

// carryOver finds unfinished issues that have been in at least carryOverSprints sprints.
func (b *Builder) carryOver(ctx context.Context, unfinished []jira.SprintReportIssue) ([]CarryOver, error) {
	out := []CarryOver{}
	if len(unfinished) == 0 {
		return out, nil
	}
	keys := make([]string, len(unfinished))
	for i, u := range unfinished {
		keys[i] = u.Key
	}
	issues, err := b.jira.BulkFetch(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unfinished issues: %w", err)
	}
	changelogs, err := b.jira.ChangelogsFor(ctx, keys)
	if err != nil {
		return nil, err
	}
	sprintField := b.jira.SprintFieldID(ctx)

	for _, issue := range issues {
		n := history.DistinctSprints(issue.Sprints, changelogs[issue.Key], sprintField)
		if n < carryOverSprints {
			continue
		}
		out = append(out, CarryOver{
			Key:      issue.Key,
			URL:      b.jira.BrowseURL(issue.Key),
			Summary:  issue.Summary,
			Status:   issue.Status,
			Assignee: issue.AssigneeName(),
			Sprints:  n,
		})
	}
	slices.SortStableFunc(out, func(a, b CarryOver) int { return cmp.Compare(b.Sprints, a.Sprints) })
	return out, nil
}

func retroChecks(r *RetroReport) []Check {
	checks := []Check{
		{
			Name:      "imbalance",
			Triggered: r.Imbalance.Flagged,
			Message:   "Load is spread evenly.",
		},
		{
			Name:      "completion",
			Triggered: r.Completed+r.NotCompleted > 0 && r.CompletionPct < completionFloorPct,
			Message:   fmt.Sprintf("Completed %d%% of the sprint.", r.CompletionPct),
		},
		{
			Name:      "creep",
			Triggered: r.Creep.CreepPct != nil && *r.Creep.CreepPct > creepCeilingPct,
			Message:   "Scope changed by " + r.Creep.PctLabel() + ".",
		},
		{
			Name:      "carry-over",
			Triggered: len(r.CarryOver) > 0,
			Message:   "No issue has rolled over repeatedly.",
		},
	}
	if checks[0].Triggered {
		checks[0].Message = fmt.Sprintf("%s carries %d issues, %.1f× the team average. Is work being shared?",
			r.Imbalance.MaxWho, r.Imbalance.Max, float64(r.Imbalance.Max)/r.Imbalance.Mean)
	}
	if checks[1].Triggered {
		checks[1].Message = fmt.Sprintf("Only %d%% of the sprint was completed (target %d%%). Was the commitment realistic?",
			r.CompletionPct, completionFloorPct)
	}
	if checks[2].Triggered {
		checks[2].Message = fmt.Sprintf("Scope grew by %s after the sprint started (over %d%%). What came in unplanned?",
			r.Creep.PctLabel(), creepCeilingPct)
	}
	if checks[3].Triggered {
		checks[3].Message = fmt.Sprintf("%d issues have been in %d or more sprints. Should they be split or dropped?",
			len(r.CarryOver), carryOverSprints)
	}
	return checks
}

// integerPct is part/whole×100 rounded to the nearest integer, 0 when whole is zero.
func integerPct(part, whole int) int {
	pct, ok := stats.Percent(part, whole)
	if !ok {
		return 0
	}
	return int(math.Round(pct))
}
