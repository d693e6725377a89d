package reports

import (
	"context"
	"fmt"
	"slices"

	"team-health/internal/jira"
	"team-health/internal/stats"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// sprintReportConc caps concurrent GreenHopper sprint report calls.
const sprintReportConc = 4

// SprintCreep is the scope change of one sprint. Error is set when its sprint report failed.
type SprintCreep struct {
	Sprint   jira.Sprint              `json:"sprint"`
	Creep    stats.Creep              `json:"creep"`
	PctLabel string                   `json:"pctLabel"`
	AddedIn  []jira.SprintReportIssue `json:"addedIssues"`
	Error    string                   `json:"error,omitempty"`
}

// CreepReport covers the active sprint and the most recent closed ones, newest first.
type CreepReport struct {
	Sprints []SprintCreep `json:"sprints"`
}

// Creep builds the scope creep report.
func (b *Builder) Creep(ctx context.Context, _ Params) (*CreepReport, error) {
	sprints, err := b.recentSprints(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]SprintCreep, len(sprints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sprintReportConc)
	for i, s := range sprints {
		g.Go(func() error {
			rows[i] = SprintCreep{Sprint: s, AddedIn: []jira.SprintReportIssue{}}
			rep, err := b.jira.SprintReport(gctx, s.ID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Int("sprint", s.ID).Msg("Sprint report unavailable")
				rows[i].Error = err.Error()
				rows[i].PctLabel = stats.Creep{}.PctLabel()
				return nil
			}
			rows[i].Creep = creepOf(rep)
			rows[i].PctLabel = rows[i].Creep.PctLabel()
			rows[i].AddedIn = addedIssues(rep)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &CreepReport{Sprints: rows}, nil
}

// recentSprints is the active sprint (when any) followed by the configured number of closed
// sprints, newest first.
func (b *Builder) recentSprints(ctx context.Context) ([]jira.Sprint, error) {
	closed, err := b.jira.RecentClosedSprints(ctx, b.opts.SprintHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to list closed sprints: %w", err)
	}
	active, err := b.jira.ActiveSprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sprint: %w", err)
	}
	out := make([]jira.Sprint, 0, len(closed)+1)
	if active != nil {
		out = append(out, *active)
	}
	return append(out, closed...), nil
}

// creepOf derives scope change from a sprint report. The final scope is everything still in the
// sprint at its end (or now, for an active sprint); removals are the punted issues.
func creepOf(rep *jira.SprintReport) stats.Creep {
	ended := len(rep.Completed) + len(rep.NotCompleted)
	added := 0
	for _, i := range slices.Concat(rep.Completed, rep.NotCompleted, rep.Punted) {
		if rep.AddedKeys[i.Key] {
			added++
		}
	}
	return stats.CalculateCreep(ended, added, len(rep.Punted))
}

func addedIssues(rep *jira.SprintReport) []jira.SprintReportIssue {
	out := []jira.SprintReportIssue{}
	for _, i := range slices.Concat(rep.Completed, rep.NotCompleted, rep.Punted) {
		if rep.AddedKeys[i.Key] {
			out = append(out, i)
		}
	}
	return out
}
