package reports

import (
	"context"
	"fmt"
	"time"

	"team-health/internal/github"
	"team-health/internal/history"

	"github.com/rs/zerolog/log"
)

// PRSetupMessage is shown instead of the report when GitHub is not configured.
const PRSetupMessage = "Set GITHUB_TOKEN and GITHUB_ORG to see open pull requests."

// PRTicket is a Jira issue referenced by a pull request.
type PRTicket struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Status string `json:"status,omitempty"`
	Found  bool   `json:"found"`
}

// PRRow is one open pull request.
type PRRow struct {
	Pull     github.PullRequest `json:"pull"`
	AgeDays  int                `json:"ageDays"`
	Approved bool               `json:"approved"`
	Linked   []PRTicket         `json:"linked"`
}

// PRReport lists open pull requests across the organisation.
type PRReport struct {
	Configured   bool    `json:"configured"`
	SetupMessage string  `json:"setupMessage,omitempty"`
	Org          string  `json:"org,omitempty"`
	Pulls        []PRRow `json:"pulls"`
	// Waiting counts pull requests per reviewer still asked to review.
	Waiting []Count `json:"waiting"`
}

// PullRequests builds the open pull request report.
func (b *Builder) PullRequests(ctx context.Context, _ Params) (*PRReport, error) {
	res := &PRReport{Pulls: []PRRow{}, Waiting: []Count{}}
	if b.github == nil {
		res.SetupMessage = PRSetupMessage
		return res, nil
	}
	res.Configured = true
	if o, ok := b.github.(interface{ Org() string }); ok {
		res.Org = o.Org()
	}

	pulls, err := github.CollectOpenPulls(ctx, b.github, b.jira.ProjectKey())
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	statuses := b.ticketStatuses(ctx, pulls)
	now := b.now()

	waiting := make(map[string]int)
	for _, p := range pulls {
		row := PRRow{
			Pull:     p,
			AgeDays:  history.WholeDays(now.Sub(p.CreatedAt)),
			Approved: p.Approved(),
			Linked:   []PRTicket{},
		}
		for _, key := range p.Tickets {
			status, found := statuses[key]
			row.Linked = append(row.Linked, PRTicket{Key: key, URL: b.jira.BrowseURL(key), Status: status, Found: found})
		}
		for _, r := range p.Reviewers {
			if r.State == github.StateRequested {
				waiting[r.Login]++
			}
		}
		res.Pulls = append(res.Pulls, row)
	}
	res.Waiting = sortedCounts(waiting)
	return res, nil
}

// ticketStatuses looks up the current status of every referenced ticket. Failures leave the
// tickets unresolved.
func (b *Builder) ticketStatuses(ctx context.Context, pulls []github.PullRequest) map[string]string {
	seen := make(map[string]bool)
	var keys []string
	for _, p := range pulls {
		for _, k := range p.Tickets {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out
	}

	start := time.Now()
	issues, err := b.jira.BulkFetch(ctx, keys)
	if err != nil {
		log.Warn().Err(err).Int("keys", len(keys)).Msg("Ticket lookup failed, pull requests shown without Jira status")
		return out
	}
	for _, issue := range issues {
		out[issue.Key] = issue.Status
	}
	log.Debug().Int("keys", len(keys)).Int("found", len(out)).Dur("took", time.Since(start)).Msg("Resolved PR tickets")
	return out
}
