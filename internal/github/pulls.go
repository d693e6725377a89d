package github

import (
	"cmp"
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// repoConcurrency caps how many repositories are read at once.
const repoConcurrency = 10

// Review states, lower-cased from the API.
const (
	StateRequested        = "requested"
	StateApproved         = "approved"
	StateChangesRequested = "changes_requested"
	StateCommented        = "commented"
	StateDismissed        = "dismissed"
)

// API is the part of Client the pull request collector needs.
type API interface {
	ListOrgRepos(ctx context.Context) ([]Repo, error)
	ListOpenPulls(ctx context.Context, fullName string) ([]Pull, error)
	ListReviews(ctx context.Context, fullName string, number int) ([]Review, error)
	ListRequestedReviewers(ctx context.Context, fullName string, number int) ([]string, error)
}

// ReviewerState is one reviewer's standing on a pull request.
type ReviewerState struct {
	Login string `json:"login"`
	State string `json:"state"`
}

// PullRequest is an open pull request with its review standing.
type PullRequest struct {
	Repo      string          `json:"repo"`
	Number    int             `json:"number"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	AvatarURL string          `json:"avatarUrl,omitempty"`
	Branch    string          `json:"branch"`
	URL       string          `json:"url"`
	Draft     bool            `json:"draft"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Reviewers []ReviewerState `json:"reviewers"`
	Tickets   []string        `json:"tickets"`
	// ReviewsUnavailable is set when the review lookup failed.
	ReviewsUnavailable bool `json:"reviewsUnavailable,omitempty"`
}

// Approved reports whether at least one reviewer approved and nobody requested changes.
func (p PullRequest) Approved() bool {
	approved := false
	for _, r := range p.Reviewers {
		switch r.State {
		case StateChangesRequested:
			return false
		case StateApproved:
			approved = true
		}
	}
	return approved
}

// CollectOpenPulls lists every open pull request across the organisation. A repository whose
// pull list fails is skipped; a pull request whose reviews fail is kept without review data.
// Results are ordered oldest first.
func CollectOpenPulls(ctx context.Context, api API, projectKey string) ([]PullRequest, error) {
	repos, err := api.ListOrgRepos(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var out []PullRequest

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(repoConcurrency)
	for _, repo := range repos {
		g.Go(func() error {
			pulls, err := api.ListOpenPulls(gctx, repo.FullName)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Str("repo", repo.FullName).Msg("Skipping repository, pull list failed")
				return nil
			}
			for _, p := range pulls {
				pr := toPullRequest(repo.FullName, p, projectKey)
				if err := attachReviews(gctx, api, &pr, p); err != nil {
					log.Warn().Err(err).Str("repo", repo.FullName).Int("pr", p.Number).Msg("Reviews unavailable")
					pr.ReviewsUnavailable = true
				}
				mu.Lock()
				out = append(out, pr)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b PullRequest) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Repo, b.Repo); c != 0 {
			return c
		}
		return cmp.Compare(a.Number, b.Number)
	})
	return out, nil
}

func toPullRequest(repo string, p Pull, projectKey string) PullRequest {
	return PullRequest{
		Repo:      repo,
		Number:    p.Number,
		Title:     p.Title,
		Author:    p.User.Login,
		AvatarURL: p.User.AvatarURL,
		Branch:    p.Head.Ref,
		URL:       p.HTMLURL,
		Draft:     p.Draft,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Tickets:   TicketKeys(projectKey, p.Title, p.Head.Ref),
	}
}

func attachReviews(ctx context.Context, api API, pr *PullRequest, p Pull) error {
	reviews, err := api.ListReviews(ctx, pr.Repo, pr.Number)
	if err != nil {
		return err
	}
	requested, err := api.ListRequestedReviewers(ctx, pr.Repo, pr.Number)
	if err != nil {
		// The pull listing already carries requested reviewers.
		for _, u := range p.RequestedReviewers {
			requested = append(requested, u.Login)
		}
	}
	pr.Reviewers = ReviewerStates(reviews, requested, pr.Author)
	return nil
}

// ReviewerStates keeps each reviewer's latest review. A pending re-request wins over an older
// review; reviewers only requested show as "requested". The author's own comments are ignored.
func ReviewerStates(reviews []Review, requested []string, author string) []ReviewerState {
	sorted := slices.Clone(reviews)
	slices.SortStableFunc(sorted, func(a, b Review) int { return a.SubmittedAt.Compare(b.SubmittedAt) })

	latest := make(map[string]string)
	var order []string
	for _, r := range sorted {
		login := r.User.Login
		state := strings.ToLower(r.State)
		if login == "" || login == author || state == "pending" {
			continue
		}
		if _, seen := latest[login]; !seen {
			order = append(order, login)
		}
		// A later plain comment does not undo an approval or a change request.
		if state == StateCommented {
			if prev := latest[login]; prev == StateApproved || prev == StateChangesRequested {
				continue
			}
		}
		latest[login] = state
	}
	for _, login := range requested {
		if _, seen := latest[login]; !seen {
			order = append(order, login)
		}
		latest[login] = StateRequested
	}

	out := make([]ReviewerState, 0, len(order))
	for _, login := range order {
		out = append(out, ReviewerState{Login: login, State: latest[login]})
	}
	return out
}

var ticketPattern = regexp.MustCompile(`(?i)\b([a-z][a-z0-9]+)-(\d+)\b`)

// TicketKeys extracts Jira keys from PR text, upper-cased and de-duplicated in first-seen
// order. With a projectKey only that project's keys are returned.
func TicketKeys(projectKey string, texts ...string) []string {
	projectKey = strings.ToUpper(projectKey)
	seen := make(map[string]bool)
	var keys []string
	for _, text := range texts {
		for _, m := range ticketPattern.FindAllStringSubmatch(text, -1) {
			project := strings.ToUpper(m[1])
			if projectKey != "" && project != projectKey {
				continue
			}
			key := project + "-" + m[2]
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}
