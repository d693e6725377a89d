// Package github reads open pull requests and their reviews from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"team-health/internal/retry"

	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://api.github.com"
	perPage        = 100
)

// Config enables the pull request report. Both Token and Org are required.
type Config struct {
	Token string
	Org   string

	// BaseURL overrides https://api.github.com (GitHub Enterprise, tests).
	BaseURL    string
	Retry      *retry.Policy
	HTTPClient retry.Doer
}

// Enabled reports whether the integration is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.Org) != ""
}

// StatusError is a non-2xx GitHub answer.
type StatusError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GitHub API returned status %d for %s: %s", e.StatusCode, e.Path, strings.TrimSpace(e.Body))
}

// Client is a minimal typed GitHub REST client.
type Client struct {
	cfg  Config
	http *retry.Client
}

// NewClient builds a client with the retry policy applied at construction.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	policy := retry.Default()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg, http: retry.New(doer, policy)}
}

// Org is the configured organisation.
func (c *Client) Org() string { return c.cfg.Org }

// Repo is the subset of repository fields the report reads.
type Repo struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Archived bool   `json:"archived"`
	HTMLURL  string `json:"html_url"`
}

// ghUser is a GitHub account.
type ghUser struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Pull is a pull request as listed by /repos/{full}/pulls.
type Pull struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	HTMLURL   string    `json:"html_url"`
	Draft     bool      `json:"draft"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      ghUser    `json:"user"`
	Head      struct {
		Ref string `json:"ref"`
	} `json:"head"`
	RequestedReviewers []ghUser `json:"requested_reviewers"`
}

// Review is a submitted pull request review.
type Review struct {
	ID          int64     `json:"id"`
	User        ghUser    `json:"user"`
	State       string    `json:"state"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type requestedReviewers struct {
	Users []ghUser `json:"users"`
}

// ListOrgRepos returns every non-archived repository of the organisation.
func (c *Client) ListOrgRepos(ctx context.Context) ([]Repo, error) {
	path := fmt.Sprintf("/orgs/%s/repos", url.PathEscape(c.cfg.Org))
	var out []Repo
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", strconv.Itoa(page))
		params.Set("type", "all")

		var repos []Repo
		if err := c.getJSON(ctx, path, params, &repos); err != nil {
			return nil, err
		}
		for _, r := range repos {
			if !r.Archived {
				out = append(out, r)
			}
		}
		if len(repos) < perPage {
			return out, nil
		}
	}
}

// ListOpenPulls returns the open pull requests of one repository ("owner/name").
func (c *Client) ListOpenPulls(ctx context.Context, fullName string) ([]Pull, error) {
	path := "/repos/" + fullName + "/pulls"
	var out []Pull
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("state", "open")
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", strconv.Itoa(page))

		var pulls []Pull
		if err := c.getJSON(ctx, path, params, &pulls); err != nil {
			return nil, err
		}
		out = append(out, pulls...)
		if len(pulls) < perPage {
			return out, nil
		}
	}
}

// ListReviews returns the submitted reviews of a pull request in submission order.
func (c *Client) ListReviews(ctx context.Context, fullName string, number int) ([]Review, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(perPage))
	var reviews []Review
	err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/pulls/%d/reviews", fullName, number), params, &reviews)
	return reviews, err
}

// ListRequestedReviewers returns the logins still asked to review.
func (c *Client) ListRequestedReviewers(ctx context.Context, fullName string, number int) ([]string, error) {
	var rr requestedReviewers
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/pulls/%d/requested_reviewers", fullName, number), nil, &rr); err != nil {
		return nil, err
	}
	logins := make([]string, 0, len(rr.Users))
	for _, u := range rr.Users {
		logins = append(logins, u.Login)
	}
	return logins, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	target := c.cfg.BaseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	log.Debug().Str("path", path).Msg("GitHub request")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{StatusCode: resp.StatusCode, Path: path, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode GitHub response for %s: %w", path, err)
	}
	return nil
}
