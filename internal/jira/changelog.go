package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	changelogPageSize = 100
	changelogConc     = 8
)

// Changelog returns the full, ascending changelog of one issue.
func (c *Client) Changelog(ctx context.Context, key string) ([]ChangelogEntry, error) {
	path := fmt.Sprintf("/rest/api/3/issue/%s/changelog", url.PathEscape(key))
	histories, err := Paginate(ctx, changelogPageSize, func(ctx context.Context, startAt, maxResults int) (Page[HistoryDTO], error) {
		params := url.Values{}
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(maxResults))

		var page changelogPage
		if err := c.getJSON(ctx, path, params, &page); err != nil {
			return Page[HistoryDTO]{}, err
		}
		return Page[HistoryDTO]{Items: page.Values, Total: totalOrUnknown(page.Total), IsLast: page.IsLast}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("changelog for %s: %w", key, err)
	}
	return MapChangelog(histories), nil
}

// ChangelogsFor fetches changelogs for keys concurrently. An issue whose changelog cannot be
// fetched maps to nil, which callers treat as "no transitions". Only cancellation is an error.
func (c *Client) ChangelogsFor(ctx context.Context, keys []string) (map[string][]ChangelogEntry, error) {
	out := make(map[string][]ChangelogEntry, len(keys))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(changelogConc)
	for _, key := range keys {
		g.Go(func() error {
			entries, err := c.Changelog(gctx, key)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Str("key", key).Msg("Changelog unavailable, assuming no transitions")
				entries = nil
			}
			mu.Lock()
			out[key] = entries
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
