package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	searchPageSize = 100
	// bulkFetchLimit is the most keys /rest/api/3/issue/bulkfetch accepts per request.
	bulkFetchLimit = 100
	bulkFetchConc  = 4
)

// IssueFields are the system fields every report reads. The sprint field is appended at request time.
var IssueFields = []string{
	"summary", "status", "issuetype", "priority", "created", "updated",
	"resolutiondate", "resolution", "assignee", "reporter", "labels",
}

// SearchKeys returns the keys of every issue matching jql. The board-scoped search is tried
// first; if it fails for any reason the generic JQL search runs with the same query.
func (c *Client) SearchKeys(ctx context.Context, jql string) ([]string, error) {
	dtos, err := c.searchBoard(ctx, jql, []string{"key"})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Int("board", c.cfg.BoardID).Msg("Board search failed, falling back to JQL search")
		dtos, err = c.searchJQL(ctx, jql, []string{"key"})
		if err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(dtos))
	seen := make(map[string]bool, len(dtos))
	for _, d := range dtos {
		if d.Key == "" || seen[d.Key] {
			continue
		}
		seen[d.Key] = true
		keys = append(keys, d.Key)
	}
	return keys, nil
}

// Issues resolves jql to keys and bulk-fetches the full documents.
func (c *Client) Issues(ctx context.Context, jql string) ([]Issue, error) {
	keys, err := c.SearchKeys(ctx, jql)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("jql", jql).Int("count", len(keys)).Msg("Search resolved")
	return c.BulkFetch(ctx, keys)
}

// BulkFetch loads full issue documents for keys in chunks of at most 100. A failed chunk is
// logged and dropped; the remaining chunks still produce a result. Output keeps the key order.
func (c *Client) BulkFetch(ctx context.Context, keys []string) ([]Issue, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	sprintField := c.SprintFieldID(ctx)
	fields := append(append([]string(nil), IssueFields...), sprintField)

	chunks := chunkKeys(keys, bulkFetchLimit)
	results := make([][]IssueDTO, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkFetchConc)
	for i, chunk := range chunks {
		g.Go(func() error {
			var resp bulkFetchResponse
			err := c.postJSON(gctx, "/rest/api/3/issue/bulkfetch", bulkFetchRequest{
				IssueIdsOrKeys: chunk,
				Fields:         fields,
			}, &resp)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Int("chunk", i).Int("size", len(chunk)).Msg("Bulk fetch chunk failed, dropping it")
				return nil
			}
			for _, e := range resp.IssueErrors {
				log.Debug().Strs("keys", e.IssueIdsOrKeys).Str("error", e.ErrorMessage).Msg("Bulk fetch issue error")
			}
			results[i] = resp.Issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byKey := make(map[string]Issue, len(keys))
	for _, chunk := range results {
		for _, dto := range chunk {
			byKey[dto.Key] = MapIssue(dto, sprintField)
		}
	}
	issues := make([]Issue, 0, len(byKey))
	for _, k := range keys {
		if issue, ok := byKey[k]; ok {
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

func chunkKeys(keys []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

func (c *Client) searchBoard(ctx context.Context, jql string, fields []string) ([]IssueDTO, error) {
	path := fmt.Sprintf("/rest/agile/1.0/board/%d/issue", c.cfg.BoardID)
	return Paginate(ctx, searchPageSize, func(ctx context.Context, startAt, maxResults int) (Page[IssueDTO], error) {
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(maxResults))
		params.Set("fields", strings.Join(fields, ","))

		var resp boardSearchResponse
		if err := c.getJSON(ctx, path, params, &resp); err != nil {
			return Page[IssueDTO]{}, err
		}
		return Page[IssueDTO]{Items: resp.Issues, Total: resp.Total}, nil
	})
}

// searchJQL walks /rest/api/3/search/jql, which pages by token instead of offset.
func (c *Client) searchJQL(ctx context.Context, jql string, fields []string) ([]IssueDTO, error) {
	var all []IssueDTO
	token := ""
	seen := make(map[string]bool)
	for {
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("maxResults", strconv.Itoa(searchPageSize))
		params.Set("fields", strings.Join(fields, ","))
		if token != "" {
			params.Set("nextPageToken", token)
		}

		var resp jqlSearchResponse
		if err := c.getJSON(ctx, "/rest/api/3/search/jql", params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Issues...)

		if resp.IsLast || resp.NextPageToken == "" || len(resp.Issues) == 0 || seen[resp.NextPageToken] {
			return all, nil
		}
		seen[resp.NextPageToken] = true
		token = resp.NextPageToken
	}
}
