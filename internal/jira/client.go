package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"team-health/internal/retry"

	"github.com/rs/zerolog/log"
)

// Config holds the connection settings for a Jira Cloud site.
type Config struct {
	Host       string
	Email      string
	APIToken   string
	BoardID    int
	ProjectKey string

	// SprintField overrides sprint custom field discovery (e.g. "customfield_10020").
	SprintField string

	// Retry is applied around every request. Zero value means retry.Default().
	Retry *retry.Policy
	// HTTPClient is the transport under the retry layer. Defaults to a 60s timeout client.
	HTTPClient retry.Doer
}

// APIError is a non-2xx answer from Jira that was not (or no longer) worth retrying.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if len(msg) > 300 {
		msg = msg[:300] + "…"
	}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Sprintf("Jira authentication failed (%d) for %s %s. Please check JIRA_EMAIL and JIRA_API_TOKEN.", e.StatusCode, e.Method, e.Path)
	case http.StatusNotFound:
		return fmt.Sprintf("Jira resource not found (404): %s %s", e.Method, e.Path)
	}
	if msg == "" {
		return fmt.Sprintf("Jira API returned status %d for %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("Jira API returned status %d for %s %s: %s", e.StatusCode, e.Method, e.Path, msg)
}

// Client talks to the Jira REST, Agile and GreenHopper APIs.
type Client struct {
	cfg  Config
	http *retry.Client

	// Metadata cache (board configuration, fields, sprint lists)
	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex

	// sprintFieldID is set once discovery has an answer; guarded by sprintFieldMu.
	sprintFieldMu sync.Mutex
	sprintFieldID string
}

type cacheEntry struct {
	Value       any
	Expiration  time.Time
	AccessCount int
	OriginalTTL time.Duration
}

// NewClient builds a client with the retry policy applied at construction.
func NewClient(cfg Config) *Client {
	policy := retry.Default()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: 60 * time.Second}
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return &Client{
		cfg:   cfg,
		http:  retry.New(doer, policy),
		cache: make(map[string]*cacheEntry),
	}
}

// ProjectKey is the configured project key, possibly empty.
func (c *Client) ProjectKey() string { return c.cfg.ProjectKey }

// BrowseURL links to an issue in the Jira UI.
func (c *Client) BrowseURL(key string) string {
	return c.cfg.Host + "/browse/" + url.PathEscape(key)
}

func (c *Client) getFromCache(key string) (any, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.Expiration) {
		delete(c.cache, key)
		return nil, false
	}

	// Sliding window extension
	if entry.AccessCount < 6 {
		entry.Expiration = time.Now().Add(entry.OriginalTTL)
		entry.AccessCount++
	}
	log.Trace().Str("key", key).Int("count", entry.AccessCount).Msg("Jira cache hit")
	return entry.Value, true
}

func (c *Client) addToCache(key string, value any, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cache[key] = &cacheEntry{
		Value:       value,
		Expiration:  time.Now().Add(ttl),
		OriginalTTL: ttl,
		AccessCount: 1,
	}
}

func (c *Client) authenticateRequest(req *http.Request) {
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	target := c.cfg.Host + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	c.authenticateRequest(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("path", path).Str("query", params.Encode()).Msg("Jira request")
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("Jira response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode Jira response for %s: %w", path, err)
	}
	return nil
}
