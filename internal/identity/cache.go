// Package identity resolves opaque Jira account references to display names.
package identity

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"team-health/internal/jira"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const ugPrefix = "ug:"

// Entry is a resolved identity.
type Entry struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Directory is the set of Jira user lookups the cache falls back to, tried in this order.
type Directory interface {
	UserByAccountID(ctx context.Context, accountID string) (*jira.User, error)
	UsersByAccountID(ctx context.Context, accountIDs []string) ([]jira.User, error)
	UserByKey(ctx context.Context, key string) (*jira.User, error)
	UserByName(ctx context.Context, username string) (*jira.User, error)
}

// Cache maps account ids (and their ug: aliases) to display names for the life of the process.
// It is safe for concurrent use. Concurrent misses for one key may both hit Jira; the writes
// converge on the same value.
type Cache struct {
	dir Directory

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache creates an empty cache. dir may be nil, in which case Resolve only reads the cache.
func NewCache(dir Directory) *Cache {
	return &Cache{dir: dir, entries: make(map[string]Entry)}
}

// Get looks up key, then its alias.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[key]; ok {
		return e, true
	}
	if alias, ok := aliasOf(key); ok {
		e, ok := c.entries[alias]
		return e, ok
	}
	return Entry{}, false
}

// Set stores entry under key and its alias.
func (c *Cache) Set(key string, entry Entry) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry
	if alias, ok := aliasOf(key); ok {
		c.entries[alias] = entry
	}
}

// Len is the number of stored keys, aliases included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SeedFromJiraUser records a user observed in any API payload. Users whose display name is
// just their id (Jira hides names behind permissions that way) are ignored.
func (c *Cache) SeedFromJiraUser(u *jira.User) {
	if u == nil || u.AccountID == "" || !isRealName(u.DisplayName, u.AccountID) {
		return
	}
	c.Set(u.AccountID, Entry{DisplayName: u.DisplayName, AvatarURL: u.AvatarURL})
}

// SeedIssues seeds every assignee and reporter of issues.
func (c *Cache) SeedIssues(issues []jira.Issue) {
	for _, i := range issues {
		c.SeedFromJiraUser(i.Assignee)
		c.SeedFromJiraUser(i.Reporter)
	}
}

// Resolve returns the cached entry for key or asks Jira for it. It never fails: when every
// lookup misses, the key itself comes back as the display name.
func (c *Cache) Resolve(ctx context.Context, key string) Entry {
	if e, ok := c.Get(key); ok {
		return e
	}
	if c.dir == nil || key == "" {
		return Entry{DisplayName: key}
	}

	for _, candidate := range candidates(key) {
		if u := c.lookup(ctx, candidate, key); u != nil {
			e := Entry{DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
			c.Set(key, e)
			if u.AccountID != "" && u.AccountID != key {
				c.Set(u.AccountID, e)
			}
			return e
		}
		if ctx.Err() != nil {
			break
		}
	}

	log.Debug().Str("key", key).Msg("Identity unresolved, using raw id")
	return Entry{DisplayName: key}
}

// DisplayName is Resolve(...).DisplayName.
func (c *Cache) DisplayName(ctx context.Context, key string) string {
	return c.Resolve(ctx, key).DisplayName
}

// lookup walks the directory endpoints in order and returns the first user with a real name.
func (c *Cache) lookup(ctx context.Context, id, key string) *jira.User {
	named := func(u *jira.User) bool { return u != nil && isRealName(u.DisplayName, key) }

	if u, err := c.dir.UserByAccountID(ctx, id); err == nil && named(u) {
		return u
	}
	if users, err := c.dir.UsersByAccountID(ctx, []string{id}); err == nil && len(users) > 0 && named(&users[0]) {
		return &users[0]
	}
	if u, err := c.dir.UserByKey(ctx, id); err == nil && named(u) {
		return u
	}
	if u, err := c.dir.UserByName(ctx, id); err == nil && named(u) {
		return u
	}
	return nil
}

// candidates lists key plus its alias form, bare first.
func candidates(key string) []string {
	alias, ok := aliasOf(key)
	if !ok {
		return []string{key}
	}
	if strings.HasPrefix(key, ugPrefix) {
		return []string{alias, key}
	}
	return []string{key, alias}
}

// aliasOf maps "ug:<id>" to "<id>" and a bare UUID to its "ug:" form.
func aliasOf(key string) (string, bool) {
	if rest, ok := strings.CutPrefix(key, ugPrefix); ok {
		return rest, rest != ""
	}
	if isUUID(key) {
		return ugPrefix + key, true
	}
	return "", false
}

func isRealName(name, id string) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == id {
		return false
	}
	if alias, ok := aliasOf(id); ok && name == alias {
		return false
	}
	return !IsAccountID(name)
}

func isUUID(s string) bool {
	// uuid.Validate also accepts urn: and braced forms, which Jira never emits.
	return len(s) == 36 && uuid.Validate(s) == nil
}

var (
	cloudAccountID = regexp.MustCompile(`^\d+:[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexAccountID   = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// IsAccountID reports whether s looks like an opaque account reference rather than a human
// name: a bare UUID, a ug:-prefixed UUID, a Cloud "digits:uuid" id or a 24-hex Cloud id.
func IsAccountID(s string) bool {
	if isUUID(s) {
		return true
	}
	if rest, ok := strings.CutPrefix(s, ugPrefix); ok {
		return isUUID(rest)
	}
	return cloudAccountID.MatchString(s) || hexAccountID.MatchString(s)
}
