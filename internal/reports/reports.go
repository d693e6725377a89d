// Package reports builds the team-health reports from Jira and GitHub data.
package reports

import (
	"context"
	"fmt"
	"time"

	"team-health/internal/github"
	"team-health/internal/identity"
	"team-health/internal/jira"

	"github.com/google/jsonschema-go/jsonschema"
)

// Source is the Jira surface the reports read. *jira.Client implements it.
type Source interface {
	Issues(ctx context.Context, jql string) ([]jira.Issue, error)
	BulkFetch(ctx context.Context, keys []string) ([]jira.Issue, error)
	ChangelogsFor(ctx context.Context, keys []string) (map[string][]jira.ChangelogEntry, error)
	ActiveSprint(ctx context.Context) (*jira.Sprint, error)
	RecentClosedSprints(ctx context.Context, n int) ([]jira.Sprint, error)
	Sprints(ctx context.Context, states ...string) ([]jira.Sprint, error)
	BoardColumns(ctx context.Context) ([]jira.BoardColumn, error)
	SprintReport(ctx context.Context, sprintID int) (*jira.SprintReport, error)
	SprintFieldID(ctx context.Context) string
	BrowseURL(key string) string
	ProjectKey() string
}

// Options are the report policies.
type Options struct {
	StuckThresholdDays int
	SprintDurationDays int
	LoadImbalanceRatio float64
	SprintHistory      int
	Location           *time.Location
}

func (o Options) withDefaults() Options {
	if o.StuckThresholdDays <= 0 {
		o.StuckThresholdDays = 7
	}
	if o.SprintDurationDays <= 0 {
		o.SprintDurationDays = 14
	}
	if o.LoadImbalanceRatio <= 0 {
		o.LoadImbalanceRatio = 2
	}
	if o.SprintHistory <= 0 {
		o.SprintHistory = 6
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Builder produces every report. It is safe for concurrent use.
type Builder struct {
	jira       Source
	github     github.API
	identities *identity.Cache
	opts       Options

	// Now is the report clock. Defaults to time.Now in the configured location.
	Now func() time.Time
}

// New creates a Builder. gh may be nil when GitHub is not configured.
func New(src Source, gh github.API, ids *identity.Cache, opts Options) *Builder {
	opts = opts.withDefaults()
	if ids == nil {
		ids = identity.NewCache(nil)
	}
	b := &Builder{jira: src, github: gh, identities: ids, opts: opts}
	b.Now = func() time.Time { return time.Now().In(opts.Location) }
	return b
}

func (b *Builder) now() time.Time {
	return b.Now().In(b.opts.Location)
}

// Params are the request parameters a report may read.
type Params struct {
	Period   string `json:"period,omitempty" jsonschema:"one of this-sprint, today, yesterday, this-week, last-7-days, this-month, last-month"`
	SprintID int    `json:"sprintId,omitempty" jsonschema:"sprint id for the retro report; defaults to the most recently closed sprint"`
}

// Report describes one registered report.
type Report struct {
	Name        string
	Title       string
	Description string
	build       func(ctx context.Context, b *Builder, p Params) (any, error)
	schema      func() (*jsonschema.Schema, error)
}

// Schema is the JSON Schema of the report's result.
func (r Report) Schema() (*jsonschema.Schema, error) { return r.schema() }

// ParamsSchema is the JSON Schema of Params.
func ParamsSchema() (*jsonschema.Schema, error) { return jsonschema.For[Params](nil) }

func register[T any](name, title, description string, fn func(*Builder, context.Context, Params) (*T, error)) Report {
	return Report{
		Name:        name,
		Title:       title,
		Description: description,
		build: func(ctx context.Context, b *Builder, p Params) (any, error) {
			return fn(b, ctx, p)
		},
		schema: func() (*jsonschema.Schema, error) { return jsonschema.For[T](nil) },
	}
}

// Catalog lists every report in navigation order.
var Catalog = []Report{
	register("slow", "Slow", "Open sprint issues stuck in their current status for at least the stuck threshold.", (*Builder).Slow),
	register("done", "Done", "Issues completed in a period, grouped by assignee.", (*Builder).Done),
	register("backlog", "Backlog", "Open issues outside any sprint, bucketed by age.", (*Builder).Backlog),
	register("progress", "Progress", "Status, assignee, priority and type changes during a period.", (*Builder).Progress),
	register("load", "Load", "Active sprint issues per assignee and board column.", (*Builder).Load),
	register("pr", "Pull requests", "Open pull requests across the organisation with review state and linked tickets.", (*Builder).PullRequests),
	register("creep", "Creep", "Scope added and removed during recent sprints.", (*Builder).Creep),
	register("sweat", "Sweat", "Assigned and completed issues per assignee across recent sprints.", (*Builder).Sweat),
	register("retro", "Retro", "Sprint retrospective: commitment, completion, creep, load and coaching checks.", (*Builder).Retro),
}

// UnknownReportError is returned by Run for a name outside Catalog.
type UnknownReportError struct {
	Name string
}

func (e *UnknownReportError) Error() string {
	return fmt.Sprintf("unknown report %q", e.Name)
}

// Lookup finds a report by name.
func Lookup(name string) (Report, bool) {
	for _, r := range Catalog {
		if r.Name == name {
			return r, true
		}
	}
	return Report{}, false
}

// Run builds the named report.
func (b *Builder) Run(ctx context.Context, name string, p Params) (any, error) {
	r, ok := Lookup(name)
	if !ok {
		return nil, &UnknownReportError{Name: name}
	}
	return r.build(ctx, b, p)
}
