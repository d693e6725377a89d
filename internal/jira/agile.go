package jira

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const metadataTTL = 5 * time.Minute

// SprintReportIssue is one issue line of the GreenHopper sprint report.
type SprintReportIssue struct {
	Key          string `json:"key"`
	Summary      string `json:"summary"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	AssigneeID   string `json:"assigneeId,omitempty"`
	AssigneeName string `json:"assigneeName,omitempty"`
	Done         bool   `json:"done"`
}

// SprintReport is the scope breakdown of a sprint.
type SprintReport struct {
	SprintID     int                 `json:"sprintId"`
	Completed    []SprintReportIssue `json:"completed"`
	NotCompleted []SprintReportIssue `json:"notCompleted"`
	// Punted are issues removed from the sprint before it closed.
	Punted    []SprintReportIssue `json:"punted"`
	AddedKeys map[string]bool     `json:"addedKeys"`
}

// Sprints lists the board's sprints in the given states (e.g. "active", "closed").
// Results are cached for a few minutes.
func (c *Client) Sprints(ctx context.Context, states ...string) ([]Sprint, error) {
	state := strings.Join(states, ",")
	cacheKey := fmt.Sprintf("sprints:%d:%s", c.cfg.BoardID, state)
	if val, ok := c.getFromCache(cacheKey); ok {
		return slices.Clone(val.([]Sprint)), nil
	}

	path := fmt.Sprintf("/rest/agile/1.0/board/%d/sprint", c.cfg.BoardID)
	dtos, err := Paginate(ctx, 50, func(ctx context.Context, startAt, maxResults int) (Page[SprintDTO], error) {
		params := url.Values{}
		if state != "" {
			params.Set("state", state)
		}
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(maxResults))

		var page sprintPage
		if err := c.getJSON(ctx, path, params, &page); err != nil {
			return Page[SprintDTO]{}, err
		}
		return Page[SprintDTO]{Items: page.Values, Total: totalOrUnknown(page.Total), IsLast: page.IsLast}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sprints for board %d: %w", c.cfg.BoardID, err)
	}

	sprints := make([]Sprint, 0, len(dtos))
	for _, d := range dtos {
		sprints = append(sprints, MapSprint(d))
	}
	c.addToCache(cacheKey, sprints, metadataTTL)
	return slices.Clone(sprints), nil
}

// ActiveSprint returns the board's active sprint, or nil when none is running.
func (c *Client) ActiveSprint(ctx context.Context) (*Sprint, error) {
	sprints, err := c.Sprints(ctx, "active")
	if err != nil {
		return nil, err
	}
	if len(sprints) == 0 {
		return nil, nil
	}
	// Several parallel active sprints are possible; the most recently started wins.
	slices.SortFunc(sprints, func(a, b Sprint) int { return sprintStart(b).Compare(sprintStart(a)) })
	return &sprints[0], nil
}

// RecentClosedSprints returns up to n closed sprints, most recently completed first.
func (c *Client) RecentClosedSprints(ctx context.Context, n int) ([]Sprint, error) {
	sprints, err := c.Sprints(ctx, "closed")
	if err != nil {
		return nil, err
	}
	SortSprintsNewestFirst(sprints)
	if n > 0 && len(sprints) > n {
		sprints = sprints[:n]
	}
	return sprints, nil
}

// SortSprintsNewestFirst orders by completion (then end, then start) date descending.
func SortSprintsNewestFirst(sprints []Sprint) {
	slices.SortStableFunc(sprints, func(a, b Sprint) int {
		return sprintFinish(b).Compare(sprintFinish(a))
	})
}

func sprintStart(s Sprint) time.Time {
	if s.Start != nil {
		return *s.Start
	}
	return time.Time{}
}

func sprintFinish(s Sprint) time.Time {
	switch {
	case s.Complete != nil:
		return *s.Complete
	case s.End != nil:
		return *s.End
	default:
		return sprintStart(s)
	}
}

// BoardColumns returns the board's columns in display order.
func (c *Client) BoardColumns(ctx context.Context) ([]BoardColumn, error) {
	cacheKey := fmt.Sprintf("board_config:%d", c.cfg.BoardID)
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]BoardColumn), nil
	}

	var cfg boardConfigDTO
	path := fmt.Sprintf("/rest/agile/1.0/board/%d/configuration", c.cfg.BoardID)
	if err := c.getJSON(ctx, path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("board configuration %d: %w", c.cfg.BoardID, err)
	}

	columns := make([]BoardColumn, 0, len(cfg.ColumnConfig.Columns))
	for _, col := range cfg.ColumnConfig.Columns {
		bc := BoardColumn{Name: col.Name}
		for _, s := range col.Statuses {
			bc.StatusIDs = append(bc.StatusIDs, s.ID)
		}
		columns = append(columns, bc)
	}
	c.addToCache(cacheKey, columns, metadataTTL)
	return columns, nil
}

// SprintReport loads the GreenHopper sprint report for one sprint of the configured board.
func (c *Client) SprintReport(ctx context.Context, sprintID int) (*SprintReport, error) {
	params := url.Values{}
	params.Set("rapidViewId", strconv.Itoa(c.cfg.BoardID))
	params.Set("sprintId", strconv.Itoa(sprintID))

	var dto sprintReportDTO
	if err := c.getJSON(ctx, "/rest/greenhopper/1.0/rapid/charts/sprintreport", params, &dto); err != nil {
		return nil, fmt.Errorf("sprint report %d: %w", sprintID, err)
	}

	added := dto.Contents.IssueKeysAddedDuringSprint
	if added == nil {
		added = map[string]bool{}
	}
	return &SprintReport{
		SprintID:     sprintID,
		Completed:    mapReportIssues(dto.Contents.CompletedIssues),
		NotCompleted: mapReportIssues(dto.Contents.IssuesNotCompletedInCurrentSprint),
		Punted:       mapReportIssues(dto.Contents.PuntedIssues),
		AddedKeys:    added,
	}, nil
}

func mapReportIssues(in []sprintReportIssueDTO) []SprintReportIssue {
	out := make([]SprintReportIssue, 0, len(in))
	for _, d := range in {
		out = append(out, SprintReportIssue{
			Key:          d.Key,
			Summary:      d.Summary,
			Type:         d.TypeName,
			Status:       d.StatusName,
			AssigneeID:   d.Assignee,
			AssigneeName: d.AssigneeName,
			Done:         d.Done,
		})
	}
	return out
}
