package jira

import (
	"context"

	"github.com/rs/zerolog/log"
)

const (
	sprintFieldSchema  = "com.pyxis.greenhopper.jira:gh-sprint"
	defaultSprintField = "customfield_10020"
)

// SprintFieldID returns the custom field id that holds sprint membership. The configured
// override wins; otherwise the field list is searched for the GreenHopper sprint schema.
// Only an answered lookup is remembered. A failed one returns customfield_10020, the Jira
// Cloud default, and the next call tries again.
func (c *Client) SprintFieldID(ctx context.Context) string {
	if c.cfg.SprintField != "" {
		return c.cfg.SprintField
	}
	c.sprintFieldMu.Lock()
	defer c.sprintFieldMu.Unlock()
	if c.sprintFieldID != "" {
		return c.sprintFieldID
	}

	var fields []fieldDTO
	if err := c.getJSON(ctx, "/rest/api/3/field", nil, &fields); err != nil {
		log.Warn().Err(err).Str("fallback", defaultSprintField).Msg("Sprint field discovery failed")
		return defaultSprintField
	}
	c.sprintFieldID = defaultSprintField
	for _, f := range fields {
		if f.Schema.Custom == sprintFieldSchema {
			c.sprintFieldID = f.ID
			log.Debug().Str("field", f.ID).Msg("Discovered sprint field")
			return c.sprintFieldID
		}
	}
	log.Warn().Str("fallback", defaultSprintField).Msg("No sprint field found in field metadata")
	return c.sprintFieldID
}

// IsSprintField reports whether a changelog item refers to sprint membership.
func IsSprintField(item ChangeItem, sprintFieldID string) bool {
	if item.Field == "Sprint" {
		return true
	}
	return sprintFieldID != "" && item.FieldID == sprintFieldID
}
