package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"team-health/internal/reports"
	"team-health/internal/stats"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const toolPrefix = "report_"

// toolName is the MCP tool serving a report.
func toolName(report string) string { return toolPrefix + report }

// describeInput selects the report whose output schema describe_report returns.
type describeInput struct {
	Report string `json:"report" jsonschema:"report name, e.g. slow, done, backlog, retro"`
}

func registerTools(server *mcpsdk.Server, builder *reports.Builder) {
	names := make([]string, 0, len(reports.Catalog))
	for _, rep := range reports.Catalog {
		names = append(names, rep.Name)
		mcpsdk.AddTool(server, &mcpsdk.Tool{
			Name:        toolName(rep.Name),
			Title:       rep.Title,
			Description: toolDescription(rep),
		}, reportHandler(builder, rep.Name))
	}

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:  "describe_report",
		Title: "Describe report",
		Description: "Returns the JSON schema of a report's result. Reports: " + strings.Join(names, ", ") +
			". Guidance: call this before interpreting an unfamiliar report payload.",
	}, describeHandler)
}

func toolDescription(rep reports.Report) string {
	desc := rep.Description
	switch rep.Name {
	case "done", "progress":
		desc += " Guidance: pass 'period' to change the window; it defaults to " + stats.DefaultPeriod + "."
	case "retro":
		desc += " Guidance: pass 'sprintId' for an older sprint. The result includes a Markdown rendering ready to paste."
	}
	return desc
}

func reportHandler(builder *reports.Builder, name string) mcpsdk.ToolHandlerFor[reports.Params, any] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, p reports.Params) (*mcpsdk.CallToolResult, any, error) {
		start := time.Now()
		result, err := builder.Run(ctx, name, p)
		if err != nil {
			log.Warn().Err(err).Str("report", name).Msg("MCP report failed")
			return nil, nil, err
		}
		log.Debug().Str("report", name).Dur("took", time.Since(start)).Msg("MCP report served")

		content, err := resultContent(result)
		if err != nil {
			return nil, nil, err
		}
		return &mcpsdk.CallToolResult{Content: content}, nil, nil
	}
}

// resultContent is the report as indented JSON, followed by its Markdown when it has one.
func resultContent(result any) ([]mcpsdk.Content, error) {
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	content := []mcpsdk.Content{&mcpsdk.TextContent{Text: string(body)}}
	if md, ok := result.(reports.Markdowner); ok {
		content = append(content, &mcpsdk.TextContent{Text: md.Markdown()})
	}
	return content, nil
}

func describeHandler(ctx context.Context, req *mcpsdk.CallToolRequest, in describeInput) (*mcpsdk.CallToolResult, any, error) {
	rep, ok := reports.Lookup(in.Report)
	if !ok {
		return nil, nil, &reports.UnknownReportError{Name: in.Report}
	}
	schema, err := rep.Schema()
	if err != nil {
		return nil, nil, err
	}
	body, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(body)}}}, nil, nil
}
