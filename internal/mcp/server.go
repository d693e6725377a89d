// Package mcp exposes the reports as MCP tools over stdio.
package mcp

import (
	"context"

	"team-health/internal/reports"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const serverName = "team-health"

// NewServer builds the MCP server with one tool per report plus describe_report.
func NewServer(builder *reports.Builder, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version}, nil)
	registerTools(server, builder)
	return server
}

// Serve runs the stdio loop until the client disconnects or ctx is cancelled.
func Serve(ctx context.Context, builder *reports.Builder, version string) error {
	log.Info().Str("version", version).Int("tools", len(reports.Catalog)+1).Msg("MCP server starting stdio loop")
	err := NewServer(builder, version).Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("MCP server stopped")
	return nil
}
