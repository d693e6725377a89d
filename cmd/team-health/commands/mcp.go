package commands

import (
	"team-health/internal/mcp"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve every report as an MCP tool over stdio",
	Long: `Serve every report as an MCP tool over stdio. Logs go to stderr and the log file;
stdout carries the protocol only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := loadApp()
		ctx, stop := signalContext()
		defer stop()
		return mcp.Serve(ctx, a.builder, Version)
	},
}
