package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"team-health/internal/reports"

	"github.com/spf13/cobra"
)

const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

var (
	reportPeriod string
	reportSprint int
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:       "report <name>",
	Short:     "Print one report to stdout",
	Long:      "Print one report to stdout as JSON, or as Markdown for reports that have a Markdown rendering.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: reportNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := reports.Lookup(args[0]); !ok {
			return fmt.Errorf("%w (available: %s)", &reports.UnknownReportError{Name: args[0]}, strings.Join(reportNames(), ", "))
		}
		if reportFormat != formatJSON && reportFormat != formatMarkdown {
			return fmt.Errorf("--format must be %s or %s", formatJSON, formatMarkdown)
		}

		a := loadApp()
		ctx, stop := signalContext()
		defer stop()

		result, err := a.builder.Run(ctx, args[0], reports.Params{Period: reportPeriod, SprintID: reportSprint})
		if err != nil {
			return err
		}
		return writeReport(cmd.OutOrStdout(), result, reportFormat)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportPeriod, "period", "", "window for done and progress (e.g. this-week, last-7-days)")
	reportCmd.Flags().IntVar(&reportSprint, "sprint", 0, "sprint id for the retro report")
	reportCmd.Flags().StringVar(&reportFormat, "format", formatJSON, "output format: json or markdown")
}

func reportNames() []string {
	names := make([]string, 0, len(reports.Catalog))
	for _, r := range reports.Catalog {
		names = append(names, r.Name)
	}
	return names
}

func writeReport(w io.Writer, result any, format string) error {
	if format == formatMarkdown {
		md, ok := result.(reports.Markdowner)
		if !ok {
			return fmt.Errorf("this report has no Markdown rendering, use --format %s", formatJSON)
		}
		_, err := io.WriteString(w, md.Markdown())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
