package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"team-health/internal/config"
	"team-health/internal/github"
	"team-health/internal/identity"
	"team-health/internal/jira"
	"team-health/internal/logging"
	"team-health/internal/reports"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "team-health",
	Short: "Team Health is a Jira and GitHub dashboard for agile teams",
	Long: `Team Health reads a Jira board (and optionally a GitHub organisation) and reports on
stuck work, completed work, backlog age, sprint load, scope creep, open pull requests and
sprint retrospectives. Run "serve" for the dashboard or "mcp" to expose the reports as MCP tools.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(serveCmd, mcpCmd, reportCmd, versionCmd)
}

// app is what every data command needs once configuration is loaded.
type app struct {
	cfg     *config.AppConfig
	builder *reports.Builder
}

// loadApp reads the configuration and wires the Jira client, the identity cache, the optional
// GitHub client and the report builder. Missing Jira credentials are fatal and listed together.
func loadApp() *app {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	jiraClient := jira.NewClient(cfg.Jira)
	ids := identity.NewCache(jiraClient)

	// A nil *github.Client stored in the interface would not compare equal to nil.
	var gh github.API
	if cfg.GitHub.Enabled() {
		gh = github.NewClient(cfg.GitHub)
	}

	builder := reports.New(jiraClient, gh, ids, reports.Options{
		StuckThresholdDays: cfg.StuckThresholdDays,
		SprintDurationDays: cfg.SprintDurationDays,
		LoadImbalanceRatio: cfg.LoadImbalanceRatio,
		SprintHistory:      cfg.SprintHistory,
		Location:           cfg.Location,
	})

	log.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("buildDate", BuildDate).
		Str("jira", cfg.Jira.Host).
		Int("board", cfg.Jira.BoardID).
		Bool("github", gh != nil).
		Msg("Team Health starting")

	return &app{cfg: cfg, builder: builder}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
