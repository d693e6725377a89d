package commands

import (
	"fmt"
	"net"
	"time"

	"team-health/internal/server"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
	serveOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := loadApp()

		addr := serveAddr
		if addr == "" {
			addr = fmt.Sprintf(":%d", a.cfg.Port)
		}
		srv := server.New(a.builder, server.Config{Addr: addr, Debug: a.cfg.Debug})

		ctx, stop := signalContext()
		defer stop()

		if serveOpen {
			go openDashboard(addr)
		}
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default \":$PORT\")")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "open the dashboard in the default browser")
}

// openDashboard waits briefly for the listener, then opens the browser on it.
func openDashboard(addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("Cannot derive dashboard URL")
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	url := "http://" + net.JoinHostPort(host, port) + "/"

	time.Sleep(300 * time.Millisecond)
	if err := browser.OpenURL(url); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Failed to open browser")
	}
}
