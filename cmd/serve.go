package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/parley/internal/api"
	"github.com/jon4hz/parley/internal/scheduler"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the browser UI",
	Long:  `Start a local web server with the chat UI. The UI shares the session with the other commands.`,
	Example: `parley serve --config config.yml
parley serve -c /path/to/config.yml --log-level debug
`,
	Args: cobra.NoArgs,
	Run:  startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	ctx := cmd.Context()

	a := openApp(ctx)
	defer a.Close()

	sched, err := scheduler.New(ctx)
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	if interval := a.cfg.Refresh.Revalidate; interval > 0 {
		if err := sched.AddSingletonJob("revalidate-session", "Revalidate session", interval, revalidate(a), false); err != nil {
			log.Fatalf("failed to schedule session revalidation: %v", err)
		}
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
		}
	}()

	server, err := api.New(a.cfg, a.session, a.client, sched, log.GetLevel() == log.DebugLevel)
	if err != nil {
		log.Fatalf("failed to create web server: %v", err)
	}

	log.Info("starting web UI", "listen", "http://"+a.cfg.Web.Listen)
	if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("web server error", "error", err)
		return
	}
	log.Info("shutting down gracefully...")
}

// revalidate checks the session token against the backend. A revoked token
// logs the browser UI out.
func revalidate(a *app) scheduler.JobFunc {
	return func(ctx context.Context) error {
		a.session.Revalidate()
		return a.session.Wait(ctx)
	}
}
