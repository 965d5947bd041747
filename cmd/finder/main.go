package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stock-finder/internal/app"
	"stock-finder/internal/config"
	"stock-finder/pkg/logger"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "finder",
		Short:        "Find a watch in stock at nearby retailers",
		Long:         "finder searches the authorized retailer directory around a zip code, calls stores with a voice agent and reports who has the watch in stock.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCallCmd())
	cmd.AddCommand(newCallOneCmd())
	cmd.AddCommand(newWebsitesCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "finder %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// loadApp reads configuration and wires the services. Logs go to stderr.
func loadApp(cmd *cobra.Command) (context.Context, *app.App, error) {
	config.LoadDotEnv()
	cfg, err := config.LoadCLI()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewTo(cmd.ErrOrStderr(), cfg.App.Env)
	ctx := logger.With(cmd.Context(), log)

	a, err := app.New(ctx, cfg, app.Options{BaseContext: ctx})
	if err != nil {
		return nil, nil, err
	}
	return ctx, a, nil
}

func execute(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, newRootCmd())
	stop()
	os.Exit(code)
}
