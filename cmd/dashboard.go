package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbouvier/intelwatch/internal/dashboard"
)

var dashInterval time.Duration

// newDashboardCmd creates the 'dashboard' subcommand: serve results over
// HTTP and keep gathering on an interval.
func newDashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the results dashboard and gather on an interval",
		Long: `Starts the HTTP dashboard, runs a gathering pass immediately, and
repeats on the configured interval until interrupted. Each finished pass
replaces the dashboard's latest run.`,
		RunE: runDashboardCommand,
	}
	cmd.Flags().DurationVar(&dashInterval, "interval", time.Hour, "time between gathering passes")
	return cmd
}

func runDashboardCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	srv := dashboard.NewServer(dashboard.Addr(cfg.Dashboard.Host, cfg.Dashboard.Port), logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start(ctx)
	}()

	go gatherLoop(ctx, eng, srv, dashInterval, logger)

	err = <-serveErr
	logger.Info("dashboard stopped")
	return err
}

// gatherLoop runs passes until ctx is canceled, publishing each result.
func gatherLoop(ctx context.Context, eng *engine, srv *dashboard.Server, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := eng.runOnce(ctx)
		if err != nil {
			logger.Error("gathering pass failed", zap.Error(err))
		} else {
			srv.Publish(result)
			logger.Info("gathering pass published",
				zap.String("run_id", result.RunID),
				zap.Int("articles", result.Stats.ArticlesAccepted),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
