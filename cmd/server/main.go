package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jengzang/scam-dashboard-go/internal/app"
	"github.com/jengzang/scam-dashboard-go/internal/config"
	"github.com/jengzang/scam-dashboard-go/internal/logging"
)

var (
	configPath string
	logLevel   string
	chartsOut  string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "scam-dashboard",
	Short: "Scam-awareness dashboard service",
	Long: `Serves the scam-awareness dashboard: KPI row, statistic charts and the
village risk map, assembled from the scam-awareness backend.`,
	SilenceUsage: true,
}

// serveCmd runs the HTTP service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP service",
	RunE:  runServe,
}

// snapshotCmd boots the dashboard once and prints the result
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Boot the dashboard once and print the view as JSON",
	Long: `Runs one dashboard boot against the configured backend and writes the
resulting view to stdout.

Example:
  scam-dashboard snapshot --charts charts.html`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	snapshotCmd.Flags().StringVar(&chartsOut, "charts", "", "Also write the chart page to this HTML file")
	snapshotCmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Boot timeout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.New(cfg, logger).Run(ctx)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a := app.New(cfg, logger)
	view := a.Dashboard.Boot(ctx)
	if err := view.Wait(ctx); err != nil {
		logger.Warn("snapshot taken before every part finished",
			zap.Strings("pending", view.Snapshot().Pending), zap.Error(err))
	}

	if chartsOut != "" {
		f, err := os.Create(chartsOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", chartsOut, err)
		}
		defer f.Close()
		if err := a.Dashboard.Renderer().Registry().RenderPage(f, "詐騙防制儀表板"); err != nil {
			return fmt.Errorf("failed to render charts: %w", err)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
