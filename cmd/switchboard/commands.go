package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/switchboard/internal/app"
	"github.com/MrSnakeDoc/switchboard/internal/config"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
	"github.com/MrSnakeDoc/switchboard/internal/version"
)

var (
	commandTimeout time.Duration

	rootCmd = &cobra.Command{
		Use:           "switchboard",
		Short:         "Dashboard backend for a rule-based proxy routing daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the control API, reconciliation loop and telemetry streams",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Fetch the topology once and print mode, display group and its chain",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	probeCmd = &cobra.Command{
		Use:   "probe <group>",
		Short: "Fetch the topology once and probe every member of a group",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "switchboard %s (commit=%s, built=%s, go=%s)\n",
				version.Version, version.Commit, version.BuildDate, version.GoVersion)
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{statusCmd, probeCmd} {
		c.Flags().DurationVar(&commandTimeout, "timeout", 30*time.Second, "overall deadline")
	}
	rootCmd.AddCommand(serveCmd, statusCmd, probeCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	return a.Run()
}

// oneShot builds an app without persistence and fetches the topology once.
func oneShot(ctx context.Context) (*app.App, error) {
	cfg := config.Load()
	cfg.RedisAddr = ""

	a, err := app.New(cfg, logger.New("warn", cfg.PrettyLog))
	if err != nil {
		return nil, err
	}
	if err := a.Reconcile(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to fetch topology: %w", err)
	}
	return a, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	a, err := oneShot(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return renderStatus(cmd.OutOrStdout(), a.Store())
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	a, err := oneShot(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.ProbeGroup(ctx, args[0])
	if err != nil {
		return fmt.Errorf("probe %s: %w", args[0], err)
	}
	return renderProbe(cmd.OutOrStdout(), results)
}
