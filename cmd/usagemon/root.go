package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
	"github.com/j-veylop/claude-usage-monitor/internal/version"
)

// rootOptions carries the global flags and the configuration loaded before
// any subcommand runs.
type rootOptions struct {
	logLevel string
	cfg      *config.Config
	logClose io.Closer
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "usagemon",
		Short: "Monitor Claude usage to avoid downgrades",
		Long: `Usagemon tracks messages, tokens and concurrent sessions against your
subscription limits, warns before you reach them and adapts the limits from
logged throttle events.

Storage defaults to ~/.claude-centralized and can be moved with
CLAUDE_CENTRAL_STORAGE.`,
		Version:       version.GetVersion(),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return opts.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logClose != nil {
				_ = opts.logClose.Close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, opts)
		},
	}
	rootCmd.SetVersionTemplate(version.Info() + "\n")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newStatusCmd(opts),
		newRecordCmd(opts),
		newSetSubscriptionCmd(opts),
		newHistoryCmd(opts),
		newClearCmd(opts),
		newProcessSessionsCmd(opts),
		newExportCurrentCmd(opts),
		newAnalyzeCmd(opts),
		newThresholdReportCmd(opts),
		newExportMetricsCmd(opts),
		newLiveCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the configuration and points the logger at stderr. The live
// monitor moves the logger to a file before it takes over the terminal.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	o.cfg = cfg
	o.logClose = logger.Init(logger.Options{Level: cfg.LogLevel})
	if cfg.SettingsErr != nil {
		warn(cmd, fmt.Errorf("ignoring settings file: %w", cfg.SettingsErr))
	}
	logger.Debug("configuration loaded", "command", cmd.Name(), "storage", cfg.StorageDir)
	return nil
}

// manager builds the service manager for one command.
func (o *rootOptions) manager(opts ...services.Option) (*services.Manager, error) {
	mgr, err := services.NewManager(o.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return mgr, nil
}

// withManager runs fn against a fresh manager and closes it afterwards.
func (o *rootOptions) withManager(fn func(*services.Manager) error) error {
	mgr, err := o.manager()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mgr.Close(); cerr != nil {
			logger.Warn("error closing services", "error", cerr)
		}
	}()
	return fn(mgr)
}

// warn reports a non-fatal failure, such as a document that could not be
// written, without failing the command.
func warn(cmd *cobra.Command, err error) {
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
}
