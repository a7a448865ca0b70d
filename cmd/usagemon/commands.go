package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-monitor/internal/services"
	"github.com/j-veylop/claude-usage-monitor/internal/services/period"
	"github.com/j-veylop/claude-usage-monitor/internal/services/quota"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/report"
	"github.com/j-veylop/claude-usage-monitor/internal/version"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current usage status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, opts)
		},
	}
}

func runStatus(cmd *cobra.Command, opts *rootOptions) error {
	return opts.withManager(func(mgr *services.Manager) error {
		printStatus(cmd, mgr)
		return nil
	})
}

// printStatus runs a status pass and prints it. Write failures are reported
// but the computed status is still shown.
func printStatus(cmd *cobra.Command, mgr *services.Manager) {
	snap, err := mgr.Status()
	warn(cmd, err)
	if snap.PeriodReset {
		fmt.Fprintln(cmd.OutOrStdout(), "A new usage period has started.")
	}
	report.Status(cmd.OutOrStdout(), snap)
	report.Sessions(cmd.OutOrStdout(), snap)
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "record [count]",
		Short: "Record message(s) sent to Claude",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid count %q: %w", args[0], period.ErrInvalidCount)
				}
				n = v
			}
			return opts.withManager(func(mgr *services.Manager) error {
				p, err := mgr.Record(n)
				if errors.Is(err, period.ErrInvalidCount) {
					return err
				}
				warn(cmd, err)
				report.Recorded(cmd.OutOrStdout(), n, p)
				return nil
			})
		},
	}
}

func newSetSubscriptionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-subscription <tier>",
		Short: "Set subscription tier (free, pro, max)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(func(mgr *services.Manager) error {
				tier, err := mgr.SetSubscription(args[0])
				if errors.Is(err, quota.ErrUnknownTier) {
					return err
				}
				warn(cmd, err)
				report.SubscriptionSet(cmd.OutOrStdout(), tier)
				printStatus(cmd, mgr)
				return nil
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history [days]",
		Short: "Show usage history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days := period.DefaultHistoryDays
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 1 {
					return fmt.Errorf("invalid number of days %q", args[0])
				}
				days = v
			}
			return opts.withManager(func(mgr *services.Manager) error {
				report.History(cmd.OutOrStdout(), days, mgr.History(days))
				return nil
			})
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all usage data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withManager(func(mgr *services.Manager) error {
				if err := mgr.Clear(); err != nil {
					return fmt.Errorf("failed to clear usage data: %w", err)
				}
				report.Cleared(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

func newProcessSessionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process-sessions",
		Short: "Fold session records into the current period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withManager(func(mgr *services.Manager) error {
				summary, err := mgr.ProcessSessions()
				warn(cmd, err)
				report.SessionsProcessed(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
}

func newExportCurrentCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export-current",
		Short: "Print the current period and metrics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withManager(func(mgr *services.Manager) error {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(mgr.ExportCurrent())
			})
		},
	}
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze-thresholds",
		Short: "Analyze throttle events and adapt limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withManager(func(mgr *services.Manager) error {
				analysis, err := mgr.AnalyzeThresholds()
				if err != nil && analysis.Analyzed == 0 {
					return fmt.Errorf("failed to analyze throttle events: %w", err)
				}
				warn(cmd, err)
				report.Analysis(cmd.OutOrStdout(), analysis)
				return nil
			})
		},
	}
}

func newThresholdReportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "threshold-report",
		Short: "Show the threshold learning report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withManager(func(mgr *services.Manager) error {
				report.ThresholdReport(cmd.OutOrStdout(), mgr.ThresholdReport())
				return nil
			})
		},
	}
}

func newExportMetricsCmd(opts *rootOptions) *cobra.Command {
	var textfile string

	cmd := &cobra.Command{
		Use:   "export-metrics",
		Short: "Write the current metrics as a Prometheus textfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withManager(func(mgr *services.Manager) error {
				path, err := mgr.ExportMetrics(textfile)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Metrics written to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&textfile, "textfile", "", "destination file (defaults to METRICS_TEXTFILE)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
