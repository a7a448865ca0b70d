package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/tabs/dashboard"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/tabs/history"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/tabs/info"
)

type liveOptions struct {
	interval   time.Duration
	resetHours float64
}

func newLiveCmd(opts *rootOptions) *cobra.Command {
	lo := &liveOptions{}

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run the live usage monitor",
		Long: `Run the live usage monitor.

Keyboard Shortcuts:
  1-3             Switch between tabs (Dashboard, History, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Scroll
  r               Refresh usage
  a               Analyze throttle events
  t               Toggle history time range
  ?               Toggle help
  q, Ctrl+C       Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLive(opts, lo)
		},
	}
	cmd.Flags().DurationVar(&lo.interval, "interval", 0, "refresh interval (defaults to REFRESH_INTERVAL)")
	cmd.Flags().Float64Var(&lo.resetHours, "reset-hours", 0, "period length in hours for the countdown and safe rate")
	return cmd
}

// managerOptions turns the display flags into manager options. The reset
// window only changes what the monitor shows; stored periods keep theirs.
func (lo *liveOptions) managerOptions() []services.Option {
	if lo.resetHours <= 0 {
		return nil
	}
	return []services.Option{services.WithDisplayResetWindow(time.Duration(lo.resetHours * float64(time.Hour)))}
}

// runLive applies the live flags, moves logging to a file and runs the TUI
// until the user quits or a signal arrives.
func runLive(opts *rootOptions, lo *liveOptions) error {
	cfg := opts.cfg
	if lo.interval > 0 {
		cfg.RefreshInterval = lo.interval
	}

	// The TUI owns the terminal, so records go to the log file.
	if opts.logClose != nil {
		_ = opts.logClose.Close()
	}
	opts.logClose = logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	svcManager, err := opts.manager(lo.managerOptions()...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	if err := svcManager.Start(); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	model := app.NewModel(svcManager, cfg.RefreshInterval)
	state := model.GetState()
	model.SetTabs(newTabs(state, svcManager))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// newTabs builds the tabs in TabID order.
func newTabs(state *app.State, mgr *services.Manager) []app.Tab {
	return []app.Tab{
		dashboard.New(state),
		history.New(state, mgr),
		info.New(state, mgr),
	}
}
