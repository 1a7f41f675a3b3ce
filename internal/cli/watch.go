package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/agentworkforce/courtwatch/internal/config"
	"github.com/agentworkforce/courtwatch/internal/httpapi"
	"github.com/agentworkforce/courtwatch/internal/watcher"
)

// NewWatchCommand creates the long-running monitor command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the export directory and deliver new tennis reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, rootOpts, monitorFlags(cmd.Flags()))
		},
	}
	addMonitorFlags(cmd.Flags())
	cmd.Flags().String("admin-addr", "", "admin API listen address (disabled when empty)")
	return cmd
}

func addMonitorFlags(fs *pflag.FlagSet) {
	fs.String("watch-dir", "", "directory holding the exported files")
	fs.String("state", "", "state DSN: file path, file://, sqlite://, postgres:// or memory://")
	fs.String("target", "", "notification target")
	fs.Float64("min-duration", 180, "minimum workout duration in seconds")
	fs.Duration("debounce", watcher.DefaultDebounceDelay, "wait after a file event before reading")
}

func monitorFlags(fs *pflag.FlagSet) map[string]*pflag.Flag {
	return map[string]*pflag.Flag{
		"watch.dir":          fs.Lookup("watch-dir"),
		"state.dsn":          fs.Lookup("state"),
		"delivery.target":    fs.Lookup("target"),
		"watch.min_duration": fs.Lookup("min-duration"),
		"watch.debounce":     fs.Lookup("debounce"),
		"admin.addr":         fs.Lookup("admin-addr"),
	}
}

func runWatch(ctx context.Context, rootOpts *RootOptions, flags map[string]*pflag.Flag) error {
	a, err := loadApp(rootOpts, flags, nil, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.sync()

	l, releaseLedger, err := a.openLedger(ctx, true)
	if err != nil {
		return err
	}
	defer releaseLedger()

	machine, releaseMachine, err := a.newMachine(l)
	if err != nil {
		return err
	}
	defer releaseMachine()

	source, err := watcher.NewSource(a.cfg.Watch.Dir, a.logger)
	if err != nil {
		return err
	}

	var admin func(context.Context) error
	if addr := a.cfg.Admin.Addr; addr != "" {
		server := httpapi.NewServer(l, httpapi.ServerConfig{
			JWTSecret:   a.cfg.Admin.JWTSecret,
			ContextPath: a.cfg.ContextSnapshotPath(),
			Clock:       a.clock,
			Logger:      a.logger,
		})
		admin = func(ctx context.Context) error { return server.ListenAndServe(ctx, addr) }
	}

	a.logger.Info("monitor started",
		zap.String("path", a.cfg.Watch.Dir),
		zap.String("state", a.cfg.State.DSN),
		zap.Float64("min_duration", a.cfg.Watch.MinDuration),
	)
	err = superviseMonitor(ctx, func(ctx context.Context) {
		go source.Run(ctx)
		machine.Run(ctx, source.Events())
	}, admin)
	a.logger.Info("monitor stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("admin api stopped", zap.Error(err))
	}
	return nil
}

// superviseMonitor runs monitor until it returns, then stops admin and waits for it. The
// admin server is shut down even when monitor ends on its own.
func superviseMonitor(ctx context.Context, monitor func(context.Context), admin func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminDone := make(chan error, 1)
	if admin != nil {
		go func() { adminDone <- admin(ctx) }()
	} else {
		adminDone <- nil
	}

	monitor(ctx)
	cancel()
	return <-adminDone
}
