package cli

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/agentworkforce/courtwatch/internal/analysis"
	"github.com/agentworkforce/courtwatch/internal/config"
	"github.com/agentworkforce/courtwatch/internal/ledger"
	"github.com/agentworkforce/courtwatch/internal/logging"
	"github.com/agentworkforce/courtwatch/internal/notify"
	"github.com/agentworkforce/courtwatch/internal/pipeline"
	"github.com/agentworkforce/courtwatch/internal/reader"
	"github.com/agentworkforce/courtwatch/internal/watcher"
	"github.com/agentworkforce/courtwatch/internal/workout"
)

// app carries what every command builds first.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  clockwork.Clock
}

func loadApp(opts *RootOptions, local map[string]*pflag.Flag, prepare func(*config.Config), validate func(*config.Config) error) (*app, error) {
	flags := map[string]*pflag.Flag{}
	for key, flag := range opts.flags {
		flags[key] = flag
	}
	for key, flag := range local {
		if flag != nil && flag.Changed {
			flags[key] = flag
		}
	}
	cfg, err := config.Load(config.LoadOptions{ConfigFile: opts.ConfigFile, Flags: flags})
	if err != nil {
		return nil, err
	}
	if prepare != nil {
		prepare(cfg)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, clock: clockwork.NewRealClock()}, nil
}

// openLedger loads the processed set. With exclusive set, a file-backed ledger is locked
// for the lifetime of the process.
func (a *app) openLedger(ctx context.Context, exclusive bool) (*ledger.Ledger, func(), error) {
	backend, err := ledger.BuildBackendFromDSN(a.cfg.State.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("state backend: %w", err)
	}
	unlock := func() error { return nil }
	if path, ok := ledger.FilePath(a.cfg.State.DSN); ok && exclusive {
		unlock, err = ledger.Lock(path)
		if err != nil {
			return nil, nil, err
		}
	}
	l := ledger.Open(ctx, backend, ledger.Options{Capacity: a.cfg.State.Capacity, Logger: a.logger})
	a.logger.Debug("ledger opened", zap.String("outcome", l.Outcome().String()), zap.Int("ids", len(l.Snapshot())))
	release := func() {
		if err := l.Close(); err != nil {
			a.logger.Warn("cannot close state backend", zap.Error(err))
		}
		if err := unlock(); err != nil {
			a.logger.Warn("cannot release state lock", zap.Error(err))
		}
	}
	return l, release, nil
}

func (a *app) newAnalyzer() *analysis.Client {
	return analysis.NewClient(analysis.Options{
		BaseURL:     a.cfg.Analysis.BaseURL,
		APIKey:      a.cfg.Analysis.APIKey,
		Model:       a.cfg.Analysis.Model,
		Temperature: &a.cfg.Analysis.Temperature,
		Timeout:     a.cfg.Analysis.Timeout,
		Logger:      a.logger,
	})
}

func (a *app) newChain() (reader.Chain, error) {
	fallback, err := reader.NewFallback(a.cfg.Watch.Fallback, a.cfg.Watch.FallbackTimeout)
	if err != nil {
		return reader.Chain{}, err
	}
	return reader.Chain{Primary: reader.NewFSReader(afero.NewOsFs()), Fallback: fallback}, nil
}

// newMachine assembles the reader, pipeline and state machine around l.
func (a *app) newMachine(l *ledger.Ledger) (*watcher.Machine, func(), error) {
	chain, err := a.newChain()
	if err != nil {
		return nil, nil, err
	}
	d := a.cfg.Delivery
	notifier, closeNotifier, err := notify.New(notify.Options{
		Kind:           d.Kind,
		CommandPath:    d.CommandPath,
		CommandArgs:    d.CommandArgs,
		WebSocketURL:   d.WebSocketURL,
		WebSocketToken: d.WebSocketToken,
		KafkaBrokers:   d.KafkaBrokers,
		KafkaTopic:     d.KafkaTopic,
		Clock:          a.clock,
	})
	if err != nil {
		return nil, nil, err
	}
	p := pipeline.New(pipeline.Options{
		Analyzer:        a.newAnalyzer(),
		Notifier:        notifier,
		Committer:       l,
		Snapshots:       pipeline.FileSnapshotWriter{Path: a.cfg.ContextSnapshotPath()},
		Target:          d.Target,
		DeliveryTimeout: d.Timeout,
		Clock:           a.clock,
		Logger:          a.logger,
	})
	machine := watcher.NewMachine(watcher.Options{
		Loader:        chain,
		Filter:        workout.Filter{Marker: a.cfg.Watch.Marker, MinDuration: a.cfg.Watch.MinDuration},
		Seen:          l,
		Dispatcher:    p,
		DebounceDelay: a.cfg.Watch.Debounce,
		Clock:         a.clock,
		Logger:        a.logger,
	})
	release := func() {
		if err := closeNotifier(); err != nil {
			a.logger.Warn("cannot close notifier", zap.Error(err))
		}
	}
	return machine, release, nil
}

func (a *app) sync() {
	// stderr sync fails on some terminals
	_ = a.logger.Sync()
}

