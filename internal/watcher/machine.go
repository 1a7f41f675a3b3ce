// Package watcher drives the monitor: it filters file events, waits for writes to settle,
// reads the export, picks the new tennis sessions and hands them to the pipeline.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agentworkforce/courtwatch/internal/pipeline"
	"github.com/agentworkforce/courtwatch/internal/workout"
)

const (
	DefaultDebounceDelay = 2 * time.Second
	dateLayout           = "2006-01-02"
)

// Loader reads and parses one export file. onFallback is called before a secondary read.
type Loader interface {
	Load(ctx context.Context, path string, onFallback func(error)) (workout.Document, error)
}

type Dispatcher interface {
	Run(ctx context.Context, workouts []workout.Workout) (pipeline.Report, error)
}

type Options struct {
	Loader        Loader
	Filter        workout.Filter
	Seen          workout.Seen
	Dispatcher    Dispatcher
	DebounceDelay time.Duration
	Clock         clockwork.Clock
	Logger        *zap.Logger
}

// Machine handles events one at a time. It is not safe for concurrent use.
type Machine struct {
	loader     Loader
	filter     workout.Filter
	seen       workout.Seen
	dispatcher Dispatcher
	debounce   time.Duration
	clock      clockwork.Clock
	logger     *zap.Logger
}

func NewMachine(opts Options) *Machine {
	debounce := opts.DebounceDelay
	if debounce < 0 {
		debounce = 0
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		loader:     opts.Loader,
		filter:     opts.Filter,
		seen:       opts.Seen,
		dispatcher: opts.Dispatcher,
		debounce:   debounce,
		clock:      clock,
		logger:     logger,
	}
}

// Match reports whether path is an export for the day of now.
func Match(path string, now time.Time) bool {
	if !strings.HasSuffix(path, ".json") {
		return false
	}
	return strings.Contains(filepath.Base(path), now.Format(dateLayout))
}

// Run handles events until the channel closes or ctx ends. A failing event never stops
// the loop.
func (m *Machine) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Handle(ctx, ev)
		}
	}
}

// Handle filters, debounces and processes one event.
func (m *Machine) Handle(ctx context.Context, ev Event) Outcome {
	if !Match(ev.Path, m.clock.Now()) {
		eventCounter.WithLabelValues("ignored").Inc()
		return Outcome{Path: ev.Path, Ignored: true, Trail: []State{StateIdle}}
	}
	m.logger.Info("export file changed", zap.String("path", ev.Path))

	out := Outcome{Path: ev.Path, Trail: []State{StateDebouncing}}
	if err := m.wait(ctx); err != nil {
		return m.finish(out, err)
	}
	return m.process(ctx, out)
}

// Process runs one file through reading, extraction and dispatch right away, without the
// name filter or the debounce.
func (m *Machine) Process(ctx context.Context, path string) Outcome {
	return m.process(ctx, Outcome{Path: path})
}

func (m *Machine) process(ctx context.Context, out Outcome) (result Outcome) {
	defer func() {
		if r := recover(); r != nil {
			result = m.finish(out, &PanicError{Value: r})
		}
	}()
	logger := m.logger.With(zap.String("path", out.Path))

	out.Trail = append(out.Trail, StateReading)
	doc, err := m.loader.Load(ctx, out.Path, func(primaryErr error) {
		out.Trail = append(out.Trail, StateFallbackRead)
		logger.Warn("primary read failed, using fallback", zap.Error(primaryErr))
	})
	if err != nil {
		return m.finish(out, err)
	}

	out.Trail = append(out.Trail, StateExtracting)
	novel := workout.Resolve(workout.Extract(doc, m.filter), m.seen)
	out.Novel = len(novel)

	out.Trail = append(out.Trail, StateDispatching)
	report, err := m.dispatcher.Run(ctx, novel)
	out.Delivered = report.Delivered
	return m.finish(out, err)
}

func (m *Machine) wait(ctx context.Context) error {
	if m.debounce == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(m.debounce):
		return nil
	}
}

func (m *Machine) finish(out Outcome, err error) Outcome {
	out.Trail = append(out.Trail, StateIdle)
	out.Err = err
	out.Category = Classify(err)
	eventCounter.WithLabelValues(out.Category.String()).Inc()

	fields := []zap.Field{
		zap.String("path", out.Path),
		zap.String("category", out.Category.String()),
		zap.Int("novel", out.Novel),
		zap.Int("delivered", out.Delivered),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	m.logger.Log(level(out.Category, err), outcomeMessage(out.Category), fields...)
	return out
}

func level(c Category, err error) zapcore.Level {
	switch c {
	case CategoryNone:
		return zapcore.InfoLevel
	case CategoryBenign:
		if errors.Is(err, pipeline.ErrNothingToDo) {
			return zapcore.DebugLevel
		}
		return zapcore.InfoLevel
	case CategoryTransient, CategoryMalformed, CategoryDelivery:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func outcomeMessage(c Category) string {
	switch c {
	case CategoryNone:
		return "export processed"
	case CategoryBenign:
		return "export skipped"
	case CategoryDelivery:
		return "export processed with delivery failures"
	default:
		return "export processing failed"
	}
}
