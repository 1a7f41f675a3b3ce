// Package pipeline turns new workouts into delivered reports. A workout is committed to the
// ledger only after its delivery is confirmed, so a failed attempt is retried by the next
// file event and a confirmed one is never sent again.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/agentworkforce/courtwatch/internal/analysis"
	"github.com/agentworkforce/courtwatch/internal/notify"
	"github.com/agentworkforce/courtwatch/internal/workout"
)

const DefaultDeliveryTimeout = 60 * time.Second

type Analyzer interface {
	Analyze(ctx context.Context, w workout.Workout) string
}

// Committer is the part of the ledger the pipeline needs.
type Committer interface {
	Contains(id string) bool
	Commit(ctx context.Context, id string) error
}

type Options struct {
	Analyzer        Analyzer
	Notifier        notify.Notifier
	Committer       Committer
	Snapshots       SnapshotWriter
	Target          string
	DeliveryTimeout time.Duration
	Clock           clockwork.Clock
	Logger          *zap.Logger
}

type Pipeline struct {
	analyzer  Analyzer
	notifier  notify.Notifier
	committer Committer
	snapshots SnapshotWriter
	target    string
	clock     clockwork.Clock
	logger    *zap.Logger
}

func New(opts Options) *Pipeline {
	timeout := opts.DeliveryTimeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		analyzer:  opts.Analyzer,
		notifier:  notify.WithTimeout(opts.Notifier, timeout),
		committer: opts.Committer,
		snapshots: opts.Snapshots,
		target:    opts.Target,
		clock:     clock,
		logger:    logger,
	}
}

// Attempt is what happened to one workout.
type Attempt struct {
	WorkoutID string
	Delivered bool
	Skipped   bool
	Sentinel  bool
	Detail    string
}

type Report struct {
	Attempts  []Attempt
	Delivered int
	Failed    int
	Skipped   int
}

// Run processes workouts in order. The returned error joins one *DeliveryError per failed
// delivery and the commit error of every delivered workout whose id could not be persisted.
// It is ErrNothingToDo for an empty input, or the context error if ctx ends between workouts.
func (p *Pipeline) Run(ctx context.Context, workouts []workout.Workout) (Report, error) {
	var report Report
	if len(workouts) == 0 {
		return report, ErrNothingToDo
	}
	var errs []error
	for _, w := range workouts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		attempt, commitErr := p.process(ctx, w)
		report.Attempts = append(report.Attempts, attempt)
		switch {
		case attempt.Skipped:
			report.Skipped++
		case attempt.Delivered:
			report.Delivered++
			if commitErr != nil {
				errs = append(errs, commitErr)
			}
		default:
			report.Failed++
			errs = append(errs, &DeliveryError{WorkoutID: w.ID, Detail: attempt.Detail})
		}
	}
	return report, errors.Join(errs...)
}

func (p *Pipeline) process(ctx context.Context, w workout.Workout) (Attempt, error) {
	logger := p.logger.With(zap.String("workout_id", w.ID))
	if p.committer.Contains(w.ID) {
		logger.Debug("workout already delivered, skipping")
		return Attempt{WorkoutID: w.ID, Skipped: true}, nil
	}

	report := p.analyzer.Analyze(ctx, w)
	attempt := Attempt{WorkoutID: w.ID, Sentinel: analysis.IsSentinel(report)}
	if attempt.Sentinel {
		logger.Warn("analysis unavailable, delivering placeholder")
	}

	if p.snapshots != nil {
		snapshot := ContextSnapshot{
			Timestamp:  p.clock.Now().Format(SnapshotTimeLayout),
			WorkoutID:  w.ID,
			RawWorkout: w.Raw,
			AIReport:   report,
		}
		if err := p.snapshots.Write(ctx, snapshot); err != nil {
			logger.Debug("context snapshot not written", zap.Error(err))
		}
	}

	result := p.notifier.Notify(ctx, p.target, report)
	if !result.OK {
		deliveryCounter.WithLabelValues("failed").Inc()
		logger.Error("delivery failed", zap.String("target", p.target), zap.String("detail", result.Detail))
		attempt.Detail = result.Detail
		return attempt, nil
	}
	deliveryCounter.WithLabelValues("delivered").Inc()
	attempt.Delivered = true
	logger.Info("notification sent", zap.String("target", p.target))

	if err := p.committer.Commit(ctx, w.ID); err != nil {
		// the ledger already logged it and kept the id in memory
		attempt.Detail = err.Error()
		return attempt, err
	}
	return attempt, nil
}
