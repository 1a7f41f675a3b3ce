// Package ledger is the durable record of which workouts have already been delivered.
//
// The Ledger loads its ProcessedSet once at startup, treats the in-memory set as
// authoritative for the rest of the process lifetime, and writes the whole set through to
// its Backend on every commit. Loading never fails the caller: missing or unreadable state
// starts from an empty set.
package ledger

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// LoadOutcome describes what Open found in the backend.
type LoadOutcome int

const (
	// LoadedEmpty means nothing was stored yet.
	LoadedEmpty LoadOutcome = iota
	// LoadedExisting means a stored snapshot was restored.
	LoadedExisting
	// LoadedCorrupt means the stored snapshot failed validation and was ignored.
	LoadedCorrupt
	// LoadFailed means the backend could not be read at all.
	LoadFailed
)

func (o LoadOutcome) String() string {
	switch o {
	case LoadedEmpty:
		return "empty"
	case LoadedExisting:
		return "existing"
	case LoadedCorrupt:
		return "corrupt"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Options struct {
	Capacity int
	Logger   *zap.Logger
}

// Ledger owns the ProcessedSet. All methods are safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	backend Backend
	set     *ProcessedSet
	outcome LoadOutcome
	logger  *zap.Logger
}

// Open loads the processed set from backend. A nil backend keeps state in memory only.
func Open(ctx context.Context, backend Backend, opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		backend: backend,
		set:     NewProcessedSet(opts.Capacity),
		logger:  logger,
	}
	l.outcome = l.load(ctx)
	processedGauge.Set(float64(l.set.Len()))
	return l
}

func (l *Ledger) load(ctx context.Context) LoadOutcome {
	if l.backend == nil {
		return LoadedEmpty
	}
	snapshot, err := l.backend.Load(ctx)
	switch {
	case errors.Is(err, ErrCorruptState):
		l.logger.Warn("processed workout state is malformed, starting empty", zap.Error(err))
		return LoadedCorrupt
	case err != nil:
		l.logger.Warn("processed workout state could not be loaded, starting empty", zap.Error(err))
		return LoadFailed
	case snapshot == nil:
		l.logger.Debug("no processed workout state yet")
		return LoadedEmpty
	}
	l.set = NewProcessedSet(l.set.Capacity(), snapshot.ProcessedWorkoutIDs...)
	l.logger.Info("loaded processed workout state", zap.Int("count", l.set.Len()))
	return LoadedExisting
}

func (l *Ledger) Outcome() LoadOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outcome
}

func (l *Ledger) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.Contains(id)
}

// Commit records id as delivered and persists the full set. When the write fails the id
// stays committed in memory and a *PersistError is returned.
func (l *Ledger) Commit(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.set.Add(id) {
		return nil
	}
	processedGauge.Set(float64(l.set.Len()))
	if l.backend == nil {
		return nil
	}
	if err := l.backend.Save(ctx, &Snapshot{ProcessedWorkoutIDs: l.set.IDs()}); err != nil {
		commitCounter.WithLabelValues("persist_failed").Inc()
		l.logger.Error("failed to persist processed workout state", zap.String("workout_id", id), zap.Error(err))
		return &PersistError{WorkoutID: id, Err: err}
	}
	commitCounter.WithLabelValues("persisted").Inc()
	return nil
}

// Snapshot returns the remembered ids, oldest first.
func (l *Ledger) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.IDs()
}

func (l *Ledger) Capacity() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.Capacity()
}

func (l *Ledger) Close() error {
	if closer, ok := l.backend.(backendCloser); ok {
		return closer.Close()
	}
	return nil
}
