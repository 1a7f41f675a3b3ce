package watcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworkforce/courtwatch/internal/ledger"
	"github.com/agentworkforce/courtwatch/internal/notify"
	"github.com/agentworkforce/courtwatch/internal/pipeline"
	"github.com/agentworkforce/courtwatch/internal/reader"
	"github.com/agentworkforce/courtwatch/internal/workout"
)

var today = time.Date(2024, 1, 1, 10, 0, 5, 0, time.Local)

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, w workout.Workout) string {
	return "analysis " + w.ID
}

type recordingNotifier struct {
	fail bool
	sent []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, message string) notify.Result {
	n.sent = append(n.sent, message)
	if n.fail {
		return notify.Failed("gateway offline")
	}
	return notify.Delivered()
}

type brokenReader struct{}

func (brokenReader) Read(context.Context, string) ([]byte, error) {
	return nil, errors.New("resource busy")
}

type panickingDispatcher struct{}

func (panickingDispatcher) Run(context.Context, []workout.Workout) (pipeline.Report, error) {
	panic("boom")
}

type harness struct {
	fs       afero.Fs
	clock    *clockwork.FakeClock
	ledger   *ledger.Ledger
	notifier *recordingNotifier
	machine  *Machine
}

type diskFullBackend struct{}

func (diskFullBackend) Load(context.Context) (*ledger.Snapshot, error) { return nil, nil }

func (diskFullBackend) Save(context.Context, *ledger.Snapshot) error {
	return errors.New("disk full")
}

func newHarness(t *testing.T, debounce time.Duration) *harness {
	t.Helper()
	return newHarnessWithBackend(t, debounce, ledger.NewInMemoryBackend())
}

func newHarnessWithBackend(t *testing.T, debounce time.Duration, backend ledger.Backend) *harness {
	t.Helper()
	h := &harness{
		fs:       afero.NewMemMapFs(),
		clock:    clockwork.NewFakeClockAt(today),
		ledger:   ledger.Open(context.Background(), backend, ledger.Options{}),
		notifier: &recordingNotifier{},
	}
	p := pipeline.New(pipeline.Options{
		Analyzer:  stubAnalyzer{},
		Notifier:  h.notifier,
		Committer: h.ledger,
		Target:    "me",
		Clock:     h.clock,
	})
	h.machine = NewMachine(Options{
		Loader:        reader.Chain{Primary: reader.NewFSReader(h.fs), Fallback: reader.NewFSReader(h.fs)},
		Filter:        workout.LiveFilter(),
		Seen:          h.ledger,
		Dispatcher:    p,
		DebounceDelay: debounce,
		Clock:         h.clock,
	})
	return h
}

func (h *harness) write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(h.fs, path, []byte(body), 0o644))
}

func exportWith(workouts string) string {
	return fmt.Sprintf(`{"data":{"workouts":[%s]}}`, workouts)
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("/exports/HealthAutoExport-2024-01-01.json", today))
	assert.False(t, Match("/exports/HealthAutoExport-2023-12-31.json", today))
	assert.False(t, Match("/exports/HealthAutoExport-2024-01-01.csv", today))
	assert.False(t, Match("/exports/2024-01-01/export.json", today))
}

func TestHandleIgnoresOtherFiles(t *testing.T) {
	h := newHarness(t, 0)

	out := h.machine.Handle(context.Background(), Event{Path: "/exports/2023-12-31.json"})

	assert.True(t, out.Ignored)
	assert.Equal(t, []State{StateIdle}, out.Trail)
	assert.Empty(t, h.notifier.sent)
}

func TestHandleDeliversNewTennisWorkout(t *testing.T) {
	h := newHarness(t, 0)
	path := "/exports/HealthAutoExport-2024-01-01.json"
	h.write(t, path, exportWith(`{"id":"a","name":"网球训练","duration":200,"start":"2024-01-01 10:00:00"}`))

	out := h.machine.Handle(context.Background(), Event{Path: path})

	require.NoError(t, out.Err)
	assert.Equal(t, CategoryNone, out.Category)
	assert.Equal(t, 1, out.Novel)
	assert.Equal(t, 1, out.Delivered)
	assert.Equal(t, []State{StateDebouncing, StateReading, StateExtracting, StateDispatching, StateIdle}, out.Trail)
	assert.Equal(t, []string{"analysis a"}, h.notifier.sent)
	assert.True(t, h.ledger.Contains("a"))

	again := h.machine.Handle(context.Background(), Event{Path: path})
	assert.Equal(t, CategoryBenign, again.Category)
	assert.ErrorIs(t, again.Err, pipeline.ErrNothingToDo)
	assert.Len(t, h.notifier.sent, 1)
}

func TestHandleShortWorkoutIsNothingToDo(t *testing.T) {
	h := newHarness(t, 0)
	path := "/exports/2024-01-01.json"
	h.write(t, path, exportWith(`{"id":"a","name":"网球训练","duration":150,"start":"2024-01-01 10:00:00"}`))

	out := h.machine.Handle(context.Background(), Event{Path: path})

	assert.ErrorIs(t, out.Err, pipeline.ErrNothingToDo)
	assert.Zero(t, out.Novel)
	assert.Empty(t, h.notifier.sent)
	assert.Empty(t, h.ledger.Snapshot())
}

func TestHandleFailedDeliveryIsRetriedByNextEvent(t *testing.T) {
	h := newHarness(t, 0)
	path := "/exports/2024-01-01.json"
	h.write(t, path, exportWith(`{"id":"a","name":"网球训练","duration":200,"start":"2024-01-01 10:00:00"}`))
	h.notifier.fail = true

	out := h.machine.Handle(context.Background(), Event{Path: path})
	assert.Equal(t, CategoryDelivery, out.Category)
	assert.False(t, h.ledger.Contains("a"))

	h.notifier.fail = false
	out = h.machine.Handle(context.Background(), Event{Path: path})
	assert.Equal(t, CategoryNone, out.Category)
	assert.True(t, h.ledger.Contains("a"))
	assert.Len(t, h.notifier.sent, 2)
}

func TestProcessPersistFailureIsReported(t *testing.T) {
	h := newHarnessWithBackend(t, 0, diskFullBackend{})
	path := "/exports/2024-01-01.json"
	h.write(t, path, exportWith(`{"id":"a","name":"网球训练","duration":200,"start":"2024-01-01 10:00:00"}`))

	out := h.machine.Process(context.Background(), path)

	assert.Equal(t, CategoryPersistence, out.Category)
	assert.ErrorIs(t, out.Err, ledger.ErrPersist)
	assert.Equal(t, 1, out.Delivered)
	assert.True(t, h.ledger.Contains("a"))

	again := h.machine.Process(context.Background(), path)
	assert.Equal(t, CategoryBenign, again.Category)
	assert.Len(t, h.notifier.sent, 1)
}

func TestHandleDebouncesWithClock(t *testing.T) {
	h := newHarness(t, 2*time.Second)
	path := "/exports/2024-01-01.json"
	h.write(t, path, exportWith(`{"id":"a","name":"网球","duration":900,"start":"2024-01-01 09:00:00"}`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan Outcome, 1)
	go func() { done <- h.machine.Handle(ctx, Event{Path: path}) }()

	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	select {
	case <-done:
		t.Fatal("handled before the debounce elapsed")
	default:
	}
	h.clock.Advance(2 * time.Second)

	out := <-done
	require.NoError(t, out.Err)
	assert.Equal(t, 1, out.Delivered)
}

func TestHandleDebounceInterruptedByCancel(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := h.machine.Handle(ctx, Event{Path: "/exports/2024-01-01.json"})

	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, CategoryBenign, out.Category)
	assert.Equal(t, []State{StateDebouncing, StateIdle}, out.Trail)
}

func TestProcessFallsBackOnPrimaryFailure(t *testing.T) {
	h := newHarness(t, 0)
	path := "/exports/2024-01-01.json"
	h.write(t, path, exportWith(`{"id":"a","name":"网球","duration":900,"start":"2024-01-01 09:00:00"}`))
	h.machine.loader = reader.Chain{Primary: brokenReader{}, Fallback: reader.NewFSReader(h.fs)}

	out := h.machine.Process(context.Background(), path)

	require.NoError(t, out.Err)
	assert.Equal(t, []State{StateReading, StateFallbackRead, StateExtracting, StateDispatching, StateIdle}, out.Trail)
}

func TestProcessReadFailures(t *testing.T) {
	h := newHarness(t, 0)
	h.write(t, "/exports/bad.json", `{"data":`)

	missing := h.machine.Process(context.Background(), "/exports/gone.json")
	assert.Equal(t, CategoryBenign, missing.Category)

	malformed := h.machine.Process(context.Background(), "/exports/bad.json")
	assert.Equal(t, CategoryMalformed, malformed.Category)

	h.machine.loader = reader.Chain{Primary: brokenReader{}, Fallback: brokenReader{}}
	broken := h.machine.Process(context.Background(), "/exports/any.json")
	assert.Equal(t, CategoryTransient, broken.Category)
	var readErr *reader.ReadError
	assert.ErrorAs(t, broken.Err, &readErr)
}

func TestProcessRecoversPanics(t *testing.T) {
	h := newHarness(t, 0)
	path := "/exports/2024-01-01.json"
	h.write(t, path, exportWith(""))
	h.machine.dispatcher = panickingDispatcher{}

	out := h.machine.Process(context.Background(), path)

	assert.Equal(t, CategoryUnexpected, out.Category)
	assert.Equal(t, StateIdle, out.Trail[len(out.Trail)-1])
}

func TestRunContinuesAfterFailures(t *testing.T) {
	h := newHarness(t, 0)
	good := "/exports/2024-01-01-b.json"
	h.write(t, "/exports/2024-01-01-a.json", `not json`)
	h.write(t, good, exportWith(`{"id":"a","name":"网球","duration":900,"start":"2024-01-01 09:00:00"}`))

	events := make(chan Event, 3)
	events <- Event{Path: "/exports/2024-01-01-a.json"}
	events <- Event{Path: "/exports/readme.txt"}
	events <- Event{Path: good}
	close(events)

	h.machine.Run(context.Background(), events)

	assert.True(t, h.ledger.Contains("a"))
}
