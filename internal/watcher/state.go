package watcher

import "time"

// State is a step of the per-event state machine.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateReading
	StateFallbackRead
	StateExtracting
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateReading:
		return "reading"
	case StateFallbackRead:
		return "fallback_read"
	case StateExtracting:
		return "extracting"
	case StateDispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}

// Event is a change notification for one file.
type Event struct {
	Path    string
	ModTime time.Time
}

// Outcome describes how the machine handled one event.
type Outcome struct {
	Path      string
	Ignored   bool
	Trail     []State
	Novel     int
	Delivered int
	Category  Category
	Err       error
}
