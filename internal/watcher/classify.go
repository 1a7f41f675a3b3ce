package watcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentworkforce/courtwatch/internal/ledger"
	"github.com/agentworkforce/courtwatch/internal/pipeline"
	"github.com/agentworkforce/courtwatch/internal/reader"
	"github.com/agentworkforce/courtwatch/internal/workout"
)

// Category groups errors by how the monitor reacts to them.
type Category int

const (
	CategoryNone Category = iota
	CategoryBenign
	CategoryTransient
	CategoryMalformed
	CategoryDelivery
	CategoryPersistence
	CategoryUnexpected
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryBenign:
		return "benign"
	case CategoryTransient:
		return "transient"
	case CategoryMalformed:
		return "malformed"
	case CategoryDelivery:
		return "delivery"
	case CategoryPersistence:
		return "persistence"
	default:
		return "unexpected"
	}
}

// PanicError carries a recovered panic out of the pipeline.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return CategoryUnexpected
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pipeline.ErrNothingToDo) {
		return CategoryBenign
	}
	var readErr *reader.ReadError
	if errors.As(err, &readErr) {
		switch {
		case readErr.Absent():
			return CategoryBenign
		case readErr.Fallback != nil && errors.Is(readErr.Fallback, workout.ErrMalformedDocument):
			return CategoryMalformed
		case readErr.Fallback == nil && errors.Is(readErr.Primary, workout.ErrMalformedDocument):
			return CategoryMalformed
		default:
			return CategoryTransient
		}
	}
	if errors.Is(err, workout.ErrMalformedDocument) {
		return CategoryMalformed
	}
	if errors.Is(err, pipeline.ErrDeliveryFailed) {
		return CategoryDelivery
	}
	if errors.Is(err, ledger.ErrPersist) {
		return CategoryPersistence
	}
	return CategoryUnexpected
}
