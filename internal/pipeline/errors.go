package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrNothingToDo    = errors.New("no new workouts")
	ErrDeliveryFailed = errors.New("delivery failed")
)

// DeliveryError reports a workout whose notification was not confirmed. The workout stays
// uncommitted and is picked up again by the next file event.
type DeliveryError struct {
	WorkoutID string
	Detail    string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver workout %s: %s", e.WorkoutID, e.Detail)
}

func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}
