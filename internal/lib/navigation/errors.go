package navigation

import (
	"errors"
	"fmt"
)

var (
	// ErrPositionUnavailable is returned when the live position source cannot
	// be subscribed to, or produces no first sample in time.
	ErrPositionUnavailable = errors.New("position unavailable")

	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidSpeed is returned for a simulation speed multiplier other than
	// 1, 2, 5 or 10.
	ErrInvalidSpeed = errors.New("invalid speed multiplier")
)

// TransitionError reports an operation invoked from a state that does not
// allow it.
type TransitionError struct {
	From State
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from %s", ErrInvalidTransition, e.Op, e.From)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
