package flash

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfiguration is returned before a pass starts when the engine config is unusable.
	ErrInvalidConfiguration = errors.New("flash: invalid configuration")
	// ErrMalformedBar aborts a run on a bar that cannot be processed as given.
	ErrMalformedBar = errors.New("flash: malformed bar")
	// ErrDegenerateOutcome flags a closed flash whose outcome ratios have no valid denominator.
	ErrDegenerateOutcome = errors.New("flash: degenerate outcome")
	// ErrRegistryExhausted is returned when the active population would exceed MaxActive.
	ErrRegistryExhausted = errors.New("flash: active registry exhausted")
)

// BarError carries the position of the bar that stopped the pass.
type BarError struct {
	Index  int
	Time   time.Time
	Reason string
	Err    error
}

func (e *BarError) Error() string {
	return fmt.Sprintf("%v at bar %d (%s): %s", e.Err, e.Index, e.Time.Format(time.RFC3339), e.Reason)
}

func (e *BarError) Unwrap() error { return e.Err }

// OutcomeError identifies the closed flash whose outcome could not be computed.
type OutcomeError struct {
	FlashID    int
	OriginTime time.Time
	Reason     string
}

func (e *OutcomeError) Error() string {
	return fmt.Sprintf("%v: flash %d (%s): %s", ErrDegenerateOutcome, e.FlashID, e.OriginTime.Format(time.RFC3339), e.Reason)
}

func (e *OutcomeError) Unwrap() error { return ErrDegenerateOutcome }
