package state

import (
	"errors"
	"fmt"
)

// Contract violations. These are wrapped in a *ContractError and raised with
// panic.
var (
	// ErrAllocationClosed indicates an allocation after the owning subsystem
	// passed the stage that closes that resource class.
	ErrAllocationClosed = errors.New("state: allocation closed")

	// ErrOutOfOrderStage indicates a stage advance that skipped or repeated a stage.
	ErrOutOfOrderStage = errors.New("state: stage advanced out of order")

	// ErrStageTooLow indicates access below the quantity's defining stage.
	ErrStageTooLow = errors.New("state: stage too low")

	// ErrInvalidStage indicates a stage tag that is not allowed for the resource.
	ErrInvalidStage = errors.New("state: invalid stage")

	// ErrInvalidIndex indicates a bad subsystem, slot or size argument.
	ErrInvalidIndex = errors.New("state: invalid index")

	// ErrNilValue indicates a nil discrete or cache value.
	ErrNilValue = errors.New("state: nil value")
)

// ContractError describes a broken contract between a State, its subsystems
// and the driver. Subsystem is -1 for system-wide operations.
type ContractError struct {
	Op        string
	Subsystem int
	Err       error
	Msg       string
}

func (e *ContractError) Error() string {
	if e.Subsystem < 0 {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Err, e.Msg)
	}
	return fmt.Sprintf("%s (subsystem %d): %s: %s", e.Op, e.Subsystem, e.Err, e.Msg)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

func violate(op string, subsys int, err error, format string, args ...any) {
	panic(&ContractError{Op: op, Subsystem: subsys, Err: err, Msg: fmt.Sprintf(format, args...)})
}

// Catch runs fn and returns the *ContractError it panicked with, if any.
// Other panics propagate. It exists for diagnostics and tests; production
// drivers let contract violations crash.
func Catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(*ContractError)
			if !ok {
				panic(r)
			}
			err = ce
		}
	}()
	fn()
	return nil
}
