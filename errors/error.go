package errors

import (
	"fmt"
)

// NoMoreFramesError occurs when a FrameReader is asked for a frame after it has already reported its end
type NoMoreFramesError struct{}

// Error returns a textual representation of this NoMoreFramesError
func (e NoMoreFramesError) Error() string {
	return "No more frames"
}

// FrameSizeError occurs when a buffer of the wrong size is used as a frame
type FrameSizeError struct {
	Expected int
	Actual   int
}

// Error returns a textual representation of this FrameSizeError
func (e FrameSizeError) Error() string {
	return fmt.Sprintf("Frame size %d does not match expected frame size %d", e.Actual, e.Expected)
}

// TupleTooLargeError occurs when a tuple cannot fit into an empty frame
type TupleTooLargeError struct {
	Size      int
	FrameSize int
}

// Error returns a textual representation of this TupleTooLargeError
func (e TupleTooLargeError) Error() string {
	return fmt.Sprintf("Tuple of %d bytes does not fit in a frame of %d bytes", e.Size, e.FrameSize)
}

// DataExchangeError occurs when a synchronous read from a run fails
type DataExchangeError struct {
	Run int
	Err error
}

// Error returns a textual representation of this DataExchangeError
func (e DataExchangeError) Error() string {
	return fmt.Sprintf("Unable to read frame from run %d: %v", e.Run, e.Err)
}

// Unwrap returns the underlying read error
func (e DataExchangeError) Unwrap() error {
	return e.Err
}

// AlreadyActivatedError occurs when prediction is activated twice on the same collection
type AlreadyActivatedError struct{}

// Error returns a textual representation of this AlreadyActivatedError
func (e AlreadyActivatedError) Error() string {
	return "Prediction has already been activated for this collection"
}

// CollectionClosedError occurs when a frame reader collection is used after it has been closed
type CollectionClosedError struct{}

// Error returns a textual representation of this CollectionClosedError
func (e CollectionClosedError) Error() string {
	return "Frame reader collection is closed"
}

// MissingOperatorMappingError occurs when the job builder cannot find a physical operator for a logical one
type MissingOperatorMappingError struct{ Operator string }

// Error returns a textual representation of this MissingOperatorMappingError
func (e MissingOperatorMappingError) Error() string {
	return fmt.Sprintf("Could not generate operator descriptor for operator %s", e.Operator)
}

// CountConstraintError occurs when a count-only partition constraint reaches rack-aware rewriting
type CountConstraintError struct{ Operator string }

// Error returns a textual representation of this CountConstraintError
func (e CountConstraintError) Error() string {
	return fmt.Sprintf("Count partition constraint is not allowed for rack-aware rewriting of %s", e.Operator)
}

// ConstraintAlreadySetError occurs when a partition constraint is resolved twice for the same operator
type ConstraintAlreadySetError struct{ Operator string }

// Error returns a textual representation of this ConstraintAlreadySetError
func (e ConstraintAlreadySetError) Error() string {
	return fmt.Sprintf("Partition constraint for %s has already been set", e.Operator)
}

// UnknownTerminalError occurs when a location is not present in the cluster topology
type UnknownTerminalError struct{ Location string }

// Error returns a textual representation of this UnknownTerminalError
func (e UnknownTerminalError) Error() string {
	return fmt.Sprintf("Location %s is not a network terminal of the cluster topology", e.Location)
}

// UnknownCodecError occurs when a run file codec name is not recognized
type UnknownCodecError struct{ Name string }

// Error returns a textual representation of this UnknownCodecError
func (e UnknownCodecError) Error() string {
	return fmt.Sprintf("Unknown run file codec %q", e.Name)
}
