package xarm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Violation names the constraint a rejected motion ran into.
type Violation string

const (
	JointLimitViolation    Violation = "joint_limit"
	WorkspaceViolation     Violation = "workspace"
	SelfCollisionViolation Violation = "self_collision"
	TrackLimitViolation    Violation = "track_limit"
	SpeedLimitViolation    Violation = "speed_limit"
)

// ValidationError is a safety validator rejection. Always recoverable: the
// caller corrects the input and retries. It never mutates component state.
type ValidationError struct {
	Violation Violation
	Detail    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Violation, e.Detail)
}

// HardwareError wraps a non-zero result code from the transport. The recovery
// table classifies codes as retryable or fatal.
type HardwareError struct {
	Code      int
	Op        string
	Component ComponentKind
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("%s failed: hardware code %d", e.Op, e.Code)
}

// ConnectionError means the transport is unreachable. Fatal to the session;
// the caller must re-initialize.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("connection failed: %v", e.Err)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports that a threshold-controlled move hit its deadline
// before the condition fired. Motion has already been stopped.
type TimeoutError struct {
	Op       string
	Deadline string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Deadline)
}

var (
	// ErrComponentUnavailable is returned when an operation targets a
	// component that was not configured (e.g. gripper kind "none").
	ErrComponentUnavailable = errors.New("component not configured")

	// ErrComponentNotEnabled gates motion commands on components that have
	// not reached the enabled state.
	ErrComponentNotEnabled = errors.New("component not enabled")

	// ErrSensorNotEnabled is the force/torque flavor of the gate, kept
	// distinct so calibration failures are unambiguous.
	ErrSensorNotEnabled = errors.New("force/torque sensor not enabled")

	// ErrNotCalibrated gates threshold-controlled moves on a prior zero
	// point calibration.
	ErrNotCalibrated = errors.New("force/torque sensor not calibrated")

	// ErrBusy is returned when a component is asked to disable while a
	// motion referencing it is still in flight and cannot be stopped.
	ErrBusy = errors.New("component busy")

	// ErrCancelled is the outcome of an in-flight wait interrupted by
	// StopMotion rather than by its own timeout.
	ErrCancelled = errors.New("motion cancelled")

	// ErrNotConnected is returned by transport methods before Connect.
	ErrNotConnected = errors.New("not connected")

	// ErrUnknownLocation is returned for a named location missing from the
	// location table.
	ErrUnknownLocation = errors.New("unknown named location")
)

// IsRecoverable reports whether the caller can retry after correcting input,
// as opposed to faults requiring recovery or re-initialization.
func IsRecoverable(err error) bool {
	var ve *ValidationError
	var te *TimeoutError
	switch {
	case errors.As(err, &ve), errors.As(err, &te):
		return true
	case errors.Is(err, ErrComponentUnavailable),
		errors.Is(err, ErrComponentNotEnabled),
		errors.Is(err, ErrSensorNotEnabled),
		errors.Is(err, ErrBusy),
		errors.Is(err, ErrCancelled):
		return true
	}
	return false
}
