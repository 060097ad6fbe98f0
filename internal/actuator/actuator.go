// Package actuator defines the output boundary of the positioning
// controller: a device that accepts relative motion deltas. The
// controller never issues absolute-position commands.
//
// Two implementations ship with the package: a mock with scripted
// failures and position feedback for tests and simulation, and a
// serial adapter for microcontroller-driven pointer hardware.
package actuator

import "errors"

// Actuator applies a relative motion to the pointer device. A non-nil
// error means the device reported failure for this delta; the caller
// decides whether and when to retry.
type Actuator interface {
	ApplyRelativeMotion(dx, dy float64) error
}

// PositionReporter is an optional capability: actuators that can read
// back the current pointer position implement it, enabling the fine
// movement stage to re-sample before issuing its correction.
type PositionReporter interface {
	Position() (x, y float64)
}

// ErrNotReady is returned when the device is not initialised or has
// been closed.
var ErrNotReady = errors.New("actuator: device not ready")

// ErrRejected is returned when the device accepted the write but
// reported that it could not execute the motion.
var ErrRejected = errors.New("actuator: motion rejected by device")
