// Package capture is a driver-independent camera capture API.
//
// A Backend adapts one capture technology (V4L2, a synthetic test camera).
// Session and AsyncSession drive a Backend through the same stream state
// machine: the stream is Closed or Open, format changes on an open stream are
// applied as stop, apply, reopen, and every cached format is the one the
// backend acknowledged. A failure anywhere in that sequence leaves the stream
// Closed.
//
// SetCameraControl reads the control descriptor from the backend to validate
// the value; a value that fails validation is never written.
//
// Frame on a closed stream is rejected unless the session was built with
// FramePolicyAutoOpen. OneShot opens and stops the stream around a single
// capture when it is closed, and always attempts the stop.
//
// Each device may be claimed by one session at a time, enforced by a
// Registry.
package capture
