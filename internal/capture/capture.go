// Package capture owns the two capture drivers feeding a recording session:
// a polling screen grabber and a callback-driven audio input. Both hand raw
// buffers to the pipeline relays and never block on a slow consumer.
package capture

import (
	"errors"
	"runtime"

	"github.com/streamcap/agent/internal/logging"
)

var log = logging.L("capture")

var (
	// ErrNotSupported is returned when the current OS has no capture backend.
	ErrNotSupported = errors.New("capture not supported on this platform")
	// ErrNoDisplay is returned when no active display exists to record.
	ErrNoDisplay = errors.New("no display found")
	// ErrNoDevice is returned when no usable audio input device exists.
	ErrNoDevice = errors.New("no audio input device found")
)

// platformSupported reports whether this OS has both capture backends.
func platformSupported() bool {
	switch runtime.GOOS {
	case "darwin", "windows", "linux":
		return true
	default:
		return false
	}
}
