package session

import "errors"

// Setup-time failures abort Start and leave no partially started pipeline.
// Steady-state failures (broken pipes, individual uploads) never surface
// here; they are logged and isolated to their stream.
var (
	// ErrDataDirNotSet means the recorder has no data directory configured.
	ErrDataDirNotSet = errors.New("data directory is not set")

	// ErrAlreadyRecording means Start was called while a session is live.
	ErrAlreadyRecording = errors.New("a recording session is already active")

	// ErrSyncTimeout means a capture source never delivered its first
	// sample, so the start-time offset could not be resolved.
	ErrSyncTimeout = errors.New("timed out waiting for first capture samples")

	// ErrEncoderStart means an encoder process failed to spawn.
	ErrEncoderStart = errors.New("encoder process failed to start")
)
