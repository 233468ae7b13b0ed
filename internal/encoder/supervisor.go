package encoder

import (
	"errors"
	"fmt"
)

// managedProcess is the slice of Process the supervisor needs. Narrowed to
// an interface so shutdown ordering is testable with doubles.
type managedProcess interface {
	WriteInput(b []byte) error
	CloseInput() error
	Kill() error
}

// Supervisor owns the two encoder processes of a session. It spawns them
// from their resolved invocations and tears them down in the only safe
// order: close both stdin pipes first so each encoder flushes its final
// segment, then kill.
type Supervisor struct {
	binary string
	audio  managedProcess
	video  managedProcess
}

// NewSupervisor creates a supervisor using the given ffmpeg binary.
func NewSupervisor(binary string) *Supervisor {
	return &Supervisor{binary: binary}
}

// StartAll spawns the audio and video encoders. On a partial failure the
// already-running process is torn down before returning.
func (s *Supervisor) StartAll(audioInv, videoInv *Invocation) error {
	audio, err := StartProcess(s.binary, audioInv)
	if err != nil {
		return err
	}
	video, err := StartProcess(s.binary, videoInv)
	if err != nil {
		_ = audio.CloseInput()
		_ = audio.Kill()
		return err
	}
	s.audio = audio
	s.video = video
	return nil
}

// AudioInput returns the writer for the audio encoder's stdin.
func (s *Supervisor) AudioInput() interface{ WriteInput([]byte) error } { return s.audio }

// VideoInput returns the writer for the video encoder's stdin.
func (s *Supervisor) VideoInput() interface{ WriteInput([]byte) error } { return s.video }

// Shutdown closes both input pipes, then kills both processes. Every step
// runs regardless of earlier failures; the aggregate error is returned.
func (s *Supervisor) Shutdown() error {
	var errs []error
	for _, p := range []struct {
		kind string
		proc managedProcess
	}{{"audio", s.audio}, {"video", s.video}} {
		if p.proc == nil {
			continue
		}
		if err := p.proc.CloseInput(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s encoder input: %w", p.kind, err))
		}
	}
	for _, p := range []struct {
		kind string
		proc managedProcess
	}{{"audio", s.audio}, {"video", s.video}} {
		if p.proc == nil {
			continue
		}
		if err := p.proc.Kill(); err != nil {
			errs = append(errs, fmt.Errorf("terminating %s encoder: %w", p.kind, err))
		}
	}
	return errors.Join(errs...)
}
