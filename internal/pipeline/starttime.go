package pipeline

import (
	"context"
	"sync"
	"time"
)

// StartTimeSlot records the instant a stream delivered its first sample.
// Single writer (the capture callback), read by the start-time resolver.
// Once set the value never changes.
type StartTimeSlot struct {
	mu  sync.Mutex
	t   time.Time
	set bool
}

// TryMark records now as the stream start time if the slot is empty. The
// write is best-effort: if the lock is momentarily contended the attempt is
// skipped, since only the first timestamp matters and the callback must not
// stall. Returns true when this call set the slot.
func (s *StartTimeSlot) TryMark(now time.Time) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	if s.set {
		return false
	}
	s.t = now
	s.set = true
	return true
}

// Get returns the recorded start time, if any.
func (s *StartTimeSlot) Get() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t, s.set
}

// SkewTarget identifies which stream's encoder invocation must be delayed
// to line the two streams up in wall-clock time.
type SkewTarget int

const (
	// SkewNone means the streams started at the same instant.
	SkewNone SkewTarget = iota
	// SkewAudio means audio started first and its encoder is delayed.
	SkewAudio
	// SkewVideo means video started first and its encoder is delayed.
	SkewVideo
)

// WaitStartTimes polls both slots every interval until each holds a value,
// then returns them. It gives up when ctx expires, which covers a capture
// source that never produces a first sample.
func WaitStartTimes(ctx context.Context, audio, video *StartTimeSlot, interval time.Duration) (time.Time, time.Time, error) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		at, aok := audio.Get()
		vt, vok := video.Get()
		if aok && vok {
			return at, vt, nil
		}
		select {
		case <-ctx.Done():
			return time.Time{}, time.Time{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Skew computes the wall-clock offset between the two stream start times and
// which invocation should absorb it. The later-starting stream needs no
// delay; the earlier one is shifted forward by the difference so the first
// samples of both line up. Equal timestamps yield SkewNone.
func Skew(audioStart, videoStart time.Time) (time.Duration, SkewTarget) {
	switch {
	case audioStart.After(videoStart):
		return audioStart.Sub(videoStart), SkewVideo
	case videoStart.After(audioStart):
		return videoStart.Sub(audioStart), SkewAudio
	default:
		return 0, SkewNone
	}
}
