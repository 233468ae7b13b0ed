package capture

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/streamcap/agent/internal/pipeline"
)

// RunScreenLoop polls the capturer at the requested framerate and offers
// each frame to the relay, marking the stream start time on the first
// successful grab. It runs until the stop flag flips.
//
// The loop owns a dedicated OS thread: its pacing uses blocking sleeps and
// must not be descheduled with the rest of the runtime's goroutines during
// long grabs.
func RunScreenLoop(cap ScreenCapturer, relay *pipeline.Relay, slot *pipeline.StartTimeSlot, fps int, stop *atomic.Bool) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if fps <= 0 {
		fps = 30
	}
	interval := time.Second / time.Duration(fps)

	frames := 0
	started := time.Now()
	next := time.Now().Add(interval)

	for !stop.Load() {
		if now := time.Now(); now.Before(next) {
			time.Sleep(next.Sub(now))
			continue
		}
		next = next.Add(interval)

		frame, err := cap.Frame()
		if err != nil {
			log.Error("screen capture failed, stopping video source", "error", err)
			break
		}
		slot.TryMark(time.Now())
		relay.Offer(frame)
		frames++
	}

	if elapsed := time.Since(started).Seconds(); elapsed > 0 {
		log.Info("screen capture loop finished", "frames", frames, "fps", float64(frames)/elapsed)
	}
}
