package capture

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/streamcap/agent/internal/pipeline"
)

type stubCapturer struct {
	frames atomic.Int32
}

func (s *stubCapturer) Frame() ([]byte, error) {
	s.frames.Add(1)
	return make([]byte, 16), nil
}

func (s *stubCapturer) Bounds() (int, int) { return 2, 2 }
func (s *stubCapturer) Close() error       { return nil }

func TestRunScreenLoopStopsBeforeRelayClose(t *testing.T) {
	sc := &stubCapturer{}
	relay := pipeline.NewRelay("video", 256)
	var slot pipeline.StartTimeSlot
	var stop atomic.Bool

	done := make(chan struct{})
	go func() {
		RunScreenLoop(sc, relay, &slot, 120, &stop)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := slot.Get(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("loop never captured a first frame")
		}
		time.Sleep(time.Millisecond)
	}

	stop.Store(true)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on the stop flag")
	}

	// The loop has exited, so closing the relay cannot race a producer.
	relay.Close()

	delivered := 0
	for {
		if _, ok := relay.Next(); !ok {
			break
		}
		delivered++
	}
	if delivered == 0 {
		t.Fatal("no frames reached the relay")
	}
}
