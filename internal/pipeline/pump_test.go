package pipeline

import (
	"errors"
	"testing"
)

type recordingWriter struct {
	writes [][]byte
	failAt int // 1-based write index that errors, 0 means never
}

func (w *recordingWriter) WriteInput(p []byte) error {
	w.writes = append(w.writes, p)
	if w.failAt > 0 && len(w.writes) >= w.failAt {
		return errors.New("broken pipe")
	}
	return nil
}

func TestPumpWritesEveryBufferInOrder(t *testing.T) {
	r := NewRelay("audio", 8)
	for i := byte(0); i < 4; i++ {
		r.Offer([]byte{i})
	}
	r.Close()

	w := &recordingWriter{}
	if err := Pump("audio", r, w); err != nil {
		t.Fatalf("pump on closed relay: %v", err)
	}

	if len(w.writes) != 4 {
		t.Fatalf("wrote %d buffers, want 4", len(w.writes))
	}
	for i, buf := range w.writes {
		if buf[0] != byte(i) {
			t.Fatalf("write %d out of order: got %d", i, buf[0])
		}
	}
}

func TestPumpStopsOnWriteError(t *testing.T) {
	r := NewRelay("video", 8)
	for i := byte(0); i < 4; i++ {
		r.Offer([]byte{i})
	}
	r.Close()

	w := &recordingWriter{failAt: 2}
	err := Pump("video", r, w)
	if err == nil {
		t.Fatal("expected write error to surface")
	}
	if len(w.writes) != 2 {
		t.Fatalf("pump kept writing after failure: %d writes", len(w.writes))
	}
}

func TestPumpFlushesBuffersQueuedBeforeClose(t *testing.T) {
	r := NewRelay("audio", 8)
	r.Offer([]byte{42})
	r.Close()

	w := &recordingWriter{}
	if err := Pump("audio", r, w); err != nil {
		t.Fatalf("pump: %v", err)
	}
	if len(w.writes) != 1 || w.writes[0][0] != 42 {
		t.Fatalf("buffered data lost at close: %v", w.writes)
	}
}
