package encoder

import (
	"errors"
	"testing"
)

// fakeProcess records lifecycle calls against a shared sequence so tests can
// assert ordering across both encoders.
type fakeProcess struct {
	kind string
	seq  *[]string

	closeErr error
	killErr  error
}

func (f *fakeProcess) WriteInput(b []byte) error {
	*f.seq = append(*f.seq, f.kind+":write")
	return nil
}

func (f *fakeProcess) CloseInput() error {
	*f.seq = append(*f.seq, f.kind+":close")
	return f.closeErr
}

func (f *fakeProcess) Kill() error {
	*f.seq = append(*f.seq, f.kind+":kill")
	return f.killErr
}

func TestShutdownClosesBothInputsBeforeKilling(t *testing.T) {
	var seq []string
	s := &Supervisor{
		audio: &fakeProcess{kind: "audio", seq: &seq},
		video: &fakeProcess{kind: "video", seq: &seq},
	}

	if err := s.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	want := []string{"audio:close", "video:close", "audio:kill", "video:kill"}
	if len(seq) != len(want) {
		t.Fatalf("sequence %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("step %d = %q, want %q (full: %v)", i, seq[i], want[i], seq)
		}
	}
}

func TestShutdownRunsEveryStepDespiteFailures(t *testing.T) {
	var seq []string
	closeErr := errors.New("pipe already closed")
	killErr := errors.New("no such process")
	s := &Supervisor{
		audio: &fakeProcess{kind: "audio", seq: &seq, closeErr: closeErr},
		video: &fakeProcess{kind: "video", seq: &seq, killErr: killErr},
	}

	err := s.Shutdown()
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if !errors.Is(err, closeErr) || !errors.Is(err, killErr) {
		t.Fatalf("aggregate error missing causes: %v", err)
	}
	if len(seq) != 4 {
		t.Fatalf("a failing step halted shutdown: %v", seq)
	}
}

func TestShutdownWithNoProcesses(t *testing.T) {
	s := NewSupervisor("ffmpeg")
	if err := s.Shutdown(); err != nil {
		t.Fatalf("shutdown before start: %v", err)
	}
}
