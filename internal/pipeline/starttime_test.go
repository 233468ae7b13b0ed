package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestStartTimeSlotRecordsFirstMarkOnly(t *testing.T) {
	var slot StartTimeSlot

	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !slot.TryMark(first) {
		t.Fatal("first mark should win the slot")
	}
	if slot.TryMark(first.Add(time.Second)) {
		t.Fatal("second mark should be ignored")
	}

	got, ok := slot.Get()
	if !ok || !got.Equal(first) {
		t.Fatalf("slot holds %v (%v), want %v", got, ok, first)
	}
}

func TestWaitStartTimesReturnsBothMarks(t *testing.T) {
	var audio, video StartTimeSlot
	at := time.Now()
	vt := at.Add(80 * time.Millisecond)

	audio.TryMark(at)
	go func() {
		time.Sleep(20 * time.Millisecond)
		video.TryMark(vt)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	gotA, gotV, err := WaitStartTimes(ctx, &audio, &video, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !gotA.Equal(at) || !gotV.Equal(vt) {
		t.Fatalf("got %v/%v, want %v/%v", gotA, gotV, at, vt)
	}
}

func TestWaitStartTimesTimesOutOnSilentStream(t *testing.T) {
	var audio, video StartTimeSlot
	audio.TryMark(time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, _, err := WaitStartTimes(ctx, &audio, &video, 5*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout when video never marks")
	}
}

func TestSkewDelaysTheEarlierStream(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		audio      time.Time
		video      time.Time
		wantOffset time.Duration
		wantTarget SkewTarget
	}{
		{
			name:       "audio first",
			audio:      base.Add(100 * time.Millisecond),
			video:      base.Add(180 * time.Millisecond),
			wantOffset: 80 * time.Millisecond,
			wantTarget: SkewAudio,
		},
		{
			name:       "video first",
			audio:      base.Add(250 * time.Millisecond),
			video:      base.Add(100 * time.Millisecond),
			wantOffset: 150 * time.Millisecond,
			wantTarget: SkewVideo,
		},
		{
			name:       "simultaneous",
			audio:      base,
			video:      base,
			wantOffset: 0,
			wantTarget: SkewNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, target := Skew(tt.audio, tt.video)
			if offset != tt.wantOffset || target != tt.wantTarget {
				t.Fatalf("Skew = %v/%v, want %v/%v", offset, target, tt.wantOffset, tt.wantTarget)
			}
		})
	}
}
