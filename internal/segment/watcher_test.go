package segment

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streamcap/agent/internal/encoder"
	"github.com/streamcap/agent/internal/uploader"
	"github.com/streamcap/agent/internal/workerpool"
)

// fakeUploader counts uploads per base filename and can hold them open until
// released, to exercise the drain guarantees.
type fakeUploader struct {
	mu      sync.Mutex
	counts  map[string]int
	release chan struct{} // nil means uploads complete immediately
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{counts: make(map[string]int)}
}

func (f *fakeUploader) Upload(ctx context.Context, localPath string, kind uploader.Kind) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[filepath.Base(localPath)]++
	return nil
}

func (f *fakeUploader) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}

func writeSegment(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("segment-data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func appendManifest(t *testing.T, dir string, names ...string) {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(dir, encoder.ManifestName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, name := range names {
		if _, err := f.WriteString(name + "\n"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWatcherUploadsEachSegmentExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	up := newFakeUploader()
	pool := workerpool.New(2, 16)
	defer pool.Shutdown(context.Background())

	var shutdown, drained atomic.Bool

	writeSegment(t, dir, "audio_recording_000.aac")
	writeSegment(t, dir, "audio_recording_001.aac")
	appendManifest(t, dir, "audio_recording_000.aac", "audio_recording_001.aac")

	w := NewWatcher(dir, uploader.KindAudio, up, pool, 10*time.Millisecond, &shutdown, &drained)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	// Let several polling passes re-read the same manifest lines.
	time.Sleep(60 * time.Millisecond)

	// A new segment appears mid-recording.
	writeSegment(t, dir, "audio_recording_002.aac")
	appendManifest(t, dir, "audio_recording_002.aac")
	time.Sleep(60 * time.Millisecond)

	shutdown.Store(true)
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, name := range []string{"audio_recording_000.aac", "audio_recording_001.aac", "audio_recording_002.aac"} {
		if got := up.count(name); got != 1 {
			t.Errorf("%s uploaded %d times, want exactly 1", name, got)
		}
	}
	if !drained.Load() {
		t.Fatal("drain flag not set after run")
	}
}

func TestWatcherFinalPassCatchesSegmentsFlushedAtShutdown(t *testing.T) {
	dir := t.TempDir()
	up := newFakeUploader()
	pool := workerpool.New(2, 16)
	defer pool.Shutdown(context.Background())

	var shutdown, drained atomic.Bool

	// The encoder flushes its last segment as the session stops; the flag is
	// already up when the watcher looks again.
	writeSegment(t, dir, "video_recording_000.ts")
	appendManifest(t, dir, "video_recording_000.ts")
	shutdown.Store(true)

	w := NewWatcher(dir, uploader.KindVideo, up, pool, 10*time.Millisecond, &shutdown, &drained)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := up.count("video_recording_000.ts"); got != 1 {
		t.Fatalf("final-pass segment uploaded %d times, want 1", got)
	}
	if !drained.Load() {
		t.Fatal("drain flag not set after final pass")
	}
}

func TestWatcherSkipsListedSegmentMissingFromDisk(t *testing.T) {
	dir := t.TempDir()
	up := newFakeUploader()
	pool := workerpool.New(1, 4)
	defer pool.Shutdown(context.Background())

	var shutdown, drained atomic.Bool
	appendManifest(t, dir, "audio_recording_000.aac") // listed, never written
	shutdown.Store(true)

	w := NewWatcher(dir, uploader.KindAudio, up, pool, 10*time.Millisecond, &shutdown, &drained)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := up.count("audio_recording_000.aac"); got != 0 {
		t.Fatalf("missing segment uploaded %d times", got)
	}
	// Still marked observed, so it will not be retried later.
	if w.Seen() != 1 {
		t.Fatalf("seen = %d, want 1", w.Seen())
	}
}

func TestWatcherWaitsForInflightUploadsBeforeDraining(t *testing.T) {
	dir := t.TempDir()
	up := newFakeUploader()
	up.release = make(chan struct{})
	pool := workerpool.New(2, 16)
	defer pool.Shutdown(context.Background())

	var shutdown, drained atomic.Bool
	writeSegment(t, dir, "audio_recording_000.aac")
	appendManifest(t, dir, "audio_recording_000.aac")
	shutdown.Store(true)

	w := NewWatcher(dir, uploader.KindAudio, up, pool, 10*time.Millisecond, &shutdown, &drained)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	if drained.Load() {
		t.Fatal("drained while an upload was still in flight")
	}

	close(up.release)
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if !drained.Load() {
		t.Fatal("drain flag not set after upload completed")
	}
	if got := up.count("audio_recording_000.aac"); got != 1 {
		t.Fatalf("upload count = %d, want 1", got)
	}
}

func TestWatcherSurvivesMissingManifest(t *testing.T) {
	dir := t.TempDir()
	up := newFakeUploader()
	pool := workerpool.New(1, 4)
	defer pool.Shutdown(context.Background())

	var shutdown, drained atomic.Bool
	shutdown.Store(true) // no manifest was ever created

	w := NewWatcher(dir, uploader.KindAudio, up, pool, 10*time.Millisecond, &shutdown, &drained)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !drained.Load() {
		t.Fatal("watcher must drain even when the manifest never appeared")
	}
}
