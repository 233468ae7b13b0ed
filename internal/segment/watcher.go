package segment

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamcap/agent/internal/encoder"
	"github.com/streamcap/agent/internal/uploader"
	"github.com/streamcap/agent/internal/workerpool"
)

// DefaultPollInterval is the manifest polling cadence while recording.
const DefaultPollInterval = 500 * time.Millisecond

// Watcher polls one stream's manifest, dispatching an upload exactly once
// per newly listed segment. Lifecycle: running passes every poll interval;
// when the stop flag flips (the coordinator raises it once the encoder has
// terminated and the manifest is final), one last pass catches segments
// flushed on the way out, all dispatched uploads are awaited, and only then
// is the stream's drain flag set.
type Watcher struct {
	dir      string
	kind     uploader.Kind
	interval time.Duration

	up   uploader.Uploader
	pool *workerpool.Pool

	shutdown *atomic.Bool // session-wide, read-only here
	drained  *atomic.Bool // per-stream, written once on completion

	seen     map[string]struct{}
	inflight sync.WaitGroup
}

// NewWatcher creates a watcher over the chunk directory for one stream.
// shutdown and drained are session-scoped flags owned by the coordinator;
// shutdown must not flip before the encoder has finished writing.
func NewWatcher(dir string, kind uploader.Kind, up uploader.Uploader, pool *workerpool.Pool, interval time.Duration, shutdown, drained *atomic.Bool) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		dir:      dir,
		kind:     kind,
		interval: interval,
		up:       up,
		pool:     pool,
		shutdown: shutdown,
		drained:  drained,
		seen:     make(map[string]struct{}),
	}
}

// Run executes the watch loop until the shutdown flag is observed and the
// final pass has drained. ctx bounds the upload calls themselves but is not
// cancelled on stop: in-flight uploads run to completion by design.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		final := w.shutdown.Load()
		w.pass(ctx)
		if final {
			break
		}
		<-ticker.C
	}

	w.inflight.Wait()
	w.drained.Store(true)
	log.Info("stream drained", "kind", w.kind, "segments", len(w.seen))
	return nil
}

// pass reads the manifest once and dispatches uploads for segments not seen
// before. Every observed filename is marked seen immediately, regardless of
// upload outcome, so a failed upload is never silently retried here. A
// listed file that has not hit the disk yet is skipped; since it was just
// observed it stays marked, matching the manifest contract that the encoder
// flushes the file before, or shortly after, listing it.
func (w *Watcher) pass(ctx context.Context) {
	names, err := ReadManifest(filepath.Join(w.dir, encoder.ManifestName))
	if err != nil {
		log.Warn("manifest read failed, skipping pass", "kind", w.kind, "error", err)
		return
	}

	for _, name := range names {
		if _, ok := w.seen[name]; ok {
			continue
		}
		w.seen[name] = struct{}{}

		path := filepath.Join(w.dir, name)
		if fi, err := os.Stat(path); err != nil || fi.IsDir() {
			log.Warn("listed segment not on disk, skipping", "kind", w.kind, "segment", name)
			continue
		}
		w.dispatch(ctx, path)
	}
}

// dispatch hands one segment to the upload pool. Uploads from different
// passes may overlap; the per-watcher wait group is what the final drain
// blocks on.
func (w *Watcher) dispatch(ctx context.Context, path string) {
	w.inflight.Add(1)
	submitted := w.pool.Submit(func() {
		defer w.inflight.Done()
		log.Info("uploading segment", "kind", w.kind, "path", path)
		if err := w.up.Upload(ctx, path, w.kind); err != nil {
			// Surfaced, not retried: the segment is already marked seen.
			log.Error("segment upload failed", "kind", w.kind, "path", path, "error", err)
		}
	})
	if !submitted {
		w.inflight.Done()
		log.Error("upload dispatch rejected, segment dropped", "kind", w.kind, "path", path)
	}
}

// Seen reports how many segment filenames have been observed.
func (w *Watcher) Seen() int { return len(w.seen) }
