// Package session wires capture drivers, encoder processes, stream pumps
// and segment watchers into one recording session and owns its lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamcap/agent/internal/capture"
	"github.com/streamcap/agent/internal/config"
	"github.com/streamcap/agent/internal/encoder"
	"github.com/streamcap/agent/internal/logging"
	"github.com/streamcap/agent/internal/pipeline"
	"github.com/streamcap/agent/internal/segment"
	"github.com/streamcap/agent/internal/uploader"
	"github.com/streamcap/agent/internal/workerpool"
)

var log = logging.L("session")

const (
	startTimePollInterval = 50 * time.Millisecond
	screenshotDelay       = 3 * time.Second
	screenshotName        = "screen-capture.jpg"

	uploadWorkers   = 4
	uploadQueueSize = 1024

	// pumpFlushTimeout bounds how long Stop waits for the pumps to drain
	// captured backlog into the encoders before closing their inputs.
	pumpFlushTimeout = 10 * time.Second
)

// audioSource is the capture driver surface the session holds.
type audioSource interface {
	Start() error
	Stop()
	Format() capture.AudioFormat
}

// encoderControl is the supervisor surface the session holds after spawn.
type encoderControl interface {
	AudioInput() interface{ WriteInput([]byte) error }
	VideoInput() interface{ WriteInput([]byte) error }
	Shutdown() error
}

// Options identifies one recording and its destination. Zero fields fall
// back to the recorder's configuration.
type Options struct {
	UserID  string
	VideoID string

	ScreenIndex string // native capture device input for the screenshot grab
	AudioDevice string

	Bucket string
	Region string
}

// Recorder owns at most one live recording session and exposes the
// start/stop surface.
type Recorder struct {
	cfg *config.Config

	mu     sync.Mutex
	active *session
}

// New creates a recorder bound to the given configuration.
func New(cfg *config.Config) *Recorder {
	return &Recorder{cfg: cfg}
}

// session is the state shared across one recording's tasks. Everything the
// loops read concurrently lives here, passed in at spawn time rather than
// kept in package globals.
type session struct {
	opts Options

	// shutdown stops the capture drivers; encodersStopped releases the
	// watchers into their final pass. The two are distinct on purpose: the
	// watchers may only drain once the encoders have terminated and the
	// manifests are complete.
	shutdown        atomic.Bool
	encodersStopped atomic.Bool
	audioDrained    atomic.Bool
	videoDrained    atomic.Bool

	audioSlot pipeline.StartTimeSlot
	videoSlot pipeline.StartTimeSlot

	audioRelay *pipeline.Relay
	videoRelay *pipeline.Relay

	audioCap  audioSource
	screenCap capture.ScreenCapturer

	sup  encoderControl
	up   uploader.Uploader
	pool *workerpool.Pool

	screenLoop sync.WaitGroup
	pumps      sync.WaitGroup
	watchers   *errgroup.Group

	dataDir  string
	audioDir string
	videoDir string
}

// Start prepares directories, opens both capture drivers, resolves the
// start-time offset, spawns the encoder processes, and launches the pumps
// and segment watchers. It returns once setup succeeds; uploads continue in
// the background until Stop.
//
// Setup failures abort the whole start and tear down anything already
// running.
func (r *Recorder) Start(ctx context.Context, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return ErrAlreadyRecording
	}
	if r.cfg.DataDir == "" {
		return ErrDataDirNotSet
	}

	s := &session{
		opts:    opts,
		dataDir: r.cfg.DataDir,
	}
	s.audioDir = filepath.Join(s.dataDir, "chunks", "audio")
	s.videoDir = filepath.Join(s.dataDir, "chunks", "video")

	if err := segment.PrepareChunkDir(s.audioDir); err != nil {
		return err
	}
	if err := segment.PrepareChunkDir(s.videoDir); err != nil {
		return err
	}

	binary, err := encoder.FindBinary()
	if err != nil {
		return err
	}

	up, err := uploader.New(ctx, r.destination(opts))
	if err != nil {
		return fmt.Errorf("creating uploader: %w", err)
	}
	s.up = up

	screenCap, err := capture.NewScreenCapturer(r.cfg.Recording.DisplayIndex)
	if err != nil {
		s.closeUploader()
		return err
	}
	s.screenCap = screenCap

	s.audioRelay = pipeline.NewRelay("audio", pipeline.DefaultRelayCapacity)
	s.videoRelay = pipeline.NewRelay("video", pipeline.DefaultRelayCapacity)

	audioDevice := opts.AudioDevice
	if audioDevice == "" {
		audioDevice = r.cfg.Recording.AudioDevice
	}
	audioCap, err := capture.NewAudioCapturer(audioDevice, func(buf []byte) {
		s.audioRelay.Offer(buf)
		s.audioSlot.TryMark(time.Now())
	})
	if err != nil {
		screenCap.Close()
		s.closeUploader()
		return err
	}
	s.audioCap = audioCap

	if err := audioCap.Start(); err != nil {
		audioCap.Stop()
		screenCap.Close()
		s.closeUploader()
		return err
	}

	s.screenLoop.Add(1)
	go func() {
		defer s.screenLoop.Done()
		capture.RunScreenLoop(screenCap, s.videoRelay, &s.videoSlot, r.cfg.Recording.Framerate, &s.shutdown)
	}()

	width, height := screenCap.Bounds()
	af := audioCap.Format()
	audioInv := encoder.NewAudioInvocation(encoder.AudioSpec{
		SampleFormat: af.SampleFormat,
		SampleRate:   af.SampleRate,
		Channels:     af.Channels,
	}, s.audioDir, r.cfg.Recording.SegmentSeconds)
	videoInv := encoder.NewVideoInvocation(encoder.VideoSpec{
		Width:     width,
		Height:    height,
		Framerate: r.cfg.Recording.Framerate,
	}, s.videoDir, r.cfg.Recording.SegmentSeconds)

	if err := r.alignInvocations(ctx, s, audioInv, videoInv); err != nil {
		s.teardownCapture()
		return err
	}

	sup := encoder.NewSupervisor(binary)
	if err := sup.StartAll(audioInv, videoInv); err != nil {
		s.teardownCapture()
		return fmt.Errorf("%w: %w", ErrEncoderStart, err)
	}
	s.sup = sup

	s.pumps.Add(2)
	go func() {
		defer s.pumps.Done()
		if err := pipeline.Pump("audio", s.audioRelay, s.sup.AudioInput()); err != nil {
			// Fatal to the audio stream only; video keeps recording.
			log.Error("audio pump terminated", "error", err)
		}
	}()
	go func() {
		defer s.pumps.Done()
		if err := pipeline.Pump("video", s.videoRelay, s.sup.VideoInput()); err != nil {
			log.Error("video pump terminated", "error", err)
		}
	}()

	s.pool = workerpool.New(uploadWorkers, uploadQueueSize)

	// Watchers stop on encodersStopped, not on the capture shutdown flag:
	// their final pass must see the manifest as it stands after encoder
	// termination.
	interval := segment.DefaultPollInterval
	audioWatcher := segment.NewWatcher(s.audioDir, uploader.KindAudio, s.up, s.pool, interval, &s.encodersStopped, &s.audioDrained)
	videoWatcher := segment.NewWatcher(s.videoDir, uploader.KindVideo, s.up, s.pool, interval, &s.encodersStopped, &s.videoDrained)

	// Watchers run on a background context: Stop never cancels an upload
	// that is already in flight.
	s.watchers = new(errgroup.Group)
	s.watchers.Go(func() error { return audioWatcher.Run(context.Background()) })
	s.watchers.Go(func() error { return videoWatcher.Run(context.Background()) })

	go s.takeScreenshot(binary)

	r.active = s
	log.Info("recording started",
		"videoId", opts.VideoID,
		"dataDir", s.dataDir,
		"resolution", fmt.Sprintf("%dx%d", width, height),
		"framerate", r.cfg.Recording.Framerate)
	return nil
}

// destination merges per-session options over the configured upload
// settings.
func (r *Recorder) destination(opts Options) uploader.Destination {
	dest := uploader.Destination{
		Provider:        r.cfg.Upload.Provider,
		Bucket:          r.cfg.Upload.Bucket,
		Region:          r.cfg.Upload.Region,
		AccessKeyID:     r.cfg.Upload.AccessKeyID,
		SecretAccessKey: r.cfg.Upload.SecretAccessKey,
		BasePath:        r.cfg.Upload.BasePath,
		UserID:          opts.UserID,
		VideoID:         opts.VideoID,
	}
	if opts.Bucket != "" {
		dest.Bucket = opts.Bucket
	}
	if opts.Region != "" {
		dest.Region = opts.Region
	}
	return dest
}

// alignInvocations waits for both streams' first samples and shifts the
// earlier-starting invocation so the streams line up in wall-clock time.
// The offset is resolved exactly once per session, before spawn; later
// drift is uncorrected since segments, not timestamps, are the playback
// unit.
func (r *Recorder) alignInvocations(ctx context.Context, s *session, audioInv, videoInv *encoder.Invocation) error {
	timeout := time.Duration(r.cfg.Recording.SyncTimeoutSeconds) * time.Second
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	audioStart, videoStart, err := pipeline.WaitStartTimes(waitCtx, &s.audioSlot, &s.videoSlot, startTimePollInterval)
	if err != nil {
		return fmt.Errorf("%w (after %s)", ErrSyncTimeout, timeout)
	}

	offset, target := pipeline.Skew(audioStart, videoStart)
	switch target {
	case pipeline.SkewAudio:
		audioInv.SetStartOffset(offset)
		log.Info("delaying audio to match video", "offset", offset)
	case pipeline.SkewVideo:
		videoInv.SetStartOffset(offset)
		log.Info("delaying video to match audio", "offset", offset)
	default:
		log.Info("capture sources started simultaneously")
	}
	return nil
}

// teardownCapture unwinds a partially started session before the encoders
// exist.
func (s *session) teardownCapture() {
	s.shutdown.Store(true)
	if s.audioCap != nil {
		s.audioCap.Stop()
	}
	if s.screenCap != nil {
		s.screenCap.Close()
	}
	// Both producers must be quiet before the relays close: the audio
	// driver's Stop joins its callback, the screen loop is joined here.
	s.screenLoop.Wait()
	s.audioRelay.Close()
	s.videoRelay.Close()
	s.closeUploader()
}

// closeUploader releases the uploader's client when the provider holds one.
func (s *session) closeUploader() {
	if c, ok := s.up.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn("closing uploader", "error", err)
		}
	}
}

// flushPumps waits for the pumps to drain the relays into the encoders,
// bounded so a wedged encoder cannot stall shutdown. Returns false on
// timeout; closing the encoder inputs afterwards fails the stuck write.
func (s *session) flushPumps(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stop shuts the live session down: it stops the capture drivers, flushes
// the pumps, closes the encoder input pipes before terminating the
// processes, then releases the watchers into their final drain pass and
// blocks until both report complete. Every cleanup step runs regardless of
// earlier failures; the aggregate error is returned.
//
// Stop with no live session is a no-op returning nil.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.active
	if s == nil {
		log.Warn("stop requested with no active recording")
		return nil
	}

	started := time.Now()
	var errs []error

	s.shutdown.Store(true)

	s.audioCap.Stop()
	if err := s.screenCap.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing screen capturer: %w", err))
	}
	// The audio driver's Stop joins its callback; joining the screen loop
	// here means no producer can race the relay close below.
	s.screenLoop.Wait()

	// Closing the relays lets the pumps flush what was already captured
	// before the encoder inputs go away. The flush is bounded; on timeout
	// the supervisor's input close fails the stuck write.
	s.audioRelay.Close()
	s.videoRelay.Close()
	if !s.flushPumps(pumpFlushTimeout) {
		log.Warn("pump flush timed out, captured tail may be incomplete")
	}

	if err := s.sup.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	s.pumps.Wait()

	// The encoders are gone and the manifests are complete, including any
	// segment finalized when stdin closed. Only now may the watchers run
	// their final pass and drain.
	s.encodersStopped.Store(true)

	// Blocks until both drain flags are set; in-flight uploads complete
	// rather than being cancelled.
	if err := s.watchers.Wait(); err != nil {
		errs = append(errs, err)
	}
	if !s.audioDrained.Load() || !s.videoDrained.Load() {
		errs = append(errs, errors.New("watcher exited without draining"))
	}

	s.pool.Shutdown(ctx)
	s.closeUploader()

	r.active = nil
	log.Info("recording stopped",
		"videoId", s.opts.VideoID,
		"droppedAudioBuffers", s.audioRelay.Dropped(),
		"droppedVideoFrames", s.videoRelay.Dropped(),
		logging.KeyDurationMs, time.Since(started).Milliseconds())
	return errors.Join(errs...)
}

// Recording reports whether a session is currently live.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// takeScreenshot grabs one frame through the platform's native ffmpeg
// capture device a few seconds into the recording and uploads it. Failures
// are logged only; the recording does not depend on it.
func (s *session) takeScreenshot(binary string) {
	time.Sleep(screenshotDelay)
	if s.shutdown.Load() {
		return
	}

	outPath := filepath.Join(s.dataDir, screenshotName)
	args, err := encoder.ScreenshotArgs(runtime.GOOS, s.screenshotInput(), outPath)
	if err != nil {
		log.Warn("screenshot skipped", "error", err)
		return
	}

	if out, err := exec.Command(binary, args...).CombinedOutput(); err != nil {
		log.Warn("screenshot capture failed", "error", err, "output", string(out))
		return
	}

	if err := s.up.Upload(context.Background(), outPath, uploader.KindScreenshot); err != nil {
		log.Warn("screenshot upload failed", "error", err)
		return
	}
	log.Info("screenshot captured and uploaded", "path", outPath)
}

// screenshotInput maps the session's screen selection onto the native
// capture device's input syntax.
func (s *session) screenshotInput() string {
	if s.opts.ScreenIndex != "" {
		return s.opts.ScreenIndex
	}
	if runtime.GOOS == "darwin" {
		// avfoundation numbers screens after cameras; 1 is usually the
		// primary display on a machine with one camera.
		return strconv.Itoa(1)
	}
	return ""
}
