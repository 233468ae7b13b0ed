package encoder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	// ManifestName is the append-only segment listing the encoder writes
	// next to its segment files.
	ManifestName = "segment_list.txt"

	// DefaultSegmentSeconds is the wall-clock length of one segment.
	DefaultSegmentSeconds = 3
)

// argBuilder accumulates an ffmpeg argv. Zero or empty values are the
// caller's responsibility; the builder only handles formatting.
type argBuilder struct {
	args []string
}

func (b *argBuilder) flag(name string) *argBuilder {
	b.args = append(b.args, name)
	return b
}

func (b *argBuilder) with(name, val string) *argBuilder {
	b.args = append(b.args, name, val)
	return b
}

func (b *argBuilder) withInt(name string, val int) *argBuilder {
	return b.with(name, strconv.Itoa(val))
}

// AudioSpec describes the raw sample stream fed to the audio encoder.
type AudioSpec struct {
	// SampleFormat is the ffmpeg demuxer name for the raw format,
	// e.g. "s16le" or "f32le".
	SampleFormat string
	SampleRate   int
	Channels     int
}

// VideoSpec describes the raw frame stream fed to the video encoder.
type VideoSpec struct {
	Width     int
	Height    int
	Framerate int
}

// Invocation is the fully resolved parameter set for one encoder process.
// It is built once per stream per session and mutated at most once, by
// SetStartOffset, before the process is spawned.
type Invocation struct {
	kind       string
	inputArgs  []string
	outputArgs []string

	dir     string
	pattern string

	offsetOnce sync.Once
	offset     time.Duration
}

// Kind names the stream this invocation encodes ("audio" or "video").
func (inv *Invocation) Kind() string { return inv.kind }

// OutputDir is the directory segments and the manifest are written into.
func (inv *Invocation) OutputDir() string { return inv.dir }

// ManifestPath is the segment listing the encoder appends to.
func (inv *Invocation) ManifestPath() string { return filepath.Join(inv.dir, ManifestName) }

// SetStartOffset shifts the encoder's input timeline forward by d, aligning
// this stream with a sibling that started later. Only the first call has
// any effect; an invocation's offset is resolved exactly once per session.
func (inv *Invocation) SetStartOffset(d time.Duration) {
	inv.offsetOnce.Do(func() {
		inv.offset = d
	})
}

// StartOffset reports the applied timeline shift, zero when none.
func (inv *Invocation) StartOffset() time.Duration { return inv.offset }

// Args assembles the final argv (excluding the binary name). The offset, if
// set, prefixes the input arguments so it applies to the piped stream.
func (inv *Invocation) Args() []string {
	args := make([]string, 0, len(inv.inputArgs)+len(inv.outputArgs)+3)
	if inv.offset > 0 {
		args = append(args, "-itsoffset", fmt.Sprintf("%.3f", inv.offset.Seconds()))
	}
	args = append(args, inv.inputArgs...)
	args = append(args, inv.outputArgs...)
	args = append(args, filepath.Join(inv.dir, inv.pattern))
	return args
}

// NewAudioInvocation builds the AAC segment encoder for the raw sample
// stream arriving on stdin. Segments land in dir as
// audio_recording_%03d.aac alongside the manifest.
func NewAudioInvocation(spec AudioSpec, dir string, segmentSeconds int) *Invocation {
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}

	in := &argBuilder{}
	in.with("-f", spec.SampleFormat).
		withInt("-ar", spec.SampleRate).
		withInt("-ac", spec.Channels).
		with("-thread_queue_size", "4096").
		with("-i", "pipe:0")

	out := &argBuilder{}
	out.with("-af", "aresample=async=1:min_hard_comp=0.100000:first_pts=0").
		with("-c:a", "aac").
		with("-b:a", "128k").
		with("-async", "1").
		with("-f", "segment").
		withInt("-segment_time", segmentSeconds).
		with("-segment_list", filepath.Join(dir, ManifestName)).
		with("-reset_timestamps", "1")

	return &Invocation{
		kind:       "audio",
		inputArgs:  in.args,
		outputArgs: out.args,
		dir:        dir,
		pattern:    "audio_recording_%03d.aac",
	}
}

// NewVideoInvocation builds the H.264 segment encoder for the raw BGRA
// frame stream arriving on stdin. Segments land in dir as
// video_recording_%03d.ts alongside the manifest.
func NewVideoInvocation(spec VideoSpec, dir string, segmentSeconds int) *Invocation {
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}

	in := &argBuilder{}
	in.with("-f", "rawvideo").
		with("-pix_fmt", "bgra").
		with("-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height)).
		withInt("-r", spec.Framerate).
		with("-thread_queue_size", "4096").
		with("-i", "pipe:0")

	out := &argBuilder{}
	out.with("-vf", fmt.Sprintf("fps=%d", spec.Framerate)).
		with("-c:v", "libx264").
		with("-preset", "ultrafast").
		with("-pix_fmt", "yuv420p").
		with("-tune", "zerolatency").
		with("-vsync", "1").
		with("-f", "segment").
		withInt("-segment_time", segmentSeconds).
		with("-segment_list", filepath.Join(dir, ManifestName)).
		with("-segment_format", "mpegts").
		with("-reset_timestamps", "1")

	return &Invocation{
		kind:       "video",
		inputArgs:  in.args,
		outputArgs: out.args,
		dir:        dir,
		pattern:    "video_recording_%03d.ts",
	}
}

// ScreenshotArgs builds the argv for a single-frame screen grab using the
// platform's native ffmpeg capture device. screenIndex is the device input
// name understood by that backend.
func ScreenshotArgs(goos, screenIndex, outPath string) ([]string, error) {
	b := &argBuilder{}
	b.flag("-y")
	switch goos {
	case "darwin":
		b.with("-f", "avfoundation").with("-i", screenIndex)
	case "windows":
		b.with("-f", "gdigrab").with("-i", "desktop")
	case "linux":
		input := screenIndex
		if input == "" {
			input = ":0.0"
		}
		b.with("-f", "x11grab").with("-i", input)
	default:
		return nil, fmt.Errorf("no screenshot capture backend for %s", goos)
	}
	b.with("-vframes", "1")
	b.args = append(b.args, outPath)
	return b.args, nil
}
