package capture

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// AudioFormat is the raw sample layout the audio driver delivers, matching
// what the audio encoder invocation must declare.
type AudioFormat struct {
	// SampleFormat is the ffmpeg demuxer name for the sample encoding.
	SampleFormat string
	SampleRate   int
	Channels     int
}

// captureFormat is what we ask miniaudio for; it converts from whatever the
// device natively produces.
var captureFormat = AudioFormat{
	SampleFormat: "s16le",
	SampleRate:   44100,
	Channels:     2,
}

// AudioCapturer owns a miniaudio capture device. Samples arrive on a
// real-time callback thread; the registered onData function must never
// block, which the relay's drop-on-full Offer guarantees.
type AudioCapturer struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	format AudioFormat
}

// NewAudioCapturer opens the named input device, or the system default when
// deviceName is empty or not found. onData receives a private copy of every
// delivered sample buffer.
func NewAudioCapturer(deviceName string, onData func([]byte)) (*AudioCapturer, error) {
	if !platformSupported() {
		return nil, ErrNotSupported
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(captureFormat.Channels)
	cfg.SampleRate = uint32(captureFormat.SampleRate)
	cfg.Alsa.NoMMap = 1

	if deviceName != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			_ = ctx.Uninit()
			ctx.Free()
			return nil, fmt.Errorf("enumerating audio devices: %w", err)
		}
		for i := range infos {
			if infos[i].Name() == deviceName {
				id := infos[i].ID
				cfg.Capture.DeviceID = id.Pointer()
				break
			}
		}
		// Name not found falls through to the default device.
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			if len(input) == 0 {
				return
			}
			// The device buffer is reused after the callback returns.
			buf := make([]byte, len(input))
			copy(buf, input)
			onData(buf)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	return &AudioCapturer{
		ctx:    ctx,
		device: device,
		format: captureFormat,
	}, nil
}

// Format reports the sample layout delivered to the data callback.
func (a *AudioCapturer) Format() AudioFormat { return a.format }

// Start begins delivering samples to the data callback.
func (a *AudioCapturer) Start() error {
	if err := a.device.Start(); err != nil {
		return fmt.Errorf("starting audio device: %w", err)
	}
	log.Info("audio capture started", "sampleRate", a.format.SampleRate, "channels", a.format.Channels)
	return nil
}

// Stop halts the callback stream and releases the device and context. Safe
// to call once; the capturer is unusable afterwards.
func (a *AudioCapturer) Stop() {
	a.device.Uninit()
	_ = a.ctx.Uninit()
	a.ctx.Free()
	log.Info("audio capture stopped")
}
