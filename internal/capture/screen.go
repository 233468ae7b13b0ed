package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenCapturer grabs raw BGRA frames from one display.
type ScreenCapturer interface {
	// Frame captures the current display contents as packed BGRA rows.
	Frame() ([]byte, error)
	// Bounds returns the capture dimensions. Height is rounded down to an
	// even value so the frames are valid yuv420p encoder input.
	Bounds() (width, height int)
	Close() error
}

type displayCapturer struct {
	rect   image.Rectangle
	width  int
	height int
}

// NewScreenCapturer opens a capturer for the given display index
// (0 = primary).
func NewScreenCapturer(displayIndex int) (ScreenCapturer, error) {
	if !platformSupported() {
		return nil, ErrNotSupported
	}

	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoDisplay
	}
	if displayIndex < 0 || displayIndex >= n {
		return nil, fmt.Errorf("display %d out of range (%d active): %w", displayIndex, n, ErrNoDisplay)
	}

	bounds := screenshot.GetDisplayBounds(displayIndex)
	width := bounds.Dx()
	height := bounds.Dy() &^ 1

	return &displayCapturer{
		rect:   image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+width, bounds.Min.Y+height),
		width:  width,
		height: height,
	}, nil
}

func (c *displayCapturer) Bounds() (int, int) {
	return c.width, c.height
}

// Frame grabs one screenshot and repacks it as tightly packed BGRA, the
// pixel order the video encoder invocation declares.
func (c *displayCapturer) Frame() ([]byte, error) {
	img, err := screenshot.CaptureRect(c.rect)
	if err != nil {
		return nil, fmt.Errorf("capturing display: %w", err)
	}
	return rgbaToBGRA(img, c.width, c.height), nil
}

func (c *displayCapturer) Close() error { return nil }

// rgbaToBGRA flattens an RGBA image into packed BGRA rows, dropping any
// stride padding.
func rgbaToBGRA(img *image.RGBA, width, height int) []byte {
	out := make([]byte, 0, width*height*4)
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < len(row); x += 4 {
			out = append(out, row[x+2], row[x+1], row[x], row[x+3])
		}
	}
	return out
}
