package capture

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestRGBAToBGRASwapsChannels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	// One red, one green, one blue, one white pixel.
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	img.SetRGBA(0, 1, color.RGBA{B: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	got := rgbaToBGRA(img, 2, 2)
	want := []byte{
		0, 0, 255, 255,
		0, 255, 0, 255,
		255, 0, 0, 255,
		255, 255, 255, 255,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % d, want % d", got, want)
	}
}

func TestRGBAToBGRADropsStridePadding(t *testing.T) {
	// Build a frame whose backing rows are wider than the capture width,
	// like a sub-rectangle grab from a larger display buffer.
	wide := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			wide.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}

	got := rgbaToBGRA(wide, 2, 2)
	if len(got) != 2*2*4 {
		t.Fatalf("frame length %d, want %d", len(got), 2*2*4)
	}
	// Second packed row must start at x=0 y=1 (R=0 G=1), not at the
	// stride continuation x=2 y=0.
	if got[8+2] != 0 || got[8+1] != 1 {
		t.Fatalf("row padding leaked into the frame: % d", got)
	}
}
