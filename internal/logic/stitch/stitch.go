package stitch

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/greenbed/leafscan/internal/debug"
)

// ErrNoFrames is returned when Stitch receives an empty frame set.
var ErrNoFrames = errors.New("stitch: no frames")

// DimensionMismatchError means a frame does not match the dimensions
// of the first frame. Frames from one scan pass must be uniform.
type DimensionMismatchError struct {
	Index         int
	Width, Height int
	WantW, WantH  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("stitch: frame %d is %dx%d, want %dx%d",
		e.Index, e.Width, e.Height, e.WantW, e.WantH)
}

// OverlapPx returns the shared column count between neighbor frames.
func OverlapPx(frameWidth int, overlapFraction float64) int {
	return int(math.Round(float64(frameWidth) * overlapFraction))
}

// Width returns the stitched width for n frames of the given width.
func Width(n, frameWidth int, overlapFraction float64) int {
	return frameWidth + (n-1)*(frameWidth-OverlapPx(frameWidth, overlapFraction))
}

// Stitch composes ordered same-size frames into one wide image. Each
// frame's left edge overlaps its predecessor's right edge by
// round(width*overlapFraction) columns; the later frame's pixels win
// in the overlap region (no seam blending).
func Stitch(frames []image.Image, overlapFraction float64) (*image.NRGBA, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if overlapFraction <= 0 || overlapFraction >= 1 {
		return nil, fmt.Errorf("stitch: overlap fraction must be in (0,1), got %g", overlapFraction)
	}

	bounds := frames[0].Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	for i, f := range frames[1:] {
		b := f.Bounds()
		if b.Dx() != w || b.Dy() != h {
			return nil, &DimensionMismatchError{
				Index: i + 1,
				Width: b.Dx(), Height: b.Dy(),
				WantW: w, WantH: h,
			}
		}
	}

	stride := w - OverlapPx(w, overlapFraction)
	if stride < 1 {
		return nil, fmt.Errorf("stitch: overlap fraction %g leaves no new content per frame", overlapFraction)
	}

	total := w + (len(frames)-1)*stride
	debug.Verbose("Stitch: %d frames of %dx%d, stride %d px -> %dx%d",
		len(frames), w, h, stride, total, h)

	out := imaging.New(total, h, color.NRGBA{})
	for i, f := range frames {
		out = imaging.Paste(out, f, image.Pt(i*stride, 0))
	}
	return out, nil
}
