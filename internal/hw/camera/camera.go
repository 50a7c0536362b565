package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Frame is one still image acquired while the stage is settled at a
// scan position. Frames are never mutated after capture.
type Frame struct {
	Index int
	Image image.Image
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.Image.Bounds().Dx() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.Image.Bounds().Dy() }

// Source is the high-level frame acquisition interface used by the
// scan pipeline, regardless of how frames are produced (sensor
// hardware or a fixed reference image in simulation).
type Source interface {
	// Capture acquires one frame for the given 0-based scan index.
	Capture(ctx context.Context, index int) (*Frame, error)
	// Close releases any hardware handles. Idempotent.
	Close() error
}

// ErrMissingSource is returned by the simulated source when no
// reference image path is configured.
var ErrMissingSource = errors.New("camera: no reference image configured for simulation")

// DeviceError wraps a sensor or capture-backend failure.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera device: %v", e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
