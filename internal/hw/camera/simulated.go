package camera

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoding for reference images

	"github.com/greenbed/leafscan/internal/debug"
)

// SimulatedSource returns a fixed reference image for every position,
// so downstream stitching always has valid input on machines without a
// sensor attached. JPEG, PNG and WebP reference images are accepted.
type SimulatedSource struct {
	path string
	img  image.Image // loaded on first capture
}

// NewSimulatedSource creates a frame source that serves the image at
// path. The path may be empty; Capture then fails with ErrMissingSource.
func NewSimulatedSource(path string) *SimulatedSource {
	return &SimulatedSource{path: path}
}

// Capture returns the reference image regardless of position.
func (s *SimulatedSource) Capture(ctx context.Context, index int) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return nil, ErrMissingSource
	}
	if s.img == nil {
		img, err := imaging.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("load reference image %s: %w", s.path, err)
		}
		debug.Verbose("Camera: reference image loaded (%dx%d)", img.Bounds().Dx(), img.Bounds().Dy())
		s.img = img
	}
	return &Frame{Index: index, Image: s.img}, nil
}

// Close is a no-op; the simulated source holds no hardware handles.
func (s *SimulatedSource) Close() error { return nil }
