package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/greenbed/leafscan/internal/debug"
)

// Options configures enhancement and the canvas-fit resize.
// Zero values select the defaults.
type Options struct {
	ContrastFactor   float64 // deviation from mid-gray multiplier, default 1.2
	SaturationFactor float64 // chroma multiplier, default 1.1
	CanvasWidth      int     // default 480
	CanvasHeight     int     // default 800
	OutputDir        string
}

func (o Options) withDefaults() Options {
	if o.ContrastFactor <= 0 {
		o.ContrastFactor = 1.2
	}
	if o.SaturationFactor <= 0 {
		o.SaturationFactor = 1.1
	}
	if o.CanvasWidth <= 0 {
		o.CanvasWidth = 480
	}
	if o.CanvasHeight <= 0 {
		o.CanvasHeight = 800
	}
	return o
}

// Result holds the three artifact paths of one session. The filenames
// are stable across runs so downstream consumers always read the
// latest result by fixed name.
type Result struct {
	RawPath      string // unmodified stitched image
	EnhancedPath string // contrast/saturation applied, full size
	CanvasPath   string // enhanced, fitted into the output canvas
}

// Enhance applies contrast then saturation enhancement. Factors are
// multipliers: contrast scales each channel's deviation from mid-gray,
// saturation scales chroma.
func Enhance(img image.Image, contrastFactor, saturationFactor float64) *image.NRGBA {
	out := imaging.AdjustContrast(img, contrastPercentage(contrastFactor))
	// AdjustSaturation multiplies by 1+p/100, so the factor maps directly.
	return imaging.AdjustSaturation(out, (saturationFactor-1)*100)
}

// contrastPercentage converts a deviation multiplier into the
// AdjustContrast percentage contract: positive p scales the deviation
// by 1/(1-p/100), negative p by 1+p/100.
func contrastPercentage(factor float64) float64 {
	if factor >= 1 {
		return (1 - 1/factor) * 100
	}
	return (factor - 1) * 100
}

// CanvasFit scales img to fit entirely within w x h preserving aspect
// ratio, centers it and fills the remaining border with white. Content
// is never cropped; the output always has exactly w x h dimensions.
func CanvasFit(img image.Image, w, h int) *image.NRGBA {
	fitted := imaging.Fit(img, w, h, imaging.Lanczos)
	canvas := imaging.New(w, h, color.White)
	return imaging.PasteCenter(canvas, fitted)
}

// Run produces and writes the three artifacts for a stitched image.
func Run(stitched image.Image, opts Options) (Result, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	res := Result{
		RawPath:      filepath.Join(opts.OutputDir, "stitched_raw.jpg"),
		EnhancedPath: filepath.Join(opts.OutputDir, "stitched_processed.jpg"),
		CanvasPath: filepath.Join(opts.OutputDir,
			fmt.Sprintf("stitched_processed_%dx%d.jpg", opts.CanvasWidth, opts.CanvasHeight)),
	}

	if err := imaging.Save(stitched, res.RawPath); err != nil {
		return Result{}, fmt.Errorf("save raw stitched image: %w", err)
	}

	enhanced := Enhance(stitched, opts.ContrastFactor, opts.SaturationFactor)
	if err := imaging.Save(enhanced, res.EnhancedPath); err != nil {
		return Result{}, fmt.Errorf("save enhanced image: %w", err)
	}

	canvas := CanvasFit(enhanced, opts.CanvasWidth, opts.CanvasHeight)
	if err := imaging.Save(canvas, res.CanvasPath); err != nil {
		return Result{}, fmt.Errorf("save canvas image: %w", err)
	}

	debug.Verbose("Preprocess: artifacts written under %s", opts.OutputDir)
	return res, nil
}
