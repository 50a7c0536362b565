package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"github.com/greenbed/leafscan/internal/debug"
	"github.com/greenbed/leafscan/internal/hw/gpio"
)

// StillConfig configures the hardware frame source.
type StillConfig struct {
	Command  string // still-capture binary, e.g. "rpicam-still"
	WidthPx  int
	HeightPx int
	LightPin int           // illumination LED (BCM). 0 = not used. Active LOW.
	Settle   time.Duration // light-on delay before exposure
	WorkDir  string        // where temporary frame files land. "" = os.TempDir()
}

// StillCamera captures frames by invoking an external still-capture
// command (libcamera apps on the Pi) and decoding the resulting file.
// The illumination LED is switched on only around each exposure:
// 1. LIGHT to LOW (light on)
// 2. Wait for the exposure to settle
// 3. Run the capture command
// 4. LIGHT back to HIGH (light off)
type StillCamera struct {
	gpio   gpio.Driver
	cfg    StillConfig
	closed bool
}

// NewStillCamera creates a frame source backed by the capture command.
// The light pin is configured as output and left HIGH (off).
func NewStillCamera(g gpio.Driver, cfg StillConfig) *StillCamera {
	if cfg.Command == "" {
		cfg.Command = "rpicam-still"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.LightPin > 0 {
		_ = g.SetupPin(cfg.LightPin, gpio.Output)
		_ = g.WritePin(cfg.LightPin, gpio.High)
	}
	return &StillCamera{gpio: g, cfg: cfg}
}

// Capture triggers one exposure and decodes the frame.
func (c *StillCamera) Capture(ctx context.Context, index int) (*Frame, error) {
	debug.Printf("Camera: capturing frame %d via %s", index, c.cfg.Command)

	if err := c.lightOn(); err != nil {
		return nil, &DeviceError{Err: err}
	}
	defer func() { _ = c.lightOff() }()
	time.Sleep(c.cfg.Settle)

	path := filepath.Join(c.cfg.WorkDir, fmt.Sprintf("frame_%02d.jpg", index))
	args := []string{
		"-o", path,
		"--width", strconv.Itoa(c.cfg.WidthPx),
		"--height", strconv.Itoa(c.cfg.HeightPx),
		"--nopreview",
		"--immediate",
	}
	cmd := exec.CommandContext(ctx, c.cfg.Command, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, &DeviceError{Err: fmt.Errorf("%s: %w (%s)", c.cfg.Command, err, string(out))}
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, &DeviceError{Err: fmt.Errorf("decode %s: %w", path, err)}
	}

	debug.Verbose("Camera: frame %d decoded (%dx%d)", index, img.Bounds().Dx(), img.Bounds().Dy())
	return &Frame{Index: index, Image: img}, nil
}

func (c *StillCamera) lightOn() error {
	if c.cfg.LightPin <= 0 {
		return nil
	}
	debug.Verbose("Camera: light on (pin %d -> LOW)", c.cfg.LightPin)
	return c.gpio.WritePin(c.cfg.LightPin, gpio.Low)
}

func (c *StillCamera) lightOff() error {
	if c.cfg.LightPin <= 0 {
		return nil
	}
	debug.Verbose("Camera: light off (pin %d -> HIGH)", c.cfg.LightPin)
	return c.gpio.WritePin(c.cfg.LightPin, gpio.High)
}

// Close switches the light off. Safe to call more than once.
func (c *StillCamera) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.lightOff()
}
