package motion

import (
	"errors"
	"fmt"
	"math"

	"github.com/greenbed/leafscan/internal/debug"
)

// FramePosition is one target stop of a scan sequence.
type FramePosition struct {
	Index    int // 0-based
	TargetMM float64
}

// ErrNotHomed is returned by MoveTo before a successful Home.
var ErrNotHomed = errors.New("motion: stage not homed")

// ErrClosed is returned by Home and MoveTo after Cleanup.
var ErrClosed = errors.New("motion: controller closed")

// HomingError means the limit sensor never triggered within the
// configured step bound.
type HomingError struct {
	StepsTried int
}

func (e *HomingError) Error() string {
	return fmt.Sprintf("motion: homing failed, limit sensor not reached within %d steps", e.StepsTried)
}

// OutOfRangeError means a move target lies outside the rail.
type OutOfRangeError struct {
	TargetMM float64
	LimitMM  float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("motion: target %.2f mm outside rail [0, %.2f]", e.TargetMM, e.LimitMM)
}

// homeBatchSteps is how many steps are pulsed between sensor polls
// while homing. 32 steps is 0.32 mm at the default 100 steps/mm, well
// under the frame overlap.
const homeBatchSteps = 32

// Config holds the physical parameters of the stage controller.
type Config struct {
	StepsPerMM     float64
	TravelLimitMM  float64
	MaxHomingSteps int
}

// Controller owns the absolute position of the stage and translates
// logical motion requests (mm) into driver steps.
//
// State machine: position is unknown until Home succeeds; any homing
// failure leaves the controller unhomed; Cleanup is terminal.
// The controller is not reentrant; the capture layer serializes access.
type Controller struct {
	drv    Driver
	cfg    Config
	posMM  float64
	homed  bool
	closed bool
}

// NewController creates a stage controller over the given driver.
func NewController(drv Driver, cfg Config) (*Controller, error) {
	if cfg.StepsPerMM <= 0 {
		return nil, fmt.Errorf("motion: steps per mm must be > 0, got %g", cfg.StepsPerMM)
	}
	if cfg.TravelLimitMM <= 0 {
		return nil, fmt.Errorf("motion: travel limit must be > 0, got %g", cfg.TravelLimitMM)
	}
	if cfg.MaxHomingSteps <= 0 {
		return nil, fmt.Errorf("motion: max homing steps must be > 0, got %d", cfg.MaxHomingSteps)
	}
	return &Controller{drv: drv, cfg: cfg}, nil
}

// Homed reports whether the stage position is known.
func (c *Controller) Homed() bool { return c.homed }

// Position returns the current absolute position in mm.
// Only meaningful while Homed() is true.
func (c *Controller) Position() float64 { return c.posMM }

// Home drives the stage toward the limit sensor in bounded batches.
// On sensor trigger the position becomes 0 and the stage is homed.
// Exceeding the step bound returns a *HomingError and leaves the
// controller unhomed. Re-homing is always permitted.
func (c *Controller) Home() error {
	if c.closed {
		return ErrClosed
	}
	c.homed = false

	steps := 0
	for {
		home, err := c.drv.AtHome()
		if err != nil {
			return fmt.Errorf("home: read sensor: %w", err)
		}
		if home {
			c.posMM = 0
			c.homed = true
			debug.Home(steps)
			return nil
		}
		if steps >= c.cfg.MaxHomingSteps {
			return &HomingError{StepsTried: steps}
		}
		batch := homeBatchSteps
		if remaining := c.cfg.MaxHomingSteps - steps; batch > remaining {
			batch = remaining
		}
		if err := c.drv.Step(batch, Reverse); err != nil {
			return fmt.Errorf("home: %w", err)
		}
		steps += batch
	}
}

// MoveTo moves the stage to an absolute position in mm.
func (c *Controller) MoveTo(targetMM float64) error {
	if c.closed {
		return ErrClosed
	}
	if !c.homed {
		return ErrNotHomed
	}
	if targetMM < 0 || targetMM > c.cfg.TravelLimitMM {
		return &OutOfRangeError{TargetMM: targetMM, LimitMM: c.cfg.TravelLimitMM}
	}

	delta := int(math.Round((targetMM - c.posMM) * c.cfg.StepsPerMM))
	if delta == 0 {
		c.posMM = targetMM
		return nil
	}

	dir := Forward
	steps := delta
	if delta < 0 {
		dir = Reverse
		steps = -delta
	}
	debug.Move(steps, dir.String())
	if err := c.drv.Step(steps, dir); err != nil {
		return fmt.Errorf("move to %.2f mm: %w", targetMM, err)
	}
	c.posMM = targetMM
	return nil
}

// Cleanup releases the motion driver. Idempotent; the controller
// accepts no further motion requests afterwards.
func (c *Controller) Cleanup() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.homed = false
	return c.drv.Close()
}

// ScanSequence returns numFrames evenly spaced targets from 0 to
// spanMM inclusive. A single frame targets 0. It does not move the
// stage.
func ScanSequence(numFrames int, spanMM float64) []FramePosition {
	if numFrames < 1 {
		return nil
	}
	positions := make([]FramePosition, numFrames)
	if numFrames == 1 {
		positions[0] = FramePosition{Index: 0, TargetMM: 0}
		return positions
	}
	spacing := spanMM / float64(numFrames-1)
	for i := range positions {
		positions[i] = FramePosition{Index: i, TargetMM: float64(i) * spacing}
	}
	// Land exactly on the span despite float accumulation.
	positions[numFrames-1].TargetMM = spanMM
	return positions
}
