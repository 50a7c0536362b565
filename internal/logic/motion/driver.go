package motion

import (
	"time"

	"github.com/greenbed/leafscan/internal/debug"
	"github.com/greenbed/leafscan/internal/hw/gpio"
	"github.com/greenbed/leafscan/internal/hw/stepper"
)

// Direction of stage travel along the rail.
type Direction int

const (
	// Forward moves away from the home sensor (increasing position).
	Forward Direction = iota
	// Reverse moves toward the home sensor.
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Driver is the capability interface between the controller and the
// physical (or simulated) stage. Implementations are selected once at
// construction; callers never branch on the mode per call.
type Driver interface {
	// Step issues steps pulses in the given direction and blocks until
	// the pulse train completes.
	Step(steps int, dir Direction) error
	// AtHome reports whether the home limit sensor is triggered.
	AtHome() (bool, error)
	// Close releases driver resources. Idempotent.
	Close() error
}

// HardwareMotion drives a real stepper over GPIO and reads the IR
// limit sensor for homing.
type HardwareMotion struct {
	stepper   *stepper.Stepper
	gpio      gpio.Driver
	sensorPin int
	closed    bool
}

// NewHardwareMotion wires a stepper and a home sensor pin into a
// motion driver. The sensor pin is a plain input; the IR sensor drives
// the line High when the carriage reaches it, so a disconnected wire
// reads Low and homing runs into the step bound instead of reporting a
// false home.
func NewHardwareMotion(s *stepper.Stepper, g gpio.Driver, sensorPin int) *HardwareMotion {
	_ = g.SetupPin(sensorPin, gpio.Input)
	return &HardwareMotion{stepper: s, gpio: g, sensorPin: sensorPin}
}

func (h *HardwareMotion) Step(steps int, dir Direction) error {
	if dir == Reverse {
		steps = -steps
	}
	return h.stepper.MoveSteps(steps)
}

func (h *HardwareMotion) AtHome() (bool, error) {
	level, err := h.gpio.ReadPin(h.sensorPin)
	if err != nil {
		return false, err
	}
	return level == gpio.High, nil
}

// Close releases the motor (no holding torque).
func (h *HardwareMotion) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.stepper.Disable()
}

// simStartOffsetSteps is where a simulated stage "wakes up": far enough
// from the sensor that homing actually exercises the search loop.
const simStartOffsetSteps = 320

// SimulatedMotion replaces pulse emission with a per-step delay and
// tracks a virtual step position, so homing and moves behave like a
// bounded physical operation without any hardware attached.
type SimulatedMotion struct {
	stepDelay time.Duration
	pos       int // virtual step position; <= 0 means the sensor is triggered
}

// NewSimulatedMotion creates a simulated stage. perStep of 0 selects a
// small default delay so simulated sessions stay fast but observable.
func NewSimulatedMotion(perStep time.Duration) *SimulatedMotion {
	if perStep <= 0 {
		perStep = 20 * time.Microsecond
	}
	return &SimulatedMotion{stepDelay: perStep, pos: simStartOffsetSteps}
}

func (s *SimulatedMotion) Step(steps int, dir Direction) error {
	time.Sleep(time.Duration(steps) * s.stepDelay)
	if dir == Reverse {
		s.pos -= steps
	} else {
		s.pos += steps
	}
	debug.Trace("SimulatedMotion: %d steps %s (virtual pos %d)", steps, dir, s.pos)
	return nil
}

func (s *SimulatedMotion) AtHome() (bool, error) {
	return s.pos <= 0, nil
}

func (s *SimulatedMotion) Close() error { return nil }
