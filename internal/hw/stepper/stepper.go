package stepper

import (
	"time"

	"github.com/greenbed/leafscan/internal/debug"
	"github.com/greenbed/leafscan/internal/hw/gpio"
)

// Config holds the hardware configuration for the stage stepper motor.
type Config struct {
	StepPin     int
	DirPin      int
	EnablePin   int // A4988 ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	PulseFreqHz int // full STEP pulse frequency. 0 defaults to 8000 Hz.
}

// Stepper drives a single stepper motor over STEP/DIR/ENABLE lines.
// The driver is enabled only while a pulse train is running, so the
// motor freewheels between moves (no holding torque, less heat).
type Stepper struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration // delay per half-cycle of a STEP pulse
}

// New creates a new stepper motor driver.
func New(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	freq := cfg.PulseFreqHz
	if freq <= 0 {
		freq = 8000
	}
	// One full pulse is HIGH+LOW, so each half-cycle lasts 1/(2*freq).
	delay := time.Second / time.Duration(2*freq)

	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.High) // disabled until a move runs
	}

	return &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
	}
}

// MoveSteps moves the motor by a number of steps (positive or negative).
func (s *Stepper) MoveSteps(steps int) error {
	if steps == 0 {
		return nil
	}

	var dirLevel gpio.Level
	var direction string
	if steps > 0 {
		dirLevel = gpio.High
		direction = "forward"
	} else {
		dirLevel = gpio.Low
		direction = "backward"
		steps = -steps
	}

	debug.Printf("Stepper: moving %d steps (%s) on pin %d", steps, direction, s.cfg.StepPin)

	if err := s.gpio.WritePin(s.cfg.DirPin, dirLevel); err != nil {
		return err
	}

	if err := s.Enable(); err != nil {
		return err
	}
	defer func() { _ = s.Disable() }()

	for i := 0; i < steps; i++ {
		if err := s.stepPulse(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stepper) stepPulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(s.delay)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(s.delay)
	return nil
}

// Enable turns on the motor driver (A4988 ENABLE=LOW). Motor holds position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH). Motor freewheels.
// Kept off between moves and during exposures to reduce vibration.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
