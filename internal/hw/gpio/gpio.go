package gpio

import (
	"sync"

	"github.com/greenbed/leafscan/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test/simulation).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (simulation mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

// MockDriver is a test implementation that logs actions and keeps
// pin levels in memory so tests can script inputs (e.g. the home
// sensor) with SetPinState.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
}

// NewMockDriver creates an in-memory GPIO driver. All pins read Low
// until written or set via SetPinState.
func NewMockDriver() *MockDriver {
	return &MockDriver{levels: make(map[int]Level)}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	m.levels[pin] = level
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	level := m.levels[pin]
	m.mu.Unlock()
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

// SetPinState forces a pin level, as if external hardware drove the line.
func (m *MockDriver) SetPinState(pin int, level Level) {
	m.mu.Lock()
	m.levels[pin] = level
	m.mu.Unlock()
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
