package motion

import (
	"errors"
	"testing"
	"time"
)

// fakeDriver tracks a virtual step position so homing and moves can be
// verified without hardware. The sensor triggers at position <= 0.
type fakeDriver struct {
	pos    int
	calls  []stepCall
	closed int
}

type stepCall struct {
	steps int
	dir   Direction
}

func (d *fakeDriver) Step(steps int, dir Direction) error {
	d.calls = append(d.calls, stepCall{steps: steps, dir: dir})
	if dir == Reverse {
		d.pos -= steps
	} else {
		d.pos += steps
	}
	return nil
}

func (d *fakeDriver) AtHome() (bool, error) {
	return d.pos <= 0, nil
}

func (d *fakeDriver) Close() error {
	d.closed++
	return nil
}

func testConfig() Config {
	return Config{
		StepsPerMM:     100,
		TravelLimitMM:  160,
		MaxHomingSteps: 19322,
	}
}

func newTestController(t *testing.T, drv Driver) *Controller {
	t.Helper()
	ctrl, err := NewController(drv, testConfig())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl
}

// ---------- Home ----------

func TestController_HomeSuccess(t *testing.T) {
	drv := &fakeDriver{pos: 100}
	ctrl := newTestController(t, drv)

	if err := ctrl.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if !ctrl.Homed() {
		t.Error("controller should be homed after successful Home")
	}
	if ctrl.Position() != 0 {
		t.Errorf("position after homing = %v, want 0", ctrl.Position())
	}
	for _, c := range drv.calls {
		if c.dir != Reverse {
			t.Errorf("homing issued a %v step batch; homing only drives reverse", c.dir)
		}
		if c.steps > homeBatchSteps {
			t.Errorf("homing batch of %d steps exceeds %d", c.steps, homeBatchSteps)
		}
	}
}

func TestController_HomeAlreadyAtSensor(t *testing.T) {
	drv := &fakeDriver{pos: 0}
	ctrl := newTestController(t, drv)

	if err := ctrl.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if len(drv.calls) != 0 {
		t.Errorf("homing at the sensor should issue no steps, got %d batches", len(drv.calls))
	}
}

func TestController_HomeLimitNotReached(t *testing.T) {
	// Sensor further away than the step bound allows.
	drv := &fakeDriver{pos: 1 << 30}
	ctrl := newTestController(t, drv)

	err := ctrl.Home()
	var homeErr *HomingError
	if !errors.As(err, &homeErr) {
		t.Fatalf("expected *HomingError, got %v", err)
	}
	if homeErr.StepsTried != testConfig().MaxHomingSteps {
		t.Errorf("StepsTried = %d, want %d", homeErr.StepsTried, testConfig().MaxHomingSteps)
	}
	if ctrl.Homed() {
		t.Error("controller must not be homed after a homing failure")
	}

	total := 0
	for _, c := range drv.calls {
		total += c.steps
	}
	if total != testConfig().MaxHomingSteps {
		t.Errorf("total homing steps = %d, want exactly the bound %d", total, testConfig().MaxHomingSteps)
	}
}

func TestController_RehomeAfterMove(t *testing.T) {
	drv := &fakeDriver{pos: 50}
	ctrl := newTestController(t, drv)

	if err := ctrl.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if err := ctrl.MoveTo(50); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if err := ctrl.Home(); err != nil {
		t.Fatalf("re-Home: %v", err)
	}
	if ctrl.Position() != 0 {
		t.Errorf("position after re-homing = %v, want 0", ctrl.Position())
	}
}

// ---------- MoveTo ----------

func TestController_MoveBeforeHome(t *testing.T) {
	drv := &fakeDriver{pos: 100}
	ctrl := newTestController(t, drv)

	err := ctrl.MoveTo(10)
	if !errors.Is(err, ErrNotHomed) {
		t.Fatalf("expected ErrNotHomed, got %v", err)
	}
	if len(drv.calls) != 0 {
		t.Errorf("failed move must not issue steps, got %d batches", len(drv.calls))
	}
}

func TestController_MoveOutOfRange(t *testing.T) {
	drv := &fakeDriver{pos: 0}
	ctrl := newTestController(t, drv)
	if err := ctrl.Home(); err != nil {
		t.Fatal(err)
	}

	cases := []float64{-1, 160.01, 1000}
	for _, target := range cases {
		err := ctrl.MoveTo(target)
		var rangeErr *OutOfRangeError
		if !errors.As(err, &rangeErr) {
			t.Errorf("MoveTo(%v): expected *OutOfRangeError, got %v", target, err)
			continue
		}
		if rangeErr.TargetMM != target {
			t.Errorf("TargetMM = %v, want %v", rangeErr.TargetMM, target)
		}
		if ctrl.Position() != 0 {
			t.Errorf("position changed on rejected move: %v", ctrl.Position())
		}
	}
}

func TestController_MoveStepCounts(t *testing.T) {
	drv := &fakeDriver{pos: 0}
	ctrl := newTestController(t, drv)
	if err := ctrl.Home(); err != nil {
		t.Fatal(err)
	}
	drv.calls = nil

	// 50 mm at 100 steps/mm = 5000 steps forward.
	if err := ctrl.MoveTo(50); err != nil {
		t.Fatalf("MoveTo(50): %v", err)
	}
	if len(drv.calls) != 1 || drv.calls[0].steps != 5000 || drv.calls[0].dir != Forward {
		t.Errorf("MoveTo(50) issued %+v, want one batch of 5000 forward", drv.calls)
	}
	if ctrl.Position() != 50 {
		t.Errorf("position = %v, want 50", ctrl.Position())
	}

	// Back to 20 mm: 3000 steps reverse.
	drv.calls = nil
	if err := ctrl.MoveTo(20); err != nil {
		t.Fatalf("MoveTo(20): %v", err)
	}
	if len(drv.calls) != 1 || drv.calls[0].steps != 3000 || drv.calls[0].dir != Reverse {
		t.Errorf("MoveTo(20) issued %+v, want one batch of 3000 reverse", drv.calls)
	}
}

func TestController_MoveToSamePosition(t *testing.T) {
	drv := &fakeDriver{pos: 0}
	ctrl := newTestController(t, drv)
	if err := ctrl.Home(); err != nil {
		t.Fatal(err)
	}
	drv.calls = nil

	if err := ctrl.MoveTo(0); err != nil {
		t.Fatalf("MoveTo(0): %v", err)
	}
	if len(drv.calls) != 0 {
		t.Errorf("zero-delta move should issue no steps, got %d batches", len(drv.calls))
	}
}

// ---------- Cleanup ----------

func TestController_CleanupIdempotent(t *testing.T) {
	drv := &fakeDriver{pos: 0}
	ctrl := newTestController(t, drv)

	if err := ctrl.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if err := ctrl.Cleanup(); err != nil {
		t.Errorf("second Cleanup: %v", err)
	}
	if drv.closed != 1 {
		t.Errorf("driver closed %d times, want 1", drv.closed)
	}
}

func TestController_NoMotionAfterCleanup(t *testing.T) {
	drv := &fakeDriver{pos: 0}
	ctrl := newTestController(t, drv)
	if err := ctrl.Home(); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Cleanup(); err != nil {
		t.Fatal(err)
	}

	if err := ctrl.Home(); !errors.Is(err, ErrClosed) {
		t.Errorf("Home after Cleanup: expected ErrClosed, got %v", err)
	}
	if err := ctrl.MoveTo(10); !errors.Is(err, ErrClosed) {
		t.Errorf("MoveTo after Cleanup: expected ErrClosed, got %v", err)
	}
}

// ---------- Config validation ----------

func TestNewController_InvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero_steps_per_mm", Config{StepsPerMM: 0, TravelLimitMM: 160, MaxHomingSteps: 100}},
		{"zero_travel", Config{StepsPerMM: 100, TravelLimitMM: 0, MaxHomingSteps: 100}},
		{"zero_homing_bound", Config{StepsPerMM: 100, TravelLimitMM: 160, MaxHomingSteps: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewController(&fakeDriver{}, tc.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- ScanSequence ----------

func TestScanSequence_ScenarioFourFrames(t *testing.T) {
	positions := ScanSequence(4, 150)
	want := []float64{0, 50, 100, 150}
	if len(positions) != len(want) {
		t.Fatalf("got %d positions, want %d", len(positions), len(want))
	}
	for i, pos := range positions {
		if pos.Index != i {
			t.Errorf("positions[%d].Index = %d, want %d", i, pos.Index, i)
		}
		if pos.TargetMM != want[i] {
			t.Errorf("positions[%d].TargetMM = %v, want %v", i, pos.TargetMM, want[i])
		}
	}
}

func TestScanSequence_SingleFrame(t *testing.T) {
	positions := ScanSequence(1, 150)
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	if positions[0].TargetMM != 0 {
		t.Errorf("single frame should target 0, got %v", positions[0].TargetMM)
	}
}

func TestScanSequence_Properties(t *testing.T) {
	cases := []struct {
		numFrames int
		spanMM    float64
	}{
		{2, 10},
		{3, 100},
		{7, 33},
		{10, 0.5},
	}
	for _, tc := range cases {
		positions := ScanSequence(tc.numFrames, tc.spanMM)
		if len(positions) != tc.numFrames {
			t.Errorf("ScanSequence(%d, %v): got %d positions", tc.numFrames, tc.spanMM, len(positions))
			continue
		}
		if positions[0].TargetMM != 0 {
			t.Errorf("ScanSequence(%d, %v): first position = %v, want 0", tc.numFrames, tc.spanMM, positions[0].TargetMM)
		}
		if last := positions[len(positions)-1].TargetMM; last != tc.spanMM {
			t.Errorf("ScanSequence(%d, %v): last position = %v, want %v", tc.numFrames, tc.spanMM, last, tc.spanMM)
		}
		for i := 1; i < len(positions); i++ {
			if positions[i].TargetMM <= positions[i-1].TargetMM {
				t.Errorf("ScanSequence(%d, %v): positions not strictly increasing at %d", tc.numFrames, tc.spanMM, i)
			}
		}
	}
}

func TestScanSequence_NoFrames(t *testing.T) {
	if positions := ScanSequence(0, 150); positions != nil {
		t.Errorf("ScanSequence(0, ...) = %v, want nil", positions)
	}
}

// ---------- SimulatedMotion ----------

func TestSimulatedMotion_HomeAndMove(t *testing.T) {
	drv := NewSimulatedMotion(time.Microsecond)
	ctrl, err := NewController(drv, Config{
		StepsPerMM:     100,
		TravelLimitMM:  160,
		MaxHomingSteps: 19322,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := ctrl.Home(); err != nil {
		t.Fatalf("simulated Home: %v", err)
	}
	if !ctrl.Homed() {
		t.Error("simulated controller should be homed")
	}
	if err := ctrl.MoveTo(150); err != nil {
		t.Fatalf("simulated MoveTo: %v", err)
	}
	if ctrl.Position() != 150 {
		t.Errorf("position = %v, want 150", ctrl.Position())
	}
	if err := ctrl.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
}
