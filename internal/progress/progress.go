package progress

// Phase identifies where a scan session currently is.
type Phase int

const (
	Homing Phase = iota
	HomingFailed
	Positioning
	Capturing
	CaptureFailed
	Stitching
	StitchingFailed
	Preprocessing
	Complete
	Cancelled
)

var phaseNames = map[Phase]string{
	Homing:          "homing",
	HomingFailed:    "homing_failed",
	Positioning:     "positioning",
	Capturing:       "capturing",
	CaptureFailed:   "capture_failed",
	Stitching:       "stitching",
	StitchingFailed: "stitching_failed",
	Preprocessing:   "preprocessing",
	Complete:        "complete",
	Cancelled:       "cancelled",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the phase ends a session.
func (p Phase) Terminal() bool {
	switch p {
	case HomingFailed, CaptureFailed, StitchingFailed, Complete, Cancelled:
		return true
	}
	return false
}

// Event is a single progress notification. FrameIndex is 1-based and
// only meaningful while Phase == Capturing; it is 0 otherwise.
// Percent is 0-100 and never decreases within a session.
type Event struct {
	Phase       Phase
	FrameIndex  int
	TotalFrames int
	Percent     float64
}

// Func receives progress events. It is called synchronously from the
// session worker; observers that talk to a UI should hand the event off
// to their own loop instead of blocking here.
type Func func(Event)
