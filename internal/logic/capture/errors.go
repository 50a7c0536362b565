package capture

import (
	"errors"
	"fmt"
)

// ErrSpent is returned by Run once a pipeline's single session has
// finished; its hardware was already cleaned up on that session's exit.
var ErrSpent = errors.New("capture: pipeline already ran its session")

// FailureKind classifies how a scan session terminated.
type FailureKind int

const (
	FailureHoming FailureKind = iota
	FailureCapture
	FailureStitching
	FailureBusy
	FailureCancelled
)

func (k FailureKind) String() string {
	switch k {
	case FailureHoming:
		return "homing"
	case FailureCapture:
		return "capture"
	case FailureStitching:
		return "stitching"
	case FailureBusy:
		return "busy"
	case FailureCancelled:
		return "cancelled"
	}
	return "unknown"
}

// SessionError is the terminal outcome of a failed session. Every kind
// carries a distinct message; FrameIndex is the 0-based frame on which
// a capture failure occurred and is meaningless for other kinds.
type SessionError struct {
	Kind       FailureKind
	FrameIndex int
	Err        error
}

func (e *SessionError) Error() string {
	switch e.Kind {
	case FailureHoming:
		return fmt.Sprintf("scan session failed: stage homing did not complete: %v", e.Err)
	case FailureCapture:
		return fmt.Sprintf("scan session failed: frame %d could not be captured: %v", e.FrameIndex, e.Err)
	case FailureStitching:
		return fmt.Sprintf("scan session failed: frames could not be stitched: %v", e.Err)
	case FailureBusy:
		return "scan session rejected: another session is already running"
	case FailureCancelled:
		return "scan session cancelled"
	}
	return fmt.Sprintf("scan session failed: %v", e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
