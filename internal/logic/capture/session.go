package capture

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/greenbed/leafscan/internal/debug"
	"github.com/greenbed/leafscan/internal/hw/camera"
	"github.com/greenbed/leafscan/internal/logic/motion"
	"github.com/greenbed/leafscan/internal/logic/preprocess"
	"github.com/greenbed/leafscan/internal/logic/stitch"
	"github.com/greenbed/leafscan/internal/progress"
)

// Progress percent bands per phase. The capturing band is interpolated
// linearly across the frames.
const (
	pctHoming        = 5.0
	pctCaptureStart  = 20.0
	pctCaptureEnd    = 65.0
	pctStitching     = 70.0
	pctPreprocessing = 85.0
	pctComplete      = 100.0
)

// Params defines one scan session.
type Params struct {
	TotalFrames     int
	SpanMM          float64
	OverlapFraction float64
	RetryLimit      int // extra capture attempts per frame after the first
	Output          preprocess.Options
}

// Pipeline runs scan sessions end to end: home the stage, stop at each
// target position for a frame, stitch, preprocess, and report progress
// throughout. The pipeline owns no hardware state itself; all physical
// state lives in the motor controller and the frame source.
//
// A pipeline accepts one session at a time; Run rejects a concurrent
// call with FailureBusy. The motor controller and frame source are
// cleaned up on every exit path, so a pipeline instance serves exactly
// one session: calling Run again after any outcome returns ErrSpent.
type Pipeline struct {
	motor   *motion.Controller
	source  camera.Source
	params  Params
	notify  progress.Func
	running atomic.Bool
	spent   bool // guarded by running; only the session holder touches it
}

// NewPipeline creates a scan pipeline. notify may be nil.
func NewPipeline(motor *motion.Controller, source camera.Source, params Params, notify progress.Func) *Pipeline {
	return &Pipeline{
		motor:  motor,
		source: source,
		params: params,
		notify: notify,
	}
}

// session tracks per-run progress state so percent never decreases.
type session struct {
	p       *Pipeline
	percent float64
}

func (s *session) emit(phase progress.Phase, frameIndex int, percent float64) {
	if percent < s.percent {
		percent = s.percent
	}
	s.percent = percent
	if s.p.notify != nil {
		s.p.notify(progress.Event{
			Phase:       phase,
			FrameIndex:  frameIndex,
			TotalFrames: s.p.params.TotalFrames,
			Percent:     percent,
		})
	}
}

// cancelled polls the cooperative cancellation flag between atomic
// steps. It never interrupts a motor move or an exposure in flight.
func (s *session) cancelled(ctx context.Context) *SessionError {
	select {
	case <-ctx.Done():
		s.emit(progress.Cancelled, 0, s.percent)
		return &SessionError{Kind: FailureCancelled, Err: ctx.Err()}
	default:
		return nil
	}
}

// Run executes one full scan session. On success it returns the three
// artifact paths; on failure the *SessionError identifies the stage
// that terminated the session, always paired with a final progress
// event of the matching phase.
func (p *Pipeline) Run(ctx context.Context) (preprocess.Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return preprocess.Result{}, &SessionError{Kind: FailureBusy}
	}
	defer p.running.Store(false)
	if p.spent {
		return preprocess.Result{}, ErrSpent
	}
	p.spent = true

	defer func() {
		if err := p.motor.Cleanup(); err != nil {
			debug.Error(err)
		}
		if err := p.source.Close(); err != nil {
			debug.Error(err)
		}
	}()

	s := &session{p: p}
	debug.Section("Scan Session")
	debug.Scan(p.params.TotalFrames, p.params.SpanMM)

	s.emit(progress.Homing, 0, pctHoming)
	if err := p.motor.Home(); err != nil {
		s.emit(progress.HomingFailed, 0, s.percent)
		return preprocess.Result{}, &SessionError{Kind: FailureHoming, Err: err}
	}
	if serr := s.cancelled(ctx); serr != nil {
		return preprocess.Result{}, serr
	}

	positions := motion.ScanSequence(p.params.TotalFrames, p.params.SpanMM)
	frames := make([]image.Image, 0, len(positions))
	for _, pos := range positions {
		if serr := s.cancelled(ctx); serr != nil {
			return preprocess.Result{}, serr
		}
		img, err := s.acquire(ctx, pos)
		if err != nil {
			if serr := s.cancelled(ctx); serr != nil {
				return preprocess.Result{}, serr
			}
			s.emit(progress.CaptureFailed, 0, s.percent)
			return preprocess.Result{}, &SessionError{Kind: FailureCapture, FrameIndex: pos.Index, Err: err}
		}
		frames = append(frames, img)
	}

	if serr := s.cancelled(ctx); serr != nil {
		return preprocess.Result{}, serr
	}
	s.emit(progress.Stitching, 0, pctStitching)
	stitched, err := stitch.Stitch(frames, p.params.OverlapFraction)
	if err != nil {
		s.emit(progress.StitchingFailed, 0, s.percent)
		return preprocess.Result{}, &SessionError{Kind: FailureStitching, Err: err}
	}

	if serr := s.cancelled(ctx); serr != nil {
		return preprocess.Result{}, serr
	}
	s.emit(progress.Preprocessing, 0, pctPreprocessing)
	result, err := preprocess.Run(stitched, p.params.Output)
	if err != nil {
		// Artifact I/O failures share the stitching failure surface:
		// both mean the stitched result never materialized on disk.
		s.emit(progress.StitchingFailed, 0, s.percent)
		return preprocess.Result{}, &SessionError{Kind: FailureStitching, Err: err}
	}

	s.emit(progress.Complete, 0, pctComplete)
	debug.Info("Session complete: %s", result.CanvasPath)
	return result, nil
}

// acquire moves to a position and captures its frame, re-issuing the
// move + capture on capture failure up to the retry limit.
func (s *session) acquire(ctx context.Context, pos motion.FramePosition) (image.Image, error) {
	p := s.p
	n := float64(p.params.TotalFrames)
	band := pctCaptureEnd - pctCaptureStart
	posPct := pctCaptureStart + band*float64(pos.Index)/n
	capPct := pctCaptureStart + band*float64(pos.Index+1)/n

	attempts := p.params.RetryLimit + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			debug.Live("Retrying frame %d (attempt %d/%d)", pos.Index+1, attempt+1, attempts)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		s.emit(progress.Positioning, 0, posPct)
		if err := p.motor.MoveTo(pos.TargetMM); err != nil {
			// Motion failures are config/programming errors, not
			// transient capture faults; they are not retried.
			return nil, err
		}

		s.emit(progress.Capturing, pos.Index+1, capPct)
		frame, err := p.source.Capture(ctx, pos.Index)
		if err == nil {
			debug.Frame(pos.Index+1, p.params.TotalFrames)
			return frame.Image, nil
		}
		lastErr = err
		debug.Error(err)
	}
	return nil, lastErr
}
