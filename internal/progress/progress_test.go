package progress

import (
	"testing"
	"time"
)

func TestPhase_String(t *testing.T) {
	cases := []struct {
		phase Phase
		want  string
	}{
		{Homing, "homing"},
		{HomingFailed, "homing_failed"},
		{Positioning, "positioning"},
		{Capturing, "capturing"},
		{CaptureFailed, "capture_failed"},
		{Stitching, "stitching"},
		{StitchingFailed, "stitching_failed"},
		{Preprocessing, "preprocessing"},
		{Complete, "complete"},
		{Cancelled, "cancelled"},
		{Phase(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.phase.String(); got != tc.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tc.phase, got, tc.want)
		}
	}
}

func TestPhase_Terminal(t *testing.T) {
	terminal := []Phase{HomingFailed, CaptureFailed, StitchingFailed, Complete, Cancelled}
	for _, p := range terminal {
		if !p.Terminal() {
			t.Errorf("%v should be terminal", p)
		}
	}
	running := []Phase{Homing, Positioning, Capturing, Stitching, Preprocessing}
	for _, p := range running {
		if p.Terminal() {
			t.Errorf("%v should not be terminal", p)
		}
	}
}

func TestBroadcaster_SubscribeReceive(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	sent := Event{Phase: Capturing, FrameIndex: 2, TotalFrames: 4, Percent: 42.5}
	b.Publish(sent)

	select {
	case got := <-ch:
		if got != sent {
			t.Errorf("received %+v, want %+v", got, sent)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(Event{Phase: Homing, Percent: 5})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Phase != Homing {
				t.Errorf("subscriber %d received %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic or block.
	b.Publish(Event{Phase: Complete, Percent: 100})
}

func TestBroadcaster_FullSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	_, unsub := b.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// More events than the subscriber buffer; nobody is draining.
		for i := 0; i < 200; i++ {
			b.Publish(Event{Phase: Positioning, Percent: float64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestBroadcaster_Callback(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	var fn Func = b.Callback()
	fn(Event{Phase: Stitching, Percent: 70})

	select {
	case got := <-ch:
		if got.Phase != Stitching || got.Percent != 70 {
			t.Errorf("received %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}
