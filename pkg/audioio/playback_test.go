package audioio

import (
	"context"
	"testing"

	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/state"
)

type fakeOverlay struct {
	enabled  bool
	disabled bool
	scale    float64
}

func (f *fakeOverlay) EnableTalking()               { f.enabled = true; f.disabled = false }
func (f *fakeOverlay) DisableTalking()               { f.disabled = true; f.enabled = false }
func (f *fakeOverlay) SetTalkAmplitudeScale(s float64) { f.scale = s }

func newTestPlayer(frameSize int) (*Player, *MockSink, *fakeOverlay) {
	sink := NewMockSink(DefaultConfig(), nil)
	sink.Start(context.Background())
	overlay := &fakeOverlay{}
	st := state.New(events.New())
	p := NewPlayer(sink, overlay, st, frameSize, 1.0, 0)
	return p, sink, overlay
}

func TestPlayer_EnablesOverlayWhenFrameAvailable(t *testing.T) {
	p, sink, overlay := newTestPlayer(4)
	p.Enqueue([]int16{100, 200, 300, 400})

	p.tick(context.Background())

	if !overlay.enabled {
		t.Error("expected overlay to be enabled once a full frame is available")
	}
	if sink.chunksWritten.Load() != 1 {
		t.Errorf("expected one chunk written, got %d", sink.chunksWritten.Load())
	}
}

func TestPlayer_DisablesOverlayWhenBufferDrains(t *testing.T) {
	p, _, overlay := newTestPlayer(4)
	p.Enqueue([]int16{100, 200, 300, 400})
	p.tick(context.Background())

	p.tick(context.Background())

	if !overlay.disabled {
		t.Error("expected overlay to be disabled once the buffer drains")
	}
}

func TestPlayer_InterruptClearsQueueAndOverlay(t *testing.T) {
	p, _, overlay := newTestPlayer(4)
	p.Enqueue([]int16{100, 200, 300, 400, 500, 600, 700, 800})
	p.tick(context.Background())

	p.InterruptPlayback("barge_in")

	p.mu.Lock()
	bufLen := len(p.buf)
	p.mu.Unlock()
	if bufLen != 0 {
		t.Errorf("expected queue cleared, got %d samples remaining", bufLen)
	}
	if !overlay.disabled {
		t.Error("expected overlay forced off after interrupt")
	}
}

func TestPlayer_OverflowDropsChunk(t *testing.T) {
	p, _, _ := newTestPlayer(4)
	p.maxBuf = 4

	p.Enqueue([]int16{1, 2, 3, 4})
	p.Enqueue([]int16{5, 6, 7, 8})

	p.mu.Lock()
	bufLen := len(p.buf)
	p.mu.Unlock()
	if bufLen != 4 {
		t.Errorf("expected overflow chunk dropped, buffer len = %d", bufLen)
	}
}

func TestScaleVolume_ClampsToPCM16Range(t *testing.T) {
	out := scaleVolume([]int16{30000}, 2.0)
	if out[0] != 32767 {
		t.Errorf("expected clamp to max int16, got %d", out[0])
	}
}
