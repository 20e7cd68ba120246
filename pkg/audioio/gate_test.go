package audioio

import (
	"testing"
	"time"

	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/state"
)

func loudSamples(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = 20000
	}
	return s
}

func quietSamples(n int) []int16 {
	return make([]int16, n)
}

func TestGate_SmartSilenceForwardsLoudChunks(t *testing.T) {
	st := state.New(events.New())
	g := NewGate(GateConfig{SilenceThreshold: 25, SpeechTailDuration: 50 * time.Millisecond}, st)

	_, forward := g.Evaluate(loudSamples(256))
	if !forward {
		t.Fatal("expected loud chunk to be forwarded")
	}
}

func TestGate_SmartSilenceDropsQuietChunkAfterTail(t *testing.T) {
	st := state.New(events.New())
	g := NewGate(GateConfig{SilenceThreshold: 25, SpeechTailDuration: 5 * time.Millisecond}, st)

	g.Evaluate(loudSamples(256))
	time.Sleep(10 * time.Millisecond)

	_, forward := g.Evaluate(quietSamples(256))
	if forward {
		t.Fatal("expected quiet chunk past the speech tail to be dropped")
	}
}

func TestGate_SmartSilenceKeepsTailWindow(t *testing.T) {
	st := state.New(events.New())
	g := NewGate(GateConfig{SilenceThreshold: 25, SpeechTailDuration: 200 * time.Millisecond}, st)

	g.Evaluate(loudSamples(256))
	_, forward := g.Evaluate(quietSamples(256))
	if !forward {
		t.Fatal("expected quiet chunk within the speech tail to still be forwarded")
	}
}

func TestGate_BargeInRequiresThresholdWhileSpeaking(t *testing.T) {
	st := state.New(events.New())
	st.SetTalkingMovement(true)
	g := NewGate(GateConfig{EnableBargeIn: true, BargeInVolumeThreshold: 50}, st)

	_, forward := g.Evaluate(quietSamples(256))
	if forward {
		t.Fatal("expected quiet chunk to be dropped while robot is speaking")
	}

	_, forward = g.Evaluate(loudSamples(256))
	if !forward {
		t.Fatal("expected loud chunk above barge-in threshold to be forwarded")
	}
}

func TestGate_BargeInDisabledDropsEverythingWhileSpeaking(t *testing.T) {
	st := state.New(events.New())
	st.SetTalkingMovement(true)
	g := NewGate(GateConfig{EnableBargeIn: false}, st)

	_, forward := g.Evaluate(loudSamples(256))
	if forward {
		t.Fatal("expected every chunk to be dropped with barge-in disabled")
	}
}

func TestGate_DisableSpeakerBypassesBargeInGate(t *testing.T) {
	st := state.New(events.New())
	st.SetTalkingMovement(true)
	g := NewGate(GateConfig{DisableSpeaker: true, SilenceThreshold: 25}, st)

	_, forward := g.Evaluate(loudSamples(256))
	if !forward {
		t.Fatal("expected smart-silence gating (not barge-in) when speaker is disabled")
	}
}
