package audioio

import (
	"sync"
	"time"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/state"
)

// GateConfig tunes the capture-path gating decision.
type GateConfig struct {
	SilenceThreshold       float64
	BargeInVolumeThreshold float64
	EnableBargeIn          bool
	DisableSpeaker         bool
	SpeechTailDuration     time.Duration
}

// Gate decides, chunk by chunk, whether captured audio should be forwarded
// to the model. While the robot is audibly speaking it applies barge-in
// gating; otherwise it applies smart silence gating with a speech tail.
type Gate struct {
	cfg    GateConfig
	states *state.Store

	speechActive bool
	lastSpeechAt time.Time

	volMu     sync.Mutex
	latestVol float64
}

// LatestVolume returns the RMS volume of the most recent captured chunk on
// the same 0-100 scale Evaluate uses. AwarenessLoop reads this to classify
// loud versus quiet sounds.
func (g *Gate) LatestVolume() float64 {
	g.volMu.Lock()
	defer g.volMu.Unlock()
	return g.latestVol
}

// NewGate creates a Gate reading the robot's talking-movement flag from
// states to decide whether barge-in or silence gating applies.
func NewGate(cfg GateConfig, states *state.Store) *Gate {
	return &Gate{cfg: cfg, states: states}
}

// Evaluate returns the chunk's RMS volume on a 0-100 scale and whether it
// should be forwarded to the model.
func (g *Gate) Evaluate(samples []int16) (volume float64, forward bool) {
	volume = CalculateRMS(samples) * 100
	g.volMu.Lock()
	g.latestVol = volume
	g.volMu.Unlock()

	if g.audiblySpeaking() {
		if !g.cfg.EnableBargeIn {
			return volume, false
		}
		return volume, volume >= g.cfg.BargeInVolumeThreshold
	}

	return volume, g.smartSilence(volume)
}

func (g *Gate) audiblySpeaking() bool {
	if g.cfg.DisableSpeaker {
		return false
	}
	return g.states.Snapshot().IsTalkingMovement
}

func (g *Gate) smartSilence(volume float64) bool {
	now := time.Now()
	loud := volume >= g.cfg.SilenceThreshold
	if loud {
		g.lastSpeechAt = now
	}

	withinTail := !g.lastSpeechAt.IsZero() && now.Sub(g.lastSpeechAt) < g.cfg.SpeechTailDuration
	forward := loud || withinTail

	if forward != g.speechActive {
		g.speechActive = forward
		log.Debug("audioio: speech active changed", "active", forward, "volume", volume)
	}
	return forward
}
