package audioio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/state"
)

// TalkOverlay is the narrow slice of the head controller the playback path
// drives: starting and stopping the talking animation and feeding it the
// live speech-amplitude envelope.
type TalkOverlay interface {
	EnableTalking()
	DisableTalking()
	SetTalkAmplitudeScale(scale float64)
}

const amplitudeEMAAlpha = 0.15

// Player assembles exact-sized frames from an inbound PCM queue, writes
// them to a Sink, and derives the talking-movement flag and speech
// amplitude envelope that drive the head's talk overlay.
type Player struct {
	sink      Sink
	overlay   TalkOverlay
	states    *state.Store
	frameSize int
	volume    float64
	maxBuf    int

	mu      sync.Mutex
	buf     []int16
	amp     float64
	playing bool

	stop chan struct{}
}

// NewPlayer creates a Player. maxBufSamples bounds the inbound queue;
// overflow drops the newest chunk and logs, matching the incoming-overflow
// contract. Pass 0 for no bound.
func NewPlayer(sink Sink, overlay TalkOverlay, states *state.Store, frameSize int, volume float64, maxBufSamples int) *Player {
	return &Player{
		sink:      sink,
		overlay:   overlay,
		states:    states,
		frameSize: frameSize,
		volume:    volume,
		maxBuf:    maxBufSamples,
		stop:      make(chan struct{}),
	}
}

// Enqueue appends samples (already resampled to speaker rate) to the
// playback buffer, or drops them if the buffer is full.
func (p *Player) Enqueue(samples []int16) {
	p.mu.Lock()
	if p.maxBuf > 0 && len(p.buf)+len(samples) > p.maxBuf {
		p.mu.Unlock()
		log.Warn("audioio: inbound playback queue overflow, dropping chunk", "samples", len(samples))
		return
	}
	p.buf = append(p.buf, samples...)
	p.mu.Unlock()
}

// Run pulls exact-sized frames from the buffer and writes them to the sink
// until ctx is cancelled or Stop is called.
func (p *Player) Run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// Stop halts the playback loop.
func (p *Player) Stop() { close(p.stop) }

// SetVolume changes the output gain applied to every subsequent frame.
// Levels follow the 0-3 scale the set_volume tool exposes.
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
}

func (p *Player) tick(ctx context.Context) {
	p.mu.Lock()
	if len(p.buf) < p.frameSize {
		empty := len(p.buf) == 0
		p.mu.Unlock()
		if empty {
			p.setPlaying(false)
		}
		return
	}
	frame := make([]int16, p.frameSize)
	copy(frame, p.buf[:p.frameSize])
	p.buf = p.buf[p.frameSize:]
	volume := p.volume
	p.mu.Unlock()

	p.setPlaying(true)
	scaled := scaleVolume(frame, volume)
	p.updateAmplitude(scaled)

	cfg := p.sink.Config()
	chunk := AudioChunk{Samples: scaled, SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	if err := p.sink.Write(ctx, chunk); err != nil {
		log.Warn("audioio: playback write failed", "error", err)
	}
}

func (p *Player) setPlaying(playing bool) {
	p.mu.Lock()
	changed := playing != p.playing
	p.playing = playing
	p.mu.Unlock()

	if !changed {
		return
	}
	if p.states != nil {
		p.states.SetTalkingMovement(playing)
	}
	if p.overlay == nil {
		return
	}
	if playing {
		p.overlay.EnableTalking()
	} else {
		p.overlay.DisableTalking()
	}
}

func (p *Player) updateAmplitude(samples []int16) {
	rms := CalculateRMS(samples)
	p.mu.Lock()
	p.amp = amplitudeEMAAlpha*rms + (1-amplitudeEMAAlpha)*p.amp
	amp := p.amp
	p.mu.Unlock()

	if p.overlay != nil {
		p.overlay.SetTalkAmplitudeScale(amp)
	}
}

func scaleVolume(samples []int16, volume float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clampPCM16(float64(s) * volume)
	}
	return out
}

func clampPCM16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// InterruptPlayback clears the buffered queue and forces the talk overlay
// off immediately. Used for barge-in and whenever a new awareness stimulus
// preempts whatever the model was saying.
func (p *Player) InterruptPlayback(reason string) {
	p.mu.Lock()
	p.buf = nil
	p.mu.Unlock()

	log.Debug("audioio: playback interrupted", "reason", reason)
	p.setPlaying(false)

	if p.sink != nil {
		if err := p.sink.Clear(); err != nil {
			log.Warn("audioio: sink clear failed", "error", err)
		}
	}
}
