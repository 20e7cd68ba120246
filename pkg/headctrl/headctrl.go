// Package headctrl composes the head's three additive pose layers (base,
// posture bias, and a talking overlay), clamps and rate-limits the result,
// and pushes it to the hardware at a fixed tick rate with a hysteresis
// gate and error-throttled logging.
package headctrl

import (
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/hardware"
	"github.com/teslashibe/go-pidog/pkg/state"
)

// Limits bounds each axis of the effective pose, in degrees.
type Limits struct {
	Yaw, Pitch, Roll float64
}

// DefaultLimits returns the production joint-angle ceilings.
func DefaultLimits() Limits {
	return Limits{Yaw: 80, Pitch: 35, Roll: 35}
}

// TalkOverlayParams configures the sinusoidal talking animation.
type TalkOverlayParams struct {
	AmplitudeYaw   float64
	AmplitudePitch float64
	AmplitudeRoll  float64
	FrequencyHz    float64
	AudioGain      float64 // scales amplitude by the speech envelope when > 0
}

// DefaultTalkOverlayParams returns the production talking-animation tuning.
func DefaultTalkOverlayParams() TalkOverlayParams {
	return TalkOverlayParams{
		AmplitudeYaw:   4,
		AmplitudePitch: 3.5,
		AmplitudeRoll:  1.5,
		FrequencyHz:    1.4,
		AudioGain:      1.0,
	}
}

const (
	updateInterval    = 50 * time.Millisecond
	hysteresisDegrees = 0.4
)

// Controller owns PoseComposition exclusively: base (intent), bias
// (posture), and talk (speaking overlay).
type Controller struct {
	dog    hardware.Dog
	states *state.Store
	limits Limits
	talk   TalkOverlayParams

	mu   sync.RWMutex
	base state.HeadPose
	bias state.HeadPose

	talkMu      sync.RWMutex
	talking     bool
	talkStart   time.Time
	talkAmpScal float64 // current audio-envelope scale, 0..1+

	lastSent  state.HeadPose
	haveSent  bool
	errCount  uint64
	lastErrAt time.Time

	stop chan struct{}
}

// New creates a Controller; call Run in a goroutine to start the tick loop.
func New(dog hardware.Dog, states *state.Store, limits Limits, talk TalkOverlayParams) *Controller {
	return &Controller{
		dog:         dog,
		states:      states,
		limits:      limits,
		talk:        talk,
		talkAmpScal: 1.0,
		stop:        make(chan struct{}),
	}
}

// SetPose sets the absolute base pose.
func (c *Controller) SetPose(yaw, pitch, roll *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if yaw != nil {
		c.base.Yaw = *yaw
	}
	if pitch != nil {
		c.base.Pitch = *pitch
	}
	if roll != nil {
		c.base.Roll = *roll
	}
}

// AdjustPose applies a relative delta to the base pose.
func (c *Controller) AdjustPose(dy, dp, dr float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base.Yaw += dy
	c.base.Pitch += dp
	c.base.Roll += dr
}

// CurrentPose returns the clamped effective pose (base+bias+talk).
func (c *Controller) CurrentPose() state.HeadPose {
	return c.effective()
}

// SyncWithHardware reads the current hardware angles and sets the base
// pose so that, net of bias, the controller's idea of "base" matches
// reality. Used after a macro drives head servos directly.
func (c *Controller) SyncWithHardware() error {
	yaw, pitch, roll, err := c.dog.HeadCurrentAngles()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.base = state.HeadPose{Yaw: yaw, Pitch: pitch, Roll: roll}.Add(negate(c.bias))
	c.mu.Unlock()
	return nil
}

// SetPostureBias changes the posture bias while preserving the effective
// pitch: base absorbs the delta so the head does not visibly jump.
func (c *Controller) SetPostureBias(pitchBias float64) {
	c.mu.Lock()
	delta := pitchBias - c.bias.Pitch
	c.bias.Pitch = pitchBias
	c.base.Pitch -= delta
	c.mu.Unlock()
}

// EnableTalking starts the sinusoidal talk overlay. When AudioGain > 0 the
// amplitude is scaled by the value last set with SetTalkAmplitudeScale
// (1.0 until it is set).
func (c *Controller) EnableTalking() {
	c.talkMu.Lock()
	c.talking = true
	c.talkStart = time.Now()
	c.talkMu.Unlock()
}

// SetTalkAmplitudeScale feeds the current speech-amplitude envelope into
// the overlay; values are typically in [0,1].
func (c *Controller) SetTalkAmplitudeScale(scale float64) {
	c.talkMu.Lock()
	c.talkAmpScal = scale
	c.talkMu.Unlock()
}

// DisableTalking stops the overlay; the next hardware command reverts to
// base+bias deterministically (talk_offset resets to zero).
func (c *Controller) DisableTalking() {
	c.talkMu.Lock()
	c.talking = false
	c.talkMu.Unlock()
}

func (c *Controller) talkOffset() state.HeadPose {
	c.talkMu.RLock()
	talking := c.talking
	start := c.talkStart
	ampScale := c.talkAmpScal
	c.talkMu.RUnlock()

	if !talking {
		return state.HeadPose{}
	}

	t := time.Since(start).Seconds()
	gain := 1.0
	if c.talk.AudioGain > 0 {
		gain = c.talk.AudioGain * ampScale
	}

	f := c.talk.FrequencyHz
	return state.HeadPose{
		Yaw:   gain * c.talk.AmplitudeYaw * math.Sin(2*math.Pi*0.8*f*t),
		Pitch: gain * c.talk.AmplitudePitch * math.Sin(2*math.Pi*f*t+math.Pi/4),
		Roll:  gain * c.talk.AmplitudeRoll * math.Sin(2*math.Pi*1.3*f*t),
	}
}

func (c *Controller) effective() state.HeadPose {
	c.mu.RLock()
	base, bias := c.base, c.bias
	c.mu.RUnlock()

	combined := base.Add(bias).Add(c.talkOffset())
	return combined.Clamp(c.limits.Yaw, c.limits.Pitch, c.limits.Roll)
}

// Run starts the 20Hz control loop; blocks until Stop is called.
func (c *Controller) Run() {
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) tick() {
	eff := c.effective()

	if c.haveSent && !movedEnough(c.lastSent, eff, hysteresisDegrees) {
		return
	}

	if err := c.dog.SetHeadPose(eff.Roll, eff.Pitch, eff.Yaw); err != nil {
		c.errCount++
		if c.lastErrAt.IsZero() || time.Since(c.lastErrAt) > 5*time.Second {
			log.Warn("headctrl: hardware push failed", "error", err, "total_errors", c.errCount)
			c.lastErrAt = time.Now()
		}
		return
	}

	c.lastSent = eff
	c.haveSent = true
	if c.states != nil {
		c.states.SetHeadPose(eff)
	}
}

func movedEnough(prev, next state.HeadPose, threshold float64) bool {
	return math.Abs(prev.Yaw-next.Yaw) > threshold ||
		math.Abs(prev.Pitch-next.Pitch) > threshold ||
		math.Abs(prev.Roll-next.Roll) > threshold
}

func negate(p state.HeadPose) state.HeadPose {
	return state.HeadPose{Yaw: -p.Yaw, Pitch: -p.Pitch, Roll: -p.Roll}
}

// Stop halts the control loop.
func (c *Controller) Stop() {
	close(c.stop)
}
