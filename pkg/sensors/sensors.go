// Package sensors polls the dog's touch, ear-array, and IMU sensors and
// turns raw readings into the typed change events AwarenessLoop reacts to.
// It never drives the motors itself; it only writes labels and timestamps
// into the shared state store and emits events.
package sensors

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/hardware"
	"github.com/teslashibe/go-pidog/pkg/state"
)

// SpeechActivity reports whether the conversation is currently using the
// ears for anything, so sound-direction reporting can stay out of the way.
type SpeechActivity interface {
	UserSpeaking() bool
	ModelSpeaking() bool
	ResponseActive() bool
}

const soundDebounce = 2 * time.Second

type compassRange struct {
	low, high float64
	label     string
}

var compassRanges = []compassRange{
	{337.5, 360, "front"},
	{0, 22.5, "front"},
	{22.5, 67.5, "front right"},
	{67.5, 112.5, "right"},
	{112.5, 157.5, "back right"},
	{157.5, 202.5, "back"},
	{202.5, 247.5, "back left"},
	{247.5, 292.5, "left"},
	{292.5, 337.5, "front left"},
}

// Monitor polls Dog at a fixed interval and publishes edge-triggered
// petting, sound-direction, orientation, and face-presence events.
type Monitor struct {
	dog    hardware.Dog
	states *state.Store
	bus    *events.Bus
	speech SpeechActivity

	interval time.Duration

	enableMu sync.Mutex
	disabled bool

	lastSoundReport time.Time
	haveOrientation bool
	lastOrientation string

	stop chan struct{}
}

// New creates a Monitor. speech may be nil if no realtime session is wired
// yet (sound-direction reporting then runs undebounced by voice activity).
func New(dog hardware.Dog, states *state.Store, bus *events.Bus, speech SpeechActivity, interval time.Duration) *Monitor {
	return &Monitor{
		dog:      dog,
		states:   states,
		bus:      bus,
		speech:   speech,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Run polls until ctx is cancelled or Stop is called.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// Stop halts the poll loop.
func (m *Monitor) Stop() {
	close(m.stop)
}

// SetEnabled pauses or resumes polling without tearing the loop down;
// the external control surface uses this.
func (m *Monitor) SetEnabled(enabled bool) {
	m.enableMu.Lock()
	m.disabled = !enabled
	m.enableMu.Unlock()
}

func (m *Monitor) poll() {
	m.enableMu.Lock()
	disabled := m.disabled
	m.enableMu.Unlock()
	if disabled {
		return
	}
	m.pollTouch()
	m.pollSound()
	m.pollOrientation()
}

func (m *Monitor) pollTouch() {
	status, err := m.dog.ReadTouch()
	if err != nil {
		return
	}

	was := m.states.Snapshot().IsBeingPetted
	isPetted := status != hardware.TouchNone
	m.states.SetPetting(isPetted)

	if isPetted && !was {
		m.emit("petting_change", map[string]any{"gesture": string(status)})
	}
}

func (m *Monitor) pollSound() {
	detected, err := m.dog.EarsDetected()
	if err != nil || !detected {
		return
	}

	if m.speech != nil && (m.speech.UserSpeaking() || m.speech.ModelSpeaking() || m.speech.ResponseActive()) {
		return
	}

	if time.Since(m.lastSoundReport) < soundDebounce {
		return
	}

	degrees, err := m.dog.EarsRead()
	if err != nil {
		return
	}

	direction := compassLabel(degrees)
	current := m.states.Snapshot().LastSoundDirection
	if direction == current {
		return
	}

	m.states.SetSoundDirection(direction)
	m.lastSoundReport = time.Now()
	m.emit("sound_direction_change", map[string]any{"direction": direction})
}

func compassLabel(degrees float64) string {
	for _, r := range compassRanges {
		if degrees >= r.low && degrees < r.high {
			return r.label
		}
	}
	return "unknown"
}

func (m *Monitor) pollOrientation() {
	ax, ay, az, err := m.dog.AccData()
	if err != nil {
		return
	}

	description := orientationDescription(ax, ay, az)

	if !m.haveOrientation {
		m.haveOrientation = true
		m.lastOrientation = description
		m.states.SetOrientation(description)
		return
	}

	if description == m.lastOrientation {
		return
	}

	m.lastOrientation = description
	m.states.SetOrientation(description)
	m.emit("orientation_change", map[string]any{"description": description})
}

// orientationDescription classifies accelerometer readings the same way
// the original firmware's orientation check does: body pitch/roll from the
// gravity vector, then a small set of threshold bands.
func orientationDescription(ax, ay, az float64) string {
	bodyPitch := math.Atan2(ay, math.Sqrt(ax*ax+az*az)) * 180 / math.Pi
	bodyRoll := math.Atan2(-ax, az) * 180 / math.Pi

	switch {
	case bodyRoll <= -80:
		return "You are upside down!"
	case -40 <= bodyPitch && bodyPitch <= 15 && 65 <= bodyRoll && bodyRoll <= 105:
		return "You are upright."
	case -40 <= bodyPitch && bodyPitch <= 15 && 155 <= math.Abs(bodyRoll) && math.Abs(bodyRoll) <= 190:
		if bodyRoll > 0 {
			return "You are on your left side!"
		}
		return "You are on your right side!"
	case bodyPitch >= 75:
		return "You are hanging by your tail!"
	case bodyPitch <= -75:
		return "You are hanging by your nose!"
	default:
		return "The dog's orientation is unclear."
	}
}

// SetFacePresence is driven by FaceTracker's detection probe, not polled
// here directly, but owned by this package so face-presence edges use the
// same emit path as the sensor-derived ones.
func (m *Monitor) SetFacePresence(present bool) {
	was := m.states.Snapshot().FacePresent
	m.states.SetFacePresent(present)
	if present != was {
		m.emit("face_presence_change", map[string]any{"present": present})
	}
}

func (m *Monitor) emit(eventType string, payload map[string]any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
