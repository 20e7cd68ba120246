// Package awareness turns environmental deltas into unsolicited model
// prompts: petting, loud sounds, faces appearing, the dog being flipped
// over, and plain idleness all become stimulus text that interrupts
// whatever the model was doing and asks it to react. The suppression
// gate keeps it quiet while a real conversation is happening.
package awareness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/state"
)

// ModelLink is the slice of the session the loop drives: awareness
// heartbeats, informational text, idle photo wake-ups, and the activity
// flags that feed the suppression gate.
type ModelLink interface {
	// SendAwareness interrupts playback, then emits the awareness
	// heartbeat response.create.
	SendAwareness(ctx context.Context) error

	// SendStatusText injects informational text without forcing a
	// response (quiet sounds).
	SendStatusText(ctx context.Context, text string) error

	// SendPhotoAndRespond captures a frame, hands it to the model, and
	// requests a response; it returns once the request is sent.
	SendPhotoAndRespond(ctx context.Context) error

	UserSpeaking() bool
	ResponseActive() bool

	// DefaultMotivation returns the loaded persona's default motivation,
	// or ok=false when no persona is loaded yet.
	DefaultMotivation() (motivation string, ok bool)
}

// MicLevel exposes the capture path's most recent RMS volume.
type MicLevel interface {
	LatestVolume() float64
}

// Config tunes the loop.
type Config struct {
	PollInterval     time.Duration
	Debounce         time.Duration
	ReminderInterval time.Duration
	LoudThreshold    float64
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		PollInterval:     500 * time.Millisecond,
		Debounce:         5 * time.Second,
		ReminderInterval: 15 * time.Second,
		LoudThreshold:    30,
	}
}

// recentWindow bounds how stale a petting/face timestamp may be and
// still justify a reaction.
const recentWindow = 10 * time.Second

// Loop fuses sensor events, face presence, and the idle timer into
// awareness stimuli.
type Loop struct {
	cfg    Config
	states *state.Store
	bus    *events.Bus
	model  ModelLink
	mic    MicLevel

	pending        map[string]events.Event
	lastStimulusAt time.Time
	lastReminderAt time.Time

	enabled bool
}

// New creates a Loop; call Run in a goroutine.
func New(cfg Config, states *state.Store, bus *events.Bus, model ModelLink, mic MicLevel) *Loop {
	return &Loop{
		cfg:     cfg,
		states:  states,
		bus:     bus,
		model:   model,
		mic:     mic,
		pending: make(map[string]events.Event),
		enabled: true,
	}
}

// SetEnabled toggles the whole loop without tearing it down; the external
// control surface uses this.
func (l *Loop) SetEnabled(enabled bool) {
	l.enabled = enabled
}

var sensorEventTypes = map[string]bool{
	"petting_change":         true,
	"sound_direction_change": true,
	"orientation_change":     true,
	"face_presence_change":   true,
}

// Run consumes sensor events and ticks the stimulus policy until ctx is
// cancelled.
func (l *Loop) Run(ctx context.Context) {
	ch, unsubscribe := l.bus.Subscribe(func(e events.Event) bool {
		return sensorEventTypes[e.Type]
	})
	defer unsubscribe()

	l.lastReminderAt = time.Now()
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			// Latest event per type wins within a tick.
			l.pending[e.Type] = e
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if !l.enabled {
		l.pending = make(map[string]events.Event)
		l.lastReminderAt = time.Now()
		return
	}

	snap := l.states.Snapshot()
	if l.suppressed(snap) {
		// A live conversation swallows both the pending deltas and the
		// idle clock; there is no retroactive catch-up.
		l.pending = make(map[string]events.Event)
		l.lastReminderAt = time.Now()
		return
	}

	if len(l.pending) > 0 && time.Since(l.lastStimulusAt) >= l.cfg.Debounce {
		l.fireStimulus(ctx, snap)
		return
	}

	if time.Since(l.lastReminderAt) >= l.cfg.ReminderInterval {
		l.fireIdleReminder(ctx)
	}
}

func (l *Loop) suppressed(snap state.Robot) bool {
	if snap.Suppressed() {
		return true
	}
	return l.model.UserSpeaking() || l.model.ResponseActive()
}

// fireStimulus composes all pending deltas into one prompt. Forced
// reactions update the goal and ride the awareness heartbeat; quiet
// sounds only inform.
func (l *Loop) fireStimulus(ctx context.Context, snap state.Robot) {
	pending := l.pending
	l.pending = make(map[string]events.Event)

	var goalParts, statusParts []string

	if _, ok := pending["petting_change"]; ok {
		if time.Since(snap.PettingAt) < recentWindow {
			goalParts = append(goalParts, "You are being petted! You must say and do something in reaction to this.")
		}
	}
	if _, ok := pending["sound_direction_change"]; ok {
		direction := snap.LastSoundDirection
		if direction == "" {
			direction = "an unknown direction"
		}
		if l.mic != nil && l.mic.LatestVolume() > l.cfg.LoudThreshold {
			goalParts = append(goalParts, fmt.Sprintf("A loud sound came from your %s. You must react, look that way, and respond.", direction))
		} else {
			statusParts = append(statusParts, fmt.Sprintf("A quiet sound came from your %s.", direction))
		}
	}
	if _, ok := pending["face_presence_change"]; ok {
		if snap.FacePresent && time.Since(snap.FaceLastSeenAt) < recentWindow {
			goalParts = append(goalParts, fmt.Sprintf("A face is detected! You are looking %s. You must say and do something in reaction to this.", snap.HeadPose.DirectionLabel()))
		}
	}
	if _, ok := pending["orientation_change"]; ok {
		desc := snap.LastOrientationDesc
		if desc == "" {
			desc = "Your orientation changed."
		}
		goalParts = append(goalParts, fmt.Sprintf("%s You must say and do something in reaction to this.", desc))
	}

	if len(statusParts) > 0 {
		if err := l.model.SendStatusText(ctx, strings.Join(statusParts, " ")); err != nil {
			log.Warn("awareness: status text failed", "error", err)
		}
	}

	if len(goalParts) == 0 {
		return
	}

	goal := strings.Join(goalParts, " ")
	l.states.SetGoal(goal)
	l.states.MarkAwarenessEvent(goal)
	log.Info("awareness: stimulus", "goal", goal)

	if err := l.model.SendAwareness(ctx); err != nil {
		log.Warn("awareness: send failed", "error", err)
		return
	}
	l.lastStimulusAt = time.Now()
	l.lastReminderAt = time.Now()
}

// fireIdleReminder wakes the model up after a quiet stretch: first an
// inline photo so it has something to talk about, then the persona's
// default motivation as the new goal. The photo is awaited (bounded) so
// the two requests cannot race each other.
func (l *Loop) fireIdleReminder(ctx context.Context) {
	motivation, ok := l.model.DefaultMotivation()
	if !ok {
		l.lastReminderAt = time.Now()
		return
	}

	photoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := l.model.SendPhotoAndRespond(photoCtx); err != nil {
		log.Warn("awareness: idle photo failed", "error", err)
	}
	cancel()

	goal := "You haven't responded in a while. " + motivation
	l.states.SetGoal(goal)
	l.states.MarkAwarenessEvent(goal)
	log.Info("awareness: idle reminder", "goal", goal)

	if err := l.model.SendAwareness(ctx); err != nil {
		log.Warn("awareness: idle reminder send failed", "error", err)
	}
	l.lastReminderAt = time.Now()
}
