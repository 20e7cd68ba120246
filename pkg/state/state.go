// Package state holds the single shared snapshot of robot state: pose,
// posture, flags, goal, and sensor timestamps. It is the only component
// that owns RobotState; everyone else reads snapshots or subscribes to
// change notifications.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pidog/pkg/events"
)

// Posture is the dog's coarse body stance.
type Posture string

const (
	PostureSitting  Posture = "sitting"
	PostureStanding Posture = "standing"
)

// HeadPose is a yaw/pitch/roll triple in degrees.
type HeadPose struct {
	Yaw, Pitch, Roll float64
}

// Clamp returns a copy of p with each axis restricted to the supplied limits.
func (p HeadPose) Clamp(yawLimit, pitchLimit, rollLimit float64) HeadPose {
	return HeadPose{
		Yaw:   clampAbs(p.Yaw, yawLimit),
		Pitch: clampAbs(p.Pitch, pitchLimit),
		Roll:  clampAbs(p.Roll, rollLimit),
	}
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// Add returns the element-wise sum of p and other.
func (p HeadPose) Add(other HeadPose) HeadPose {
	return HeadPose{Yaw: p.Yaw + other.Yaw, Pitch: p.Pitch + other.Pitch, Roll: p.Roll + other.Roll}
}

// DirectionLabel describes the pose in the same terms a human would use,
// matching the ±8° dead zone the original used before calling a pose
// "looking" in some direction.
func (p HeadPose) DirectionLabel() string {
	const deadZone = 8.0

	pitchDir := axisLabel(p.Pitch, deadZone, "up", "down")
	yawDir := axisLabel(p.Yaw, deadZone, "to the left", "to the right")

	var parts []string
	if pitchDir != "" {
		parts = append(parts, pitchDir)
	}
	if yawDir != "" {
		parts = append(parts, yawDir)
	}

	direction := "straight ahead"
	if len(parts) > 0 {
		direction = joinAnd(parts)
	}

	rollDir := axisLabel(p.Roll, deadZone, "tilted toward the left ear", "tilted toward the right ear")
	if rollDir != "" {
		return direction + "; " + rollDir
	}
	return direction
}

func axisLabel(v, deadZone float64, pos, neg string) string {
	if v > deadZone {
		return pos
	}
	if v < -deadZone {
		return neg
	}
	return ""
}

func joinAnd(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " and " + p
	}
	return out
}

// Robot is the complete shared state of the dog. It is never mutated
// directly; all writes go through Store.Mutate so that diffs can be
// detected and published.
type Robot struct {
	Volume  float64
	Posture Posture
	HeadPose HeadPose
	Goal    string

	FacePresent          bool
	FaceLastSeenAt       time.Time
	PettingAt            time.Time
	IsBeingPetted        bool
	LastSoundDirection   string
	LastOrientationDesc  string
	LastAwarenessEventAt time.Time
	PendingStimulus      string

	IsTalkingMovement bool
	IsTakingAction    bool
	IsPlayingSound    bool
}

func newRobot() Robot {
	return Robot{
		Volume:  1,
		Posture: PostureSitting,
		Goal:    "You just woke up",
	}
}

// Store is the exclusive owner of Robot state.
type Store struct {
	bus *events.Bus

	mu   sync.RWMutex
	curr Robot

	stop chan struct{}
}

// New creates a Store publishing change events onto bus.
func New(bus *events.Bus) *Store {
	return &Store{
		bus:  bus,
		curr: newRobot(),
		stop: make(chan struct{}),
	}
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() Robot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curr
}

// Mutate applies fn under exclusive access and publishes a diff event if
// anything changed.
func (s *Store) Mutate(fn func(*Robot)) {
	s.mu.Lock()
	before := s.curr
	fn(&s.curr)
	after := s.curr
	s.mu.Unlock()

	if before != after {
		s.publish(after)
	}
}

func (s *Store) publish(r Robot) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		ID:        uuid.NewString(),
		Type:      "state.changed",
		Timestamp: time.Now(),
		Payload:   r,
	})
}

// ResetForNewPersona clears goal/flags/sensor history but preserves
// hardware-backed fields (head pose, posture), which are re-synced from
// hardware rather than zeroed.
func (s *Store) ResetForNewPersona() {
	s.Mutate(func(r *Robot) {
		headPose := r.HeadPose
		posture := r.Posture
		*r = newRobot()
		r.HeadPose = headPose
		r.Posture = posture
	})
}

// StartThrottledBroadcast re-publishes the current snapshot at least once
// per interval even absent changes, so late subscribers converge quickly.
func (s *Store) StartThrottledBroadcast(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.publish(s.Snapshot())
			}
		}
	}()
}

// Stop halts the throttled broadcast loop.
func (s *Store) Stop() {
	close(s.stop)
}

// Typed mutators — every write to Robot funnels through one of these so
// callers never reach for Mutate with ad hoc field pokes.

// SetVolume clamps to the 0-3 scale the set_volume tool exposes.
func (s *Store) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 3 {
		level = 3
	}
	s.Mutate(func(r *Robot) { r.Volume = level })
}

func (s *Store) SetPosture(p Posture) {
	s.Mutate(func(r *Robot) { r.Posture = p })
}

func (s *Store) SetHeadPose(p HeadPose) {
	s.Mutate(func(r *Robot) { r.HeadPose = p })
}

func (s *Store) SetGoal(goal string) {
	s.Mutate(func(r *Robot) { r.Goal = goal })
}

func (s *Store) SetFacePresent(present bool) {
	s.Mutate(func(r *Robot) {
		r.FacePresent = present
		if present {
			r.FaceLastSeenAt = time.Now()
		}
	})
}

func (s *Store) SetPetting(active bool) {
	s.Mutate(func(r *Robot) {
		r.IsBeingPetted = active
		if active {
			r.PettingAt = time.Now()
		}
	})
}

func (s *Store) SetSoundDirection(dir string) {
	s.Mutate(func(r *Robot) { r.LastSoundDirection = dir })
}

func (s *Store) SetOrientation(desc string) {
	s.Mutate(func(r *Robot) { r.LastOrientationDesc = desc })
}

func (s *Store) SetTalkingMovement(active bool) {
	s.Mutate(func(r *Robot) { r.IsTalkingMovement = active })
}

func (s *Store) SetTakingAction(active bool) {
	s.Mutate(func(r *Robot) { r.IsTakingAction = active })
}

func (s *Store) SetPlayingSound(active bool) {
	s.Mutate(func(r *Robot) { r.IsPlayingSound = active })
}

func (s *Store) MarkAwarenessEvent(stimulus string) {
	s.Mutate(func(r *Robot) {
		r.LastAwarenessEventAt = time.Now()
		r.PendingStimulus = stimulus
	})
}

// Suppressed reports whether AwarenessLoop must stay quiet: speaking,
// acting, or playing a sound file all block unsolicited stimuli.
func (r Robot) Suppressed() bool {
	return r.IsTalkingMovement || r.IsTakingAction || r.IsPlayingSound
}
