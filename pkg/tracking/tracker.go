// Package tracking drives the head toward whatever face the camera sees,
// stepping back to a remembered pose once the face is gone for a while.
package tracking

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/state"
	"github.com/teslashibe/go-pidog/pkg/vision"
)

// HeadMover is the slice of headctrl.Controller the tracker needs.
type HeadMover interface {
	AdjustPose(dy, dp, dr float64)
	SetPose(yaw, pitch, roll *float64)
	CurrentPose() state.HeadPose
}

// Phase is the tracker's state machine position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseRecentering
)

// Config tunes the control law and timing.
type Config struct {
	CameraWidth, CameraHeight int
	UpdateInterval            time.Duration
	RecenterTimeout           time.Duration
	RecenterStep              float64
}

const (
	yawDeadZonePx   = 15.0
	yawStepDeg      = 0.5
	yawStepPx       = 30.0
	pitchDeadZonePx = 25.0
	pitchStepDeg    = 1.0
	pitchStepPx     = 50.0
	recenterSnapDeg = 0.5
)

// Tracker owns the Idle/Active/Recentering loop. It is safe for concurrent
// use; Run blocks until Stop or context cancellation.
type Tracker struct {
	cfg      Config
	head     HeadMover
	detector vision.Detector

	mu         sync.Mutex
	phase      Phase
	returnPose state.HeadPose
	lastSeen   time.Time

	onPresence func(present bool)

	stop chan struct{}
}

// SetPresenceFunc registers a callback told on every probe whether a
// face is in frame; the sensor monitor edge-detects it into
// face_presence_change events. Set before Run.
func (t *Tracker) SetPresenceFunc(fn func(present bool)) {
	t.onPresence = fn
}

// New creates a Tracker. Call Run in a goroutine to start it.
func New(cfg Config, head HeadMover, detector vision.Detector) *Tracker {
	return &Tracker{cfg: cfg, head: head, detector: detector, stop: make(chan struct{})}
}

// SetReturnPose records the pose the tracker settles back to once it goes
// idle. Call this whenever a tool explicitly sets the head pose.
func (t *Tracker) SetReturnPose(p state.HeadPose) {
	t.mu.Lock()
	t.returnPose = p
	t.mu.Unlock()
}

// Phase reports the current state machine position.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Run starts the control loop at cfg.UpdateInterval.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.UpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// Stop halts the control loop.
func (t *Tracker) Stop() {
	close(t.stop)
}

func (t *Tracker) tick(ctx context.Context) {
	det, ok, err := t.detector.Detect(ctx)
	if err != nil {
		log.Warn("tracking: detect failed", "error", err)
		return
	}

	present := ok && det.HumanCount > 0
	if t.onPresence != nil {
		t.onPresence(present)
	}

	if present {
		t.onDetection(det)
		return
	}

	phase := t.Phase()
	if phase == PhaseIdle {
		return
	}

	t.mu.Lock()
	lastSeen := t.lastSeen
	if phase == PhaseActive && time.Since(lastSeen) >= t.cfg.RecenterTimeout {
		t.phase = PhaseRecentering
	}
	phase = t.phase
	t.mu.Unlock()

	if phase == PhaseRecentering {
		t.recenterStep()
	}
}

func (t *Tracker) onDetection(det vision.Detection) {
	t.mu.Lock()
	if t.phase == PhaseIdle {
		t.returnPose = t.head.CurrentPose()
	}
	t.phase = PhaseActive
	t.lastSeen = time.Now()
	t.mu.Unlock()

	ex := det.CenterX - float64(t.cfg.CameraWidth)/2
	ey := det.CenterY - float64(t.cfg.CameraHeight)/2

	var dy, dp float64
	if math.Abs(ex) > yawDeadZonePx {
		dy = sign(-ex) * yawStepDeg * math.Ceil(math.Abs(ex)/yawStepPx)
	}
	if math.Abs(ey) > pitchDeadZonePx {
		dp = sign(-ey) * pitchStepDeg * math.Ceil(math.Abs(ey)/pitchStepPx)
	}
	if dy == 0 && dp == 0 {
		return
	}
	t.head.AdjustPose(dy, dp, 0)
}

func (t *Tracker) recenterStep() {
	t.mu.Lock()
	target := t.returnPose
	t.mu.Unlock()

	current := t.head.CurrentPose()
	if math.Abs(target.Yaw-current.Yaw) <= recenterSnapDeg &&
		math.Abs(target.Pitch-current.Pitch) <= recenterSnapDeg &&
		math.Abs(target.Roll-current.Roll) <= recenterSnapDeg {
		yaw, pitch, roll := target.Yaw, target.Pitch, target.Roll
		t.head.SetPose(&yaw, &pitch, &roll)
		t.mu.Lock()
		t.phase = PhaseIdle
		t.mu.Unlock()
		return
	}

	dy := stepToward(target.Yaw, current.Yaw, t.cfg.RecenterStep)
	dp := stepToward(target.Pitch, current.Pitch, t.cfg.RecenterStep)
	dr := stepToward(target.Roll, current.Roll, t.cfg.RecenterStep)
	t.head.AdjustPose(dy, dp, dr)
}

func stepToward(target, current, step float64) float64 {
	diff := target - current
	if math.Abs(diff) <= step {
		return diff
	}
	return sign(diff) * step
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
