package actions

import (
	"context"
	"time"

	"github.com/teslashibe/go-pidog/pkg/state"
)

// Step is one unit of a macro, executed in order. Exactly one of the
// field groups is set.
type Step struct {
	// Action names a firmware-resident gait/behavior run via DoAction.
	Action string
	Speed  int
	Count  int

	// Head drives the head servos directly through timed frames.
	Head []HeadFrame

	// LookAt routes an absolute head intent through the head controller.
	LookAt *Look

	// Sound queues a PCM file on the robot speaker, asynchronously.
	Sound string

	// Pause waits without moving anything.
	Pause time.Duration
}

// HeadFrame is one head servo target held for a duration. The macro
// engine eases between successive frames rather than snapping.
type HeadFrame struct {
	Yaw, Roll, Pitch float64
	Hold             time.Duration
}

// Macro is a named scripted behavior.
type Macro struct {
	Name string

	// Requires injects a posture transition first when the current
	// posture does not match ("" means any posture is fine).
	Requires state.Posture

	Steps []Step

	// Posture is the stance the dog ends the macro in ("" = unchanged).
	Posture state.Posture

	// SyncHead re-reads the hardware head angles into the controller
	// afterward, for macros that drove the head servos directly.
	SyncHead bool
}

const frameTick = 50 * time.Millisecond

// playHeadFrames eases the head through the frame sequence with
// smoothstep interpolation, pushing intermediate targets at the control
// tick rate.
func (l *Library) playHeadFrames(ctx context.Context, frames []HeadFrame) error {
	prev := l.currentHeadFrame()
	for _, frame := range frames {
		steps := int(frame.Hold / frameTick)
		if steps < 1 {
			steps = 1
		}
		for i := 1; i <= steps; i++ {
			t := smoothstep(float64(i) / float64(steps))
			yaw := lerp(prev.Yaw, frame.Yaw, t)
			roll := lerp(prev.Roll, frame.Roll, t)
			pitch := lerp(prev.Pitch, frame.Pitch, t)
			if err := l.dog.SetHeadPose(roll, pitch, yaw); err != nil {
				return err
			}
			if err := sleepCtx(ctx, frameTick); err != nil {
				return err
			}
		}
		prev = frame
	}
	return nil
}

func (l *Library) currentHeadFrame() HeadFrame {
	yaw, pitch, roll, err := l.dog.HeadCurrentAngles()
	if err != nil {
		return HeadFrame{}
	}
	return HeadFrame{Yaw: yaw, Roll: roll, Pitch: pitch}
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// smoothstep eases in and out, so frames start and end without servo
// jerk.
func smoothstep(t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
