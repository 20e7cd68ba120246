// Package actions is the dog's macro library: named, scripted motion
// sequences (sit, bark, handshake, walk_forward, ...) built from firmware
// gaits, explicit head servo frames, and sound triggers. Macros declare
// posture preconditions and postconditions; the library injects the
// sitting-to-standing transition where a gait needs it and keeps the
// head controller's posture bias in step with every posture change.
package actions

import (
	"context"
	"fmt"
	"sync"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/hardware"
	"github.com/teslashibe/go-pidog/pkg/state"
)

// HeadSync is the slice of the head controller macros need: absolute
// pose intents, bias updates on posture changes, and a re-sync after a
// macro drove the head servos directly.
type HeadSync interface {
	SetPose(yaw, pitch, roll *float64)
	SetPostureBias(pitchBias float64)
	SyncWithHardware() error
}

// PostureBias carries the per-posture head pitch compensation, degrees.
type PostureBias struct {
	Sitting  float64
	Standing float64
}

// DefaultPostureBias matches the stock servo geometry: the sitting stance
// points the neck up, so the head compensates down.
func DefaultPostureBias() PostureBias {
	return PostureBias{Sitting: -20, Standing: 0}
}

func (b PostureBias) forPosture(p state.Posture) float64 {
	if p == state.PostureStanding {
		return b.Standing
	}
	return b.Sitting
}

const soundWorkers = 2

// Library runs macros against the hardware, one at a time.
type Library struct {
	dog    hardware.Dog
	head   HeadSync
	states *state.Store
	bias   PostureBias

	mu     sync.Mutex
	macros map[string]Macro

	runMu sync.Mutex

	soundJobs chan soundJob
	stopOnce  sync.Once
	stop      chan struct{}
}

type soundJob struct {
	file   string
	volume int
}

// New creates a Library pre-loaded with the built-in catalog and starts
// the small worker pool that keeps blocking sound playback off the
// control path.
func New(dog hardware.Dog, head HeadSync, states *state.Store, bias PostureBias) *Library {
	l := &Library{
		dog:       dog,
		head:      head,
		states:    states,
		bias:      bias,
		macros:    builtinCatalog(),
		soundJobs: make(chan soundJob, 8),
		stop:      make(chan struct{}),
	}
	for i := 0; i < soundWorkers; i++ {
		go l.soundWorker()
	}
	return l
}

// Register adds or replaces a macro.
func (l *Library) Register(m Macro) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.macros[m.Name] = m
}

// Names returns the registered macro names, for status reports.
func (l *Library) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.macros))
	for n := range l.macros {
		names = append(names, n)
	}
	return names
}

// Close stops the sound workers. Pending jobs are abandoned.
func (l *Library) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// RunMacros plays the named macros in order. Unknown names abort with an
// error naming the offender; macros already played stay played. Runs are
// serialized: a second caller blocks until the first finishes.
func (l *Library) RunMacros(ctx context.Context, names []string) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	l.states.SetTakingAction(true)
	defer l.states.SetTakingAction(false)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.runOne(ctx, name); err != nil {
			return err
		}
	}

	if err := l.dog.WaitLegsDone(); err != nil {
		log.Warn("actions: wait for legs failed", "error", err)
	}
	return nil
}

func (l *Library) runOne(ctx context.Context, name string) error {
	l.mu.Lock()
	macro, ok := l.macros[name]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("Unknown action: %s", name)
	}

	oldPosture := l.states.Snapshot().Posture

	if macro.Requires != "" && oldPosture != macro.Requires {
		if err := l.transitionTo(ctx, macro.Requires); err != nil {
			return fmt.Errorf("actions: %s: precondition: %w", name, err)
		}
	}

	log.Debug("actions: running macro", "name", name)
	for _, step := range macro.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.runStep(ctx, step); err != nil {
			// Hardware hiccups skip the step, not the macro: the next
			// step usually re-poses the servos anyway.
			log.Warn("actions: step failed", "macro", name, "error", err)
		}
	}

	if macro.SyncHead {
		if err := l.head.SyncWithHardware(); err != nil {
			log.Warn("actions: head re-sync failed", "macro", name, "error", err)
		}
	}

	newPosture := oldPosture
	if macro.Posture != "" {
		newPosture = macro.Posture
		l.states.SetPosture(newPosture)
	}
	if newPosture != oldPosture {
		l.head.SetPostureBias(l.bias.forPosture(newPosture))
	}
	return nil
}

// transitionTo injects the posture change a gait macro needs before it
// can run.
func (l *Library) transitionTo(ctx context.Context, target state.Posture) error {
	name := "sit_2_stand"
	if target == state.PostureSitting {
		name = "sit"
	}
	return l.runOne(ctx, name)
}

func (l *Library) runStep(ctx context.Context, s Step) error {
	switch {
	case s.Action != "":
		return l.dog.DoAction(s.Action, s.Speed, s.Count)
	case len(s.Head) > 0:
		return l.playHeadFrames(ctx, s.Head)
	case s.LookAt != nil:
		l.head.SetPose(s.LookAt.Yaw, s.LookAt.Pitch, s.LookAt.Roll)
		return nil
	case s.Sound != "":
		l.enqueueSound(s.Sound)
		return nil
	case s.Pause > 0:
		return sleepCtx(ctx, s.Pause)
	default:
		return nil
	}
}

func (l *Library) enqueueSound(file string) {
	volume := int(l.states.Snapshot().Volume * 30)
	select {
	case l.soundJobs <- soundJob{file: file, volume: volume}:
	default:
		log.Warn("actions: sound queue full, dropping", "file", file)
	}
}

// soundWorker keeps the blocking SpeakBlock call off the scheduler. The
// playing-sound flag gates the awareness loop while a file is audible.
func (l *Library) soundWorker() {
	for {
		select {
		case <-l.stop:
			return
		case job := <-l.soundJobs:
			l.states.SetPlayingSound(true)
			if err := l.dog.SpeakBlock(job.file, job.volume); err != nil {
				log.Warn("actions: sound playback failed", "file", job.file, "error", err)
			}
			l.states.SetPlayingSound(false)
		}
	}
}
