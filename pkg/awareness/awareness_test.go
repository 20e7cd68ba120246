package awareness

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/state"
)

type fakeModel struct {
	mu             sync.Mutex
	awareness      int
	statusTexts    []string
	photos         int
	userSpeaking   bool
	responseActive bool
	motivation     string
	personaLoaded  bool
}

func (f *fakeModel) SendAwareness(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awareness++
	return nil
}

func (f *fakeModel) SendStatusText(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusTexts = append(f.statusTexts, text)
	return nil
}

func (f *fakeModel) SendPhotoAndRespond(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos++
	return nil
}

func (f *fakeModel) UserSpeaking() bool   { return f.userSpeaking }
func (f *fakeModel) ResponseActive() bool { return f.responseActive }

func (f *fakeModel) DefaultMotivation() (string, bool) {
	return f.motivation, f.personaLoaded
}

func (f *fakeModel) awarenessCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.awareness
}

type fakeMic struct{ volume float64 }

func (f *fakeMic) LatestVolume() float64 { return f.volume }

func newLoop(model *fakeModel, mic *fakeMic) (*Loop, *state.Store, *events.Bus) {
	bus := events.New()
	st := state.New(bus)
	cfg := Config{
		PollInterval:     time.Millisecond,
		Debounce:         0,
		ReminderInterval: time.Hour,
		LoudThreshold:    30,
	}
	return New(cfg, st, bus, model, mic), st, bus
}

func sensorEvent(eventType string) events.Event {
	return events.Event{Type: eventType, Timestamp: time.Now()}
}

func TestPettingFiresForcedResponse(t *testing.T) {
	model := &fakeModel{}
	loop, st, _ := newLoop(model, &fakeMic{})

	st.SetPetting(true)
	loop.pending["petting_change"] = sensorEvent("petting_change")
	loop.tick(context.Background())

	if model.awarenessCount() != 1 {
		t.Fatalf("expected one awareness send, got %d", model.awarenessCount())
	}
	goal := st.Snapshot().Goal
	if !strings.Contains(goal, "petted") {
		t.Errorf("goal should mention petting, got %q", goal)
	}
}

func TestSuppressionGateBlocksStimulus(t *testing.T) {
	model := &fakeModel{}
	loop, st, _ := newLoop(model, &fakeMic{})

	st.SetTalkingMovement(true)
	st.SetPetting(true)
	loop.pending["petting_change"] = sensorEvent("petting_change")
	loop.tick(context.Background())

	if model.awarenessCount() != 0 {
		t.Error("awareness must never fire while the suppression gate is closed")
	}
	if len(loop.pending) != 0 {
		t.Error("suppressed deltas are dropped, not deferred")
	}
}

func TestResponseActiveSuppresses(t *testing.T) {
	model := &fakeModel{responseActive: true}
	loop, st, _ := newLoop(model, &fakeMic{})

	st.SetPetting(true)
	loop.pending["petting_change"] = sensorEvent("petting_change")
	loop.tick(context.Background())

	if model.awarenessCount() != 0 {
		t.Error("an active response must suppress awareness")
	}
}

func TestQuietSoundOnlyInforms(t *testing.T) {
	model := &fakeModel{}
	loop, st, _ := newLoop(model, &fakeMic{volume: 10})

	st.SetSoundDirection("right")
	loop.pending["sound_direction_change"] = sensorEvent("sound_direction_change")
	loop.tick(context.Background())

	if model.awarenessCount() != 0 {
		t.Error("a quiet sound must not force a response")
	}
	model.mu.Lock()
	texts := append([]string(nil), model.statusTexts...)
	model.mu.Unlock()
	if len(texts) != 1 || !strings.Contains(texts[0], "quiet sound") {
		t.Errorf("expected one informational text, got %v", texts)
	}
}

func TestLoudSoundForcesResponse(t *testing.T) {
	model := &fakeModel{}
	loop, st, _ := newLoop(model, &fakeMic{volume: 60})

	st.SetSoundDirection("left")
	loop.pending["sound_direction_change"] = sensorEvent("sound_direction_change")
	loop.tick(context.Background())

	if model.awarenessCount() != 1 {
		t.Fatal("a loud sound must force a response")
	}
	if goal := st.Snapshot().Goal; !strings.Contains(goal, "left") {
		t.Errorf("goal should carry the direction, got %q", goal)
	}
}

func TestMultipleDeltasConcatenate(t *testing.T) {
	model := &fakeModel{}
	loop, st, _ := newLoop(model, &fakeMic{volume: 60})

	st.SetPetting(true)
	st.SetSoundDirection("behind")
	loop.pending["petting_change"] = sensorEvent("petting_change")
	loop.pending["sound_direction_change"] = sensorEvent("sound_direction_change")
	loop.tick(context.Background())

	if model.awarenessCount() != 1 {
		t.Fatal("concatenated deltas fire a single awareness send")
	}
	goal := st.Snapshot().Goal
	if !strings.Contains(goal, "petted") || !strings.Contains(goal, "behind") {
		t.Errorf("goal should carry both deltas, got %q", goal)
	}
}

func TestDebounceSeparatesStimuli(t *testing.T) {
	model := &fakeModel{}
	loop, st, _ := newLoop(model, &fakeMic{})
	loop.cfg.Debounce = time.Hour

	st.SetPetting(true)
	loop.pending["petting_change"] = sensorEvent("petting_change")
	loop.tick(context.Background())
	if model.awarenessCount() != 1 {
		t.Fatal("first stimulus should fire")
	}

	st.SetPetting(false)
	st.SetPetting(true)
	loop.pending["petting_change"] = sensorEvent("petting_change")
	loop.tick(context.Background())
	if model.awarenessCount() != 1 {
		t.Error("second stimulus inside the debounce window must wait")
	}
}

func TestIdleReminderTakesPhotoThenReminds(t *testing.T) {
	model := &fakeModel{motivation: "Look around for someone to play with.", personaLoaded: true}
	loop, st, _ := newLoop(model, &fakeMic{})
	loop.cfg.ReminderInterval = 0
	loop.lastReminderAt = time.Now().Add(-time.Minute)

	loop.tick(context.Background())

	model.mu.Lock()
	photos, aware := model.photos, model.awareness
	model.mu.Unlock()
	if photos != 1 {
		t.Errorf("expected one idle photo, got %d", photos)
	}
	if aware != 1 {
		t.Errorf("expected one awareness send, got %d", aware)
	}
	if goal := st.Snapshot().Goal; !strings.Contains(goal, "haven't responded in a while") {
		t.Errorf("goal should carry the reminder preamble, got %q", goal)
	}
}

func TestIdleReminderNeedsPersona(t *testing.T) {
	model := &fakeModel{personaLoaded: false}
	loop, _, _ := newLoop(model, &fakeMic{})
	loop.cfg.ReminderInterval = 0
	loop.lastReminderAt = time.Now().Add(-time.Minute)

	loop.tick(context.Background())

	model.mu.Lock()
	defer model.mu.Unlock()
	if model.photos != 0 || model.awareness != 0 {
		t.Error("no persona loaded means no idle reminder")
	}
}

func TestDisabledLoopStaysQuiet(t *testing.T) {
	model := &fakeModel{motivation: "m", personaLoaded: true}
	loop, st, _ := newLoop(model, &fakeMic{})
	loop.SetEnabled(false)
	loop.cfg.ReminderInterval = 0
	loop.lastReminderAt = time.Now().Add(-time.Minute)

	st.SetPetting(true)
	loop.pending["petting_change"] = sensorEvent("petting_change")
	loop.tick(context.Background())

	if model.awarenessCount() != 0 {
		t.Error("a disabled loop must not emit anything")
	}
}

func TestRunConsumesBusEvents(t *testing.T) {
	model := &fakeModel{}
	loop, st, bus := newLoop(model, &fakeMic{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	st.SetPetting(true)
	bus.Publish(events.Event{Type: "petting_change", Timestamp: time.Now()})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if model.awarenessCount() == 1 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Error("Run should have turned the bus event into an awareness send")
}
