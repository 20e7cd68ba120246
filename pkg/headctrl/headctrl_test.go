package headctrl

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/hardware"
	"github.com/teslashibe/go-pidog/pkg/state"
)

type fakeDog struct {
	mu    sync.Mutex
	sent  []state.HeadPose
	yaw   float64
	pitch float64
	roll  float64
}

func (f *fakeDog) SetHeadPose(roll, pitch, yaw float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, state.HeadPose{Yaw: yaw, Pitch: pitch, Roll: roll})
	f.yaw, f.pitch, f.roll = yaw, pitch, roll
	return nil
}

func (f *fakeDog) HeadCurrentAngles() (float64, float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.yaw, f.pitch, f.roll, nil
}

func (f *fakeDog) lastSent() (state.HeadPose, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return state.HeadPose{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func (f *fakeDog) LegsMove(angles [][]float64, speed int) error      { return nil }
func (f *fakeDog) LegCurrentAngles() ([]float64, error)              { return nil, nil }
func (f *fakeDog) WaitLegsDone() error                               { return nil }
func (f *fakeDog) BodyStop() error                                   { return nil }
func (f *fakeDog) DoAction(name string, speed, stepCount int) error  { return nil }
func (f *fakeDog) ReadTouch() (hardware.TouchState, error)           { return hardware.TouchNone, nil }
func (f *fakeDog) EarsDetected() (bool, error)                       { return false, nil }
func (f *fakeDog) EarsRead() (float64, error)                        { return 0, nil }
func (f *fakeDog) AccData() (float64, float64, float64, error)       { return 0, 0, 1, nil }
func (f *fakeDog) GyroData() (float64, float64, float64, error)      { return 0, 0, 0, nil }
func (f *fakeDog) Distance() (float64, error)                        { return 0, nil }
func (f *fakeDog) RGBStripSetMode(s, c string, b, br float64) error  { return nil }
func (f *fakeDog) RGBStripDisplay(lights []uint32) error             { return nil }
func (f *fakeDog) GetBatteryVoltage() (float64, error)               { return 7.4, nil }
func (f *fakeDog) SpeakBlock(filename string, volume int) error      { return nil }
func (f *fakeDog) MusicPlay(path string, volume int) error           { return nil }
func (f *fakeDog) Close() error                                      { return nil }

var _ hardware.Dog = (*fakeDog)(nil)

func newController() (*Controller, *fakeDog) {
	dog := &fakeDog{}
	st := state.New(events.New())
	return New(dog, st, DefaultLimits(), DefaultTalkOverlayParams()), dog
}

func ptr(v float64) *float64 { return &v }

func TestEffectivePoseAlwaysClamped(t *testing.T) {
	c, dog := newController()

	c.SetPose(ptr(200), ptr(-90), ptr(50))
	c.tick()

	sent, ok := dog.lastSent()
	if !ok {
		t.Fatal("expected a hardware push")
	}
	if math.Abs(sent.Yaw) > 80 || math.Abs(sent.Pitch) > 35 || math.Abs(sent.Roll) > 35 {
		t.Errorf("pose escaped clamp bounds: %+v", sent)
	}

	c.AdjustPose(-500, 500, -500)
	c.tick()
	sent, _ = dog.lastSent()
	if math.Abs(sent.Yaw) > 80 || math.Abs(sent.Pitch) > 35 || math.Abs(sent.Roll) > 35 {
		t.Errorf("pose escaped clamp bounds after adjust: %+v", sent)
	}
}

func TestSetPoseRoundTrip(t *testing.T) {
	c, _ := newController()

	c.SetPose(ptr(30), ptr(-10), ptr(5))
	got := c.CurrentPose()
	want := state.HeadPose{Yaw: 30, Pitch: -10, Roll: 5}
	if got != want {
		t.Errorf("CurrentPose = %+v, want %+v", got, want)
	}
}

func TestTalkOffsetBounded(t *testing.T) {
	c, _ := newController()
	params := DefaultTalkOverlayParams()

	c.EnableTalking()
	c.SetTalkAmplitudeScale(1.0)
	for i := 0; i < 200; i++ {
		off := c.talkOffset()
		if math.Abs(off.Yaw) > params.AmplitudeYaw+1e-9 ||
			math.Abs(off.Pitch) > params.AmplitudePitch+1e-9 ||
			math.Abs(off.Roll) > params.AmplitudeRoll+1e-9 {
			t.Fatalf("talk offset out of bounds at sample %d: %+v", i, off)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDisableTalkingRevertsToBasePlusBias(t *testing.T) {
	c, _ := newController()

	c.SetPose(ptr(10), ptr(5), ptr(0))
	c.SetPostureBias(-20)
	c.EnableTalking()
	c.DisableTalking()

	got := c.CurrentPose()
	// SetPostureBias absorbs the bias into base, so effective pitch is
	// unchanged and talk contributes exactly zero.
	want := state.HeadPose{Yaw: 10, Pitch: 5, Roll: 0}
	if got != want {
		t.Errorf("effective pose after disable = %+v, want %+v", got, want)
	}
}

func TestEnableDisableTalkingIdempotent(t *testing.T) {
	c, _ := newController()
	c.SetPose(ptr(12), ptr(-3), ptr(1))
	before := c.CurrentPose()

	c.EnableTalking()
	c.EnableTalking()
	c.DisableTalking()
	c.DisableTalking()

	if after := c.CurrentPose(); after != before {
		t.Errorf("enable/disable pair changed pose: %+v -> %+v", before, after)
	}
}

func TestPostureBiasPreservesEffectivePitch(t *testing.T) {
	c, _ := newController()

	// Boot sitting: bias -20, base 0 → effective -20.
	c.SetPostureBias(-20)
	c.SetPose(ptr(0), ptr(0), ptr(0))
	c.SetPostureBias(-20) // re-assert after base write
	effBefore := c.CurrentPose().Pitch

	// Stand up: bias 0, base absorbs the delta.
	c.SetPostureBias(0)
	effAfter := c.CurrentPose().Pitch

	if math.Abs(effBefore-effAfter) > 0.5 {
		t.Errorf("posture transition moved effective pitch: %v -> %v", effBefore, effAfter)
	}
}

func TestHysteresisSuppressesTinyMoves(t *testing.T) {
	c, dog := newController()

	c.SetPose(ptr(10), ptr(0), ptr(0))
	c.tick()
	dog.mu.Lock()
	count := len(dog.sent)
	dog.mu.Unlock()

	c.AdjustPose(0.1, 0, 0) // below the 0.4° gate
	c.tick()
	dog.mu.Lock()
	after := len(dog.sent)
	dog.mu.Unlock()

	if after != count {
		t.Error("sub-threshold move should not reach hardware")
	}

	c.AdjustPose(1.0, 0, 0)
	c.tick()
	dog.mu.Lock()
	final := len(dog.sent)
	dog.mu.Unlock()
	if final != count+1 {
		t.Error("supra-threshold move should reach hardware")
	}
}

func TestSyncWithHardwareSubtractsBias(t *testing.T) {
	c, dog := newController()

	c.SetPostureBias(-20)
	dog.yaw, dog.pitch, dog.roll = 5, -25, 0

	if err := c.SyncWithHardware(); err != nil {
		t.Fatalf("SyncWithHardware: %v", err)
	}

	// Hardware pitch -25 with bias -20 means base pitch -5.
	got := c.CurrentPose()
	if got.Yaw != 5 || math.Abs(got.Pitch-(-25)) > 1e-9 {
		t.Errorf("effective after sync = %+v", got)
	}
	c.mu.RLock()
	basePitch := c.base.Pitch
	c.mu.RUnlock()
	if math.Abs(basePitch-(-5)) > 1e-9 {
		t.Errorf("base pitch = %v, want -5", basePitch)
	}
}
