package sensors

import (
	"testing"
	"time"

	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/hardware"
	"github.com/teslashibe/go-pidog/pkg/state"
)

type fakeDog struct {
	touch       hardware.TouchState
	earDetected bool
	earDegrees  float64
	ax, ay, az  float64
}

func (f *fakeDog) SetHeadPose(roll, pitch, yaw float64) error { return nil }
func (f *fakeDog) HeadCurrentAngles() (float64, float64, float64, error) {
	return 0, 0, 0, nil
}
func (f *fakeDog) LegsMove(angles [][]float64, speed int) error { return nil }
func (f *fakeDog) LegCurrentAngles() ([]float64, error)         { return nil, nil }
func (f *fakeDog) WaitLegsDone() error                          { return nil }
func (f *fakeDog) BodyStop() error                              { return nil }
func (f *fakeDog) DoAction(name string, speed, stepCount int) error { return nil }
func (f *fakeDog) ReadTouch() (hardware.TouchState, error)      { return f.touch, nil }
func (f *fakeDog) EarsDetected() (bool, error)                  { return f.earDetected, nil }
func (f *fakeDog) EarsRead() (float64, error)                   { return f.earDegrees, nil }
func (f *fakeDog) AccData() (float64, float64, float64, error)  { return f.ax, f.ay, f.az, nil }
func (f *fakeDog) GyroData() (float64, float64, float64, error) { return 0, 0, 0, nil }
func (f *fakeDog) Distance() (float64, error)                   { return 0, nil }
func (f *fakeDog) RGBStripSetMode(style, color string, bps, brightness float64) error {
	return nil
}
func (f *fakeDog) RGBStripDisplay(lights []uint32) error   { return nil }
func (f *fakeDog) GetBatteryVoltage() (float64, error)     { return 0, nil }
func (f *fakeDog) SpeakBlock(filename string, vol int) error { return nil }
func (f *fakeDog) MusicPlay(path string, vol int) error    { return nil }
func (f *fakeDog) Close() error                            { return nil }

var _ hardware.Dog = (*fakeDog)(nil)

func newMonitor(dog *fakeDog) (*Monitor, *state.Store) {
	bus := events.New()
	st := state.New(bus)
	return New(dog, st, bus, nil, time.Millisecond), st
}

func TestMonitor_PettingEdgeDetection(t *testing.T) {
	dog := &fakeDog{touch: hardware.TouchNone}
	m, st := newMonitor(dog)

	m.pollTouch()
	if st.Snapshot().IsBeingPetted {
		t.Fatal("expected not petted initially")
	}

	dog.touch = hardware.TouchLeft
	sub, cancel := bus(m).Subscribe(func(e events.Event) bool { return e.Type != "state.changed" })
	defer cancel()

	m.pollTouch()
	if !st.Snapshot().IsBeingPetted {
		t.Fatal("expected petted after touch")
	}

	select {
	case e := <-sub:
		if e.Type != "petting_change" {
			t.Errorf("expected petting_change, got %s", e.Type)
		}
	default:
		t.Fatal("expected petting_change event")
	}
}

func bus(m *Monitor) *events.Bus { return m.bus }

func TestCompassLabel(t *testing.T) {
	cases := []struct {
		degrees float64
		want    string
	}{
		{0, "front"},
		{45, "front right"},
		{90, "right"},
		{180, "back"},
		{270, "left"},
		{350, "front"},
	}
	for _, c := range cases {
		if got := compassLabel(c.degrees); got != c.want {
			t.Errorf("compassLabel(%v) = %q, want %q", c.degrees, got, c.want)
		}
	}
}

func TestOrientationDescription(t *testing.T) {
	if got := orientationDescription(-1, 0, 0); got != "You are upright." {
		t.Errorf("expected upright, got %q", got)
	}
	if got := orientationDescription(1, 0, 0); got != "You are upside down!" {
		t.Errorf("expected upside down, got %q", got)
	}
}

func TestMonitor_SoundDirectionDebounce(t *testing.T) {
	dog := &fakeDog{earDetected: true, earDegrees: 0}
	m, st := newMonitor(dog)

	m.pollSound()
	if st.Snapshot().LastSoundDirection != "front" {
		t.Fatalf("expected front, got %q", st.Snapshot().LastSoundDirection)
	}

	dog.earDegrees = 180
	m.pollSound()
	if st.Snapshot().LastSoundDirection != "front" {
		t.Fatal("expected debounce to suppress immediate second report")
	}
}
