package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/teslashibe/go-pidog/pkg/state"
	"github.com/teslashibe/go-pidog/pkg/vision"
)

type fakeHead struct {
	pose state.HeadPose
}

func (f *fakeHead) AdjustPose(dy, dp, dr float64) {
	f.pose.Yaw += dy
	f.pose.Pitch += dp
	f.pose.Roll += dr
}

func (f *fakeHead) SetPose(yaw, pitch, roll *float64) {
	if yaw != nil {
		f.pose.Yaw = *yaw
	}
	if pitch != nil {
		f.pose.Pitch = *pitch
	}
	if roll != nil {
		f.pose.Roll = *roll
	}
}

func (f *fakeHead) CurrentPose() state.HeadPose { return f.pose }

type fakeDetector struct {
	det vision.Detection
	ok  bool
}

func (f *fakeDetector) Detect(ctx context.Context) (vision.Detection, bool, error) {
	return f.det, f.ok, nil
}
func (f *fakeDetector) CaptureImage(ctx context.Context, path string) (string, error) {
	return path, nil
}
func (f *fakeDetector) FrameSize() (int, int) { return 640, 480 }

func testConfig() Config {
	return Config{
		CameraWidth: 640, CameraHeight: 480,
		UpdateInterval:  10 * time.Millisecond,
		RecenterTimeout: 50 * time.Millisecond,
		RecenterStep:    2,
	}
}

func TestTracker_StepsTowardOffCenterFace(t *testing.T) {
	head := &fakeHead{}
	det := &fakeDetector{ok: true, det: vision.Detection{HumanCount: 1, CenterX: 320 + 90, CenterY: 240}}
	tr := New(testConfig(), head, det)

	tr.onDetection(det.det)

	if tr.Phase() != PhaseActive {
		t.Fatalf("expected Active phase, got %v", tr.Phase())
	}
	// ex=90 -> ceil(90/30)=3 steps of 0.5deg, sign(-ex) negative
	if head.pose.Yaw != -1.5 {
		t.Errorf("expected yaw step -1.5, got %v", head.pose.Yaw)
	}
	if head.pose.Pitch != 0 {
		t.Errorf("expected no pitch step within dead zone, got %v", head.pose.Pitch)
	}
}

func TestTracker_DeadZoneSuppressesSmallError(t *testing.T) {
	head := &fakeHead{}
	det := &fakeDetector{ok: true, det: vision.Detection{HumanCount: 1, CenterX: 325, CenterY: 245}}
	tr := New(testConfig(), head, det)

	tr.onDetection(det.det)

	if head.pose.Yaw != 0 || head.pose.Pitch != 0 {
		t.Errorf("expected no movement inside dead zone, got %+v", head.pose)
	}
}

func TestTracker_RecentersAndSnapsToIdle(t *testing.T) {
	head := &fakeHead{pose: state.HeadPose{Yaw: 10}}
	det := &fakeDetector{}
	tr := New(testConfig(), head, det)
	tr.SetReturnPose(state.HeadPose{})
	tr.mu.Lock()
	tr.phase = PhaseRecentering
	tr.mu.Unlock()

	for i := 0; i < 10 && tr.Phase() != PhaseIdle; i++ {
		tr.recenterStep()
	}

	if tr.Phase() != PhaseIdle {
		t.Fatalf("expected tracker to converge to Idle, still %v", tr.Phase())
	}
	if head.pose.Yaw != 0 {
		t.Errorf("expected yaw to settle at 0, got %v", head.pose.Yaw)
	}
}

func TestTracker_TimesOutIntoRecentering(t *testing.T) {
	head := &fakeHead{pose: state.HeadPose{Yaw: 10}}
	det := &fakeDetector{}
	tr := New(testConfig(), head, det)
	tr.mu.Lock()
	tr.phase = PhaseActive
	tr.lastSeen = time.Now().Add(-time.Hour)
	tr.mu.Unlock()

	tr.tick(context.Background())

	if tr.Phase() != PhaseRecentering {
		t.Fatalf("expected Recentering after timeout, got %v", tr.Phase())
	}
}
