package orchestrator

import (
	"testing"

	"github.com/teslashibe/go-pidog/internal/config"
)

func testConfig() config.Config {
	cfg := config.LoadEnvConfig()
	cfg.RobotIP = "127.0.0.1"
	cfg.APIKey = "test-key"
	cfg.AudioBackend = "mock"
	return cfg
}

func TestNewRejectsMissingRobotIP(t *testing.T) {
	cfg := testConfig()
	cfg.RobotIP = ""
	if _, err := New(cfg); err == nil {
		t.Fatal("expected an error without ROBOT_IP")
	}
}

func TestNewWiresComponents(t *testing.T) {
	app, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if app.States() == nil || app.Bus() == nil {
		t.Fatal("state store and bus must exist after New")
	}
	if app.registry.Count() == 0 {
		t.Error("builtin personas should be loaded")
	}
}

func TestSetGoalEmitsAuditTrail(t *testing.T) {
	app, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := app.SetGoal("guard the couch"); err != nil {
		t.Fatalf("SetGoal: %v", err)
	}
	if got := app.States().Snapshot().Goal; got != "guard the couch" {
		t.Errorf("goal = %q", got)
	}

	var queued, completed bool
	for _, e := range app.Bus().Replay(0) {
		switch e.Type {
		case "command.set_goal.queued":
			queued = true
		case "command.set_goal.completed":
			completed = true
		}
	}
	if !queued || !completed {
		t.Errorf("audit trail incomplete: queued=%v completed=%v", queued, completed)
	}
}

func TestSetSensorsAndAwarenessToggles(t *testing.T) {
	app, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.SetSensorsEnabled(false); err != nil {
		t.Errorf("SetSensorsEnabled: %v", err)
	}
	if err := app.SetAwarenessEnabled(false); err != nil {
		t.Errorf("SetAwarenessEnabled: %v", err)
	}
}

func TestRequestShutdownIsIdempotent(t *testing.T) {
	app, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	app.RequestShutdown("first")
	app.RequestShutdown("second") // must not panic or block

	select {
	case reason := <-app.shutdownCh:
		if reason != "first" {
			t.Errorf("first request wins, got %q", reason)
		}
	default:
		t.Error("shutdown request should be queued")
	}
}

func TestNewFaceDetectorRejectsUnknownBackend(t *testing.T) {
	if _, err := newFaceDetector("opencv-haar"); err == nil {
		t.Error("expected an error for an unknown detector backend")
	}
}

func TestModelRateFallback(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{16000, 16000},
		{24000, 24000},
		{44100, 24000},
		{0, 24000},
	}
	for _, c := range cases {
		if got := modelRateFor(c.in); got != c.want {
			t.Errorf("modelRateFor(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
