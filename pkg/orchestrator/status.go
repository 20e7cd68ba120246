package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/teslashibe/go-pidog/pkg/realtime"
)

// realtimeOOB shapes the out-of-band instruction response.create.
func realtimeOOB(topic, instructions string) realtime.ResponseOptions {
	return realtime.ResponseOptions{
		ConversationNone: true,
		Modalities:       []string{"text"},
		Metadata:         map[string]string{"topic": topic},
		Instructions:     instructions,
	}
}

var bootTime = time.Now()

// Status builds the human-readable get_system_status report from state,
// hardware reads, and host metrics. Failed reads degrade to "unknown"
// lines rather than failing the whole report.
func (a *App) Status(ctx context.Context) (string, error) {
	snap := a.states.Snapshot()
	var parts []string

	parts = append(parts, fmt.Sprintf("Posture: %s", snap.Posture))
	parts = append(parts, fmt.Sprintf("Head pose: looking %s (yaw %.1f, pitch %.1f, roll %.1f)",
		snap.HeadPose.DirectionLabel(), snap.HeadPose.Yaw, snap.HeadPose.Pitch, snap.HeadPose.Roll))
	parts = append(parts, fmt.Sprintf("Current goal: %s", snap.Goal))
	parts = append(parts, fmt.Sprintf("Volume level: %.0f of 3", snap.Volume))

	if voltage, err := a.dog.GetBatteryVoltage(); err == nil {
		parts = append(parts, fmt.Sprintf("Battery: %.2fV", voltage))
	} else {
		parts = append(parts, "Battery: unknown")
	}
	if cm, err := a.dog.Distance(); err == nil && cm > 0 {
		parts = append(parts, fmt.Sprintf("Nearest obstacle ahead: %.0fcm", cm))
	} else {
		parts = append(parts, "Nearest obstacle ahead: unknown")
	}

	if snap.IsBeingPetted || time.Since(snap.PettingAt) < 10*time.Second {
		parts = append(parts, "Someone petted my head recently!")
	}
	if snap.FacePresent {
		parts = append(parts, "A face is currently in view.")
	} else if !snap.FaceLastSeenAt.IsZero() {
		parts = append(parts, fmt.Sprintf("Last saw a face %s ago.", time.Since(snap.FaceLastSeenAt).Round(time.Second)))
	}
	if snap.LastSoundDirection != "" {
		parts = append(parts, fmt.Sprintf("Last sound came from the %s.", snap.LastSoundDirection))
	}
	if snap.LastOrientationDesc != "" {
		parts = append(parts, fmt.Sprintf("Orientation: %s", snap.LastOrientationDesc))
	}

	parts = append(parts, fmt.Sprintf("Model link: connected=%v", a.session.IsConnected()))
	parts = append(parts, fmt.Sprintf("Uptime: %s, goroutines: %d", time.Since(bootTime).Round(time.Second), runtime.NumGoroutine()))
	parts = append(parts, fmt.Sprintf("Available actions: %s", strings.Join(a.library.Names(), ", ")))
	parts = append(parts, fmt.Sprintf("Available personas: %s", strings.Join(a.registry.List(), ", ")))

	return strings.Join(parts, "\n"), nil
}
