package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pidog/pkg/events"
)

// External control operations, exposed to the (out-of-scope) UI. Every
// call leaves a queued/started/completed|failed audit trail on the bus.

func (a *App) emit(eventType string, payload map[string]any) {
	a.bus.Publish(events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// audit wraps an external command with its audit events.
func (a *App) audit(name string, payload map[string]any, fn func() error) error {
	a.emit("command."+name+".queued", payload)
	a.emit("command."+name+".started", payload)
	if err := fn(); err != nil {
		failed := map[string]any{"error": err.Error()}
		for k, v := range payload {
			failed[k] = v
		}
		a.emit("command."+name+".failed", failed)
		return err
	}
	a.emit("command."+name+".completed", payload)
	return nil
}

// EnqueueAction runs named macros as if the model had called
// perform_action.
func (a *App) EnqueueAction(ctx context.Context, names []string) error {
	return a.audit("enqueue_action", map[string]any{"actions": names}, func() error {
		return a.library.RunMacros(ctx, names)
	})
}

// SendCustomStimulus injects operator-written stimulus text as a forced
// awareness prompt.
func (a *App) SendCustomStimulus(ctx context.Context, text string) error {
	return a.audit("send_custom_stimulus", map[string]any{"text": text}, func() error {
		a.states.SetGoal(text)
		a.states.MarkAwarenessEvent(text)
		return a.SendAwareness(ctx)
	})
}

// SetAwarenessEnabled toggles the awareness loop.
func (a *App) SetAwarenessEnabled(enabled bool) error {
	return a.audit("set_awareness_enabled", map[string]any{"enabled": enabled}, func() error {
		a.aware.SetEnabled(enabled)
		return nil
	})
}

// SetSensorsEnabled toggles sensor polling.
func (a *App) SetSensorsEnabled(enabled bool) error {
	return a.audit("set_sensors_enabled", map[string]any{"enabled": enabled}, func() error {
		a.monitor.SetEnabled(enabled)
		return nil
	})
}

// SwitchPersonaCommand is the audited external entry to SwitchPersona
// (the tool path calls SwitchPersona directly).
func (a *App) SwitchPersonaCommand(ctx context.Context, name string) error {
	return a.audit("switch_persona", map[string]any{"name": name}, func() error {
		return a.SwitchPersona(ctx, name)
	})
}

// SetGoal overrides the dog's current motivation.
func (a *App) SetGoal(goal string) error {
	return a.audit("set_goal", map[string]any{"goal": goal}, func() error {
		a.states.SetGoal(goal)
		return nil
	})
}

// InstructResponse emits an out-of-band instruction response: text-only,
// outside the main conversation, tagged with a topic.
func (a *App) InstructResponse(ctx context.Context, topic, instructions string) error {
	return a.audit("instruct_response", map[string]any{"topic": topic}, func() error {
		return a.session.RequestResponse(realtimeOOB(topic, instructions))
	})
}

// Shutdown is the audited external entry to RequestShutdown.
func (a *App) Shutdown(reason string) error {
	return a.audit("shutdown", map[string]any{"reason": reason}, func() error {
		a.RequestShutdown(reason)
		return nil
	})
}
