// Package tools implements the nine functions the model can call, each
// named in the wire contract it shares with ModelSession. A handler never
// panics or returns a Go error to its caller: failures are caught and
// formatted as a message-plus-stack-trace string so the model can see and
// talk about what went wrong, the same way the dog's own language model
// integration always has.
package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/realtime"
	"github.com/teslashibe/go-pidog/pkg/state"
)

// ActionRunner plays named macros in order, in the style of ActionLibrary.
type ActionRunner interface {
	RunMacros(ctx context.Context, names []string) error
}

// Vision captures a still frame for look_and_see.
type Vision interface {
	CaptureImage(ctx context.Context, path string) (string, error)
}

// ModelFeeder hands the captured image back to the model and asks it to
// respond.
type ModelFeeder interface {
	SendImageAndRespond(ctx context.Context, imagePath, question string) error
}

// PersonaSwitcher owns the persona registry and the session reconnect that
// switching or creating a persona requires.
type PersonaSwitcher interface {
	SwitchPersona(ctx context.Context, name string) error
	CreatePersona(ctx context.Context, description string) (name string, err error)
}

// SystemStatus builds the human-readable status report.
type SystemStatus interface {
	Status(ctx context.Context) (string, error)
}

// Shutdowner requests an orderly orchestrator shutdown.
type Shutdowner interface {
	RequestShutdown(reason string)
}

const defaultGoal = "You are unsure of your goal. Ask what you should do next, or not."

type handlerFunc func(ctx context.Context, args map[string]any) (string, error)

// Dispatcher routes decoded tool calls to their handlers.
type Dispatcher struct {
	states   *state.Store
	actions  ActionRunner
	vision   Vision
	model    ModelFeeder
	personas PersonaSwitcher
	status   SystemStatus
	shutdown Shutdowner

	handlers map[string]handlerFunc
}

// New creates a Dispatcher. Any collaborator may be nil; the corresponding
// tool then returns an error string instead of panicking.
func New(states *state.Store, actions ActionRunner, vision Vision, model ModelFeeder, personas PersonaSwitcher, status SystemStatus, shutdown Shutdowner) *Dispatcher {
	d := &Dispatcher{
		states:   states,
		actions:  actions,
		vision:   vision,
		model:    model,
		personas: personas,
		status:   status,
		shutdown: shutdown,
	}
	d.handlers = map[string]handlerFunc{
		"perform_action":       d.performAction,
		"look_and_see":         d.lookAndSee,
		"get_system_status":    d.systemStatus,
		"get_awareness_status": d.awarenessStatus,
		"set_goal":             d.setGoal,
		"set_volume":           d.setVolume,
		"switch_persona":       d.switchPersona,
		"create_new_persona":   d.createPersona,
		"shut_down":            d.shutDown,
	}
	return d
}

// Dispatch runs the named tool and always returns a string result, never
// a Go error: the model only understands text back.
func (d *Dispatcher) Dispatch(ctx context.Context, call realtime.ToolCall) (output string) {
	defer func() {
		if r := recover(); r != nil {
			output = fmt.Sprintf("%v\n%s", r, debug.Stack())
			log.Warn("tools: handler panicked", "tool", call.Name, "error", r)
		}
	}()

	handler, ok := d.handlers[call.Name]
	if !ok {
		result := fmt.Sprintf("unknown function call: %s", call.Name)
		log.Warn("tools: unknown tool requested", "tool", call.Name)
		return result
	}

	result, err := handler(ctx, call.Arguments)
	if err != nil {
		log.Warn("tools: handler failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("%v\n%s", err, debug.Stack())
	}
	return result
}

// Specs returns the tool table to advertise via session.update.
func Specs() []realtime.ToolSpec {
	return []realtime.ToolSpec{
		{
			Name:        "perform_action",
			Description: "Run one or more named motion macros, in order.",
			Parameters: map[string]any{
				"action_name": map[string]any{"type": "string", "description": "comma-separated macro names"},
			},
		},
		{
			Name:        "look_and_see",
			Description: "Capture a photo and answer a question about what the camera sees.",
			Parameters: map[string]any{
				"question": map[string]any{"type": "string"},
			},
		},
		{
			Name:        "get_system_status",
			Description: "Report battery, posture, and connectivity status.",
			Parameters:  map[string]any{},
		},
		{
			Name:        "get_awareness_status",
			Description: "Return the dog's current goal.",
			Parameters:  map[string]any{},
		},
		{
			Name:        "set_goal",
			Description: "Update the dog's current goal.",
			Parameters: map[string]any{
				"goal": map[string]any{"type": "string"},
			},
		},
		{
			Name:        "set_volume",
			Description: "Set the speaker volume level, 0 to 3.",
			Parameters: map[string]any{
				"volume_level": map[string]any{"type": "number"},
			},
		},
		{
			Name:        "switch_persona",
			Description: "Reconnect the session as a different named persona.",
			Parameters: map[string]any{
				"persona_name": map[string]any{"type": "string"},
			},
		},
		{
			Name:        "create_new_persona",
			Description: "Generate and switch to a brand new persona from a description.",
			Parameters: map[string]any{
				"persona_description": map[string]any{"type": "string"},
			},
		},
		{
			Name:        "shut_down",
			Description: "Shut the dog down.",
			Parameters:  map[string]any{},
		},
	}
}

func (d *Dispatcher) performAction(ctx context.Context, args map[string]any) (string, error) {
	if d.actions == nil {
		return "", fmt.Errorf("tools: perform_action: no action library wired")
	}
	raw := stringArg(args, "action_name", "")
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("tools: perform_action: no action_name given")
	}
	if err := d.actions.RunMacros(ctx, names); err != nil {
		return "", fmt.Errorf("tools: perform_action: %w", err)
	}
	return "success", nil
}

func (d *Dispatcher) lookAndSee(ctx context.Context, args map[string]any) (string, error) {
	if d.vision == nil || d.model == nil {
		return "", fmt.Errorf("tools: look_and_see: vision or model feed not wired")
	}
	question := stringArg(args, "question", "")
	path, err := d.vision.CaptureImage(ctx, "")
	if err != nil {
		return "", fmt.Errorf("tools: look_and_see: capture: %w", err)
	}
	if err := d.model.SendImageAndRespond(ctx, path, question); err != nil {
		return "", fmt.Errorf("tools: look_and_see: send: %w", err)
	}
	return "Looking now.", nil
}

func (d *Dispatcher) systemStatus(ctx context.Context, args map[string]any) (string, error) {
	if d.status == nil {
		return "", fmt.Errorf("tools: get_system_status: not wired")
	}
	return d.status.Status(ctx)
}

func (d *Dispatcher) awarenessStatus(ctx context.Context, args map[string]any) (string, error) {
	return d.states.Snapshot().Goal, nil
}

func (d *Dispatcher) setGoal(ctx context.Context, args map[string]any) (string, error) {
	goal := stringArg(args, "goal", defaultGoal)
	d.states.SetGoal(goal)
	return "success", nil
}

func (d *Dispatcher) setVolume(ctx context.Context, args map[string]any) (string, error) {
	level := floatArg(args, "volume_level", 1)
	d.states.SetVolume(level)
	return "success", nil
}

func (d *Dispatcher) switchPersona(ctx context.Context, args map[string]any) (string, error) {
	if d.personas == nil {
		return "", fmt.Errorf("tools: switch_persona: persona registry not wired")
	}
	name := stringArg(args, "persona_name", "")
	if name == "" {
		return "", fmt.Errorf("tools: switch_persona: persona_name is required")
	}
	if err := d.personas.SwitchPersona(ctx, name); err != nil {
		return "", fmt.Errorf("tools: switch_persona: %w", err)
	}
	return "persona_switched", nil
}

func (d *Dispatcher) createPersona(ctx context.Context, args map[string]any) (string, error) {
	if d.personas == nil {
		return "", fmt.Errorf("tools: create_new_persona: persona registry not wired")
	}
	description := stringArg(args, "persona_description", "")
	if _, err := d.personas.CreatePersona(ctx, description); err != nil {
		return "", fmt.Errorf("tools: create_new_persona: %w", err)
	}
	return "success", nil
}

func (d *Dispatcher) shutDown(ctx context.Context, args map[string]any) (string, error) {
	if d.shutdown == nil {
		return "", fmt.Errorf("tools: shut_down: not wired")
	}
	d.shutdown.RequestShutdown("tool_requested")
	return "shutting down", nil
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func floatArg(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
