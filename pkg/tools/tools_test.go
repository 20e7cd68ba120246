package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/realtime"
	"github.com/teslashibe/go-pidog/pkg/state"
)

type fakeActions struct {
	ran []string
	err error
}

func (f *fakeActions) RunMacros(ctx context.Context, names []string) error {
	f.ran = append(f.ran, names...)
	return f.err
}

type fakeVision struct {
	path string
	err  error
}

func (f *fakeVision) CaptureImage(ctx context.Context, path string) (string, error) {
	return f.path, f.err
}

type fakeModel struct {
	question string
	err      error
}

func (f *fakeModel) SendImageAndRespond(ctx context.Context, imagePath, question string) error {
	f.question = question
	return f.err
}

type fakePersonas struct {
	switched string
	created  string
	err      error
}

func (f *fakePersonas) SwitchPersona(ctx context.Context, name string) error {
	f.switched = name
	return f.err
}

func (f *fakePersonas) CreatePersona(ctx context.Context, description string) (string, error) {
	f.created = description
	return "generated", f.err
}

type fakeStatus struct{ text string }

func (f *fakeStatus) Status(ctx context.Context) (string, error) { return f.text, nil }

type fakeShutdown struct{ reason string }

func (f *fakeShutdown) RequestShutdown(reason string) { f.reason = reason }

func newTestDispatcher() (*Dispatcher, *fakeActions, *fakeVision, *fakeModel, *fakePersonas, *fakeShutdown) {
	st := state.New(events.New())
	actions := &fakeActions{}
	vision := &fakeVision{path: "/tmp/frame.jpg"}
	model := &fakeModel{}
	personas := &fakePersonas{}
	status := &fakeStatus{text: "all good"}
	shutdown := &fakeShutdown{}
	return New(st, actions, vision, model, personas, status, shutdown), actions, vision, model, personas, shutdown
}

func TestDispatch_PerformActionSplitsCommaList(t *testing.T) {
	d, actions, _, _, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), realtime.ToolCall{
		Name:      "perform_action",
		Arguments: map[string]any{"action_name": "sit, wag_tail , bark"},
	})
	if out != "success" {
		t.Fatalf("expected success, got %q", out)
	}
	if len(actions.ran) != 3 || actions.ran[1] != "wag_tail" {
		t.Errorf("expected trimmed macro names, got %+v", actions.ran)
	}
}

func TestDispatch_PerformActionMissingNameErrors(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), realtime.ToolCall{Name: "perform_action", Arguments: map[string]any{}})
	if !strings.Contains(out, "no action_name given") {
		t.Errorf("expected missing-arg error, got %q", out)
	}
}

func TestDispatch_LookAndSeeUsesQuestion(t *testing.T) {
	d, _, _, model, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), realtime.ToolCall{
		Name:      "look_and_see",
		Arguments: map[string]any{"question": "what is in front of you?"},
	})
	if out == "" {
		t.Fatal("expected non-empty status")
	}
	if model.question != "what is in front of you?" {
		t.Errorf("expected question forwarded to model, got %q", model.question)
	}
}

func TestDispatch_GetAwarenessStatusReturnsGoal(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()
	d.Dispatch(context.Background(), realtime.ToolCall{Name: "set_goal", Arguments: map[string]any{"goal": "patrol the yard"}})
	out := d.Dispatch(context.Background(), realtime.ToolCall{Name: "get_awareness_status"})
	if out != "patrol the yard" {
		t.Errorf("expected goal echoed back, got %q", out)
	}
}

func TestDispatch_SetGoalDefaultsWhenMissing(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()
	d.Dispatch(context.Background(), realtime.ToolCall{Name: "set_goal", Arguments: map[string]any{}})
	out := d.Dispatch(context.Background(), realtime.ToolCall{Name: "get_awareness_status"})
	if out != defaultGoal {
		t.Errorf("expected default goal, got %q", out)
	}
}

func TestDispatch_SwitchPersonaRequiresName(t *testing.T) {
	d, _, _, _, personas, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), realtime.ToolCall{Name: "switch_persona", Arguments: map[string]any{}})
	if !strings.Contains(out, "persona_name is required") {
		t.Errorf("expected required-arg error, got %q", out)
	}
	if personas.switched != "" {
		t.Errorf("expected no switch attempted, got %q", personas.switched)
	}
}

func TestDispatch_SwitchPersonaSucceeds(t *testing.T) {
	d, _, _, _, personas, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), realtime.ToolCall{
		Name:      "switch_persona",
		Arguments: map[string]any{"persona_name": "Scout"},
	})
	if out != "persona_switched" {
		t.Errorf("expected persona_switched, got %q", out)
	}
	if personas.switched != "Scout" {
		t.Errorf("expected persona name forwarded, got %q", personas.switched)
	}
}

func TestDispatch_ShutDownRequestsShutdown(t *testing.T) {
	d, _, _, _, _, shutdown := newTestDispatcher()
	d.Dispatch(context.Background(), realtime.ToolCall{Name: "shut_down"})
	if shutdown.reason == "" {
		t.Error("expected shutdown to be requested")
	}
}

func TestDispatch_UnknownToolReturnsErrorString(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()
	out := d.Dispatch(context.Background(), realtime.ToolCall{Name: "does_not_exist"})
	if !strings.Contains(out, "unknown function call") {
		t.Errorf("expected unknown-call message, got %q", out)
	}
}

func TestDispatch_HandlerErrorIncludesStackTrace(t *testing.T) {
	st := state.New(events.New())
	actions := &fakeActions{err: errors.New("motor fault")}
	d := New(st, actions, &fakeVision{}, &fakeModel{}, &fakePersonas{}, &fakeStatus{}, &fakeShutdown{})
	out := d.Dispatch(context.Background(), realtime.ToolCall{
		Name:      "perform_action",
		Arguments: map[string]any{"action_name": "sit"},
	})
	if !strings.Contains(out, "motor fault") {
		t.Errorf("expected error message in output, got %q", out)
	}
	if !strings.Contains(out, "goroutine") {
		t.Errorf("expected stack trace in output, got %q", out)
	}
}
