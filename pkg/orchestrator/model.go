package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/audioio"
	"github.com/teslashibe/go-pidog/pkg/personas"
	"github.com/teslashibe/go-pidog/pkg/realtime"
	"github.com/teslashibe/go-pidog/pkg/tools"
)

// wireSession attaches every inbound event handler before the first
// connect.
func (a *App) wireSession() {
	a.session.OnAudioDelta = a.onAudioDelta
	a.session.OnToolCall = a.onToolCall
	a.session.OnSpeechStarted = a.onUserSpeechStarted
	a.session.OnSpeechStopped = a.onUserSpeechStopped
	a.session.OnTranscriptDelta = a.onTranscript
	a.session.OnError = func(err error) {
		log.Warn("orchestrator: session error", "error", err)
		a.emit("session.error", map[string]any{"error": err.Error()})
	}
}

// onAudioDelta is the inbound playback path: base64 → PCM16 at model
// rate → resample to speaker rate → playback queue.
func (a *App) onAudioDelta(base64Audio string) {
	a.markFirstResponse()

	data, err := base64.StdEncoding.DecodeString(base64Audio)
	if err != nil {
		log.Warn("orchestrator: bad audio delta", "error", err)
		return
	}
	samples := audioio.BytesToSamples(data)
	if a.speakerRate != a.modelRate {
		samples = audioio.Resample(samples, a.modelRate, a.speakerRate)
	}
	a.player.Enqueue(samples)
}

func (a *App) onToolCall(call realtime.ToolCall) {
	a.emit("tool.called", map[string]any{"name": call.Name, "call_id": call.CallID})

	// Dispatch off the receive loop; tool handlers move servos and take
	// photos, none of which belongs on the socket reader.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		output := a.dispatcher.Dispatch(ctx, call)
		toolChoiceNone := call.Name == "get_awareness_status"
		if err := a.session.SendToolResult(call.CallID, output, toolChoiceNone); err != nil {
			log.Warn("orchestrator: tool result send failed", "tool", call.Name, "error", err)
		}
		a.emit("tool.completed", map[string]any{"name": call.Name, "call_id": call.CallID})
	}()
}

// onUserSpeechStarted is barge-in: the model heard the user start
// talking, so whatever the dog was saying stops now.
func (a *App) onUserSpeechStarted() {
	a.mu.Lock()
	a.userSpeaking = true
	a.mu.Unlock()
	a.player.InterruptPlayback("user_speech_started")
	a.emit("user_speech.started", nil)
}

func (a *App) onUserSpeechStopped() {
	a.mu.Lock()
	a.userSpeaking = false
	a.mu.Unlock()
	a.emit("user_speech.stopped", nil)
}

func (a *App) onTranscript(text string, final bool) {
	a.markFirstResponse()
	if final {
		a.emit("transcript", map[string]any{"text": text})
	}
}

func (a *App) markFirstResponse() {
	a.firstResponseOnce.Do(func() { close(a.firstResponse) })
}

// --- sensors.SpeechActivity / awareness gating ---

// UserSpeaking reports whether the remote VAD currently hears the user.
func (a *App) UserSpeaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userSpeaking
}

// ModelSpeaking reports whether the dog is audibly playing model audio.
func (a *App) ModelSpeaking() bool {
	return a.states.Snapshot().IsTalkingMovement
}

// ResponseActive reports whether a model response is in flight.
func (a *App) ResponseActive() bool {
	return a.session.ResponseActive()
}

// --- awareness.ModelLink ---

// SendAwareness interrupts playback and emits the awareness heartbeat:
// a response.create that forces the get_awareness_status tool, whose
// result is the current goal text.
func (a *App) SendAwareness(ctx context.Context) error {
	a.player.InterruptPlayback("awareness_stimulus")
	return a.session.RequestResponse(realtime.ResponseOptions{
		ToolChoice:   "required",
		Instructions: "get_awareness_status",
	})
}

// SendStatusText injects informational text without forcing a response.
func (a *App) SendStatusText(ctx context.Context, text string) error {
	return a.session.SendUserText(text)
}

// SendPhotoAndRespond captures a frame and hands it to the model as a
// user message, then requests a response.
func (a *App) SendPhotoAndRespond(ctx context.Context) error {
	if a.detector == nil {
		return fmt.Errorf("orchestrator: no camera available")
	}
	path, err := a.detector.CaptureImage(ctx, "")
	if err != nil {
		return err
	}
	return a.SendImageAndRespond(ctx, path, "Describe the current scene in front of you.")
}

// DefaultMotivation returns the loaded persona's motivation.
func (a *App) DefaultMotivation() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.personaLoaded {
		return "", false
	}
	return a.currentPersona.Motivation(), true
}

// --- tools.Vision ---

// CaptureImage satisfies the look_and_see capture dependency.
func (a *App) CaptureImage(ctx context.Context, path string) (string, error) {
	if a.detector == nil {
		return "", fmt.Errorf("orchestrator: no camera available")
	}
	return a.detector.CaptureImage(ctx, path)
}

// --- tools.ModelFeeder ---

// SendImageAndRespond uploads a captured frame and asks the model to
// react to it.
func (a *App) SendImageAndRespond(ctx context.Context, imagePath, question string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("orchestrator: read capture: %w", err)
	}

	prompt := question
	a.mu.Lock()
	if prompt == "" && a.currentPersona.ImagePrompt != "" {
		prompt = a.currentPersona.ImagePrompt
	}
	a.mu.Unlock()

	if err := a.session.SendUserImage(base64.StdEncoding.EncodeToString(data), prompt); err != nil {
		return err
	}
	return a.session.RequestResponse(realtime.ResponseOptions{})
}

// --- tools.PersonaSwitcher ---

// SwitchPersona reconnects the session as the named persona and resets
// per-persona state.
func (a *App) SwitchPersona(ctx context.Context, name string) error {
	persona, ok := a.registry.Get(name)
	if !ok {
		return fmt.Errorf("orchestrator: unknown persona %q (available: %v)", name, a.registry.List())
	}

	a.player.InterruptPlayback("persona_switch")
	a.states.ResetForNewPersona()

	if err := a.session.Reconnect(ctx, buildInstructions(persona), persona.Voice, tools.Specs()); err != nil {
		return err
	}
	a.setCurrentPersona(persona)

	if err := a.head.SyncWithHardware(); err != nil {
		log.Warn("orchestrator: head sync after persona switch failed", "error", err)
	}

	a.emit("persona.switched", map[string]any{"name": persona.Name})
	return a.session.RequestResponse(realtime.ResponseOptions{})
}

// CreatePersona generates a brand-new persona from a description,
// registers it, and switches to it.
func (a *App) CreatePersona(ctx context.Context, description string) (string, error) {
	persona, err := a.generator.Generate(ctx, description)
	if err != nil {
		return "", err
	}
	a.registry.Upsert(persona)
	a.emit("persona.created", map[string]any{"name": persona.Name})

	if err := a.SwitchPersona(ctx, persona.Name); err != nil {
		return "", err
	}
	return persona.Name, nil
}

// configureFor runs session configuration for a persona on an
// already-open socket (first boot; Reconnect handles later switches).
func (a *App) configureFor(persona personas.Persona) error {
	if err := a.session.ConfigureSession(buildInstructions(persona), persona.Voice, tools.Specs()); err != nil {
		return err
	}
	a.setCurrentPersona(persona)
	a.states.SetGoal(persona.Motivation())
	return nil
}

func (a *App) setCurrentPersona(p personas.Persona) {
	a.mu.Lock()
	a.currentPersona = p
	a.personaLoaded = true
	a.mu.Unlock()
}

// buildInstructions frames the persona prompt with the standing rules
// every persona shares: be the dog, use the tools, stay in character.
func buildInstructions(p personas.Persona) string {
	return p.Prompt + "\n\n" +
		"You are a small robotic dog. You can move your head and body, walk, bark, and see through " +
		"your camera with the look_and_see tool. Use perform_action constantly to express yourself " +
		"physically. Keep spoken replies short. Never mention being an AI or a language model; you " +
		"are the dog. When you want to know what is around you, actually look with look_and_see " +
		"instead of guessing."
}
