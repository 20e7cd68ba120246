// Package realtime manages the websocket session to the speech-to-speech
// model: connect, configure, route inbound events to callbacks, and queue
// outbound audio, text, and response.create requests with single-flight
// coalescing while a response is in flight.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-pidog/internal/log"
)

// Inbound/outbound event type names, exactly as the wire protocol sends
// and expects them.
const (
	EventSessionCreated       = "session.created"
	EventSessionUpdated       = "session.updated"
	EventSpeechStarted        = "input_audio_buffer.speech_started"
	EventSpeechStopped        = "input_audio_buffer.speech_stopped"
	EventAudioBufferCommitted = "input_audio_buffer.committed"
	EventTranscriptionDone    = "conversation.item.input_audio_transcription.completed"
	EventAudioDelta           = "response.audio.delta"
	EventAudioDone            = "response.audio.done"
	EventAudioTranscriptDelta = "response.audio_transcript.delta"
	EventTextDelta            = "response.text.delta"
	EventFunctionCallArgsDone = "response.function_call_arguments.done"
	EventResponseCreated      = "response.created"
	EventResponseDone         = "response.done"
	EventError                = "error"
)

// ToolSpec is the function-calling shape the session advertises to the
// model; ToolDispatcher owns execution, this package only carries the
// schema and the resulting call/result envelopes.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a decoded response.function_call_arguments.done event.
type ToolCall struct {
	Name      string
	CallID    string
	Arguments map[string]any
}

// ResponseOptions shapes an outbound response.create request. The zero
// value is the default "resume after tool output" variant.
type ResponseOptions struct {
	Modalities       []string
	ToolChoice       string
	Instructions     string
	ConversationNone bool
	Metadata         map[string]string
	Input            []map[string]any
}

func (o ResponseOptions) key() string {
	return fmt.Sprintf("%v|%s|%s|%v|%v", o.Modalities, o.ToolChoice, o.Instructions, o.ConversationNone, o.Input)
}

// Session manages one websocket connection to the realtime model.
type Session struct {
	modelURL string
	modelID  string
	apiKey   string

	ws   *websocket.Conn
	wsMu sync.Mutex

	OnAudioDelta      func(base64Audio string)
	OnTranscriptDelta func(text string, final bool)
	OnToolCall        func(call ToolCall)
	OnSpeechStarted   func()
	OnSpeechStopped   func()
	OnError           func(err error)
	OnSessionReady    func()

	mu             sync.Mutex
	connected      bool
	closed         bool
	responseActive bool
	pending        *ResponseOptions
	pendingKey     string

	lastInstructions string
	lastVoice        string
	lastTools        []ToolSpec

	stop chan struct{}
}

// NewSession creates a Session for the given model endpoint.
func NewSession(modelURL, modelID, apiKey string) *Session {
	return &Session{
		modelURL: modelURL,
		modelID:  modelID,
		apiKey:   apiKey,
		stop:     make(chan struct{}),
	}
}

// Connect dials the websocket and starts the receive loop and keepalive
// pinger. Call ConfigureSession afterward.
func (s *Session) Connect(ctx context.Context) error {
	url := fmt.Sprintf("%s?model=%s", s.modelURL, s.modelID)

	header := map[string][]string{
		"Authorization": {"Bearer " + s.apiKey},
		"OpenAI-Beta":   {"realtime=v1"},
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("realtime: connect: %w", err)
	}

	s.mu.Lock()
	s.ws = ws
	s.connected = true
	s.closed = false
	s.stop = make(chan struct{})
	s.mu.Unlock()

	ws.SetPingHandler(func(appData string) error {
		s.wsMu.Lock()
		defer s.wsMu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	ws.SetReadDeadline(time.Now().Add(120 * time.Second))

	go s.receiveLoop()
	go s.keepAlive()

	return nil
}

func (s *Session) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.wsMu.Lock()
			ws := s.ws
			if ws != nil {
				ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					s.wsMu.Unlock()
					return
				}
			}
			s.wsMu.Unlock()
		}
	}
}

// ConfigureSession sends session.update with modalities, voice, PCM16
// in/out, transcription, semantic VAD, and the tool table.
func (s *Session) ConfigureSession(instructions, voice string, tools []ToolSpec) error {
	if voice == "" {
		voice = "alloy"
	}
	s.mu.Lock()
	s.lastInstructions = instructions
	s.lastVoice = voice
	s.lastTools = tools
	s.mu.Unlock()

	apiTools := make([]map[string]any, len(tools))
	for i, t := range tools {
		apiTools[i] = map[string]any{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": t.Parameters,
			},
		}
	}

	return s.sendJSON(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":          []string{"text", "audio"},
			"instructions":        instructions,
			"voice":               voice,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
			"turn_detection": map[string]any{
				"type": "semantic_vad",
			},
			"tools":       apiTools,
			"tool_choice": "auto",
		},
	})
}

// SendAudioFrame appends a base64-encoded PCM16 frame at model rate to the
// input buffer.
func (s *Session) SendAudioFrame(base64Audio string) error {
	return s.sendJSON(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64Audio,
	})
}

// SendUserText injects an explicit stimulus as a user message.
func (s *Session) SendUserText(text string) error {
	return s.sendJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
}

// SendUserImage injects a captured camera frame as a user message, with
// optional accompanying text (the look_and_see question). The image goes
// up as a base64 data URL the same way the audio frames do.
func (s *Session) SendUserImage(base64JPEG, text string) error {
	content := []map[string]any{
		{"type": "input_image", "image_url": "data:image/jpeg;base64," + base64JPEG},
	}
	if text != "" {
		content = append(content, map[string]any{"type": "input_text", "text": text})
	}
	return s.sendJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "message",
			"role":    "user",
			"content": content,
		},
	})
}

// RequestResponse queues a response.create. If a response is already in
// flight, identical consecutive requests are coalesced and the latest
// distinct request waits in a single pending slot, flushed on completion.
func (s *Session) RequestResponse(opts ResponseOptions) error {
	s.mu.Lock()
	if s.responseActive {
		key := opts.key()
		if s.pending != nil && s.pendingKey == key {
			s.mu.Unlock()
			return nil
		}
		o := opts
		s.pending = &o
		s.pendingKey = key
		s.mu.Unlock()
		return nil
	}
	s.responseActive = true
	s.mu.Unlock()

	return s.sendResponseCreate(opts)
}

func (s *Session) sendResponseCreate(opts ResponseOptions) error {
	body := map[string]any{}
	if len(opts.Modalities) > 0 {
		body["modalities"] = opts.Modalities
	}
	if opts.ToolChoice != "" {
		body["tool_choice"] = opts.ToolChoice
	}
	if opts.Instructions != "" {
		body["instructions"] = opts.Instructions
	}
	if opts.ConversationNone {
		body["conversation"] = "none"
	}
	if opts.Metadata != nil {
		body["metadata"] = opts.Metadata
	}
	if opts.Input != nil {
		body["input"] = opts.Input
	}

	msg := map[string]any{"type": "response.create"}
	if len(body) > 0 {
		msg["response"] = body
	}
	return s.sendJSON(msg)
}

func (s *Session) flushPending() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.pendingKey = ""
	if pending == nil {
		s.responseActive = false
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.sendResponseCreate(*pending); err != nil {
		log.Warn("realtime: flush pending response.create failed", "error", err)
		s.mu.Lock()
		s.responseActive = false
		s.mu.Unlock()
	}
}

// SendToolResult replies to a function call and resumes the response.
// toolChoiceNone should be set for get_awareness_status results, which
// must not trigger a second tool call.
func (s *Session) SendToolResult(callID, output string, toolChoiceNone bool) error {
	if err := s.sendJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}); err != nil {
		return err
	}

	opts := ResponseOptions{}
	if toolChoiceNone {
		opts.ToolChoice = "none"
	}
	return s.RequestResponse(opts)
}

// Reconnect closes the current socket, waits briefly, reconnects, and
// re-runs session configuration with possibly-updated instructions/voice.
func (s *Session) Reconnect(ctx context.Context, instructions, voice string, tools []ToolSpec) error {
	s.Close()
	time.Sleep(500 * time.Millisecond)

	if err := s.Connect(ctx); err != nil {
		return fmt.Errorf("realtime: reconnect: %w", err)
	}
	return s.ConfigureSession(instructions, voice, tools)
}

// Close tears down the websocket. Safe to call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.connected = false
	ws := s.ws
	stop := s.stop
	s.mu.Unlock()

	close(stop)
	if ws != nil {
		ws.Close()
	}
}

func (s *Session) receiveLoop() {
	for {
		s.mu.Lock()
		ws := s.ws
		closed := s.closed
		s.mu.Unlock()
		if closed || ws == nil {
			return
		}

		ws.SetReadDeadline(time.Now().Add(120 * time.Second))
		_, message, err := ws.ReadMessage()
		if err != nil {
			s.mu.Lock()
			alreadyClosed := s.closed
			s.mu.Unlock()
			if !alreadyClosed && s.OnError != nil {
				s.OnError(fmt.Errorf("realtime: read: %w", err))
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		s.route(msg)
	}
}

func (s *Session) route(msg map[string]any) {
	msgType, _ := msg["type"].(string)

	switch msgType {
	case EventSessionCreated:
		if s.OnSessionReady != nil {
			s.OnSessionReady()
		}

	case EventSessionUpdated, EventAudioBufferCommitted:
		// acknowledged, no action needed

	case EventSpeechStarted:
		if s.OnSpeechStarted != nil {
			s.OnSpeechStarted()
		}

	case EventSpeechStopped:
		if s.OnSpeechStopped != nil {
			s.OnSpeechStopped()
		}

	case EventTranscriptionDone:
		if transcript, ok := msg["transcript"].(string); ok && s.OnTranscriptDelta != nil {
			s.OnTranscriptDelta(transcript, true)
		}

	case EventAudioDelta:
		if delta, ok := msg["delta"].(string); ok && s.OnAudioDelta != nil {
			s.OnAudioDelta(delta)
		}

	case EventAudioDone:
		// AudioPipeline clears talking-movement on buffer drain, not here.

	case EventAudioTranscriptDelta, EventTextDelta:
		if delta, ok := msg["delta"].(string); ok && s.OnTranscriptDelta != nil {
			s.OnTranscriptDelta(delta, false)
		}

	case EventFunctionCallArgsDone:
		s.handleFunctionCall(msg)

	case EventResponseCreated:
		// response officially started; responseActive already set by RequestResponse

	case EventResponseDone:
		s.flushPending()

	case EventError:
		if errData, ok := msg["error"].(map[string]any); ok {
			if errMsg, ok := errData["message"].(string); ok && s.OnError != nil {
				s.OnError(fmt.Errorf("realtime: api error: %s", errMsg))
			}
		}
	}
}

func (s *Session) handleFunctionCall(msg map[string]any) {
	name, _ := msg["name"].(string)
	callID, _ := msg["call_id"].(string)
	argsStr, _ := msg["arguments"].(string)

	var args map[string]any
	if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
		log.Warn("realtime: malformed tool call arguments", "tool", name, "error", err)
		args = map[string]any{}
	}

	if s.OnToolCall != nil {
		s.OnToolCall(ToolCall{Name: name, CallID: callID, Arguments: args})
	}
}

func (s *Session) sendJSON(v any) error {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()

	if ws == nil {
		return fmt.Errorf("realtime: not connected")
	}
	return ws.WriteJSON(v)
}

// ResponseActive reports whether a response.create is currently in
// flight; the sensor monitor and awareness loop use this as part of
// their suppression gates.
func (s *Session) ResponseActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseActive
}

// IsConnected reports whether the websocket is currently open.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && !s.closed
}
