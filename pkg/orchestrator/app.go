// Package orchestrator owns the lifetimes of every component: it wires
// the state store, head controller, audio pipeline, model session, tool
// dispatcher, sensor monitor, face tracker, and awareness loop together,
// runs them, and tears them down in a fixed order on shutdown. It is
// also the process's external control surface: every operation the
// (out-of-process) UI can invoke goes through here and leaves an audit
// trail on the event bus.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-pidog/internal/config"
	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/actions"
	"github.com/teslashibe/go-pidog/pkg/audioio"
	"github.com/teslashibe/go-pidog/pkg/awareness"
	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/hardware"
	"github.com/teslashibe/go-pidog/pkg/headctrl"
	"github.com/teslashibe/go-pidog/pkg/personas"
	"github.com/teslashibe/go-pidog/pkg/realtime"
	"github.com/teslashibe/go-pidog/pkg/sensors"
	"github.com/teslashibe/go-pidog/pkg/state"
	"github.com/teslashibe/go-pidog/pkg/tools"
	"github.com/teslashibe/go-pidog/pkg/tracking"
	"github.com/teslashibe/go-pidog/pkg/tracking/detection"
	"github.com/teslashibe/go-pidog/pkg/vision"
)

// connectAttempts bounds the websocket connect retry, with exponential
// backoff between 1s and 8s.
const (
	connectAttempts   = 3
	connectBackoffMin = 1 * time.Second
	connectBackoffMax = 8 * time.Second
)

// initialResponseTimeout gates sensor/awareness startup on the model's
// first reply, so boot chatter does not race the greeting.
const initialResponseTimeout = 15 * time.Second

// App wires and runs the whole dog.
type App struct {
	cfg config.Config

	bus    *events.Bus
	states *state.Store

	dog      hardware.Dog
	head     *headctrl.Controller
	library  *actions.Library
	monitor  *sensors.Monitor
	tracker  *tracking.Tracker
	detector vision.Detector

	source  audioio.Source
	sink    audioio.Sink
	gate    *audioio.Gate
	capture *audioio.CapturePipeline
	player  *audioio.Player

	session    *realtime.Session
	dispatcher *tools.Dispatcher
	aware      *awareness.Loop

	registry  *personas.Registry
	generator *personas.Generator

	modelRate   int
	speakerRate int

	mu             sync.Mutex
	currentPersona personas.Persona
	personaLoaded  bool
	userSpeaking   bool

	firstResponse     chan struct{}
	firstResponseOnce sync.Once

	shutdownCh   chan string
	shutdownOnce sync.Once

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// New builds the component graph from configuration. Nothing talks to
// hardware or the network yet; Init does that.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:           cfg,
		bus:           events.New(),
		firstResponse: make(chan struct{}),
		shutdownCh:    make(chan string, 1),
	}
	a.states = state.New(a.bus)
	a.dog = hardware.NewHTTPController(cfg.RobotIP)

	talk := headctrl.DefaultTalkOverlayParams()
	talk.AudioGain = cfg.TalkOverlayAudioGain
	a.head = headctrl.New(a.dog, a.states, headctrl.DefaultLimits(), talk)

	a.library = actions.New(a.dog, a.head, a.states, actions.PostureBias{
		Sitting:  cfg.SittingHeadPitchComp,
		Standing: cfg.StandingHeadPitchComp,
	})

	a.registry = personas.NewRegistry()
	if err := a.registry.LoadBuiltIn(); err != nil {
		return nil, err
	}
	if cfg.PersonaFile != "" {
		if err := a.registry.LoadFile(cfg.PersonaFile); err != nil {
			return nil, err
		}
	}
	a.generator = personas.NewGenerator(cfg.APIKey)

	a.session = realtime.NewSession(cfg.ModelURL, cfg.ModelID, cfg.APIKey)

	if err := a.buildAudio(); err != nil {
		return nil, err
	}

	a.monitor = sensors.New(a.dog, a.states, a.bus, a, cfg.EnvironmentPollInterval)
	a.aware = awareness.New(awareness.Config{
		PollInterval:     cfg.EnvironmentPollInterval,
		Debounce:         cfg.AwarenessDebounce,
		ReminderInterval: cfg.AwarenessReminderInterval,
		LoudThreshold:    cfg.AwarenessLoudVolumeThreshold,
	}, a.states, a.bus, a, a.gate)

	a.dispatcher = tools.New(a.states, a.library, a, a, a, a, a)

	return a, nil
}

// newFaceDetector selects the detection backend: YuNet faces by default,
// or YOLO person tracking (steers toward the whole body, which keeps
// working when the subject is too far off for the face model).
func newFaceDetector(backend string) (detection.Detector, error) {
	switch backend {
	case "", "yunet":
		return detection.NewYuNet(detection.DefaultConfig())
	case "yolo":
		objects, err := detection.NewYOLO(detection.DefaultYOLOConfig())
		if err != nil {
			return nil, err
		}
		return detection.NewPersonDetector(objects), nil
	default:
		return nil, fmt.Errorf("orchestrator: unknown detector backend %q", backend)
	}
}

// modelRateFor normalizes the configured model sample rate to one the
// endpoint supports, preferring 24kHz.
func modelRateFor(configured int) int {
	switch configured {
	case 16000, 24000:
		return configured
	default:
		if configured != 0 {
			log.Warn("orchestrator: unsupported model sample rate, falling back", "configured", configured, "fallback", 24000)
		}
		return 24000
	}
}

func (a *App) buildAudio() error {
	a.modelRate = modelRateFor(a.cfg.ModelSampleRate)

	srcCfg := audioio.DefaultConfig()
	srcCfg.Backend = audioio.Backend(a.cfg.AudioBackend)
	if a.cfg.AudioInputRate > 0 {
		srcCfg.SampleRate = a.cfg.AudioInputRate
	} else {
		srcCfg.SampleRate = a.modelRate
	}

	sinkCfg := audioio.DefaultConfig()
	sinkCfg.Backend = audioio.Backend(a.cfg.AudioBackend)
	if a.cfg.AudioOutputRate > 0 {
		sinkCfg.SampleRate = a.cfg.AudioOutputRate
	} else {
		sinkCfg.SampleRate = a.modelRate
	}
	a.speakerRate = sinkCfg.SampleRate

	source, err := audioio.NewSource(srcCfg, log.L())
	if err != nil {
		return fmt.Errorf("orchestrator: audio source: %w", err)
	}
	sink, err := audioio.NewSink(sinkCfg, log.L())
	if err != nil {
		source.Close()
		return fmt.Errorf("orchestrator: audio sink: %w", err)
	}
	a.source = source
	a.sink = sink

	a.gate = audioio.NewGate(audioio.GateConfig{
		SilenceThreshold:       a.cfg.SilenceThreshold,
		BargeInVolumeThreshold: a.cfg.BargeInVolumeThreshold,
		EnableBargeIn:          a.cfg.EnableBargeIn,
		DisableSpeaker:         a.cfg.DisableSpeaker,
		SpeechTailDuration:     a.cfg.SpeechTailDuration,
	}, a.states)

	a.capture = audioio.NewCapturePipeline(source, a.gate, a.modelRate, 32)

	// Frame size scales with the speaker rate so a playback frame spans
	// the same wall time regardless of negotiated rate.
	frameSize := a.cfg.AudioChunkSize * a.speakerRate / a.modelRate
	a.player = audioio.NewPlayer(sink, a.head, a.states, frameSize, a.states.Snapshot().Volume, a.speakerRate*10)

	return nil
}

// Init brings up hardware, vision, and the model session. A camera that
// fails at boot while face detection is enabled is fatal, per policy:
// better to die loudly than run a dog that cannot see.
func (a *App) Init(ctx context.Context) error {
	if voltage, err := a.dog.GetBatteryVoltage(); err != nil {
		return fmt.Errorf("orchestrator: hardware unreachable: %w", err)
	} else {
		log.Info("orchestrator: hardware up", "battery_v", voltage)
	}

	if a.cfg.FaceDetectEnabled {
		faces, err := newFaceDetector(a.cfg.DetectorBackend)
		if err != nil {
			return fmt.Errorf("orchestrator: face detector: %w", err)
		}
		camera := vision.NewHTTPCamera(a.cfg.RobotIP)
		if _, err := camera.CaptureFrame(); err != nil {
			return fmt.Errorf("orchestrator: camera unreachable: %w", err)
		}
		a.detector = vision.NewCameraDetector(camera, faces, a.cfg.CameraWidth, a.cfg.CameraHeight)

		a.tracker = tracking.New(tracking.Config{
			CameraWidth:     a.cfg.CameraWidth,
			CameraHeight:    a.cfg.CameraHeight,
			UpdateInterval:  a.cfg.FaceTrackUpdateInterval,
			RecenterTimeout: a.cfg.FaceTrackRecenterTimeout,
			RecenterStep:    a.cfg.FaceTrackRecenterStep,
		}, a.head, a.detector)
		a.tracker.SetPresenceFunc(a.monitor.SetFacePresence)
	}

	a.wireSession()

	persona, ok := a.registry.Get(a.cfg.Persona)
	if !ok {
		return fmt.Errorf("orchestrator: unknown default persona %q", a.cfg.Persona)
	}

	if err := a.connectWithRetry(ctx); err != nil {
		return err
	}
	if err := a.configureFor(persona); err != nil {
		return err
	}

	// Home the head for the boot posture before anything moves it.
	a.head.SetPostureBias(a.cfg.SittingHeadPitchComp)
	if err := a.head.SyncWithHardware(); err != nil {
		log.Warn("orchestrator: initial head sync failed", "error", err)
	}

	return nil
}

func (a *App) connectWithRetry(ctx context.Context) error {
	backoff := connectBackoffMin
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = a.session.Connect(ctx); err == nil {
			return nil
		}
		log.Warn("orchestrator: model connect failed", "attempt", attempt, "error", err)
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > connectBackoffMax {
			backoff = connectBackoffMax
		}
	}
	return fmt.Errorf("orchestrator: model connect: %w", err)
}

// Run starts every loop and blocks until ctx is cancelled or shutdown is
// requested. It returns after an orderly teardown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	defer cancel()

	a.states.StartThrottledBroadcast(a.cfg.StateStreamInterval)

	a.goRun(func() { a.head.Run() })
	a.goRun(func() { a.player.Run(runCtx) })

	if err := a.source.Start(runCtx); err != nil {
		return fmt.Errorf("orchestrator: start mic: %w", err)
	}
	if err := a.sink.Start(runCtx); err != nil {
		return fmt.Errorf("orchestrator: start speaker: %w", err)
	}
	a.goRun(func() { a.capture.Run(runCtx) })
	a.goRun(func() { a.sendLoop(runCtx) })
	a.goRun(func() { a.volumeSync(runCtx) })

	// Kick off the greeting, and hold sensors until the model has
	// actually said something (or the gate times out).
	if err := a.session.RequestResponse(realtime.ResponseOptions{}); err != nil {
		log.Warn("orchestrator: initial response request failed", "error", err)
	}
	a.goRun(func() {
		select {
		case <-runCtx.Done():
			return
		case <-a.firstResponse:
		case <-time.After(initialResponseTimeout):
			log.Warn("orchestrator: no initial response, enabling sensors anyway")
		}
		a.goRun(func() { a.monitor.Run(runCtx) })
		if a.tracker != nil {
			a.goRun(func() { a.tracker.Run(runCtx) })
		}
		a.goRun(func() { a.aware.Run(runCtx) })
	})

	a.emit("orchestrator.started", map[string]any{"persona": a.cfg.Persona})

	var reason string
	select {
	case <-ctx.Done():
		reason = "context_cancelled"
	case reason = <-a.shutdownCh:
	}

	a.shutdown(reason)
	return nil
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// sendLoop drains gated capture frames into the session in capture
// order.
func (a *App) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-a.capture.Frames():
			if !ok {
				return
			}
			if !a.session.IsConnected() {
				continue
			}
			if err := a.session.SendAudioFrame(frame); err != nil {
				log.Warn("orchestrator: audio send failed", "error", err)
			}
		}
	}
}

// volumeSync pushes state volume changes (the set_volume tool) into the
// playback gain.
func (a *App) volumeSync(ctx context.Context) {
	ch, unsubscribe := a.bus.Subscribe(func(e events.Event) bool {
		return e.Type == "state.changed"
	})
	defer unsubscribe()

	last := a.states.Snapshot().Volume
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if v := a.states.Snapshot().Volume; v != last {
				last = v
				a.player.SetVolume(v)
			}
		}
	}
}

// RequestShutdown asks the orchestrator to exit; idempotent, the second
// call just logs.
func (a *App) RequestShutdown(reason string) {
	requested := false
	a.shutdownOnce.Do(func() {
		requested = true
		a.shutdownCh <- reason
	})
	if !requested {
		log.Info("orchestrator: shutdown already requested", "reason", reason)
	}
}

// shutdown cancels components in the fixed order: awareness first (no
// new stimuli), then sensing, then the session, then audio, then the
// head (overlay before loop), then hardware.
func (a *App) shutdown(reason string) {
	log.Info("orchestrator: shutting down", "reason", reason)
	a.emit("orchestrator.stopping", map[string]any{"reason": reason})

	a.aware.SetEnabled(false)
	a.monitor.Stop()
	if a.tracker != nil {
		a.tracker.Stop()
	}

	a.session.Close()

	if a.runCancel != nil {
		a.runCancel()
	}
	a.source.Stop()
	a.sink.Stop()
	a.player.Stop()

	a.head.DisableTalking()
	a.head.Stop()

	a.library.Close()
	a.states.Stop()

	a.wg.Wait()

	a.source.Close()
	a.sink.Close()
	if closer, ok := a.detector.(interface{ Close() error }); ok && a.detector != nil {
		closer.Close()
	}
	if err := a.dog.Close(); err != nil {
		log.Warn("orchestrator: hardware close failed", "error", err)
	}
}

// Bus exposes the event bus to the dashboard relay.
func (a *App) Bus() *events.Bus { return a.bus }

// States exposes the state store to the dashboard relay.
func (a *App) States() *state.Store { return a.states }
