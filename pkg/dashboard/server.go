// Package dashboard is the thin read-mostly control surface for the
// orchestrator: a JSON snapshot of robot state, the event-bus replay
// ring, a live websocket event feed, and POST endpoints mapped onto the
// orchestrator's audited external control operations. The richer UI it
// feeds lives out of process.
package dashboard

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/events"
	"github.com/teslashibe/go-pidog/pkg/hub"
	"github.com/teslashibe/go-pidog/pkg/state"
)

// Control is the slice of the orchestrator the dashboard drives; every
// method is audited on the orchestrator side.
type Control interface {
	EnqueueAction(ctx context.Context, names []string) error
	SendCustomStimulus(ctx context.Context, text string) error
	SetAwarenessEnabled(enabled bool) error
	SetSensorsEnabled(enabled bool) error
	SwitchPersonaCommand(ctx context.Context, name string) error
	SetGoal(goal string) error
	InstructResponse(ctx context.Context, topic, instructions string) error
	Shutdown(reason string) error
}

// Server relays state and events out and control commands in.
type Server struct {
	app     *fiber.App
	port    string
	states  *state.Store
	bus     *events.Bus
	control Control

	eventHub *hub.Hub
}

// NewServer builds the route table. Call Start to begin serving.
func NewServer(port string, states *state.Store, bus *events.Bus, control Control) *Server {
	s := &Server{
		port:     port,
		states:   states,
		bus:      bus,
		control:  control,
		eventHub: hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "PiDog Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/events", s.handleEvents)
	api.Post("/actions", s.handleActions)
	api.Post("/stimulus", s.handleStimulus)
	api.Post("/goal", s.handleGoal)
	api.Post("/persona", s.handlePersona)
	api.Post("/awareness", s.handleAwareness)
	api.Post("/sensors", s.handleSensors)
	api.Post("/respond", s.handleRespond)
	api.Post("/shutdown", s.handleShutdown)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(func(conn *websocket.Conn) {
		client := hub.NewClient(s.eventHub, conn)
		client.Run()
	}))

	s.app = app
	return s
}

// Start serves until ctx is cancelled, relaying every bus event to
// websocket subscribers.
func (s *Server) Start(ctx context.Context) error {
	go s.eventHub.Run()
	go s.relay(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			log.Warn("dashboard: shutdown failed", "error", err)
		}
	}()

	log.Info("dashboard: listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

func (s *Server) relay(ctx context.Context) {
	ch, unsubscribe := s.bus.Subscribe(nil)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := s.eventHub.BroadcastJSON(e); err != nil {
				log.Warn("dashboard: event encode failed", "type", e.Type, "error", err)
			}
		}
	}
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.states.Snapshot())
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	return c.JSON(s.bus.Replay(limit))
}

func (s *Server) handleActions(c *fiber.Ctx) error {
	var req struct {
		Actions []string `json:"actions"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.Actions) == 0 {
		return badRequest(c, "actions list required")
	}
	if err := s.control.EnqueueAction(c.Context(), req.Actions); err != nil {
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStimulus(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return badRequest(c, "text required")
	}
	if err := s.control.SendCustomStimulus(c.Context(), req.Text); err != nil {
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleGoal(c *fiber.Ctx) error {
	var req struct {
		Goal string `json:"goal"`
	}
	if err := c.BodyParser(&req); err != nil || req.Goal == "" {
		return badRequest(c, "goal required")
	}
	if err := s.control.SetGoal(req.Goal); err != nil {
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handlePersona(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return badRequest(c, "name required")
	}
	if err := s.control.SwitchPersonaCommand(c.Context(), req.Name); err != nil {
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleAwareness(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "enabled required")
	}
	if err := s.control.SetAwarenessEnabled(req.Enabled); err != nil {
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleSensors(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "enabled required")
	}
	if err := s.control.SetSensorsEnabled(req.Enabled); err != nil {
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleRespond(c *fiber.Ctx) error {
	var req struct {
		Topic        string `json:"topic"`
		Instructions string `json:"instructions"`
	}
	if err := c.BodyParser(&req); err != nil || req.Instructions == "" {
		return badRequest(c, "instructions required")
	}
	if err := s.control.InstructResponse(c.Context(), req.Topic, req.Instructions); err != nil {
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleShutdown(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil || req.Reason == "" {
		req.Reason = "dashboard_requested"
	}
	if err := s.control.Shutdown(req.Reason); err != nil {
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"status": "shutting_down"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func serverError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fmt.Sprint(err)})
}
