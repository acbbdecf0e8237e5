// Package telephony exposes the HTTP and websocket surface that
// connects the telephony provider to voice sessions: the call webhook,
// the bidirectional media stream, and operational endpoints.
package telephony

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/byteai/voiceline/pkg/voice"
)

// Config holds gateway settings.
type Config struct {
	Host string
	Port int

	// WebSocketURL is the public wss:// URL handed to the provider in
	// the call webhook. When empty the request host is used.
	WebSocketURL string

	// EnableTestEndpoints exposes the text-only /test/chat endpoint.
	EnableTestEndpoints bool

	// BusyText is spoken to callers rejected at capacity.
	BusyText string
}

// DefaultConfig returns gateway defaults.
func DefaultConfig() Config {
	return Config{
		Host:     "0.0.0.0",
		Port:     8000,
		BusyText: "We're sorry, all of our lines are busy right now. Please call back in a few minutes.",
	}
}

// Server is the telephony gateway. It owns the fiber app and bridges
// provider media streams onto scheduler-admitted sessions.
type Server struct {
	app       *fiber.App
	cfg       Config
	sched     *voice.Scheduler
	events    *eventHub
	logger    *slog.Logger
	startedAt time.Time
}

// NewServer wires the gateway routes against a scheduler.
func NewServer(cfg Config, sched *voice.Scheduler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		sched:     sched,
		events:    newEventHub(logger),
		logger:    logger.With("component", "gateway"),
		startedAt: time.Now(),
	}
	go s.events.run()

	app := fiber.New(fiber.Config{
		AppName:               "voiceline",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/", s.handleHealth)
	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)
	app.Post("/webhook/voice", s.handleVoiceWebhook)
	if cfg.EnableTestEndpoints {
		app.Post("/test/chat", s.handleTestChat)
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/media", websocket.New(s.handleMediaWS))
	app.Get("/ws/events", websocket.New(s.events.serve))

	s.app = app
	return s
}

// App exposes the fiber app for in-process request tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info("gateway listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	m := s.sched.Metrics()
	return c.JSON(fiber.Map{
		"status":       "healthy",
		"service":      "voiceline",
		"active_calls": m.ActiveSessions,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	m := s.sched.Metrics()
	return c.JSON(fiber.Map{
		"active_calls":               m.ActiveSessions,
		"total_calls":                m.TotalSessions,
		"turns_completed":            m.TurnsCompleted,
		"turns_timed_out":            m.TurnsTimedOut,
		"escalations":                m.Escalations,
		"stage_failures":             m.StageFailures,
		"avg_turn_latency_ms":        m.AvgTurnLatency.Milliseconds(),
		"last_turn_latency_ms":       m.LastTurnLatency.Milliseconds(),
		"avg_first_token_latency_ms": m.AvgFirstTokenLatency.Milliseconds(),
		"avg_first_audio_latency_ms": m.AvgFirstAudioLatency.Milliseconds(),
		"uptime_seconds":             int(time.Since(s.startedAt).Seconds()),
	})
}

// handleVoiceWebhook answers the provider's incoming-call webhook with
// TwiML. At capacity the caller hears a busy notice instead of ringing
// into a dead websocket; the authoritative admission check still runs
// when the media stream starts.
func (s *Server) handleVoiceWebhook(c *fiber.Ctx) error {
	callSid := c.FormValue("CallSid")
	from := c.FormValue("From")
	s.logger.Info("incoming call", "call", callSid, "from", from)

	if s.sched.AtCapacity() {
		s.logger.Warn("rejecting call at capacity", "call", callSid)
		c.Type("xml")
		return c.SendString(busyTwiML(s.cfg.BusyText))
	}

	wsURL := s.cfg.WebSocketURL
	if wsURL == "" {
		wsURL = "wss://" + c.Hostname() + "/ws/media"
	}

	c.Type("xml")
	return c.SendString(connectTwiML(wsURL, callSid))
}

// testChatRequest is the /test/chat request body.
type testChatRequest struct {
	Text string `json:"text"`
}

// handleTestChat runs one text-only exchange through the generation
// pipeline. Registered only when test endpoints are enabled.
func (s *Server) handleTestChat(c *fiber.Ctx) error {
	var req testChatRequest
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing 'text' field in request body",
		})
	}

	result, err := s.sched.TextExchange(c.Context(), req.Text)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"user":       req.Text,
		"response":   result.ResponseText,
		"tool_calls": result.Tools,
		"status":     result.Status,
	})
}
