// Package server exposes the relay endpoint and the landing page over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/prompt"
	"github.com/Desarso/minetchat/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Stream protocols understood by the relay endpoint.
const (
	ProtocolData = "data"
	ProtocolSSE  = "sse"
)

// DefaultRelayPath is where the chat widget posts conversations.
const DefaultRelayPath = "/api/gemini"

// Settings configures the HTTP surface.
type Settings struct {
	RelayPath      string
	StreamProtocol string
}

// Server wires the relay session factory into a gin engine.
type Server struct {
	Generator sessions.Generator
	Prompt    *prompt.Builder
	Options   sessions.Options
	Settings  Settings
	Logger    zerolog.Logger

	engine  *gin.Engine
	landing []byte
}

// New builds the router. The landing page is rendered once here.
func New(generator sessions.Generator, builder *prompt.Builder, opts sessions.Options, settings Settings) (*Server, error) {
	if generator == nil {
		return nil, errors.New("server requires a generator")
	}
	if builder == nil {
		return nil, errors.New("server requires a prompt builder")
	}
	if settings.RelayPath == "" {
		settings.RelayPath = DefaultRelayPath
	}
	switch settings.StreamProtocol {
	case "":
		settings.StreamProtocol = ProtocolData
	case ProtocolData, ProtocolSSE:
	default:
		return nil, errors.Errorf("unknown stream protocol %q", settings.StreamProtocol)
	}

	s := &Server{
		Generator: generator,
		Prompt:    builder,
		Options:   opts,
		Settings:  settings,
		Logger:    opts.Logger.With().Str("component", "server").Logger(),
	}

	landing, err := renderLanding(settings.RelayPath)
	if err != nil {
		return nil, err
	}
	s.landing = landing

	r := gin.New()
	r.Use(requestLogger(s.Logger), gin.Recovery())
	r.POST(settings.RelayPath, s.handleRelay)
	r.GET(settings.RelayPath+WebSocketPathSuffix, s.handleWebSocket)
	r.GET("/", s.handleLanding)
	r.GET("/healthz", s.handleHealth)
	r.StaticFS("/static", staticFS())
	s.engine = r
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleRelay(c *gin.Context) {
	var req models.Chat_Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	history, err := req.History()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := sessions.NewRelaySession(s.Generator, s.Prompt, s.Options)

	var writer sessions.StreamWriter
	if s.Settings.StreamProtocol == ProtocolSSE {
		writer = NewGinSSEWriter(c)
	} else {
		writer = NewDataStreamWriter(c.Writer)
	}

	err = session.RunStreamInteraction(c.Request.Context(), history, writer)
	if err == nil {
		return
	}
	var re *sessions.RelayError
	if errors.As(err, &re) && !re.Started {
		c.JSON(http.StatusBadGateway, gin.H{"error": re.Error()})
	}
}

func (s *Server) handleLanding(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.landing)
}

func (s *Server) handleHealth(c *gin.Context) {
	store := "disabled"
	if s.Options.Store != nil {
		if err := s.Options.Store.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
			return
		}
		store = "ok"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": store})
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
