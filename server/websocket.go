package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/Desarso/minetchat/datastream"
	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// WebSocketPathSuffix is appended to the relay path for the websocket endpoint.
const WebSocketPathSuffix = "/ws"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketWriter writes relay output as JSON frames. Writes are serialised
// so error replies from the read loop never interleave with a running turn.
type WebSocketWriter struct {
	Conn *websocket.Conn

	mu sync.Mutex
}

func NewWebSocketWriter(conn *websocket.Conn) *WebSocketWriter {
	return &WebSocketWriter{Conn: conn}
}

func (w *WebSocketWriter) writeFrame(frame datastream.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Conn.WriteJSON(frame)
}

func (w *WebSocketWriter) Begin(messageID string) error {
	return w.writeFrame(datastream.Frame{Type: datastream.FrameStart, MessageID: messageID})
}

func (w *WebSocketWriter) WriteText(text string) error {
	return w.writeFrame(datastream.Frame{Type: datastream.FrameText, Text: text})
}

func (w *WebSocketWriter) WriteError(err error) error {
	return w.writeFrame(datastream.Frame{Type: datastream.FrameError, Error: err.Error()})
}

func (w *WebSocketWriter) WriteFinish(reason string, usage *models.Usage) error {
	return w.writeFrame(datastream.Frame{Type: datastream.FrameDone, FinishReason: reason, Usage: usage})
}

func (w *WebSocketWriter) Flush() {}

// handleWebSocket serves any number of sequential turns on one connection.
// A cancel frame, a newer chat frame or a closed connection stops the
// running turn.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ws := NewWebSocketWriter(conn)
	frames := make(chan datastream.ClientFrame)
	go func() {
		defer close(frames)
		for {
			var frame datastream.ClientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.Logger.Debug().Err(err).Msg("websocket read ended")
				}
				return
			}
			frames <- frame
		}
	}()

	var (
		running <-chan struct{}
		cancel  context.CancelFunc = func() {}
	)
	defer func() {
		cancel()
		if running != nil {
			<-running
		}
	}()

	for frame := range frames {
		switch frame.Type {
		case datastream.FrameCancel:
			cancel()
			continue
		case "", datastream.FrameChat:
		default:
			_ = ws.writeFrame(datastream.Frame{Type: datastream.FrameError, Error: "unknown frame type " + frame.Type, Status: http.StatusBadRequest})
			continue
		}

		// A new chat frame replaces whatever turn is still streaming.
		if running != nil {
			cancel()
			<-running
			running = nil
		}

		history, err := models.Chat_Request{Messages: frame.Messages}.History()
		if err != nil {
			_ = ws.writeFrame(datastream.Frame{Type: datastream.FrameError, Error: err.Error(), Status: http.StatusBadRequest})
			continue
		}

		ctx, turnCancel := context.WithCancel(c.Request.Context())
		cancel = turnCancel
		done := make(chan struct{})
		running = done
		session := sessions.NewRelaySession(s.Generator, s.Prompt, s.Options)
		go func() {
			defer close(done)
			defer turnCancel()
			s.runWebSocketTurn(ctx, session, history, ws)
		}()
	}
}

func (s *Server) runWebSocketTurn(ctx context.Context, session *sessions.RelaySession, history []models.Message, ws *WebSocketWriter) {
	err := session.RunStreamInteraction(ctx, history, ws)
	var re *sessions.RelayError
	if errors.As(err, &re) && !re.Started {
		_ = ws.writeFrame(datastream.Frame{Type: datastream.FrameError, Error: re.Error(), Status: http.StatusBadGateway})
	}
}
