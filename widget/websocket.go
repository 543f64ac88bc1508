package widget

import (
	"context"
	"net/http"

	"github.com/Desarso/minetchat/datastream"
	"github.com/Desarso/minetchat/models"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// WebSocketRelay talks to the relay's websocket endpoint. Each Send dials its
// own connection so frames from a cancelled turn never reach the next one.
type WebSocketRelay struct {
	URL    string
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

func NewWebSocketRelay(url string, logger zerolog.Logger) *WebSocketRelay {
	return &WebSocketRelay{
		URL: url,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
		},
		Logger: logger.With().Str("component", "websocket_relay").Logger(),
	}
}

func (r *WebSocketRelay) Send(ctx context.Context, history []models.Message) (<-chan string, <-chan error) {
	resChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(resChan)
		defer close(errChan)
		if err := r.stream(ctx, history, resChan); err != nil {
			errChan <- err
		}
	}()

	return resChan, errChan
}

func (r *WebSocketRelay) stream(ctx context.Context, history []models.Message, out chan<- string) error {
	dialer := r.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, r.URL, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return statusError(resp)
		}
		return errors.Wrap(err, "failed to reach relay")
	}
	defer conn.Close()

	// Closing the connection unblocks ReadJSON once the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	wire := toWire(history)
	if err := conn.WriteJSON(datastream.ClientFrame{Type: datastream.FrameChat, Messages: &wire}); err != nil {
		return errors.Wrap(err, "failed to send request")
	}

	for {
		var frame datastream.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "failed to read relay frames")
		}
		switch frame.Type {
		case datastream.FrameText:
			if frame.Text == "" {
				continue
			}
			if err := emit(ctx, out, frame.Text); err != nil {
				return err
			}
		case datastream.FrameError:
			if frame.Status != 0 {
				return &StatusError{StatusCode: frame.Status, Message: frame.Error}
			}
			return &StreamError{Message: frame.Error}
		case datastream.FrameDone:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
			return nil
		default:
			r.Logger.Trace().Str("type", frame.Type).Msg("ignoring frame")
		}
	}
}
