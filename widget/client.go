package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/Desarso/minetchat/datastream"
	"github.com/Desarso/minetchat/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// StatusError is a non-2xx answer from the relay.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("relay returned status %d: %s", e.StatusCode, e.Message)
}

// StreamError is an error part received inside a response stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "relay stream error: " + e.Message
}

// HTTPRelay talks to the relay endpoint over HTTP. It understands both the
// data stream and the SSE response formats.
type HTTPRelay struct {
	URL        string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func NewHTTPRelay(url string, logger zerolog.Logger) *HTTPRelay {
	return &HTTPRelay{
		URL:        url,
		HTTPClient: http.DefaultClient,
		Logger:     logger.With().Str("component", "http_relay").Logger(),
	}
}

func (r *HTTPRelay) Send(ctx context.Context, history []models.Message) (<-chan string, <-chan error) {
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

func (r *HTTPRelay) stream(ctx context.Context, history []models.Message, out chan<- string) error {
	wire := toWire(history)
	body, err := json.Marshal(models.Chat_Request{Messages: &wire})
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to reach relay")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return r.readSSE(ctx, resp.Body, out)
	}
	return r.readDataStream(ctx, resp.Body, out)
}

func toWire(history []models.Message) []models.Wire_Message {
	wire := make([]models.Wire_Message, 0, len(history))
	for _, m := range history {
		wire = append(wire, models.Wire_Message{ID: m.ID, Role: string(m.Role), Content: m.Content})
	}
	return wire
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload struct {
		Error string `json:"error"`
	}
	msg := string(bytes.TrimSpace(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

func emit(ctx context.Context, out chan<- string, text string) error {
	select {
	case out <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *HTTPRelay) readDataStream(ctx context.Context, body io.Reader, out chan<- string) error {
	reader := datastream.NewReader(body)
	for {
		part, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "failed to read relay stream")
		}
		switch part.Type {
		case datastream.PartText:
			if part.Text == "" {
				continue
			}
			if err := emit(ctx, out, part.Text); err != nil {
				return err
			}
		case datastream.PartError:
			return &StreamError{Message: part.Error}
		case datastream.PartFinish:
			return nil
		default:
			r.Logger.Trace().Str("type", string(part.Type)).Msg("ignoring stream part")
		}
	}
}

func (r *HTTPRelay) readSSE(ctx context.Context, body io.Reader, out chan<- string) error {
	reader := datastream.NewSSEReader(body)
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "failed to read relay events")
		}
		switch ev.Name {
		case "message":
			var payload struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
				return errors.Wrap(err, "malformed message event")
			}
			if payload.Text == "" {
				continue
			}
			if err := emit(ctx, out, payload.Text); err != nil {
				return err
			}
		case "error":
			var payload struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
				payload.Error = ev.Data
			}
			return &StreamError{Message: payload.Error}
		case "done":
			return nil
		}
	}
}
