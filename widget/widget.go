// Package widget holds the client side chat state: the local conversation,
// the idle/awaiting state machine and consumption of the relay stream.
package widget

import (
	"context"
	"strings"
	"sync"

	"github.com/Desarso/minetchat/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrBusy           = errors.New("a response is still streaming")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNothingToRetry = errors.New("no failed request to retry")
)

type State int

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting-response"
	default:
		return "unknown"
	}
}

// Relay sends a conversation to the relay endpoint and streams back text.
// The error channel carries at most one error; both channels are closed when
// the response ends.
type Relay interface {
	Send(ctx context.Context, history []models.Message) (<-chan string, <-chan error)
}

// Widget is safe for concurrent use. Observers run on the goroutine that
// caused the change and must not block for long.
type Widget struct {
	relay  Relay
	logger zerolog.Logger

	mu        sync.Mutex
	messages  []models.Message
	state     State
	err       error
	sent      []models.Message
	gen       uint64
	cancel    context.CancelFunc
	assistant int
	observers []func()
}

func New(relay Relay, logger zerolog.Logger) *Widget {
	return &Widget{
		relay:     relay,
		logger:    logger.With().Str("component", "widget").Logger(),
		assistant: -1,
	}
}

// OnChange registers fn to be called after every state or content change.
func (w *Widget) OnChange(fn func()) {
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

func (w *Widget) Messages() []models.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.CloneMessages(w.messages)
}

func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the failure of the last request, or nil.
func (w *Widget) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Submit appends a user message and sends the conversation.
func (w *Widget) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	w.mu.Lock()
	if w.state == AwaitingResponse {
		w.mu.Unlock()
		return ErrBusy
	}
	history := append(models.CloneMessages(w.messages), models.NewMessage(models.RoleUser, text))
	w.start(ctx, history)
	return nil
}

// Retry re-sends the history of the last failed request. Partial assistant
// output from that attempt is dropped.
func (w *Widget) Retry(ctx context.Context) error {
	w.mu.Lock()
	if w.state == AwaitingResponse {
		w.mu.Unlock()
		return ErrBusy
	}
	if w.err == nil || w.sent == nil {
		w.mu.Unlock()
		return ErrNothingToRetry
	}
	w.logger.Debug().Int("history", len(w.sent)).Msg("retrying failed request")
	w.start(ctx, models.CloneMessages(w.sent))
	return nil
}

// Cancel stops the in-flight request and keeps any partial output. Chunks
// that arrive afterwards are discarded.
func (w *Widget) Cancel() {
	w.mu.Lock()
	if w.state != AwaitingResponse {
		w.mu.Unlock()
		return
	}
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.state = Idle
	w.err = nil
	w.mu.Unlock()
	w.logger.Debug().Msg("request cancelled")
	w.notify()
}

// start must be called with w.mu held; it releases it.
func (w *Widget) start(ctx context.Context, history []models.Message) {
	ctx, cancel := context.WithCancel(ctx)
	w.gen++
	gen := w.gen
	w.cancel = cancel
	w.state = AwaitingResponse
	w.err = nil
	w.sent = models.CloneMessages(history)
	w.messages = history
	w.assistant = -1
	w.mu.Unlock()
	w.notify()

	chunks, errs := w.relay.Send(ctx, models.CloneMessages(history))
	go w.consume(gen, cancel, chunks, errs)
}

func (w *Widget) consume(gen uint64, cancel context.CancelFunc, chunks <-chan string, errs <-chan error) {
	defer cancel()
	var result error
	for chunks != nil || errs != nil {
		select {
		case text, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if !w.appendChunk(gen, text) {
				return
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && result == nil {
				result = err
			}
		}
	}
	w.finish(gen, result)
}

func (w *Widget) appendChunk(gen uint64, text string) bool {
	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return false
	}
	if w.assistant < 0 {
		w.messages = append(w.messages, models.NewMessage(models.RoleAssistant, ""))
		w.assistant = len(w.messages) - 1
	}
	w.messages[w.assistant].Content += text
	w.mu.Unlock()
	w.notify()
	return true
}

func (w *Widget) finish(gen uint64, result error) {
	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return
	}
	w.state = Idle
	w.cancel = nil
	failed := result != nil && !errors.Is(result, context.Canceled)
	if failed {
		w.err = result
	}
	w.mu.Unlock()
	if failed {
		w.logger.Warn().Err(result).Msg("request failed")
	}
	w.notify()
}

func (w *Widget) notify() {
	w.mu.Lock()
	observers := append([]func(){}, w.observers...)
	w.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}
